package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/GTDGit/surgeryquote_api/internal/cache"
	"github.com/GTDGit/surgeryquote_api/internal/config"
	"github.com/GTDGit/surgeryquote_api/internal/database"
	"github.com/GTDGit/surgeryquote_api/internal/estimate"
	"github.com/GTDGit/surgeryquote_api/internal/handler"
	"github.com/GTDGit/surgeryquote_api/internal/metrics"
	"github.com/GTDGit/surgeryquote_api/internal/middleware"
	"github.com/GTDGit/surgeryquote_api/internal/repository"
	"github.com/GTDGit/surgeryquote_api/internal/service"
	"github.com/GTDGit/surgeryquote_api/internal/utils"
	"github.com/GTDGit/surgeryquote_api/internal/worker"
	"github.com/GTDGit/surgeryquote_api/pkg/mailer"
	"github.com/GTDGit/surgeryquote_api/pkg/textgen"
)

const sweepLockKey = "lock:estimate-sweep"

// main is the application entrypoint for the surgery quote API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg)
	log.Info().Str("env", cfg.Env).Msg("starting surgery quote api")

	decimal.MarshalJSONWithoutQuotes = true
	utils.SetJWTSecret(cfg.JWTSecret)

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	// 3c. Initialize catalog cache
	catalogCache := cache.NewCatalogCache(redisClient, cfg.Redis.CatalogTTL)

	// 4. Initialize repositories
	categoryRepo := repository.NewCategoryRepository(db)
	serviceRepo := repository.NewServiceRepository(db)
	pricingTypeRepo := repository.NewPricingTypeRepository(db)
	pricingRepo := repository.NewPricingRepository(db)
	materialRepo := repository.NewMaterialRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	adminRepo := repository.NewAdminUserRepository(db)

	// 5. Initialize outbound clients
	var generator estimate.Generator
	if cfg.TextGen.APIKey != "" {
		generator = textgen.NewClient(textgen.Config{
			BaseURL:     cfg.TextGen.BaseURL,
			APIKey:      cfg.TextGen.APIKey,
			Model:       cfg.TextGen.Model,
			Temperature: cfg.TextGen.Temperature,
			MaxTokens:   cfg.TextGen.MaxTokens,
			Timeout:     cfg.TextGen.Timeout,
		})
	} else {
		log.Warn().Msg("TEXTGEN_API_KEY not set - estimate emails use the templated body")
	}

	sender := mailer.NewSMTPSender(mailer.Config{
		Enabled:  cfg.Mail.Enabled,
		From:     cfg.Mail.FromEmail,
		FromName: cfg.Mail.FromName,
		ReplyTo:  cfg.Mail.ReplyTo,
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		SSL:      cfg.Mail.SSL,
		Timeout:  cfg.Mail.Timeout,
	})
	if !sender.Enabled() {
		log.Warn().Msg("mail delivery disabled - estimate emails stay scheduled")
	}

	builder, err := estimate.NewBuilder(generator, nil, estimate.Options{
		Subject:        cfg.Estimate.Subject,
		ConsultantName: cfg.Estimate.ConsultantName,
		Phone:          cfg.Estimate.ContactPhone,
		Hours:          cfg.Estimate.ContactHours,
		WebsiteURL:     cfg.Estimate.WebsiteURL,
		Timeout:        cfg.TextGen.Timeout,
	}, nil)
	if err != nil {
		log.Error().Err(err).Msg("estimate builder initialization failed")
		fmt.Fprintf(os.Stderr, "estimate builder initialization failed: %v\n", err)
		os.Exit(1)
	}

	// 6. Initialize services
	catalogSvc := service.NewCatalogService(categoryRepo, serviceRepo, pricingTypeRepo, pricingRepo, materialRepo, catalogCache)
	catalogAdminSvc := service.NewCatalogAdminService(categoryRepo, serviceRepo, pricingTypeRepo, pricingRepo, materialRepo, catalogCache)
	adminAuthSvc := service.NewAdminAuthService(adminRepo)
	submissionSvc := service.NewSubmissionService(submissionRepo, catalogSvc, service.ScheduleWindow{
		Min: cfg.Estimate.DelayMin,
		Max: cfg.Estimate.DelayMax,
	})
	dispatchSvc := service.NewDispatchService(
		submissionRepo, builder, sender,
		cache.NewLock(redisClient, sweepLockKey, cfg.Worker.EstimateLockTTL),
		service.DispatchConfig{
			Concurrency: cfg.Worker.EstimateConcurrency,
			ClaimTTL:    cfg.Estimate.ClaimTTL,
			MaxAttempts: cfg.Estimate.MaxAttempts,
		},
	)

	// 6a. Seed the first admin account
	if cfg.Admin.Email != "" {
		seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := adminAuthSvc.CreateAdmin(seedCtx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name); err != nil {
			log.Error().Err(err).Str("email", cfg.Admin.Email).Msg("admin seed failed")
		}
		seedCancel()
	}

	// 7. Initialize handlers
	handlers := &Handlers{
		Health:       handler.NewHealthHandler(db, handler.PingFunc(redisClient.Ping)),
		Catalog:      handler.NewCatalogHandler(catalogSvc),
		CatalogAdmin: handler.NewCatalogAdminHandler(catalogAdminSvc),
		Submission:   handler.NewSubmissionHandler(submissionSvc),
		Job:          handler.NewJobHandler(dispatchSvc),
		Auth:         handler.NewAuthHandler(adminAuthSvc),
	}

	// 8. Initialize middleware
	mws := &Middlewares{
		JWT:         middleware.NewJWTMiddleware(),
		SubmitLimit: middleware.NewRateLimiter(redisClient, "submission", cfg.RateLimit.SubmissionsPerMinute, time.Minute),
		LoginLimit:  middleware.NewRateLimiter(redisClient, "login", cfg.RateLimit.LoginsPerMinute, time.Minute),
	}

	// 9. Setup router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, mws)

	// 10. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 11. Start workers
	workersDone := make(chan struct{})
	if cfg.Worker.EstimateEnabled {
		go func() {
			defer close(workersDone)
			worker.NewEstimateEmailWorker(dispatchSvc, cfg.Worker.EstimateInterval).Start(ctx)
		}()
	} else {
		close(workersDone)
		log.Info().Msg("estimate email worker disabled")
	}

	// 12. Start HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 14. Cancel context to stop workers
	cancel()

	// 15. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("estimate sweep still running at shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health       *handler.HealthHandler
	Catalog      *handler.CatalogHandler
	CatalogAdmin *handler.CatalogAdminHandler
	Submission   *handler.SubmissionHandler
	Job          *handler.JobHandler
	Auth         *handler.AuthHandler
}

// Middlewares groups the per-route middleware.
type Middlewares struct {
	JWT         *middleware.JWTMiddleware
	SubmitLimit *middleware.RateLimiter
	LoginLimit  *middleware.RateLimiter
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, mws *Middlewares) {
	router.GET("/v1/health", handlers.Health.GetHealth)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Public catalog and quote intake
	v1 := router.Group("/v1")
	{
		v1.GET("/categories", handlers.Catalog.ListCategories)
		v1.GET("/services/category/:categoryId", handlers.Catalog.ListServicesByCategory)
		v1.GET("/services", handlers.Catalog.ListServices)
		v1.GET("/services/:id", handlers.Catalog.GetService)
		v1.GET("/pricing-types", handlers.Catalog.ListPricingTypes)
		v1.GET("/materials", handlers.Catalog.ListMaterials)
		v1.GET("/pricings", handlers.Catalog.ListPricings)
		v1.GET("/pricings/general", handlers.Catalog.ListGeneralPricings)

		v1.POST("/submissions", mws.SubmitLimit.Handle(), handlers.Submission.CreateSubmission)
	}

	// Admin routes
	admin := router.Group("/v1/admin")
	admin.POST("/auth/login", mws.LoginLimit.Handle(), handlers.Auth.Login)
	admin.Use(mws.JWT.Handle())
	{
		// Submissions
		admin.GET("/submissions", handlers.Submission.ListSubmissions)
		admin.GET("/submissions/stats", handlers.Submission.GetStats)
		admin.GET("/submissions/:id", handlers.Submission.GetSubmission)
		admin.PATCH("/submissions/:id/status", handlers.Submission.UpdateStatus)
		admin.POST("/submissions/:id/reschedule-email", handlers.Submission.RescheduleEmail)
		admin.DELETE("/submissions/:id", handlers.Submission.DeleteSubmission)

		// Categories
		admin.GET("/categories", handlers.CatalogAdmin.ListCategories)
		admin.POST("/categories", handlers.CatalogAdmin.CreateCategory)
		admin.PUT("/categories/:id", handlers.CatalogAdmin.UpdateCategory)
		admin.DELETE("/categories/:id", handlers.CatalogAdmin.DeleteCategory)

		// Pricing types
		admin.GET("/pricing-types", handlers.CatalogAdmin.ListPricingTypes)
		admin.POST("/pricing-types", handlers.CatalogAdmin.CreatePricingType)
		admin.PUT("/pricing-types/:id", handlers.CatalogAdmin.UpdatePricingType)
		admin.DELETE("/pricing-types/:id", handlers.CatalogAdmin.DeletePricingType)

		// Materials
		admin.GET("/materials", handlers.CatalogAdmin.ListMaterials)
		admin.POST("/materials", handlers.CatalogAdmin.CreateMaterial)
		admin.PUT("/materials/:id", handlers.CatalogAdmin.UpdateMaterial)
		admin.DELETE("/materials/:id", handlers.CatalogAdmin.DeleteMaterial)

		// Pricings
		admin.GET("/pricings", handlers.CatalogAdmin.ListPricings)
		admin.POST("/pricings", handlers.CatalogAdmin.CreatePricing)
		admin.PUT("/pricings/:id", handlers.CatalogAdmin.UpdatePricing)
		admin.DELETE("/pricings/:id", handlers.CatalogAdmin.DeletePricing)

		// Services
		admin.GET("/services", handlers.CatalogAdmin.ListServices)
		admin.POST("/services", handlers.CatalogAdmin.CreateService)
		admin.GET("/services/:id", handlers.CatalogAdmin.GetService)
		admin.PUT("/services/:id", handlers.CatalogAdmin.UpdateService)
		admin.DELETE("/services/:id", handlers.CatalogAdmin.DeleteService)
		admin.PUT("/services/:id/pricing", handlers.CatalogAdmin.UpdateServicePricing)

		// Jobs
		admin.POST("/jobs/estimate-emails", handlers.Job.RunEstimateEmails)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(cfg *config.Config) {
	level := zerolog.DebugLevel
	if cfg.IsProduction() {
		level = zerolog.InfoLevel
	}
	if cfg.Log.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stdout
	if cfg.Log.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename: cfg.Log.File,
			MaxSize:  cfg.Log.MaxSizeMB,
			MaxAge:   cfg.Log.MaxAgeDay,
			Compress: true,
		})
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}
