package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/surgeryquote_api/internal/utils"
)

var startTime = time.Now()

// Pinger checks connectivity of a backing store.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// PingContext implements Pinger.
func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// HealthHandler provides health endpoint.
type HealthHandler struct {
	db    Pinger
	redis Pinger
}

// NewHealthHandler creates a new HealthHandler. redis may be nil.
func NewHealthHandler(db, redis Pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// GetHealth responds with service, database and Redis status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := status(ctx, h.db)
	redisStatus := "disabled"
	if h.redis != nil {
		redisStatus = status(ctx, h.redis)
	}

	data := gin.H{
		"status":   "healthy",
		"version":  "1.0.0",
		"uptime":   int(time.Since(startTime).Seconds()),
		"database": dbStatus,
		"redis":    redisStatus,
	}
	if dbStatus != "connected" {
		data["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, utils.Response{
			Success: false,
			Code:    http.StatusServiceUnavailable,
			Message: "Database unavailable",
			Data:    data,
			Meta:    utils.Meta{RequestID: c.GetString("request_id"), Timestamp: time.Now().Format(time.RFC3339)},
		})
		return
	}
	utils.Success(c, 200, "Service is healthy", data)
}

func status(ctx context.Context, p Pinger) string {
	if err := p.PingContext(ctx); err != nil {
		return "disconnected"
	}
	return "connected"
}
