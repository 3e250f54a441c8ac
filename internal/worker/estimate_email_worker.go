package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/surgeryquote_api/internal/service"
	"github.com/GTDGit/surgeryquote_api/internal/utils"
	"github.com/GTDGit/surgeryquote_api/pkg/mailer"
)

// Sweeper runs one pass over the due estimate emails.
type Sweeper interface {
	Sweep(ctx context.Context) (*service.SweepReport, error)
}

// EstimateEmailWorker sweeps due estimate emails on a fixed interval.
// A tick that fires while the previous sweep is still running is skipped.
type EstimateEmailWorker struct {
	sweeper  Sweeper
	interval time.Duration
}

// NewEstimateEmailWorker constructs an EstimateEmailWorker.
func NewEstimateEmailWorker(sweeper Sweeper, interval time.Duration) *EstimateEmailWorker {
	return &EstimateEmailWorker{
		sweeper:  sweeper,
		interval: interval,
	}
}

// Start runs a sweep immediately, then schedules the periodic sweeps and
// blocks until ctx is cancelled and the running sweep has returned.
func (w *EstimateEmailWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting estimate email worker")

	logger := cronLogger{log.Logger.With().Str("component", "estimate_email_worker").Logger()}
	c := cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))
	job := c.Schedule(cron.Every(w.interval), cron.FuncJob(func() { w.run(ctx) }))

	// Run immediately on start, through the chain so a tick cannot overlap.
	// cron only tracks its own ticks, so the first run is waited on here.
	var first sync.WaitGroup
	if entry := c.Entry(job); entry.Valid() {
		first.Add(1)
		go func() {
			defer first.Done()
			entry.WrappedJob.Run()
		}()
	}
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	first.Wait()
	log.Info().Msg("Estimate email worker stopped")
}

func (w *EstimateEmailWorker) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := w.sweeper.Sweep(ctx)
	switch {
	case err == nil:
		if report.Selected > 0 {
			log.Debug().Int("sent", report.Sent).Int("failed", report.Failed).Msg("Estimate email tick done")
		}
	case errors.Is(err, utils.ErrSweepAlreadyRunning):
		log.Debug().Msg("Estimate email sweep running elsewhere, skipping tick")
	case errors.As(err, &mailer.ErrDisabled{}):
		log.Debug().Msg("Mail disabled, skipping estimate email tick")
	default:
		log.Error().Err(err).Msg("Estimate email sweep failed")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(kv(keysAndValues)).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(kv(keysAndValues)).Msg(msg)
}

func kv(keysAndValues []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return out
}
