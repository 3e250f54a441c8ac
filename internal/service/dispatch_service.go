package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/GTDGit/surgeryquote_api/internal/cache"
	"github.com/GTDGit/surgeryquote_api/internal/estimate"
	"github.com/GTDGit/surgeryquote_api/internal/metrics"
	"github.com/GTDGit/surgeryquote_api/internal/models"
	"github.com/GTDGit/surgeryquote_api/internal/utils"
	"github.com/GTDGit/surgeryquote_api/pkg/mailer"
)

const maxErrorLength = 500

// DispatchStore is the persistence used by the estimate email sweep.
type DispatchStore interface {
	ListDueEmails(ctx context.Context, now, staleBefore time.Time, limit int) ([]models.Submission, error)
	ClaimEmail(ctx context.Context, id int, now, staleBefore time.Time) (bool, error)
	MarkEmailSent(ctx context.Context, id int, sentAt time.Time) error
	RecordEmailFailure(ctx context.Context, id int, reason string, now time.Time, maxAttempts int, keepClaim bool) (int, bool, error)
}

// ContentBuilder renders the estimate email of a submission.
type ContentBuilder interface {
	Build(ctx context.Context, sub *models.Submission) (*estimate.Content, error)
}

// MailSender delivers outbound email.
type MailSender interface {
	Enabled() bool
	Send(ctx context.Context, m mailer.Message) error
}

// SweepLocker prevents overlapping sweeps across processes.
type SweepLocker interface {
	Acquire(ctx context.Context) (func(context.Context) error, error)
}

// DispatchConfig tunes the sweep.
type DispatchConfig struct {
	// BatchSize caps the submissions selected per sweep.
	BatchSize   int
	Concurrency int
	// ClaimTTL is how long a claim blocks other sweeps before it is
	// considered abandoned.
	ClaimTTL time.Duration
	// MaxAttempts parks a submission after this many failed sends; 0 retries
	// forever.
	MaxAttempts int
}

// SweepReport summarises one sweep.
type SweepReport struct {
	Selected int `json:"selected"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Parked   int `json:"parked"`
	Skipped  int `json:"skipped"`
}

// DispatchService sends due estimate emails.
//
// Each submission is claimed with a conditional update before its content
// is built, and marked sent only after the mail transport accepted it. A
// crash between send and mark leaves a claim that expires after ClaimTTL,
// so delivery is at-most-once per claim window.
type DispatchService struct {
	store   DispatchStore
	builder ContentBuilder
	sender  MailSender
	lock    SweepLocker
	cfg     DispatchConfig
	now     func() time.Time
}

// NewDispatchService constructs a DispatchService. lock may be nil.
func NewDispatchService(store DispatchStore, builder ContentBuilder, sender MailSender, lock SweepLocker, cfg DispatchConfig) *DispatchService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 15 * time.Minute
	}
	return &DispatchService{
		store:   store,
		builder: builder,
		sender:  sender,
		lock:    lock,
		cfg:     cfg,
		now:     time.Now,
	}
}

// WithClock replaces the time source.
func (s *DispatchService) WithClock(now func() time.Time) *DispatchService {
	s.now = now
	return s
}

// Sweep sends every estimate email that is due. Per-submission failures
// are recorded and reported, never returned.
func (s *DispatchService) Sweep(ctx context.Context) (*SweepReport, error) {
	if !s.sender.Enabled() {
		return nil, mailer.ErrDisabled{}
	}

	if s.lock != nil {
		release, err := s.lock.Acquire(ctx)
		switch {
		case errors.Is(err, cache.ErrLockHeld):
			return nil, utils.ErrSweepAlreadyRunning
		case err != nil:
			// Row claims still guard each submission.
			log.Warn().Err(err).Msg("Sweep lock unavailable, continuing without it")
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					log.Warn().Err(err).Msg("Failed to release sweep lock")
				}
			}()
		}
	}

	start := time.Now()
	now := s.now()
	staleBefore := now.Add(-s.cfg.ClaimTTL)

	due, err := s.store.ListDueEmails(ctx, now, staleBefore, s.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Selected: len(due)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i := range due {
		sub := &due[i]
		g.Go(func() error {
			outcome := s.dispatch(ctx, sub, staleBefore)
			metrics.EstimateEmails.WithLabelValues(outcome).Inc()

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case metrics.OutcomeSent:
				report.Sent++
			case metrics.OutcomeFailed:
				report.Failed++
			case metrics.OutcomeParked:
				report.Failed++
				report.Parked++
			default:
				report.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	if report.Selected > 0 {
		log.Info().
			Int("selected", report.Selected).
			Int("sent", report.Sent).
			Int("failed", report.Failed).
			Int("parked", report.Parked).
			Int("skipped", report.Skipped).
			Dur("duration", time.Since(start)).
			Msg("Estimate email sweep finished")
	}
	return report, nil
}

func (s *DispatchService) dispatch(ctx context.Context, sub *models.Submission, staleBefore time.Time) string {
	if ctx.Err() != nil {
		return metrics.OutcomeSkipped
	}

	claimed, err := s.store.ClaimEmail(ctx, sub.ID, s.now(), staleBefore)
	if err != nil {
		log.Error().Err(err).Int("submission_id", sub.ID).Msg("Failed to claim submission")
		return metrics.OutcomeSkipped
	}
	if !claimed {
		log.Debug().Int("submission_id", sub.ID).Msg("Submission claimed elsewhere, skipping")
		return metrics.OutcomeSkipped
	}

	content, err := s.builder.Build(ctx, sub)
	if err != nil {
		return s.fail(ctx, sub, err, false)
	}
	source := "template"
	if content.Generated {
		source = "generated"
	}
	metrics.EstimateContent.WithLabelValues(source).Inc()

	err = s.sender.Send(ctx, mailer.Message{
		To:       []string{sub.Email},
		Subject:  content.Subject,
		TextBody: content.Text,
		HTMLBody: content.HTML,
	})
	if err != nil {
		// A send cut off by a deadline may still be delivered by the relay,
		// so the claim is kept until it goes stale.
		return s.fail(ctx, sub, err, deliveryUncertain(err))
	}

	// The mail is out: record it even if the sweep is being cancelled.
	if err := s.store.MarkEmailSent(context.WithoutCancel(ctx), sub.ID, s.now()); err != nil {
		log.Error().Err(err).Int("submission_id", sub.ID).Msg("Estimate email sent but not marked")
	}
	log.Info().
		Int("submission_id", sub.ID).
		Str("email", sub.Email).
		Bool("generated", content.Generated).
		Msg("Estimate email sent")
	return metrics.OutcomeSent
}

func (s *DispatchService) fail(ctx context.Context, sub *models.Submission, cause error, keepClaim bool) string {
	reason := cause.Error()
	if r := []rune(reason); len(r) > maxErrorLength {
		reason = string(r[:maxErrorLength])
	}

	attempts, parked, err := s.store.RecordEmailFailure(context.WithoutCancel(ctx), sub.ID, reason, s.now(), s.cfg.MaxAttempts, keepClaim)
	if err != nil {
		log.Error().Err(err).Int("submission_id", sub.ID).Msg("Failed to record estimate email failure")
	}

	event := log.Warn()
	if parked {
		event = log.Error()
	}
	event.
		Err(cause).
		Int("submission_id", sub.ID).
		Str("email", sub.Email).
		Int("attempts", attempts).
		Bool("parked", parked).
		Bool("claim_kept", keepClaim).
		Msg("Estimate email failed")

	if parked {
		return metrics.OutcomeParked
	}
	return metrics.OutcomeFailed
}

func deliveryUncertain(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
