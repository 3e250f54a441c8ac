package service

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/GTDGit/surgeryquote_api/internal/metrics"
	"github.com/GTDGit/surgeryquote_api/internal/models"
	"github.com/GTDGit/surgeryquote_api/internal/pricing"
	"github.com/GTDGit/surgeryquote_api/internal/repository"
	"github.com/GTDGit/surgeryquote_api/internal/utils"
)

// DefaultPhoneRegion is used to parse numbers given without a country code.
const DefaultPhoneRegion = "GR"

// SubmissionStore is the persistence used by SubmissionService.
type SubmissionStore interface {
	Create(ctx context.Context, s *models.Submission) error
	GetByID(ctx context.Context, id int) (*models.Submission, error)
	List(ctx context.Context, filter *repository.SubmissionFilter) (*repository.SubmissionListResult, error)
	Stats(ctx context.Context) (*models.SubmissionStats, error)
	UpdateStatus(ctx context.Context, id int, status models.SubmissionStatus) (*models.Submission, error)
	Delete(ctx context.Context, id int) error
	RescheduleEmail(ctx context.Context, id int, at time.Time) (*models.Submission, error)
}

// Quoter prices a catalog service for a new submission.
type Quoter interface {
	Quote(ctx context.Context, serviceID int, variationID *int) (*Quote, error)
}

// ScheduleWindow is the range of delays after which the estimate email of a
// new submission goes out.
type ScheduleWindow struct {
	Min time.Duration
	Max time.Duration
}

// SubmissionService handles lead intake and the admin submission workflow.
type SubmissionService struct {
	store  SubmissionStore
	quoter Quoter
	window ScheduleWindow
	now    func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSubmissionService constructs a SubmissionService. quoter may be nil,
// in which case only client-side snapshots are accepted.
func NewSubmissionService(store SubmissionStore, quoter Quoter, window ScheduleWindow) *SubmissionService {
	if window.Max < window.Min {
		window.Max = window.Min
	}
	return &SubmissionService{
		store:  store,
		quoter: quoter,
		window: window,
		now:    time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithClock replaces the time source.
func (s *SubmissionService) WithClock(now func() time.Time) *SubmissionService {
	s.now = now
	return s
}

// WithRand replaces the random source used for scheduling.
func (s *SubmissionService) WithRand(rnd *rand.Rand) *SubmissionService {
	s.rnd = rnd
	return s
}

// CreateSubmissionRequest is the public lead form. The pricing snapshot is
// either computed from serviceId/variationId or given as pricingDetails
// with an optional totalPrice.
type CreateSubmissionRequest struct {
	Name              string             `json:"name" validate:"required,max=255"`
	Email             string             `json:"email" validate:"required,email,max=255"`
	Phone             string             `json:"phone" validate:"required,max=50"`
	Notes             *string            `json:"notes" validate:"omitempty,max=5000"`
	Category          string             `json:"category" validate:"required_without=ServiceID,max=255"`
	Procedure         string             `json:"procedure" validate:"required_without=ServiceID,max=255"`
	Variant           *string            `json:"variant" validate:"omitempty,max=255"`
	ServiceID         *int               `json:"serviceId" validate:"omitempty,min=1"`
	VariationID       *int               `json:"variationId" validate:"omitempty,min=1"`
	PricingDetails    []pricing.LineItem `json:"pricingDetails"`
	TotalPrice        *pricing.Total     `json:"totalPrice"`
	EmailScheduledFor *time.Time         `json:"emailScheduledFor"`
}

// UpdateStatusRequest changes the admin workflow status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// RescheduleRequest makes an unsent estimate email due again. A nil SendAt
// means now.
type RescheduleRequest struct {
	SendAt *time.Time `json:"sendAt"`
}

// Create validates the lead, snapshots its pricing and schedules the
// estimate email.
func (s *SubmissionService) Create(ctx context.Context, req *CreateSubmissionRequest) (*models.Submission, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Category = strings.TrimSpace(req.Category)
	req.Procedure = strings.TrimSpace(req.Procedure)

	ve := utils.NewValidationError()
	if err := utils.ValidateStruct(req); err != nil {
		if !mergeValidation(ve, err) {
			return nil, err
		}
	}
	if req.VariationID != nil && req.ServiceID == nil {
		ve.Add("variationId", "requires serviceId")
	}
	if ve.HasErrors() {
		return nil, ve
	}

	sub := &models.Submission{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     NormalizePhone(req.Phone),
		Notes:     trimmedOrNil(req.Notes),
		Category:  req.Category,
		Procedure: req.Procedure,
		Variant:   trimmedOrNil(req.Variant),
		Status:    models.SubmissionPending,
	}

	snap, err := s.snapshot(ctx, req, sub)
	if err != nil {
		return nil, err
	}
	sub.PricingDetails = models.PricingDetails(snap.Items)
	sub.TotalPrice = models.TotalPrice{Total: snap.Total}

	if sub.Email != "" {
		at := req.EmailScheduledFor
		if at == nil {
			t := s.ScheduleFrom(s.now())
			at = &t
		}
		sub.EmailScheduledFor = at
	}

	if err := s.store.Create(ctx, sub); err != nil {
		return nil, err
	}

	metrics.SubmissionsCreated.WithLabelValues(strconv.FormatBool(sub.EmailScheduledFor != nil)).Inc()
	logEvent := log.Info().
		Int("submission_id", sub.ID).
		Str("procedure", sub.Procedure).
		Bool("priced", sub.TotalPrice.Priced)
	if sub.EmailScheduledFor != nil {
		logEvent = logEvent.Time("email_scheduled_for", *sub.EmailScheduledFor)
	}
	logEvent.Msg("Submission created")

	return sub, nil
}

// ScheduleFrom returns a send time drawn uniformly from the schedule window
// after t.
func (s *SubmissionService) ScheduleFrom(t time.Time) time.Time {
	span := int64(s.window.Max - s.window.Min)
	if span <= 0 {
		return t.Add(s.window.Min)
	}
	s.mu.Lock()
	offset := s.rnd.Int63n(span + 1)
	s.mu.Unlock()
	return t.Add(s.window.Min + time.Duration(offset))
}

func (s *SubmissionService) snapshot(ctx context.Context, req *CreateSubmissionRequest, sub *models.Submission) (pricing.Snapshot, error) {
	if req.ServiceID != nil {
		if s.quoter == nil {
			return pricing.Snapshot{}, utils.ErrServiceNotFound
		}
		q, err := s.quoter.Quote(ctx, *req.ServiceID, req.VariationID)
		switch {
		case errors.Is(err, utils.ErrServiceNotFound):
			return pricing.Snapshot{}, fieldError("serviceId", "does not exist")
		case errors.Is(err, utils.ErrVariationNotFound):
			return pricing.Snapshot{}, fieldError("variationId", "does not exist")
		case err != nil:
			return pricing.Snapshot{}, err
		}
		sub.Procedure = q.Procedure
		if q.Category != "" {
			sub.Category = q.Category
		}
		if q.Variant != nil {
			sub.Variant = q.Variant
		}
		return q.Snapshot, nil
	}

	items := req.PricingDetails
	if items == nil {
		items = []pricing.LineItem{}
	}
	snap := pricing.SnapshotOf(items)
	ve := utils.NewValidationError()
	if req.TotalPrice != nil {
		if problems := (pricing.Snapshot{Total: *req.TotalPrice}).Validate(); problems != nil {
			ve.Merge(problems)
		} else if !req.TotalPrice.Equal(snap.Total) {
			ve.Add("totalPrice", "must equal the sum of pricingDetails")
		}
	}
	if problems := snap.Validate(); problems != nil {
		ve.Merge(problems)
	}
	if ve.HasErrors() {
		return pricing.Snapshot{}, ve
	}
	return snap, nil
}

// Get returns a submission by id.
func (s *SubmissionService) Get(ctx context.Context, id int) (*models.Submission, error) {
	sub, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, utils.ErrSubmissionNotFound)
	}
	return sub, nil
}

// List returns submissions newest first.
func (s *SubmissionService) List(ctx context.Context, filter *repository.SubmissionFilter) (*repository.SubmissionListResult, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fieldError("status", statusChoices())
	}
	return s.store.List(ctx, filter)
}

// Stats counts submissions per status.
func (s *SubmissionService) Stats(ctx context.Context) (*models.SubmissionStats, error) {
	return s.store.Stats(ctx)
}

// UpdateStatus sets the workflow status. Any transition between the known
// statuses is allowed; unknown values are rejected.
func (s *SubmissionService) UpdateStatus(ctx context.Context, id int, req *UpdateStatusRequest) (*models.Submission, error) {
	status := models.SubmissionStatus(strings.TrimSpace(req.Status))
	if !status.Valid() {
		return nil, fieldError("status", statusChoices())
	}
	sub, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, notFound(err, utils.ErrSubmissionNotFound)
	}
	log.Info().Int("submission_id", id).Str("status", string(status)).Msg("Submission status updated")
	return sub, nil
}

// Delete removes a submission.
func (s *SubmissionService) Delete(ctx context.Context, id int) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return notFound(err, utils.ErrSubmissionNotFound)
	}
	return nil
}

// RescheduleEmail makes the estimate email of a submission due at the given
// time, resetting a parked failure. Sent emails and submissions without an
// email address are not eligible.
func (s *SubmissionService) RescheduleEmail(ctx context.Context, id int, req *RescheduleRequest) (*models.Submission, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	at := s.now()
	if req != nil && req.SendAt != nil {
		at = *req.SendAt
	}
	sub, err := s.store.RescheduleEmail(ctx, id, at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrSubmissionNotEligible
		}
		return nil, err
	}
	log.Info().Int("submission_id", id).Time("email_scheduled_for", at).Msg("Estimate email rescheduled")
	return sub, nil
}

// NormalizePhone formats a parseable number as E.164; anything else is
// kept as typed.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func statusChoices() string {
	names := lo.Map(models.SubmissionStatuses, func(st models.SubmissionStatus, _ int) string { return string(st) })
	return "must be one of: " + strings.Join(names, ", ")
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
