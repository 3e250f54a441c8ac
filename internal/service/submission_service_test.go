package service

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/surgeryquote_api/internal/models"
	"github.com/GTDGit/surgeryquote_api/internal/pricing"
	"github.com/GTDGit/surgeryquote_api/internal/utils"
)

var baseTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newSubmissionService(store SubmissionStore, quoter Quoter, seed int64) *SubmissionService {
	return NewSubmissionService(store, quoter, ScheduleWindow{Min: 60 * time.Minute, Max: 120 * time.Minute}).
		WithClock(func() time.Time { return baseTime }).
		WithRand(rand.New(rand.NewSource(seed)))
}

func validRequest() *CreateSubmissionRequest {
	return &CreateSubmissionRequest{
		Name:      "Μαρία Παπαδάκη",
		Email:     "Maria@Example.com ",
		Phone:     "6946051659",
		Category:  "Face",
		Procedure: "Rhinoplasty",
		PricingDetails: []pricing.LineItem{
			{Name: "Surgeon", PriceFrom: decimal.NewFromInt(1000)},
			{Name: "Anaesthesia", PriceFrom: decimal.NewFromInt(200), PriceTo: decimal.NewNullDecimal(decimal.NewFromInt(250))},
		},
	}
}

func TestCreate_SchedulesWithinWindow(t *testing.T) {
	store := newMemStore()
	svc := newSubmissionService(store, nil, 7)

	lo, hi := baseTime.Add(60*time.Minute), baseTime.Add(120*time.Minute)
	seen := map[time.Time]struct{}{}
	for i := 0; i < 1000; i++ {
		sub, err := svc.Create(context.Background(), validRequest())
		require.NoError(t, err)
		require.NotNil(t, sub.EmailScheduledFor)

		at := *sub.EmailScheduledFor
		assert.False(t, at.Before(lo), "scheduled %s before window", at)
		assert.False(t, at.After(hi), "scheduled %s after window", at)
		seen[at] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}

func TestCreate_NormalizesAndSnapshots(t *testing.T) {
	store := newMemStore()
	svc := newSubmissionService(store, nil, 1)

	sub, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "maria@example.com", sub.Email)
	assert.Equal(t, "+306946051659", sub.Phone)
	assert.Equal(t, models.SubmissionPending, sub.Status)
	assert.Len(t, sub.PricingDetails, 2)
	assert.True(t, sub.TotalPrice.Priced)
	assert.Equal(t, "1200", sub.TotalPrice.Min.String())
	assert.Equal(t, "1250", sub.TotalPrice.Max.String())
	assert.Equal(t, models.EmailScheduled, sub.EmailState())

	stored := store.get(sub.ID)
	assert.Equal(t, sub.EmailScheduledFor, stored.EmailScheduledFor)
}

func TestCreate_ExplicitScheduleIsKept(t *testing.T) {
	svc := newSubmissionService(newMemStore(), nil, 1)
	req := validRequest()
	at := baseTime.Add(5 * time.Minute)
	req.EmailScheduledFor = &at

	sub, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, at, *sub.EmailScheduledFor)
}

func TestCreate_ClientTotalMustBeConsistent(t *testing.T) {
	svc := newSubmissionService(newMemStore(), nil, 1)
	req := validRequest()
	req.PricingDetails[1].PriceTo = decimal.NewNullDecimal(decimal.NewFromInt(100))
	bad := pricing.NewTotal(decimal.NewFromInt(500), decimal.NewFromInt(400))
	req.TotalPrice = &bad

	_, err := svc.Create(context.Background(), req)
	ve, ok := utils.AsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Contains(t, ve.Fields, "pricingDetails[1].priceTo")
	assert.Contains(t, ve.Fields, "totalPrice.max")
}

func TestCreate_PaddedFieldsAreTrimmedBeforeValidation(t *testing.T) {
	svc := newSubmissionService(newMemStore(), nil, 1)
	req := validRequest()
	req.Name = "  Μαρία  "
	req.Email = " maria@example.com "
	req.Procedure = " Rhinoplasty\t"

	sub, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Μαρία", sub.Name)
	assert.Equal(t, "maria@example.com", sub.Email)
	assert.Equal(t, "Rhinoplasty", sub.Procedure)
}

func TestCreate_ClientTotalMustMatchLineItems(t *testing.T) {
	store := newMemStore()
	svc := newSubmissionService(store, nil, 1)
	req := validRequest()
	wrong := pricing.NewTotal(decimal.NewFromInt(1), decimal.NewFromInt(2))
	req.TotalPrice = &wrong

	_, err := svc.Create(context.Background(), req)
	ve, ok := utils.AsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Contains(t, ve.Fields, "totalPrice")
	assert.Empty(t, store.rows)

	right := pricing.NewTotal(decimal.NewFromInt(1200), decimal.NewFromInt(1250))
	req.TotalPrice = &right
	sub, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "€1200.00 - €1250.00", sub.TotalPrice.Display())
}

func TestCreate_ValidationErrors(t *testing.T) {
	svc := newSubmissionService(newMemStore(), nil, 1)

	_, err := svc.Create(context.Background(), &CreateSubmissionRequest{Email: "not-an-email"})
	ve, ok := utils.AsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)

	for _, field := range []string{"name", "email", "phone", "category", "procedure"} {
		assert.Contains(t, ve.Fields, field)
	}
}

func TestCreate_VariationRequiresService(t *testing.T) {
	svc := newSubmissionService(newMemStore(), nil, 1)
	req := validRequest()
	id := 3
	req.VariationID = &id

	_, err := svc.Create(context.Background(), req)
	ve, ok := utils.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "variationId")
}

func TestCreate_FromCatalogQuote(t *testing.T) {
	variant := "Open"
	quote := &Quote{
		Category:  "Face",
		Procedure: "Rhinoplasty",
		Variant:   &variant,
		Snapshot: pricing.SnapshotOf([]pricing.LineItem{
			{Name: "Surgeon", PriceFrom: decimal.NewFromInt(1500)},
		}),
	}
	svc := newSubmissionService(newMemStore(), &fakeQuoter{quote: quote}, 1)

	serviceID, variationID := 4, 9
	sub, err := svc.Create(context.Background(), &CreateSubmissionRequest{
		Name:        "Nikos",
		Email:       "nikos@example.com",
		Phone:       "call me",
		ServiceID:   &serviceID,
		VariationID: &variationID,
		// Client numbers are ignored when the catalog prices the service.
		PricingDetails: []pricing.LineItem{{Name: "Cheap", PriceFrom: decimal.NewFromInt(1)}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Rhinoplasty", sub.Procedure)
	assert.Equal(t, "Face", sub.Category)
	require.NotNil(t, sub.Variant)
	assert.Equal(t, "Open", *sub.Variant)
	assert.Equal(t, "call me", sub.Phone)
	require.Len(t, sub.PricingDetails, 1)
	assert.Equal(t, "Surgeon", sub.PricingDetails[0].Name)
	assert.Equal(t, "1500", sub.TotalPrice.Min.String())
}

func TestCreate_UnknownCatalogService(t *testing.T) {
	svc := newSubmissionService(newMemStore(), &fakeQuoter{err: utils.ErrServiceNotFound}, 1)
	serviceID := 99
	req := validRequest()
	req.ServiceID = &serviceID

	_, err := svc.Create(context.Background(), req)
	ve, ok := utils.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "serviceId")
}

func TestUpdateStatus(t *testing.T) {
	store := newMemStore()
	svc := newSubmissionService(store, nil, 1)
	sub, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), sub.ID, &UpdateStatusRequest{Status: "archived"})
	ve, ok := utils.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields["status"], "pending, contacted, completed")
	assert.Equal(t, models.SubmissionPending, store.get(sub.ID).Status)

	updated, err := svc.UpdateStatus(context.Background(), sub.ID, &UpdateStatusRequest{Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionCompleted, updated.Status)

	// Backward moves are allowed.
	updated, err = svc.UpdateStatus(context.Background(), sub.ID, &UpdateStatusRequest{Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionPending, updated.Status)

	_, err = svc.UpdateStatus(context.Background(), 12345, &UpdateStatusRequest{Status: "pending"})
	assert.ErrorIs(t, err, utils.ErrSubmissionNotFound)
}

func TestRescheduleEmail(t *testing.T) {
	store := newMemStore()
	svc := newSubmissionService(store, nil, 1)
	sub, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	rescheduled, err := svc.RescheduleEmail(context.Background(), sub.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, baseTime, *rescheduled.EmailScheduledFor)

	sent := baseTime
	store.rows[sub.ID].EmailSentAt = &sent
	_, err = svc.RescheduleEmail(context.Background(), sub.ID, nil)
	assert.ErrorIs(t, err, utils.ErrSubmissionNotEligible)

	_, err = svc.RescheduleEmail(context.Background(), 777, nil)
	assert.ErrorIs(t, err, utils.ErrSubmissionNotFound)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+306946051659", NormalizePhone(" 694 605 1659 "))
	assert.Equal(t, "+306946051659", NormalizePhone("+30 6946051659"))
	assert.Equal(t, "not a number", NormalizePhone("not a number"))
}
