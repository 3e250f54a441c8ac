package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/GTDGit/surgeryquote_api/internal/pricing"
)

// SubmissionStatus is the admin workflow state of a lead.
type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionContacted SubmissionStatus = "contacted"
	SubmissionCompleted SubmissionStatus = "completed"
)

// SubmissionStatuses lists every accepted status.
var SubmissionStatuses = []SubmissionStatus{SubmissionPending, SubmissionContacted, SubmissionCompleted}

// Valid reports whether s is one of the fixed statuses.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionPending, SubmissionContacted, SubmissionCompleted:
		return true
	}
	return false
}

// EmailState is the dispatch state of the estimate email, derived from the
// email_* columns.
type EmailState string

const (
	EmailUnscheduled EmailState = "unscheduled"
	EmailScheduled   EmailState = "scheduled"
	EmailSent        EmailState = "sent"
	EmailFailed      EmailState = "failed"
)

// Submission is a captured lead with its denormalized pricing snapshot.
type Submission struct {
	ID                int              `db:"id" json:"id"`
	Name              string           `db:"name" json:"name"`
	Email             string           `db:"email" json:"email"`
	Phone             string           `db:"phone" json:"phone"`
	Notes             *string          `db:"notes" json:"notes,omitempty"`
	Category          string           `db:"category" json:"category"`
	Procedure         string           `db:"procedure" json:"procedure"`
	Variant           *string          `db:"variant" json:"variant,omitempty"`
	PricingDetails    PricingDetails   `db:"pricing_details" json:"pricingDetails"`
	TotalPrice        TotalPrice       `db:"total_price" json:"totalPrice"`
	Status            SubmissionStatus `db:"status" json:"status"`
	EmailScheduledFor *time.Time       `db:"email_scheduled_for" json:"emailScheduledFor,omitempty"`
	EmailSentAt       *time.Time       `db:"email_sent_at" json:"emailSentAt,omitempty"`
	EmailClaimedAt    *time.Time       `db:"email_claimed_at" json:"-"`
	EmailAttempts     int              `db:"email_attempts" json:"emailAttempts"`
	EmailLastError    *string          `db:"email_last_error" json:"emailLastError,omitempty"`
	EmailFailedAt     *time.Time       `db:"email_failed_at" json:"emailFailedAt,omitempty"`
	CreatedAt         time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updatedAt"`
}

// EmailState derives the dispatch state.
func (s *Submission) EmailState() EmailState {
	switch {
	case s.EmailSentAt != nil:
		return EmailSent
	case s.EmailFailedAt != nil:
		return EmailFailed
	case s.Email != "" && s.EmailScheduledFor != nil:
		return EmailScheduled
	}
	return EmailUnscheduled
}

// Snapshot returns the persisted pricing as an engine snapshot.
func (s *Submission) Snapshot() pricing.Snapshot {
	return pricing.Snapshot{Items: []pricing.LineItem(s.PricingDetails), Total: s.TotalPrice.Total}
}

// MarshalJSON adds the derived emailState to the record.
func (s Submission) MarshalJSON() ([]byte, error) {
	type plain Submission
	return json.Marshal(struct {
		plain
		EmailState EmailState `json:"emailState"`
	}{plain(s), s.EmailState()})
}

// SubmissionStats counts submissions per workflow status.
type SubmissionStats struct {
	Total     int `db:"total" json:"total"`
	Pending   int `db:"pending" json:"pending"`
	Contacted int `db:"contacted" json:"contacted"`
	Completed int `db:"completed" json:"completed"`
}

// PricingDetails is the JSONB line item list of a submission.
type PricingDetails []pricing.LineItem

// Value implements driver.Valuer.
func (p PricingDetails) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]pricing.LineItem(p))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (p *PricingDetails) Scan(src interface{}) error {
	if src == nil {
		*p = PricingDetails{}
		return nil
	}
	data, err := scanBytes(src)
	if err != nil {
		return err
	}
	var items []pricing.LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*p = items
	return nil
}

// TotalPrice is the JSONB total of a submission.
type TotalPrice struct {
	pricing.Total
}

// Value implements driver.Valuer.
func (t TotalPrice) Value() (driver.Value, error) {
	data, err := json.Marshal(t.Total)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner. NULL scans as the unpriced sentinel.
func (t *TotalPrice) Scan(src interface{}) error {
	if src == nil {
		t.Total = pricing.Empty()
		return nil
	}
	data, err := scanBytes(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &t.Total)
}

func scanBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, errors.New("unsupported type for JSONB column")
}
