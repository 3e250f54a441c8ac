package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/GTDGit/surgeryquote_api/internal/estimate"
	"github.com/GTDGit/surgeryquote_api/internal/models"
	"github.com/GTDGit/surgeryquote_api/internal/repository"
	"github.com/GTDGit/surgeryquote_api/pkg/mailer"
)

// memStore mirrors the conditional updates of SubmissionRepository in memory.
type memStore struct {
	mu     sync.Mutex
	nextID int
	rows   map[int]*models.Submission
}

func newMemStore() *memStore {
	return &memStore{rows: map[int]*models.Submission{}}
}

func (m *memStore) get(id int) models.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

func (m *memStore) Create(_ context.Context, s *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	row := *s
	m.rows[s.ID] = &row
	return nil
}

func (m *memStore) GetByID(_ context.Context, id int) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *row
	return &out, nil
}

func (m *memStore) List(_ context.Context, _ *repository.SubmissionFilter) (*repository.SubmissionListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := &repository.SubmissionListResult{}
	for _, row := range m.rows {
		res.Submissions = append(res.Submissions, *row)
	}
	res.TotalItems = len(res.Submissions)
	return res, nil
}

func (m *memStore) Stats(_ context.Context) (*models.SubmissionStats, error) {
	return &models.SubmissionStats{}, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id int, status models.SubmissionStatus) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	row.Status = status
	out := *row
	return &out, nil
}

func (m *memStore) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.rows, id)
	return nil
}

func (m *memStore) RescheduleEmail(_ context.Context, id int, at time.Time) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Email == "" || row.EmailSentAt != nil {
		return nil, sql.ErrNoRows
	}
	row.EmailScheduledFor = &at
	row.EmailFailedAt = nil
	row.EmailClaimedAt = nil
	row.EmailAttempts = 0
	row.EmailLastError = nil
	out := *row
	return &out, nil
}

func (m *memStore) ListDueEmails(_ context.Context, now, staleBefore time.Time, limit int) ([]models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Submission
	for _, row := range m.rows {
		if row.Email == "" || row.EmailScheduledFor == nil || row.EmailScheduledFor.After(now) {
			continue
		}
		if row.EmailSentAt != nil || row.EmailFailedAt != nil {
			continue
		}
		if row.EmailClaimedAt != nil && !row.EmailClaimedAt.Before(staleBefore) {
			continue
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmailScheduledFor.Before(*out[j].EmailScheduledFor) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ClaimEmail(_ context.Context, id int, now, staleBefore time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.EmailSentAt != nil || row.EmailFailedAt != nil {
		return false, nil
	}
	if row.EmailClaimedAt != nil && !row.EmailClaimedAt.Before(staleBefore) {
		return false, nil
	}
	row.EmailClaimedAt = &now
	return true, nil
}

func (m *memStore) MarkEmailSent(_ context.Context, id int, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.EmailSentAt != nil {
		return nil
	}
	row.EmailSentAt = &sentAt
	row.EmailClaimedAt = nil
	row.EmailLastError = nil
	return nil
}

func (m *memStore) RecordEmailFailure(_ context.Context, id int, reason string, now time.Time, maxAttempts int, keepClaim bool) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.EmailSentAt != nil {
		return 0, false, nil
	}
	row.EmailAttempts++
	row.EmailLastError = &reason
	if !keepClaim {
		row.EmailClaimedAt = nil
	}
	if maxAttempts > 0 && row.EmailAttempts >= maxAttempts {
		row.EmailFailedAt = &now
	}
	return row.EmailAttempts, row.EmailFailedAt != nil, nil
}

type fakeSender struct {
	mu       sync.Mutex
	disabled bool
	err      error
	sent     []mailer.Message
	attempts int
}

func (f *fakeSender) Enabled() bool { return !f.disabled }

func (f *fakeSender) Send(_ context.Context, m mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeSender) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		out = append(out, m.To...)
	}
	return out
}

type fakeLocker struct {
	err      error
	released int
}

func (f *fakeLocker) Acquire(context.Context) (func(context.Context) error, error) {
	if f.err != nil {
		return nil, f.err
	}
	return func(context.Context) error {
		f.released++
		return nil
	}, nil
}

type fakeQuoter struct {
	quote *Quote
	err   error
}

func (f *fakeQuoter) Quote(context.Context, int, *int) (*Quote, error) {
	return f.quote, f.err
}

var _ ContentBuilder = (*estimate.Builder)(nil)
