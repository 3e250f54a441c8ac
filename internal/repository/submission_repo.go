package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/surgeryquote_api/internal/models"
)

const submissionColumns = `id, name, email, phone, notes, category, procedure, variant, pricing_details, total_price, status,
	email_scheduled_for, email_sent_at, email_claimed_at, email_attempts, email_last_error, email_failed_at,
	created_at, updated_at`

// SubmissionFilter holds filters for admin submission queries.
type SubmissionFilter struct {
	Status *models.SubmissionStatus
	Search string
	Page   int
	Limit  int
}

// SubmissionListResult contains paginated submission results.
type SubmissionListResult struct {
	Submissions []models.Submission
	TotalItems  int
	TotalPages  int
	Page        int
	Limit       int
}

// SubmissionRepository handles data access for submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a new submission row.
func (r *SubmissionRepository) Create(ctx context.Context, s *models.Submission) error {
	const q = `
		INSERT INTO submissions (
			name, email, phone, notes, category, procedure, variant,
			pricing_details, total_price, status, email_scheduled_for
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowxContext(ctx, q,
		s.Name, s.Email, s.Phone, s.Notes, s.Category, s.Procedure, s.Variant,
		s.PricingDetails, s.TotalPrice, s.Status, s.EmailScheduledFor,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns a submission by id.
func (r *SubmissionRepository) GetByID(ctx context.Context, id int) (*models.Submission, error) {
	var s models.Submission
	if err := r.db.GetContext(ctx, &s, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns submissions newest first with filters and pagination.
func (r *SubmissionRepository) List(ctx context.Context, filter *SubmissionFilter) (*SubmissionListResult, error) {
	baseQ := `FROM submissions WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != nil && *filter.Status != "" {
		baseQ += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.Search != "" {
		baseQ += fmt.Sprintf(" AND (name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d OR procedure ILIKE $%d)",
			argIdx, argIdx, argIdx, argIdx)
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQ, args...); err != nil {
		return nil, err
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	offset := (filter.Page - 1) * filter.Limit

	selectQ := fmt.Sprintf(`SELECT %s %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		submissionColumns, baseQ, argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	list := []models.Submission{}
	if err := r.db.SelectContext(ctx, &list, selectQ, args...); err != nil {
		return nil, err
	}

	return &SubmissionListResult{
		Submissions: list,
		TotalItems:  total,
		TotalPages:  (total + filter.Limit - 1) / filter.Limit,
		Page:        filter.Page,
		Limit:       filter.Limit,
	}, nil
}

// Stats counts submissions per workflow status.
func (r *SubmissionRepository) Stats(ctx context.Context) (*models.SubmissionStats, error) {
	var stats models.SubmissionStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'contacted') AS contacted,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed
		FROM submissions`)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// UpdateStatus sets the workflow status and returns the updated row.
func (r *SubmissionRepository) UpdateStatus(ctx context.Context, id int, status models.SubmissionStatus) (*models.Submission, error) {
	var s models.Submission
	err := r.db.GetContext(ctx, &s, `
		UPDATE submissions SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+submissionColumns, id, status)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete removes a submission.
func (r *SubmissionRepository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM submissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// ListDueEmails returns submissions whose estimate email is due: an email is
// present, the schedule has passed, nothing was sent, the retry budget is not
// exhausted, and no live claim exists. Claims older than staleBefore are
// considered abandoned.
func (r *SubmissionRepository) ListDueEmails(ctx context.Context, now, staleBefore time.Time, limit int) ([]models.Submission, error) {
	list := []models.Submission{}
	err := r.db.SelectContext(ctx, &list, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE email <> ''
		  AND email_scheduled_for IS NOT NULL
		  AND email_scheduled_for <= $1
		  AND email_sent_at IS NULL
		  AND email_failed_at IS NULL
		  AND (email_claimed_at IS NULL OR email_claimed_at < $2)
		ORDER BY email_scheduled_for ASC
		LIMIT $3`, now, staleBefore, limit)
	return list, err
}

// ClaimEmail marks the submission as being processed. It reports false when
// another worker holds a live claim or the email went out already.
func (r *SubmissionRepository) ClaimEmail(ctx context.Context, id int, now, staleBefore time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE submissions SET email_claimed_at = $2
		WHERE id = $1
		  AND email_sent_at IS NULL
		  AND email_failed_at IS NULL
		  AND (email_claimed_at IS NULL OR email_claimed_at < $3)`, id, now, staleBefore)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkEmailSent records the successful send. It is a no-op for a
// submission already marked sent.
func (r *SubmissionRepository) MarkEmailSent(ctx context.Context, id int, sentAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE submissions SET
			email_sent_at = $2,
			email_claimed_at = NULL,
			email_last_error = NULL,
			updated_at = NOW()
		WHERE id = $1 AND email_sent_at IS NULL`, id, sentAt)
	return err
}

// RecordEmailFailure counts the attempt and parks the submission once
// maxAttempts is reached (0 never parks). The claim is released unless
// keepClaim is set, in which case the row stays blocked until the claim goes
// stale. It returns the attempt count and whether the submission was parked.
func (r *SubmissionRepository) RecordEmailFailure(ctx context.Context, id int, reason string, now time.Time, maxAttempts int, keepClaim bool) (int, bool, error) {
	var out struct {
		Attempts int  `db:"email_attempts"`
		Parked   bool `db:"parked"`
	}
	err := r.db.GetContext(ctx, &out, `
		UPDATE submissions SET
			email_attempts = email_attempts + 1,
			email_last_error = $2,
			email_claimed_at = CASE WHEN $5 THEN email_claimed_at ELSE NULL END,
			email_failed_at = CASE WHEN $3 > 0 AND email_attempts + 1 >= $3 THEN $4::timestamptz ELSE NULL END,
			updated_at = NOW()
		WHERE id = $1 AND email_sent_at IS NULL
		RETURNING email_attempts, email_failed_at IS NOT NULL AS parked`, id, reason, maxAttempts, now, keepClaim)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return out.Attempts, out.Parked, nil
}

// RescheduleEmail makes an unsent estimate email eligible again at `at`,
// clearing a parked failure state.
func (r *SubmissionRepository) RescheduleEmail(ctx context.Context, id int, at time.Time) (*models.Submission, error) {
	var s models.Submission
	err := r.db.GetContext(ctx, &s, `
		UPDATE submissions SET
			email_scheduled_for = $2,
			email_failed_at = NULL,
			email_claimed_at = NULL,
			email_attempts = 0,
			email_last_error = NULL,
			updated_at = NOW()
		WHERE id = $1 AND email <> '' AND email_sent_at IS NULL
		RETURNING `+submissionColumns, id, at)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
