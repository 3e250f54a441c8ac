package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/GTDGit/surgeryquote_api/internal/models"
	"github.com/GTDGit/surgeryquote_api/internal/repository"
	"github.com/GTDGit/surgeryquote_api/internal/service"
	"github.com/GTDGit/surgeryquote_api/internal/utils"
	"github.com/GTDGit/surgeryquote_api/pkg/mailer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// submissionStore keeps submissions in memory.
type submissionStore struct {
	mu   sync.Mutex
	rows map[int]*models.Submission
}

func newSubmissionStore() *submissionStore {
	return &submissionStore{rows: map[int]*models.Submission{}}
}

func (s *submissionStore) Create(_ context.Context, sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ID = len(s.rows) + 1
	row := *sub
	s.rows[sub.ID] = &row
	return nil
}

func (s *submissionStore) GetByID(_ context.Context, id int) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *row
	return &out, nil
}

func (s *submissionStore) List(_ context.Context, f *repository.SubmissionFilter) (*repository.SubmissionListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := &repository.SubmissionListResult{Page: 1, Limit: 20}
	for _, row := range s.rows {
		res.Submissions = append(res.Submissions, *row)
	}
	res.TotalItems = len(res.Submissions)
	return res, nil
}

func (s *submissionStore) Stats(context.Context) (*models.SubmissionStats, error) {
	return &models.SubmissionStats{Total: len(s.rows), Pending: len(s.rows)}, nil
}

func (s *submissionStore) UpdateStatus(_ context.Context, id int, status models.SubmissionStatus) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	row.Status = status
	out := *row
	return &out, nil
}

func (s *submissionStore) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.rows, id)
	return nil
}

func (s *submissionStore) RescheduleEmail(_ context.Context, id int, at time.Time) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.EmailSentAt != nil {
		return nil, sql.ErrNoRows
	}
	row.EmailScheduledFor = &at
	out := *row
	return &out, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func perform(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func newSubmissionRouter(store *submissionStore) *gin.Engine {
	svc := service.NewSubmissionService(store, nil, service.ScheduleWindow{Min: time.Hour, Max: 2 * time.Hour})
	h := NewSubmissionHandler(svc)
	r := gin.New()
	r.POST("/v1/submissions", h.CreateSubmission)
	r.GET("/v1/admin/submissions", h.ListSubmissions)
	r.GET("/v1/admin/submissions/stats", h.GetStats)
	r.GET("/v1/admin/submissions/:id", h.GetSubmission)
	r.PATCH("/v1/admin/submissions/:id/status", h.UpdateStatus)
	r.POST("/v1/admin/submissions/:id/reschedule-email", h.RescheduleEmail)
	r.DELETE("/v1/admin/submissions/:id", h.DeleteSubmission)
	return r
}

const validSubmission = `{
	"name": "Γιώργος Παπάς",
	"email": "giorgos@example.com",
	"phone": "6946051659",
	"category": "Face",
	"procedure": "Rhinoplasty",
	"pricingDetails": [
		{"name": "Surgeon", "priceFrom": 1000},
		{"name": "Anaesthesia", "priceFrom": "200", "priceTo": 250}
	],
	"emailScheduledFor": "2000-01-01T00:00:00Z"
}`

func TestCreateSubmission(t *testing.T) {
	store := newSubmissionStore()
	r := newSubmissionRouter(store)

	w, env := perform(t, r, http.MethodPost, "/v1/submissions", validSubmission)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.Success)

	var sub struct {
		Phone      string `json:"phone"`
		EmailState string `json:"emailState"`
		TotalPrice struct {
			Display string `json:"display"`
		} `json:"totalPrice"`
		EmailScheduledFor time.Time `json:"emailScheduledFor"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sub))
	assert.Equal(t, "+306946051659", sub.Phone)
	assert.Equal(t, "scheduled", sub.EmailState)
	assert.Equal(t, "€1200.00 - €1250.00", sub.TotalPrice.Display)
	// A client supplied schedule is ignored on the public route.
	assert.True(t, sub.EmailScheduledFor.After(time.Now().Add(59*time.Minute)))
}

func TestCreateSubmission_ValidationFailed(t *testing.T) {
	r := newSubmissionRouter(newSubmissionStore())

	w, env := perform(t, r, http.MethodPost, "/v1/submissions", `{"email":"nope"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	for _, field := range []string{"name", "email", "phone", "procedure"} {
		assert.Contains(t, env.Error.Fields, field)
	}
}

func TestCreateSubmission_MalformedBody(t *testing.T) {
	r := newSubmissionRouter(newSubmissionStore())

	w, env := perform(t, r, http.MethodPost, "/v1/submissions", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)
}

func TestUpdateStatus(t *testing.T) {
	store := newSubmissionStore()
	r := newSubmissionRouter(store)
	_, _ = perform(t, r, http.MethodPost, "/v1/submissions", validSubmission)

	w, env := perform(t, r, http.MethodPatch, "/v1/admin/submissions/1/status", `{"status":"archived"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, env.Error.Fields["status"], "pending, contacted, completed")

	w, _ = perform(t, r, http.MethodPatch, "/v1/admin/submissions/1/status", `{"status":"contacted"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SubmissionContacted, store.rows[1].Status)

	w, env = perform(t, r, http.MethodPatch, "/v1/admin/submissions/99/status", `{"status":"contacted"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SUBMISSION_NOT_FOUND", env.Error.Code)

	w, env = perform(t, r, http.MethodPatch, "/v1/admin/submissions/abc/status", `{"status":"contacted"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", env.Error.Code)
}

func TestListSubmissions_InvalidStatusFilter(t *testing.T) {
	r := newSubmissionRouter(newSubmissionStore())

	w, env := perform(t, r, http.MethodGet, "/v1/admin/submissions?status=archived", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, env.Error.Fields, "status")

	w, env = perform(t, r, http.MethodGet, "/v1/admin/submissions", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestRescheduleEmail(t *testing.T) {
	store := newSubmissionStore()
	r := newSubmissionRouter(store)
	_, _ = perform(t, r, http.MethodPost, "/v1/submissions", validSubmission)

	w, _ := perform(t, r, http.MethodPost, "/v1/admin/submissions/1/reschedule-email", "")
	assert.Equal(t, http.StatusOK, w.Code)

	sent := time.Now()
	store.rows[1].EmailSentAt = &sent
	w, env := perform(t, r, http.MethodPost, "/v1/admin/submissions/1/reschedule-email", `{"sendAt":"2030-01-01T10:00:00Z"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SUBMISSION_NOT_ELIGIBLE", env.Error.Code)
}

func TestDeleteSubmission(t *testing.T) {
	store := newSubmissionStore()
	r := newSubmissionRouter(store)
	_, _ = perform(t, r, http.MethodPost, "/v1/submissions", validSubmission)

	w, _ := perform(t, r, http.MethodDelete, "/v1/admin/submissions/1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = perform(t, r, http.MethodGet, "/v1/admin/submissions/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type adminStore struct {
	user    *models.AdminUser
	touched int
}

func (a *adminStore) GetByEmail(_ context.Context, email string) (*models.AdminUser, error) {
	if a.user == nil || a.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return a.user, nil
}

func (a *adminStore) Create(context.Context, *models.AdminUser) error { return nil }

func (a *adminStore) TouchLastLogin(context.Context, int) error {
	a.touched++
	return nil
}

func TestLogin(t *testing.T) {
	utils.SetJWTSecret("handler-test-secret")
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	store := &adminStore{user: &models.AdminUser{ID: 3, Email: "admin@example.com", PasswordHash: string(hash), IsActive: true}}

	r := gin.New()
	r.POST("/login", NewAuthHandler(service.NewAdminAuthService(store)).Login)

	w, env := perform(t, r, http.MethodPost, "/login", `{"email":"Admin@Example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)

	w, env = perform(t, r, http.MethodPost, "/login", `{"email":"admin@example.com","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var result struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	claims, err := utils.ValidateJWT(result.Token)
	require.NoError(t, err)
	assert.Equal(t, 3, claims.UserID)
	assert.Equal(t, 1, store.touched)

	store.user.IsActive = false
	w, _ = perform(t, r, http.MethodPost, "/login", `{"email":"admin@example.com","password":"s3cret"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = perform(t, r, http.MethodPost, "/login", `{"email":"admin@example.com"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

type disabledSender struct{}

func (disabledSender) Enabled() bool { return false }
func (disabledSender) Send(context.Context, mailer.Message) error { return mailer.ErrDisabled{} }

func TestRunEstimateEmails_MailDisabled(t *testing.T) {
	dispatch := service.NewDispatchService(nil, nil, disabledSender{}, nil, service.DispatchConfig{})
	r := gin.New()
	r.POST("/jobs", NewJobHandler(dispatch).RunEstimateEmails)

	w, env := perform(t, r, http.MethodPost, "/jobs", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "MAIL_DISABLED", env.Error.Code)
}

func TestGetHealth(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("refused") })

	r := gin.New()
	r.GET("/healthy", NewHealthHandler(ok, down).GetHealth)
	r.GET("/unhealthy", NewHealthHandler(down, nil).GetHealth)

	w, env := perform(t, r, http.MethodGet, "/healthy", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "connected", data["database"])
	assert.Equal(t, "disconnected", data["redis"])

	w, env = perform(t, r, http.MethodGet, "/unhealthy", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "disabled", data["redis"])
}
