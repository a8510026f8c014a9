package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
	"github.com/Daylily-Informatics/UltraQC/pkg/auth"
	"github.com/Daylily-Informatics/UltraQC/pkg/models"
	"github.com/Daylily-Informatics/UltraQC/pkg/repositories"
	"github.com/Daylily-Informatics/UltraQC/pkg/services"
)

// mockUploadService records queued payloads and serves canned records.
type mockUploadService struct {
	uploads  []*models.UploadRecord
	pending  int
	queued   [][]byte
	queueErr error
	err      error
}

func (m *mockUploadService) Queue(ctx context.Context, owner *models.User, payload io.Reader) (*models.UploadRecord, error) {
	if m.queueErr != nil {
		return nil, m.queueErr
	}
	data, err := io.ReadAll(payload)
	if err != nil {
		return nil, err
	}
	m.queued = append(m.queued, data)
	return &models.UploadRecord{
		ID:      int64(len(m.queued)),
		Status:  models.UploadStatusQueued,
		Message: models.UploadMessageQueued,
		UserID:  owner.ID,
	}, nil
}

func (m *mockUploadService) List(ctx context.Context, caller *models.User) ([]*models.UploadRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	if caller.IsAdmin {
		return m.uploads, nil
	}
	var out []*models.UploadRecord
	for _, u := range m.uploads {
		if u.UserID == caller.ID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUploadService) Get(ctx context.Context, caller *models.User, uploadID int64) (*models.UploadRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.uploads {
		if u.ID == uploadID && (caller.IsAdmin || u.UserID == caller.ID) {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockUploadService) CountPending(ctx context.Context) (int, error) {
	return m.pending, m.err
}

var _ services.UploadService = (*mockUploadService)(nil)

// mockIngestionService captures the parsed document.
type mockIngestionService struct {
	doc    map[string]any
	result *services.IngestResult
	err    error
}

func (m *mockIngestionService) Ingest(ctx context.Context, owner *models.User, doc map[string]any) (*services.IngestResult, error) {
	m.doc = doc
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &services.IngestResult{ReportID: 1}, nil
}

var _ services.IngestionService = (*mockIngestionService)(nil)

type mockMetricTypeService struct {
	types []repositories.MetricTypeListing
	err   error
}

func (m *mockMetricTypeService) List(ctx context.Context) ([]repositories.MetricTypeListing, error) {
	return m.types, m.err
}

// mockAuthService authenticates every request as user, or fails with err.
type mockAuthService struct {
	user *models.User
	err  error
}

func (m *mockAuthService) Authenticate(r *http.Request) (*models.User, *auth.Claims, error) {
	return m.user, nil, m.err
}

// passScope stands in for the database scope middleware.
func passScope(next http.HandlerFunc) http.HandlerFunc {
	return next
}

func testUser() *models.User {
	return &models.User{ID: 7, Username: "alice", Active: true}
}

// withUser returns r carrying user as the authenticated caller.
func withUser(r *http.Request, user *models.User) *http.Request {
	return r.WithContext(auth.WithUser(r.Context(), user))
}
