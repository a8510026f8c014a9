package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
	"github.com/Daylily-Informatics/UltraQC/pkg/auth"
	"github.com/Daylily-Informatics/UltraQC/pkg/models"
)

func multipartBody(t *testing.T, field string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("comment", "nightly run"))
	fw, err := mw.CreateFormFile(field, "multiqc_data.json")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadsHandler_Create_Multipart(t *testing.T) {
	svc := &mockUploadService{}
	h := NewUploadsHandler(svc, zap.NewNop())

	body, contentType := multipartBody(t, UploadFormField, []byte(`{"config_title": "x"}`))
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Create(rec, withUser(req, testUser()))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(1), resp.ID)
	assert.Equal(t, models.UploadStatusQueued, resp.Status)
	assert.Equal(t, models.UploadMessageQueued, resp.Message)
	require.Len(t, svc.queued, 1)
	assert.Equal(t, `{"config_title": "x"}`, string(svc.queued[0]))
}

func TestUploadsHandler_Create_RawBody(t *testing.T) {
	svc := &mockUploadService{}
	h := NewUploadsHandler(svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", bytes.NewReader([]byte("not even json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.Create(rec, withUser(req, testUser()))

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, svc.queued, 1)
	assert.Equal(t, "not even json", string(svc.queued[0]))
}

func TestUploadsHandler_Create_MissingField(t *testing.T) {
	svc := &mockUploadService{}
	h := NewUploadsHandler(svc, zap.NewNop())

	body, contentType := multipartBody(t, "file", []byte(`{}`))
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Create(rec, withUser(req, testUser()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.queued)
}

func TestUploadsHandler_Create_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"too large", fmt.Errorf("write: %w", apperrors.ErrPayloadTooLarge), http.StatusRequestEntityTooLarge},
		{"disk full", errors.New("no space left on device"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewUploadsHandler(&mockUploadService{queueErr: tt.err}, zap.NewNop())
			req := httptest.NewRequest(http.MethodPost, "/api/uploads", bytes.NewReader([]byte("{}")))
			rec := httptest.NewRecorder()

			h.Create(rec, withUser(req, testUser()))

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestUploadsHandler_Create_Unauthenticated(t *testing.T) {
	h := NewUploadsHandler(&mockUploadService{}, zap.NewNop())
	rec := httptest.NewRecorder()

	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/uploads", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadsHandler_ListAndGet(t *testing.T) {
	svc := &mockUploadService{uploads: []*models.UploadRecord{
		{ID: 1, UserID: 7, Status: models.UploadStatusTreated, Path: "/srv/uploads/a.json"},
		{ID: 2, UserID: 8, Status: models.UploadStatusQueued},
	}}
	h := NewUploadsHandler(svc, zap.NewNop())

	t.Run("list own", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.List(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/uploads", nil), testUser()))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "/srv/uploads")
		var resp UploadListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, 1, resp.Total)
		assert.Equal(t, int64(1), resp.Uploads[0].ID)
	})

	t.Run("list empty is array", func(t *testing.T) {
		rec := httptest.NewRecorder()
		other := &models.User{ID: 99, Active: true}
		h.List(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/uploads", nil), other))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"uploads": [], "total": 0}`, rec.Body.String())
	})

	t.Run("get visible", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/uploads/1", nil)
		req.SetPathValue("id", "1")
		rec := httptest.NewRecorder()
		h.Get(rec, withUser(req, testUser()))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("get other user's upload", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/uploads/2", nil)
		req.SetPathValue("id", "2")
		rec := httptest.NewRecorder()
		h.Get(rec, withUser(req, testUser()))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("get bad id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/uploads/abc", nil)
		req.SetPathValue("id", "abc")
		rec := httptest.NewRecorder()
		h.Get(rec, withUser(req, testUser()))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUploadsHandler_QueuedCount(t *testing.T) {
	h := NewUploadsHandler(&mockUploadService{pending: 4}, zap.NewNop())
	rec := httptest.NewRecorder()

	h.QueuedCount(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/uploads/queued/count", nil), testUser()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count": 4}`, rec.Body.String())
}

func TestUploadsHandler_Routes(t *testing.T) {
	svc := &mockUploadService{pending: 2, uploads: []*models.UploadRecord{{ID: 5, UserID: 7}}}
	h := NewUploadsHandler(svc, zap.NewNop())

	tests := []struct {
		name     string
		authErr  error
		method   string
		path     string
		wantCode int
	}{
		{"count", nil, http.MethodGet, "/api/uploads/queued/count", http.StatusOK},
		{"get by id", nil, http.MethodGet, "/api/uploads/5", http.StatusOK},
		{"list", nil, http.MethodGet, "/api/uploads", http.StatusOK},
		{"unauthenticated", apperrors.ErrUnauthenticated, http.MethodGet, "/api/uploads", http.StatusUnauthorized},
		{"inactive", apperrors.ErrInactiveUser, http.MethodPost, "/api/uploads", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			middleware := auth.NewMiddleware(&mockAuthService{user: testUser(), err: tt.authErr}, zap.NewNop())
			h.RegisterRoutes(mux, middleware, passScope)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
