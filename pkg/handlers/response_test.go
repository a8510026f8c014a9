package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, ErrorResponse(rec, http.StatusConflict, "duplicate_report", "Report already uploaded"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrorBody{Error: "duplicate_report", Message: "Report already uploaded"}, body)
}

func TestWriteJSON_OK(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusOK, QueuedCountResponse{Count: 3}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count": 3}`, rec.Body.String())
}
