package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
	"github.com/Daylily-Informatics/UltraQC/pkg/models"
)

func TestUploadService_QueueWritesFileThenRecord(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	uploads := newMemUploads()
	svc := NewUploadService(uploads, dir, 0, nil, testLogger())

	rec, err := svc.Queue(context.Background(), testOwner(), strings.NewReader(validDoc))
	require.NoError(t, err)

	assert.Equal(t, models.UploadStatusQueued, rec.Status)
	assert.Equal(t, models.UploadMessageQueued, rec.Message)
	assert.Equal(t, int64(7), rec.UserID)
	assert.Equal(t, dir, filepath.Dir(rec.Path))

	content, err := os.ReadFile(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, validDoc, string(content))

	stored := uploads.get(rec.ID)
	require.NotNil(t, stored)
	assert.Equal(t, rec.Path, stored.Path)
}

func TestUploadService_QueueUsesDistinctPaths(t *testing.T) {
	svc := NewUploadService(newMemUploads(), t.TempDir(), 0, nil, testLogger())

	a, err := svc.Queue(context.Background(), testOwner(), strings.NewReader(validDoc))
	require.NoError(t, err)
	b, err := svc.Queue(context.Background(), testOwner(), strings.NewReader(validDoc))
	require.NoError(t, err)

	assert.NotEqual(t, a.Path, b.Path)
}

func TestUploadService_QueueRejectsOversizedPayload(t *testing.T) {
	dir := t.TempDir()
	uploads := newMemUploads()
	svc := NewUploadService(uploads, dir, 8, nil, testLogger())

	_, err := svc.Queue(context.Background(), testOwner(), strings.NewReader(validDoc))
	require.ErrorIs(t, err, apperrors.ErrPayloadTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial file must be removed")
	assert.Empty(t, uploads.records)
}

func TestUploadService_QueueRequiresOwner(t *testing.T) {
	svc := NewUploadService(newMemUploads(), t.TempDir(), 0, nil, testLogger())

	_, err := svc.Queue(context.Background(), nil, strings.NewReader(validDoc))
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestUploadService_Visibility(t *testing.T) {
	uploads := newMemUploads()
	svc := NewUploadService(uploads, t.TempDir(), 0, nil, testLogger())
	ctx := context.Background()

	alice := testOwner()
	bob := &models.User{ID: 8, Username: "bob", Active: true}
	admin := &models.User{ID: 1, Username: "root", Active: true, IsAdmin: true}

	aliceUpload, err := svc.Queue(ctx, alice, strings.NewReader(validDoc))
	require.NoError(t, err)
	_, err = svc.Queue(ctx, bob, strings.NewReader(validDoc))
	require.NoError(t, err)

	mine, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, aliceUpload.ID, mine[0].ID)

	all, err := svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.Get(ctx, bob, aliceUpload.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	got, err := svc.Get(ctx, admin, aliceUpload.ID)
	require.NoError(t, err)
	assert.Equal(t, aliceUpload.ID, got.ID)

	_, err = svc.Get(ctx, alice, 12345)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUploadService_CountPending(t *testing.T) {
	uploads := newMemUploads()
	svc := NewUploadService(uploads, t.TempDir(), 0, nil, testLogger())
	ctx := context.Background()

	for _, status := range []models.UploadStatus{
		models.UploadStatusQueued,
		models.UploadStatusQueued,
		models.UploadStatusProcessing,
		models.UploadStatusTreated,
		models.UploadStatusFailed,
	} {
		require.NoError(t, uploads.Create(ctx, &models.UploadRecord{Status: status, UserID: 7}))
	}

	n, err := svc.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
