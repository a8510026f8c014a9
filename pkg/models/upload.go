package models

import (
	"time"
)

// UploadStatus is the lifecycle state of an uploaded report file.
type UploadStatus string

// Upload lifecycle: QUEUED -> PROCESSING -> TREATED | FAILED.
const (
	UploadStatusQueued     UploadStatus = "QUEUED"
	UploadStatusProcessing UploadStatus = "PROCESSING"
	UploadStatusTreated    UploadStatus = "TREATED"
	UploadStatusFailed     UploadStatus = "FAILED"
)

// Messages stored on upload records as they move through the queue.
const (
	UploadMessageQueued    = "File has been created, loading in UltraQC is queued."
	UploadMessageTreated   = "The document has been uploaded successfully"
	UploadMessageDuplicate = "Report already uploaded, skipped as duplicate"
	UploadMessageFailedFmt = "The document has not been uploaded : %s"
)

// IsTerminal reports whether the status is final for the record.
func (s UploadStatus) IsTerminal() bool {
	return s == UploadStatusTreated || s == UploadStatusFailed
}

// IsValid reports whether s is one of the known statuses.
func (s UploadStatus) IsValid() bool {
	switch s {
	case UploadStatusQueued, UploadStatusProcessing, UploadStatusTreated, UploadStatusFailed:
		return true
	}
	return false
}

// UploadRecord tracks one submitted file from receipt to a terminal state.
// Records are never deleted; the backing file is removed once the upload is treated.
type UploadRecord struct {
	ID         int64        `json:"id"`
	Status     UploadStatus `json:"status"`
	Path       string       `json:"-"`
	Message    string       `json:"message"`
	UserID     int64        `json:"user_id"`
	CreatedAt  time.Time    `json:"created_at"`
	ModifiedAt time.Time    `json:"modified_at"`
}
