package models

import (
	"time"
)

// Report is one deduplicated ingestion of a MultiQC document.
type Report struct {
	ID         int64     `json:"report_id"`
	Hash       string    `json:"report_hash"`
	UserID     *int64    `json:"user_id,omitempty"` // nil once the owner is deleted
	CreatedAt  time.Time `json:"created_at"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ReportMeta is a key/value pair scoped to one report.
type ReportMeta struct {
	ID       int64  `json:"report_meta_id"`
	ReportID int64  `json:"report_id"`
	Key      string `json:"report_meta_key"`
	Value    string `json:"report_meta_value"`
}

// ReportMetaUsernameKey is the synthetic meta key recording the uploader.
const ReportMetaUsernameKey = "username"

// Sample is a named unit of analysis. Samples are matched by name across reports.
type Sample struct {
	ID       int64  `json:"sample_id"`
	Name     string `json:"sample_name"`
	ReportID int64  `json:"report_id"` // 0 once the introducing report is deleted
}
