package services

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
	"github.com/Daylily-Informatics/UltraQC/pkg/jsonutil"
)

// reportCreationLayout is the layout of MultiQC's config_creation_date, e.g. "2024-03-01, 14:05".
const reportCreationLayout = "2006-01-02, 15:04"

// ParseReportDocument decodes a MultiQC JSON document. Numbers are kept as json.Number so
// their original text survives into stored values. The document is returned as sent;
// Ingest removes a {"data": {...}} envelope.
func ParseReportDocument(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", apperrors.ErrMalformedReport, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON document", apperrors.ErrMalformedReport)
	}

	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value must be an object", apperrors.ErrMalformedReport)
	}
	return doc, nil
}

// unwrapEnvelope strips one {"data": {...}} envelope. Callers apply it exactly once.
func unwrapEnvelope(doc map[string]any) map[string]any {
	if inner, ok := doc["data"].(map[string]any); ok {
		return inner
	}
	return doc
}

// ReportHash is the MD5 hex digest of the compact, key-sorted JSON encoding of doc.
func ReportHash(doc map[string]any) (string, error) {
	encoded, err := jsonutil.Compact(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode report for hashing: %w", err)
	}
	sum := md5.Sum([]byte(encoded))
	return hex.EncodeToString(sum[:]), nil
}

// reportCreatedAt reads config_creation_date, falling back to now.
func reportCreatedAt(doc map[string]any, now time.Time) time.Time {
	s, ok := doc["config_creation_date"].(string)
	if !ok {
		return now
	}
	t, err := time.Parse(reportCreationLayout, strings.TrimSpace(s))
	if err != nil {
		return now
	}
	return t
}
