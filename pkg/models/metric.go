package models

import (
	"strings"
)

// MetricType describes one kind of measured value, e.g. fastqc__percent_gc.
type MetricType struct {
	ID      int64   `json:"sample_data_type_id"`
	DataID  string  `json:"data_id"`
	Section string  `json:"data_section"`
	Key     string  `json:"data_key"`
	Schema  *string `json:"schema,omitempty"`
}

// NiceName is the human-readable form of Key.
// Keep in sync with MetricNiceNameSQL.
func (m *MetricType) NiceName() string {
	return MetricNiceName(m.Key)
}

// MetricNiceName turns "fastqc__percent_gc" into "fastqc: percent gc".
func MetricNiceName(key string) string {
	return strings.ReplaceAll(strings.ReplaceAll(key, "__", ": "), "_", " ")
}

// MetricNiceNameSQL is the query-time equivalent of MetricNiceName over sample_data_type.data_key.
const MetricNiceNameSQL = `replace(replace(data_key, '__', ': '), '_', ' ')`

// MetricKey builds the composite display key for a field within a section.
func MetricKey(section, field string) string {
	return section + "__" + field
}

// MetricValue is one scalar measurement for a sample in a report, stored as text.
type MetricValue struct {
	ID           int64  `json:"sample_data_id"`
	ReportID     int64  `json:"report_id"`
	MetricTypeID int64  `json:"sample_data_type_id"`
	SampleID     int64  `json:"sample_id"`
	Value        string `json:"value"`
}
