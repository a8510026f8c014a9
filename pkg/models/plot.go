package models

// PlotType tags a plot configuration.
type PlotType string

// Supported plot types. Other MultiQC plot types are ignored at ingestion.
const (
	PlotTypeBarGraph PlotType = "bar_graph"
	PlotTypeXYLine   PlotType = "xy_line"
)

// IsSupported reports whether plots of this type are ingested.
func (t PlotType) IsSupported() bool {
	return t == PlotTypeBarGraph || t == PlotTypeXYLine
}

// PlotConfig is a named visualization definition, shared across reports.
// Identity is (Type, Name, Dataset).
type PlotConfig struct {
	ID      int64    `json:"config_id"`
	Type    PlotType `json:"config_type"`
	Name    string   `json:"config_name"`
	Dataset string   `json:"config_dataset"`
	Data    string   `json:"data"`
}

// PlotCategory is one series within a PlotConfig. Identity is (ConfigID, Name).
type PlotCategory struct {
	ID       int64  `json:"plot_category_id"`
	ReportID int64  `json:"report_id"`
	ConfigID int64  `json:"config_id"`
	Name     string `json:"category_name"`
	Data     string `json:"data"`
}

// PlotData is one per-sample point of a category.
type PlotData struct {
	ID         int64  `json:"plot_data_id"`
	ReportID   int64  `json:"report_id"`
	ConfigID   int64  `json:"config_id"`
	CategoryID int64  `json:"plot_category_id"`
	SampleID   int64  `json:"sample_id"`
	Data       string `json:"data"`
}
