package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Daylily-Informatics/UltraQC/pkg/jsonutil"
	"github.com/Daylily-Informatics/UltraQC/pkg/models"
)

// customPlotMarker marks user-supplied custom-content plots, which are not ingested.
const customPlotMarker = "mqc_hcplot_"

// plotPoint is one per-sample value of a series.
type plotPoint struct {
	Sample string
	Value  any
}

// plotSeries is the format-independent shape of a bar category or an xy line.
type plotSeries struct {
	Category string
	Meta     map[string]any
	Points   []plotPoint
}

type plotDataset struct {
	Label  string
	Series []plotSeries
}

type normalizedPlot struct {
	ID       string
	Type     models.PlotType
	Config   any
	Datasets []plotDataset
}

// normalizePlots converts report_plot_data into normalized plots, ordered by plot id.
// Unsupported and custom plots are ignored; malformed plots, datasets and series are
// dropped and counted in skipped.
func normalizePlots(raw any) (plots []normalizedPlot, skipped int) {
	if raw == nil {
		return nil, 0
	}
	byID, ok := raw.(map[string]any)
	if !ok {
		return nil, 1
	}

	for _, id := range sortedKeys(byID) {
		if strings.Contains(id, customPlotMarker) {
			continue
		}
		plot, ok := byID[id].(map[string]any)
		if !ok {
			skipped++
			continue
		}
		plotType, _ := plot["plot_type"].(string)
		if !models.PlotType(plotType).IsSupported() {
			continue
		}
		datasets, ok := plot["datasets"].([]any)
		if !ok {
			skipped++
			continue
		}

		config, _ := plot["config"].(map[string]any)
		np := normalizedPlot{
			ID:     id,
			Type:   models.PlotType(plotType),
			Config: plot["config"],
		}
		if np.Config == nil {
			np.Config = map[string]any{}
		}

		for idx, dataset := range datasets {
			label := datasetLabel(id, config, idx)

			var series []plotSeries
			var ok bool
			var n int
			switch np.Type {
			case models.PlotTypeBarGraph:
				series, n, ok = normalizeBarDataset(dataset, plotSampleNames(plot, idx))
			case models.PlotTypeXYLine:
				series, n, ok = normalizeLineDataset(dataset, label, idx)
			}
			skipped += n
			if !ok {
				skipped++
				continue
			}
			np.Datasets = append(np.Datasets, plotDataset{Label: label, Series: series})
		}
		plots = append(plots, np)
	}
	return plots, skipped
}

// datasetLabel picks the display label for dataset idx: config.data_labels[idx]
// (object: ylab, then name, then the plot id; scalar: its text), then config.ylab,
// then config.title, then the plot id.
func datasetLabel(plotID string, config map[string]any, idx int) string {
	if config == nil {
		return plotID
	}
	if labels, ok := config["data_labels"].([]any); ok && idx < len(labels) {
		switch l := labels[idx].(type) {
		case map[string]any:
			if v, ok := l["ylab"]; ok && v != nil {
				return jsonutil.Text(v)
			}
			if v, ok := l["name"]; ok && v != nil {
				return jsonutil.Text(v)
			}
			return plotID
		case nil:
			return plotID
		default:
			return jsonutil.Text(l)
		}
	}
	if v, ok := config["ylab"]; ok && v != nil {
		return jsonutil.Text(v)
	}
	if v, ok := config["title"]; ok && v != nil {
		return jsonutil.Text(v)
	}
	return plotID
}

// plotSampleNames returns plot.samples[idx], the sample names of an old-style bar dataset.
func plotSampleNames(plot map[string]any, idx int) []any {
	lists, ok := plot["samples"].([]any)
	if !ok || idx >= len(lists) {
		return nil
	}
	names, _ := lists[idx].([]any)
	return names
}

// normalizeBarDataset handles both bar layouts:
//
//	new: {"samples": [...], "cats": [{"name": ..., "data": [...]}, ...]}
//	old: [{"name": ..., "data": [...]}, ...] with names from plot.samples[idx]
//
// It returns the series, the number of malformed categories dropped, and false when the
// dataset matches neither layout.
func normalizeBarDataset(dataset any, oldStyleNames []any) ([]plotSeries, int, bool) {
	var cats []any
	var names []any

	switch d := dataset.(type) {
	case map[string]any:
		c, ok := d["cats"].([]any)
		if !ok {
			return nil, 0, false
		}
		cats = c
		names, _ = d["samples"].([]any)
	case []any:
		cats = d
		names = oldStyleNames
	default:
		return nil, 0, false
	}

	var series []plotSeries
	skipped := 0
	for _, c := range cats {
		cat, ok := c.(map[string]any)
		if !ok {
			skipped++
			continue
		}
		s := plotSeries{
			Category: jsonutil.TextOr(cat["name"], ""),
			Meta:     without(cat, "data"),
		}
		values, _ := cat["data"].([]any)
		for i, v := range values {
			s.Points = append(s.Points, plotPoint{Sample: sampleNameAt(names, i), Value: v})
		}
		series = append(series, s)
	}
	return series, skipped, true
}

// normalizeLineDataset handles both line layouts:
//
//	new: {"lines": [{"name": ..., "pairs": [[x, y], ...]}, ...]}
//	old: [{"name": ..., "data": [[x, y], ...]}, ...]
//
// Every line becomes a series in the dataset's category with one point holding the
// whole coordinate list.
func normalizeLineDataset(dataset any, label string, idx int) ([]plotSeries, int, bool) {
	var lines []any
	valueKey := "data"

	switch d := dataset.(type) {
	case map[string]any:
		l, ok := d["lines"].([]any)
		if !ok {
			return nil, 0, false
		}
		lines = l
		valueKey = "pairs"
	case []any:
		lines = d
	default:
		return nil, 0, false
	}

	var series []plotSeries
	skipped := 0
	for _, l := range lines {
		line, ok := l.(map[string]any)
		if !ok {
			skipped++
			continue
		}
		value, ok := line[valueKey]
		if !ok || value == nil {
			value = []any{}
		}
		series = append(series, plotSeries{
			Category: label,
			Meta:     without(line, valueKey),
			Points: []plotPoint{{
				Sample: jsonutil.TextOr(line["name"], fallbackSampleName(idx)),
				Value:  value,
			}},
		})
	}
	return series, skipped, true
}

func sampleNameAt(names []any, i int) string {
	if i < len(names) && names[i] != nil {
		return jsonutil.Text(names[i])
	}
	return fallbackSampleName(i)
}

func fallbackSampleName(i int) string {
	return fmt.Sprintf("sample_%d", i)
}

// without returns a shallow copy of m minus key.
func without(m map[string]any, key string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k != key {
			out[k] = v
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
