package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
	"github.com/Daylily-Informatics/UltraQC/pkg/jsonutil"
	"github.com/Daylily-Informatics/UltraQC/pkg/metrics"
	"github.com/Daylily-Informatics/UltraQC/pkg/models"
	"github.com/Daylily-Informatics/UltraQC/pkg/repositories"
)

// TxRunner runs fn in a transaction carried by the context passed to fn.
// *database.DB satisfies it.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// IngestResult summarizes one successful ingestion.
type IngestResult struct {
	ReportID     int64  `json:"report_id"`
	Hash         string `json:"report_hash"`
	MetaEntries  int    `json:"meta_entries"`
	Samples      int    `json:"samples"`
	MetricValues int    `json:"metric_values"`
	PlotConfigs  int    `json:"plot_configs"`
	PlotData     int    `json:"plot_data"`

	// New* count identity rows this report created rather than reused.
	NewSamples     int `json:"new_samples"`
	NewMetricTypes int `json:"new_metric_types"`
	NewPlotConfigs int `json:"new_plot_configs"`

	// Skipped counts malformed sections, samples, plots, datasets and series that were ignored.
	Skipped int `json:"skipped"`
}

// IngestionService decomposes a MultiQC document into reports, samples, metrics and plots.
type IngestionService interface {
	// Ingest stores doc for owner in one transaction. It returns apperrors.ErrDuplicateReport,
	// with nothing written, when a report with the same content hash already exists.
	Ingest(ctx context.Context, owner *models.User, doc map[string]any) (*IngestResult, error)
}

type ingestionService struct {
	tx         TxRunner
	reportRepo repositories.ReportRepository
	sampleRepo repositories.SampleRepository
	metricRepo repositories.MetricRepository
	plotRepo   repositories.PlotRepository
	metrics    *metrics.IngestionMetrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewIngestionService creates an ingestion service. m may be nil.
func NewIngestionService(
	tx TxRunner,
	reportRepo repositories.ReportRepository,
	sampleRepo repositories.SampleRepository,
	metricRepo repositories.MetricRepository,
	plotRepo repositories.PlotRepository,
	m *metrics.IngestionMetrics,
	logger *zap.Logger,
) IngestionService {
	return &ingestionService{
		tx:         tx,
		reportRepo: reportRepo,
		sampleRepo: sampleRepo,
		metricRepo: metricRepo,
		plotRepo:   plotRepo,
		metrics:    m,
		logger:     logger.Named("ingestion"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var _ IngestionService = (*ingestionService)(nil)

func (s *ingestionService) Ingest(ctx context.Context, owner *models.User, doc map[string]any) (*IngestResult, error) {
	if owner == nil {
		return nil, fmt.Errorf("ingest requires an owner")
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", apperrors.ErrMalformedReport)
	}
	doc = unwrapEnvelope(doc)

	hash, err := ReportHash(doc)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var result *IngestResult
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		run := &ingestRun{service: s, owner: owner, doc: doc}
		r, err := run.execute(ctx, hash)
		if err != nil {
			return err
		}
		result = r
		return nil
	})

	switch {
	case err == nil:
		s.metrics.RecordIngest("ok", time.Since(start))
	case errors.Is(err, apperrors.ErrDuplicateReport):
		s.metrics.RecordIngest("duplicate", time.Since(start))
		s.logger.Info("Report already uploaded",
			zap.String("report_hash", hash),
			zap.Int64("user_id", owner.ID))
		return nil, err
	default:
		s.metrics.RecordIngest("error", time.Since(start))
		return nil, err
	}

	s.metrics.RecordRows("report_meta", result.MetaEntries)
	s.metrics.RecordRows("sample_data", result.MetricValues)
	s.metrics.RecordRows("plot_data", result.PlotData)
	s.metrics.RecordSkipped(result.Skipped)

	s.logger.Info("Report ingested",
		zap.Int64("report_id", result.ReportID),
		zap.String("report_hash", hash),
		zap.Int64("user_id", owner.ID),
		zap.Int("samples", result.Samples),
		zap.Int("metric_values", result.MetricValues),
		zap.Int("new_metric_types", result.NewMetricTypes),
		zap.Int("plot_configs", result.PlotConfigs),
		zap.Int("plot_data", result.PlotData),
		zap.Int("skipped", result.Skipped))

	return result, nil
}

type plotConfigKey struct {
	Type    models.PlotType
	Name    string
	Dataset string
}

type plotCategoryKey struct {
	ConfigID int64
	Name     string
}

// ingestRun holds the per-document identity caches. It lives for one transaction.
type ingestRun struct {
	service *ingestionService
	owner   *models.User
	doc     map[string]any

	reportID   int64
	samples    *resolver[string, struct{}]
	metrics    *resolver[string, string]
	configs    *resolver[plotConfigKey, string]
	categories *resolver[plotCategoryKey, string]
}

func (r *ingestRun) execute(ctx context.Context, hash string) (*IngestResult, error) {
	s := r.service

	exists, err := s.reportRepo.ExistsByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.ErrDuplicateReport
	}

	now := s.now()
	ownerID := r.owner.ID
	report := &models.Report{
		Hash:       hash,
		UserID:     &ownerID,
		CreatedAt:  reportCreatedAt(r.doc, now),
		UploadedAt: now,
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, err
	}
	r.reportID = report.ID
	r.initResolvers()

	result := &IngestResult{ReportID: report.ID, Hash: hash}

	meta := r.collectMeta()
	if err := s.reportRepo.AddMeta(ctx, meta); err != nil {
		return nil, err
	}
	result.MetaEntries = len(meta)

	values, skipped, err := r.collectMetricValues(ctx)
	if err != nil {
		return nil, err
	}
	result.Skipped += skipped
	if _, err := s.metricRepo.AddValues(ctx, values); err != nil {
		return nil, err
	}
	result.MetricValues = len(values)

	plotData, skipped, err := r.collectPlotData(ctx)
	if err != nil {
		return nil, err
	}
	result.Skipped += skipped
	if _, err := s.plotRepo.AddData(ctx, plotData); err != nil {
		return nil, err
	}
	result.PlotData = len(plotData)
	result.PlotConfigs = r.configs.len()
	result.Samples = r.samples.len()
	result.NewSamples = r.samples.created
	result.NewMetricTypes = r.metrics.created
	result.NewPlotConfigs = r.configs.created

	return result, nil
}

func (r *ingestRun) initResolvers() {
	s := r.service

	r.samples = newResolver(
		func(ctx context.Context, name string) (int64, error) {
			sample, err := s.sampleRepo.FindByName(ctx, name)
			if err != nil {
				return 0, err
			}
			return sample.ID, nil
		},
		func(ctx context.Context, name string, _ struct{}) (int64, error) {
			sample := &models.Sample{Name: name, ReportID: r.reportID}
			if err := s.sampleRepo.Create(ctx, sample); err != nil {
				return 0, err
			}
			return sample.ID, nil
		},
	)

	r.metrics = newResolver(
		func(ctx context.Context, dataID string) (int64, error) {
			mt, err := s.metricRepo.FindTypeByDataID(ctx, dataID)
			if err != nil {
				return 0, err
			}
			return mt.ID, nil
		},
		func(ctx context.Context, dataID string, section string) (int64, error) {
			mt := &models.MetricType{
				DataID:  dataID,
				Section: section,
				Key:     models.MetricKey(section, dataID),
			}
			if err := s.metricRepo.CreateType(ctx, mt); err != nil {
				return 0, err
			}
			return mt.ID, nil
		},
	)

	r.configs = newResolver(
		func(ctx context.Context, key plotConfigKey) (int64, error) {
			c, err := s.plotRepo.FindConfig(ctx, key.Type, key.Name, key.Dataset)
			if err != nil {
				return 0, err
			}
			return c.ID, nil
		},
		func(ctx context.Context, key plotConfigKey, data string) (int64, error) {
			c := &models.PlotConfig{Type: key.Type, Name: key.Name, Dataset: key.Dataset, Data: data}
			if err := s.plotRepo.CreateConfig(ctx, c); err != nil {
				return 0, err
			}
			return c.ID, nil
		},
	)

	r.categories = newResolver(
		func(ctx context.Context, key plotCategoryKey) (int64, error) {
			c, err := s.plotRepo.FindCategory(ctx, key.ConfigID, key.Name)
			if err != nil {
				return 0, err
			}
			return c.ID, nil
		},
		func(ctx context.Context, key plotCategoryKey, data string) (int64, error) {
			c := &models.PlotCategory{ReportID: r.reportID, ConfigID: key.ConfigID, Name: key.Name, Data: data}
			if err := s.plotRepo.CreateCategory(ctx, c); err != nil {
				return 0, err
			}
			return c.ID, nil
		},
	)
	// Categories are shared across reports; the latest report's metadata wins.
	r.categories.onFound = func(ctx context.Context, id int64, data string) error {
		return s.plotRepo.UpdateCategoryData(ctx, id, data)
	}
}

// collectMeta returns the username entry plus every truthy scalar top-level config* key.
func (r *ingestRun) collectMeta() []models.ReportMeta {
	meta := []models.ReportMeta{{
		ReportID: r.reportID,
		Key:      models.ReportMetaUsernameKey,
		Value:    r.owner.Username,
	}}
	for _, key := range sortedKeys(r.doc) {
		if !strings.HasPrefix(key, "config") {
			continue
		}
		v := r.doc[key]
		if !jsonutil.IsTruthyScalar(v) {
			continue
		}
		meta = append(meta, models.ReportMeta{ReportID: r.reportID, Key: key, Value: jsonutil.Text(v)})
	}
	return meta
}

// collectMetricValues walks report_saved_raw_data: section -> sample -> field -> value.
func (r *ingestRun) collectMetricValues(ctx context.Context) ([]models.MetricValue, int, error) {
	raw, present := r.doc["report_saved_raw_data"]
	if !present || raw == nil {
		return nil, 0, nil
	}
	sections, ok := raw.(map[string]any)
	if !ok {
		return nil, 1, nil
	}

	var values []models.MetricValue
	skipped := 0
	for _, sectionKey := range sortedKeys(sections) {
		samples, ok := sections[sectionKey].(map[string]any)
		if !ok {
			skipped++
			continue
		}
		section := strings.TrimPrefix(sectionKey, "multiqc_")

		for _, sampleName := range sortedKeys(samples) {
			fields, ok := samples[sampleName].(map[string]any)
			if !ok {
				skipped++
				continue
			}
			sampleID, err := r.samples.resolve(ctx, sampleName, struct{}{})
			if err != nil {
				return nil, 0, err
			}

			for _, field := range sortedKeys(fields) {
				typeID, err := r.metrics.resolve(ctx, field, section)
				if err != nil {
					return nil, 0, err
				}
				values = append(values, models.MetricValue{
					ReportID:     r.reportID,
					MetricTypeID: typeID,
					SampleID:     sampleID,
					Value:        jsonutil.Text(fields[field]),
				})
			}
		}
	}
	return values, skipped, nil
}

// collectPlotData resolves configs, categories and samples for every normalized plot series.
func (r *ingestRun) collectPlotData(ctx context.Context) ([]models.PlotData, int, error) {
	plots, skipped := normalizePlots(r.doc["report_plot_data"])

	var rows []models.PlotData
	for _, plot := range plots {
		configJSON, err := jsonutil.Compact(plot.Config)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to encode plot config %s: %w", plot.ID, err)
		}

		for _, dataset := range plot.Datasets {
			key := plotConfigKey{Type: plot.Type, Name: plot.ID, Dataset: dataset.Label}
			configID, err := r.configs.resolve(ctx, key, configJSON)
			if err != nil {
				return nil, 0, err
			}

			for _, series := range dataset.Series {
				metaJSON, err := jsonutil.Compact(series.Meta)
				if err != nil {
					return nil, 0, fmt.Errorf("failed to encode category %q: %w", series.Category, err)
				}
				categoryID, err := r.categories.resolve(ctx, plotCategoryKey{ConfigID: configID, Name: series.Category}, metaJSON)
				if err != nil {
					return nil, 0, err
				}

				for _, point := range series.Points {
					sampleID, err := r.samples.resolve(ctx, point.Sample, struct{}{})
					if err != nil {
						return nil, 0, err
					}
					value, err := jsonutil.Compact(point.Value)
					if err != nil {
						return nil, 0, fmt.Errorf("failed to encode plot value for %q: %w", point.Sample, err)
					}
					rows = append(rows, models.PlotData{
						ReportID:   r.reportID,
						ConfigID:   configID,
						CategoryID: categoryID,
						SampleID:   sampleID,
						Data:       value,
					})
				}
			}
		}
	}
	return rows, skipped, nil
}
