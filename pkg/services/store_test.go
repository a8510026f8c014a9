package services

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
	"github.com/Daylily-Informatics/UltraQC/pkg/models"
	"github.com/Daylily-Informatics/UltraQC/pkg/repositories"
)

// memStore is an in-memory stand-in for the ingestion tables. WithinTx snapshots every
// table and restores it when fn fails, so rollbacks are observable in tests.
type memStore struct {
	mu sync.Mutex

	nextID       int64
	reports      []models.Report
	meta         []models.ReportMeta
	samples      []models.Sample
	metricTypes  []models.MetricType
	metricValues []models.MetricValue
	configs      []models.PlotConfig
	categories   []models.PlotCategory
	plotData     []models.PlotData

	// calls counts repository calls by name, e.g. "sample.FindByName".
	calls map[string]int
	// failOn makes the named call return failErr.
	failOn  string
	failErr error
	// raceHash makes report.Create report a unique violation for this hash, as if a
	// concurrent worker committed it first.
	raceHash string
}

func newMemStore() *memStore {
	return &memStore{calls: make(map[string]int)}
}

type memSnapshot struct {
	nextID       int64
	reports      []models.Report
	meta         []models.ReportMeta
	samples      []models.Sample
	metricTypes  []models.MetricType
	metricValues []models.MetricValue
	configs      []models.PlotConfig
	categories   []models.PlotCategory
	plotData     []models.PlotData
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	snap := memSnapshot{
		nextID:       m.nextID,
		reports:      slices.Clone(m.reports),
		meta:         slices.Clone(m.meta),
		samples:      slices.Clone(m.samples),
		metricTypes:  slices.Clone(m.metricTypes),
		metricValues: slices.Clone(m.metricValues),
		configs:      slices.Clone(m.configs),
		categories:   slices.Clone(m.categories),
		plotData:     slices.Clone(m.plotData),
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.nextID = snap.nextID
		m.reports = snap.reports
		m.meta = snap.meta
		m.samples = snap.samples
		m.metricTypes = snap.metricTypes
		m.metricValues = snap.metricValues
		m.configs = snap.configs
		m.categories = snap.categories
		m.plotData = snap.plotData
		m.mu.Unlock()
		return err
	}
	return nil
}

// call records a call and returns the injected failure, if any. Caller holds mu.
func (m *memStore) call(name string) error {
	m.calls[name]++
	if m.failOn == name {
		return m.failErr
	}
	return nil
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) newIngestionService() IngestionService {
	return NewIngestionService(m, memReports{m}, memSamples{m}, memMetrics{m}, memPlots{m}, nil, testLogger())
}

type memReports struct{ *memStore }

func (r memReports) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("report.ExistsByHash"); err != nil {
		return false, err
	}
	for _, rep := range r.reports {
		if rep.Hash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (r memReports) Create(ctx context.Context, report *models.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("report.Create"); err != nil {
		return err
	}
	if report.Hash == r.raceHash {
		return apperrors.ErrDuplicateReport
	}
	for _, rep := range r.reports {
		if rep.Hash == report.Hash {
			return apperrors.ErrDuplicateReport
		}
	}
	report.ID = r.id()
	r.reports = append(r.reports, *report)
	return nil
}

func (r memReports) AddMeta(ctx context.Context, meta []models.ReportMeta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("report.AddMeta"); err != nil {
		return err
	}
	for _, m := range meta {
		m.ID = r.id()
		r.meta = append(r.meta, m)
	}
	return nil
}

func (r memReports) GetByID(ctx context.Context, reportID int64) (*models.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.reports {
		if rep.ID == reportID {
			rep := rep
			return &rep, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memReports) GetMeta(ctx context.Context, reportID int64) ([]models.ReportMeta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ReportMeta
	for _, m := range r.meta {
		if m.ReportID == reportID {
			out = append(out, m)
		}
	}
	return out, nil
}

type memSamples struct{ *memStore }

func (r memSamples) FindByName(ctx context.Context, name string) (*models.Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("sample.FindByName"); err != nil {
		return nil, err
	}
	for _, s := range r.samples {
		if s.Name == name {
			s := s
			return &s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memSamples) Create(ctx context.Context, sample *models.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("sample.Create"); err != nil {
		return err
	}
	sample.ID = r.id()
	r.samples = append(r.samples, *sample)
	return nil
}

type memMetrics struct{ *memStore }

func (r memMetrics) FindTypeByDataID(ctx context.Context, dataID string) (*models.MetricType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("metric.FindTypeByDataID"); err != nil {
		return nil, err
	}
	for _, mt := range r.metricTypes {
		if mt.DataID == dataID {
			mt := mt
			return &mt, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memMetrics) CreateType(ctx context.Context, metricType *models.MetricType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("metric.CreateType"); err != nil {
		return err
	}
	metricType.ID = r.id()
	r.metricTypes = append(r.metricTypes, *metricType)
	return nil
}

func (r memMetrics) AddValues(ctx context.Context, values []models.MetricValue) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("metric.AddValues"); err != nil {
		return 0, err
	}
	for _, v := range values {
		v.ID = r.id()
		r.metricValues = append(r.metricValues, v)
	}
	return int64(len(values)), nil
}

func (r memMetrics) ListTypes(ctx context.Context) ([]repositories.MetricTypeListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]repositories.MetricTypeListing, 0, len(r.metricTypes))
	for _, mt := range r.metricTypes {
		out = append(out, repositories.MetricTypeListing{MetricType: mt, NiceName: mt.NiceName()})
	}
	return out, nil
}

type memPlots struct{ *memStore }

func (r memPlots) FindConfig(ctx context.Context, plotType models.PlotType, name, dataset string) (*models.PlotConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("plot.FindConfig"); err != nil {
		return nil, err
	}
	for _, c := range r.configs {
		if c.Type == plotType && c.Name == name && c.Dataset == dataset {
			c := c
			return &c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memPlots) CreateConfig(ctx context.Context, config *models.PlotConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("plot.CreateConfig"); err != nil {
		return err
	}
	config.ID = r.id()
	r.configs = append(r.configs, *config)
	return nil
}

func (r memPlots) FindCategory(ctx context.Context, configID int64, name string) (*models.PlotCategory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("plot.FindCategory"); err != nil {
		return nil, err
	}
	for _, c := range r.categories {
		if c.ConfigID == configID && c.Name == name {
			c := c
			return &c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memPlots) CreateCategory(ctx context.Context, category *models.PlotCategory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("plot.CreateCategory"); err != nil {
		return err
	}
	category.ID = r.id()
	r.categories = append(r.categories, *category)
	return nil
}

func (r memPlots) UpdateCategoryData(ctx context.Context, categoryID int64, data string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("plot.UpdateCategoryData"); err != nil {
		return err
	}
	for i := range r.categories {
		if r.categories[i].ID == categoryID {
			r.categories[i].Data = data
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (r memPlots) AddData(ctx context.Context, data []models.PlotData) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("plot.AddData"); err != nil {
		return 0, err
	}
	for _, d := range data {
		d.ID = r.id()
		r.plotData = append(r.plotData, d)
	}
	return int64(len(data)), nil
}

// sampleName resolves a sample id back to its name.
func (m *memStore) sampleName(id int64) string {
	for _, s := range m.samples {
		if s.ID == id {
			return s.Name
		}
	}
	return ""
}

func (m *memStore) categoryName(id int64) string {
	for _, c := range m.categories {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

// memUploads is an in-memory UploadRepository.
type memUploads struct {
	mu      sync.Mutex
	nextID  int64
	records []*models.UploadRecord

	listErr   error
	finishErr error
	// claimedElsewhere lists uploads another worker claims between list and claim.
	claimedElsewhere map[int64]bool
	listCalls        int
}

func newMemUploads() *memUploads {
	return &memUploads{claimedElsewhere: make(map[int64]bool)}
}

func (r *memUploads) Create(ctx context.Context, upload *models.UploadRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	upload.ID = r.nextID
	if upload.Status == "" {
		upload.Status = models.UploadStatusQueued
	}
	cp := *upload
	r.records = append(r.records, &cp)
	return nil
}

func (r *memUploads) GetByID(ctx context.Context, uploadID int64) (*models.UploadRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == uploadID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memUploads) ListByStatus(ctx context.Context, status models.UploadStatus) ([]*models.UploadRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*models.UploadRecord
	for _, rec := range r.records {
		if rec.Status == status {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memUploads) ListByUser(ctx context.Context, userID int64) ([]*models.UploadRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.UploadRecord
	for _, rec := range r.records {
		if userID == 0 || rec.UserID == userID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memUploads) CountByStatus(ctx context.Context, statuses ...models.UploadStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if slices.Contains(statuses, rec.Status) {
			n++
		}
	}
	return n, nil
}

func (r *memUploads) Claim(ctx context.Context, uploadID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID != uploadID {
			continue
		}
		if r.claimedElsewhere[uploadID] {
			rec.Status = models.UploadStatusProcessing
			return false, nil
		}
		if rec.Status != models.UploadStatusQueued {
			return false, nil
		}
		rec.Status = models.UploadStatusProcessing
		return true, nil
	}
	return false, nil
}

func (r *memUploads) Finish(ctx context.Context, uploadID int64, status models.UploadStatus, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finishErr != nil {
		return r.finishErr
	}
	for _, rec := range r.records {
		if rec.ID == uploadID {
			rec.Status = status
			rec.Message = message
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (r *memUploads) get(id int64) *models.UploadRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			cp := *rec
			return &cp
		}
	}
	return nil
}

// memUsers is an in-memory UserRepository.
type memUsers struct {
	users map[int64]*models.User
}

func (r *memUsers) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	if u, ok := r.users[userID]; ok {
		return u, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *memUsers) GetByAPIToken(ctx context.Context, token string) (*models.User, error) {
	for _, u := range r.users {
		if u.APIToken != nil && *u.APIToken == token {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

var (
	_ repositories.ReportRepository = memReports{}
	_ repositories.SampleRepository = memSamples{}
	_ repositories.MetricRepository = memMetrics{}
	_ repositories.PlotRepository   = memPlots{}
	_ repositories.UploadRepository = (*memUploads)(nil)
	_ repositories.UserRepository   = (*memUsers)(nil)
	_ TxRunner                      = (*memStore)(nil)
)

var errInjected = errors.New("injected failure")
