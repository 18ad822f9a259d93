package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/KaramelBytes/insighthub-cli/internal/ai"
	"github.com/KaramelBytes/insighthub-cli/internal/analysis"
	"github.com/KaramelBytes/insighthub-cli/internal/logging"
	"github.com/KaramelBytes/insighthub-cli/internal/storage"
)

// DefaultSampleLimit bounds Sample and Insights when no limit is given.
const DefaultSampleLimit = 100

// Analyzer answers a question about a dataset. *ai.Analyzer satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, question, data string, schema *analysis.Schema) (*ai.AnalysisResult, error)
}

// Upload is a file submitted for registration.
type Upload struct {
	Name        string
	Description string
	FileName    string
	ContentType string
	Data        []byte
}

// Options tunes a Service. Zero values select defaults.
type Options struct {
	SampleSize  int // rows sampled for schema inference
	SampleLimit int // rows returned by Sample and Insights
	Provider    string
	Model       string
}

// Service ties the catalog, the file store and the analyzer together.
type Service struct {
	catalog  Catalog
	store    storage.Store
	analyzer Analyzer
	log      logging.Logger
	opts     Options
	now      func() time.Time
}

// NewService returns a service. analyzer may be nil, in which case every
// analysis degrades to computed insights.
func NewService(catalog Catalog, store storage.Store, analyzer Analyzer, log logging.Logger, opts Options) *Service {
	if log == nil {
		log = logging.Nop()
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = analysis.DefaultSampleSize
	}
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = DefaultSampleLimit
	}
	return &Service{catalog: catalog, store: store, analyzer: analyzer, log: log, opts: opts, now: time.Now}
}

// IsCSV reports whether an upload looks like CSV by extension or media type.
func IsCSV(fileName, contentType string) bool {
	if strings.EqualFold(filepath.Ext(fileName), ".csv") {
		return true
	}
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "text/csv"
}

// Register stores an uploaded CSV file, infers its schema and records it.
func (s *Service) Register(ctx context.Context, up Upload) (*DataSource, error) {
	if !IsCSV(up.FileName, up.ContentType) {
		return nil, fmt.Errorf("%s: %w", up.FileName, ErrUnsupportedType)
	}
	if len(up.Data) == 0 {
		return nil, fmt.Errorf("%s: %w", up.FileName, ErrEmptyContent)
	}
	name := strings.TrimSpace(up.Name)
	if name == "" {
		base := filepath.Base(up.FileName)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	stored, err := s.store.Save(ctx, up.FileName, name, up.Data)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	ds := &DataSource{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  up.Description,
		Type:         TypeCSV,
		FileName:     stored.Name,
		OriginalName: filepath.Base(up.FileName),
		Size:         stored.Size,
		Schema:       analysis.InferSchema(string(up.Data), s.opts.SampleSize),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.catalog.Put(ctx, ds); err != nil {
		// Don't leave an orphaned upload behind.
		if _, derr := s.store.Delete(ctx, stored.Name); derr != nil {
			s.log.Warn("cleanup of stored file failed", "name", stored.Name, "error", derr)
		}
		return nil, fmt.Errorf("record data source: %w", err)
	}
	s.log.Info("registered data source", "id", ds.ID, "name", ds.Name, "rows", ds.Schema.RowCount, "columns", len(ds.Schema.Columns))
	return ds, nil
}

// Get returns the data source with the given id.
func (s *Service) Get(ctx context.Context, id string) (*DataSource, error) {
	return s.catalog.Get(ctx, id)
}

// List returns every data source, newest first.
func (s *Service) List(ctx context.Context) ([]*DataSource, error) {
	return s.catalog.List(ctx)
}

// Delete removes the data source, its analyses and its stored file.
func (s *Service) Delete(ctx context.Context, id string) error {
	ds, err := s.catalog.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.catalog.Delete(ctx, id); err != nil {
		return err
	}
	if ds.FileName != "" {
		if _, err := s.store.Delete(ctx, ds.FileName); err != nil {
			s.log.Warn("stored file not removed", "id", id, "name", ds.FileName, "error", err)
		}
	}
	s.log.Info("deleted data source", "id", id, "name", ds.Name)
	return nil
}

// Resolve finds a data source by id or, failing that, by case-insensitive
// name. An unknown ref yields ErrNotFound with the closest name suggested.
func (s *Service) Resolve(ctx context.Context, ref string) (*DataSource, error) {
	ds, err := s.catalog.Get(ctx, ref)
	if err == nil {
		return ds, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	all, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, ds := range all {
		if strings.EqualFold(ds.Name, ref) {
			return ds, nil
		}
	}
	if best := closestName(ref, all); best != "" {
		return nil, fmt.Errorf("%q: %w (did you mean %q?)", ref, ErrNotFound, best)
	}
	return nil, fmt.Errorf("%q: %w", ref, ErrNotFound)
}

func closestName(ref string, all []*DataSource) string {
	best, bestDist := "", -1
	r := []rune(strings.ToLower(ref))
	for _, ds := range all {
		d := levenshtein.DistanceForStrings(r, []rune(strings.ToLower(ds.Name)), levenshtein.DefaultOptions)
		if bestDist < 0 || d < bestDist {
			best, bestDist = ds.Name, d
		}
	}
	return best
}

// content loads the stored file of a CSV data source.
func (s *Service) content(ctx context.Context, ds *DataSource) (string, error) {
	if ds.Type != TypeCSV {
		s.log.Warn("unsupported data source type", "id", ds.ID, "type", ds.Type)
		return "", fmt.Errorf("type %q: %w", ds.Type, ErrUnsupportedType)
	}
	if ds.FileName == "" {
		return "", fmt.Errorf("%s: %w", ds.ID, ErrNoFile)
	}
	text, err := s.store.Content(ctx, ds.FileName)
	if err != nil {
		return "", fmt.Errorf("read content of %s: %w", ds.ID, err)
	}
	return text, nil
}

func (s *Service) schemaFor(ds *DataSource, text string) *analysis.Schema {
	if ds.Schema != nil {
		return ds.Schema
	}
	return analysis.InferSchema(text, s.opts.SampleSize)
}

func (s *Service) limit(n int) int {
	if n <= 0 {
		return s.opts.SampleLimit
	}
	return n
}

// Sample returns up to limit parsed rows with the source's schema.
func (s *Service) Sample(ctx context.Context, id string, limit int) (*Sample, error) {
	ds, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	text, err := s.content(ctx, ds)
	if err != nil {
		return nil, err
	}
	limit = s.limit(limit)
	s.log.Debug("extracting sample", "id", id, "limit", limit)
	return &Sample{
		SourceType: ds.Type,
		Data:       analysis.ParseRows(text, limit),
		Schema:     s.schemaFor(ds, text),
	}, nil
}

// Insights computes per-column insights over up to limit parsed rows.
func (s *Service) Insights(ctx context.Context, id string, limit int, opt analysis.InsightOptions) (*analysis.InsightReport, error) {
	ds, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	text, err := s.content(ctx, ds)
	if err != nil {
		return nil, err
	}
	return analysis.GenerateInsightsWithOptions(analysis.ParseRows(text, s.limit(limit)), opt), nil
}

// Prompt returns the analysis prompt that Analyze would send.
func (s *Service) Prompt(ctx context.Context, id, question string) (string, error) {
	_, text, schema, err := s.prepare(ctx, id, question)
	if err != nil {
		return "", err
	}
	return ai.BuildAnalysisPrompt(question, schema, text)
}

func (s *Service) prepare(ctx context.Context, id, question string) (*DataSource, string, *analysis.Schema, error) {
	if strings.TrimSpace(question) == "" {
		return nil, "", nil, ErrEmptyPrompt
	}
	ds, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, "", nil, err
	}
	text, err := s.content(ctx, ds)
	if err != nil {
		return nil, "", nil, err
	}
	if text == "" {
		return nil, "", nil, fmt.Errorf("%s: %w", ds.ID, ErrEmptyContent)
	}
	if ds.Schema == nil {
		s.log.Info("inferring schema from CSV data", "id", ds.ID)
	}
	return ds, text, s.schemaFor(ds, text), nil
}

// Analyze runs the analysis pipeline for a question about a data source and
// stores the result. When the analyzer fails the result is built from
// computed insights and marked Degraded.
func (s *Service) Analyze(ctx context.Context, id, question string) (*Analysis, error) {
	ds, text, schema, err := s.prepare(ctx, id, question)
	if err != nil {
		return nil, err
	}
	log := s.log.With("id", ds.ID, "prompt_length", len(question))
	log.Info("analyzing data source", "data_length", len(text))

	var (
		result   *ai.AnalysisResult
		degraded bool
	)
	if s.analyzer == nil {
		err = errors.New("no AI runtime configured")
	} else {
		result, err = s.analyzer.Analyze(ctx, question, text, schema)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error("AI analysis failed, using computed insights", err)
		result = degradedResult(ds, analysis.GenerateInsights(analysis.ParseRows(text, s.opts.SampleLimit)))
		degraded = true
	}
	a := &Analysis{
		ID:           uuid.NewString(),
		DataSourceID: ds.ID,
		Prompt:       question,
		Result:       *result,
		Degraded:     degraded,
		Provider:     s.opts.Provider,
		Model:        s.opts.Model,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.catalog.PutAnalysis(ctx, a); err != nil {
		return nil, fmt.Errorf("record analysis: %w", err)
	}
	log.Info("analysis completed", "analysis_id", a.ID, "degraded", degraded, "insights", len(a.Result.Insights))
	return a, nil
}

func degradedResult(ds *DataSource, rep *analysis.InsightReport) *ai.AnalysisResult {
	out := &ai.AnalysisResult{
		Summary:                 fmt.Sprintf("AI analysis is unavailable; showing computed insights for %s.", ds.Name),
		Insights:                make([]string, 0, len(rep.Insights)),
		VisualizationSuggestion: "table",
	}
	for _, in := range rep.Insights {
		out.Insights = append(out.Insights, in.Insight)
	}
	if len(out.Insights) == 0 {
		out.Insights = append(out.Insights, "No column insights could be computed from the data.")
	}
	return out
}

// Analyses lists stored analyses, newest first. An empty sourceID lists all.
func (s *Service) Analyses(ctx context.Context, sourceID string, limit int) ([]*Analysis, error) {
	return s.catalog.ListAnalyses(ctx, sourceID, limit)
}

// Analysis returns one stored analysis.
func (s *Service) Analysis(ctx context.Context, id string) (*Analysis, error) {
	return s.catalog.GetAnalysis(ctx, id)
}

// Feedback records reviewer feedback on a stored analysis and returns the
// updated analysis.
func (s *Service) Feedback(ctx context.Context, id, feedback string) (*Analysis, error) {
	if strings.TrimSpace(feedback) == "" {
		return nil, ErrEmptyFeedback
	}
	a, err := s.catalog.SetFeedback(ctx, id, feedback)
	if err != nil {
		return nil, err
	}
	s.log.Info("saved analysis feedback", "analysis_id", id)
	return a, nil
}

// ReportInput describes a report to create.
type ReportInput struct {
	Name        string
	Description string
	Content     json.RawMessage // empty or null becomes {}
	IsPublic    bool
}

// CreateReport validates and stores a new report.
func (s *Service) CreateReport(ctx context.Context, in ReportInput) (*Report, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrReportName
	}
	content := bytes.TrimSpace(in.Content)
	if len(content) == 0 || bytes.Equal(content, []byte("null")) {
		content = []byte("{}")
	}
	if !json.Valid(content) {
		return nil, ErrInvalidContent
	}
	now := s.now().UTC()
	r := &Report{
		ID:          uuid.NewString(),
		Name:        name,
		Description: in.Description,
		Content:     json.RawMessage(content),
		IsPublic:    in.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.catalog.PutReport(ctx, r); err != nil {
		return nil, fmt.Errorf("record report: %w", err)
	}
	s.log.Info("created report", "id", r.ID, "name", r.Name, "public", r.IsPublic)
	return r, nil
}

// Reports lists stored reports, newest first.
func (s *Service) Reports(ctx context.Context) ([]*Report, error) {
	return s.catalog.ListReports(ctx)
}
