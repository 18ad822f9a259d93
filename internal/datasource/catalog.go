package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// DefaultAnalysesLimit applies when ListAnalyses is called with limit <= 0.
const DefaultAnalysesLimit = 20

// Catalog persists data sources, analyses and reports.
type Catalog interface {
	Put(ctx context.Context, ds *DataSource) error
	Get(ctx context.Context, id string) (*DataSource, error)
	// List returns all data sources, newest first.
	List(ctx context.Context) ([]*DataSource, error)
	// Delete removes a data source and its analyses.
	Delete(ctx context.Context, id string) error
	PutAnalysis(ctx context.Context, a *Analysis) error
	// ListAnalyses returns up to limit analyses, newest first. An empty
	// sourceID lists analyses of every source.
	ListAnalyses(ctx context.Context, sourceID string, limit int) ([]*Analysis, error)
	GetAnalysis(ctx context.Context, id string) (*Analysis, error)
	// SetFeedback stores feedback on an analysis and returns the updated
	// analysis. Unknown ids yield ErrAnalysisNotFound.
	SetFeedback(ctx context.Context, id, feedback string) (*Analysis, error)
	PutReport(ctx context.Context, r *Report) error
	// ListReports returns all reports, newest first.
	ListReports(ctx context.Context) ([]*Report, error)
	Close() error
}

// CatalogOpener opens a catalog stored under dir.
type CatalogOpener func(ctx context.Context, dir string) (Catalog, error)

var catalogs = map[string]CatalogOpener{}

// RegisterCatalog makes a backend available to OpenCatalog.
func RegisterCatalog(name string, open CatalogOpener) { catalogs[name] = open }

// OpenCatalog opens the named backend ("json" or "sqlite").
func OpenCatalog(ctx context.Context, backend, dir string) (Catalog, error) {
	if backend == "" {
		backend = "json"
	}
	open, ok := catalogs[strings.ToLower(backend)]
	if !ok {
		names := make([]string, 0, len(catalogs))
		for k := range catalogs {
			names = append(names, k)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown catalog backend %q (available: %s)", backend, strings.Join(names, ", "))
	}
	return open(ctx, dir)
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultAnalysesLimit
	}
	return limit
}
