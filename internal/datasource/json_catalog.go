package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/KaramelBytes/insighthub-cli/internal/utils"
)

const jsonCatalogFile = "catalog.json"

func init() {
	RegisterCatalog("json", func(_ context.Context, dir string) (Catalog, error) { return OpenJSONCatalog(dir) })
}

// JSONCatalog keeps the whole catalog in one JSON file, rewritten atomically
// on every change. Mutations are built on a copy and only replace the
// in-memory state once the file has been written.
type JSONCatalog struct {
	mu   sync.RWMutex
	path string
	data jsonCatalogData
}

type jsonCatalogData struct {
	DataSources []*DataSource `json:"dataSources"`
	Analyses    []*Analysis   `json:"analyses"`
	Reports     []*Report     `json:"reports,omitempty"`
}

// clone copies the slices; elements are treated as immutable and replaced
// rather than edited in place.
func (d jsonCatalogData) clone() jsonCatalogData {
	return jsonCatalogData{
		DataSources: append([]*DataSource(nil), d.DataSources...),
		Analyses:    append([]*Analysis(nil), d.Analyses...),
		Reports:     append([]*Report(nil), d.Reports...),
	}
}

// OpenJSONCatalog loads dir/catalog.json, starting empty when it does not exist.
func OpenJSONCatalog(dir string) (*JSONCatalog, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("ensure catalog dir: %w", err)
	}
	c := &JSONCatalog{path: filepath.Join(dir, jsonCatalogFile)}
	b, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if err := json.Unmarshal(b, &c.data); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", c.path, err)
	}
	return c, nil
}

// commit writes next to disk and adopts it. Callers hold c.mu.
func (c *JSONCatalog) commit(next jsonCatalogData) error {
	b, err := utils.PrettyJSON(next)
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(c.path, b); err != nil {
		return err
	}
	c.data = next
	return nil
}

func (c *JSONCatalog) Put(ctx context.Context, ds *DataSource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *ds
	next := c.data.clone()
	for i, cur := range next.DataSources {
		if cur.ID == ds.ID {
			next.DataSources[i] = &cp
			return c.commit(next)
		}
	}
	next.DataSources = append(next.DataSources, &cp)
	return c.commit(next)
}

func (c *JSONCatalog) Get(ctx context.Context, id string) (*DataSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ds := range c.data.DataSources {
		if ds.ID == id {
			cp := *ds
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
}

func (c *JSONCatalog) List(ctx context.Context) ([]*DataSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*DataSource, 0, len(c.data.DataSources))
	// reverse insertion order, then stable by time, so equal timestamps stay newest first
	for i := len(c.data.DataSources) - 1; i >= 0; i-- {
		cp := *c.data.DataSources[i]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (c *JSONCatalog) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	next := jsonCatalogData{Reports: c.data.Reports}
	found := false
	for _, ds := range c.data.DataSources {
		if ds.ID == id {
			found = true
			continue
		}
		next.DataSources = append(next.DataSources, ds)
	}
	if !found {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	for _, a := range c.data.Analyses {
		if a.DataSourceID != id {
			next.Analyses = append(next.Analyses, a)
		}
	}
	return c.commit(next)
}

func (c *JSONCatalog) PutAnalysis(ctx context.Context, a *Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *a
	next := c.data.clone()
	for i, cur := range next.Analyses {
		if cur.ID == a.ID {
			next.Analyses[i] = &cp
			return c.commit(next)
		}
	}
	next.Analyses = append(next.Analyses, &cp)
	return c.commit(next)
}

func (c *JSONCatalog) ListAnalyses(ctx context.Context, sourceID string, limit int) ([]*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*Analysis
	for i := len(c.data.Analyses) - 1; i >= 0; i-- {
		a := c.data.Analyses[i]
		if sourceID == "" || a.DataSourceID == sourceID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if n := limitOrDefault(limit); len(out) > n {
		out = out[:n]
	}
	if out == nil {
		out = []*Analysis{}
	}
	return out, nil
}

func (c *JSONCatalog) GetAnalysis(ctx context.Context, id string) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.data.Analyses {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", id, ErrAnalysisNotFound)
}

func (c *JSONCatalog) SetFeedback(ctx context.Context, id, feedback string) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.data.clone()
	for i, cur := range next.Analyses {
		if cur.ID != id {
			continue
		}
		cp := *cur
		cp.Feedback = feedback
		next.Analyses[i] = &cp
		if err := c.commit(next); err != nil {
			return nil, err
		}
		out := cp
		return &out, nil
	}
	return nil, fmt.Errorf("%s: %w", id, ErrAnalysisNotFound)
}

func (c *JSONCatalog) PutReport(ctx context.Context, r *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *r
	next := c.data.clone()
	for i, cur := range next.Reports {
		if cur.ID == r.ID {
			next.Reports[i] = &cp
			return c.commit(next)
		}
	}
	next.Reports = append(next.Reports, &cp)
	return c.commit(next)
}

func (c *JSONCatalog) ListReports(ctx context.Context) ([]*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Report, 0, len(c.data.Reports))
	for i := len(c.data.Reports) - 1; i >= 0; i-- {
		cp := *c.data.Reports[i]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (c *JSONCatalog) Close() error { return nil }
