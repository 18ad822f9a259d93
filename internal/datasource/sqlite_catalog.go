package datasource

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/insighthub-cli/internal/analysis"
	"github.com/KaramelBytes/insighthub-cli/internal/utils"
)

const sqliteCatalogFile = "catalog.db"

// Fixed-width UTC timestamps keep TEXT ordering equal to time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func init() {
	RegisterCatalog("sqlite", func(ctx context.Context, dir string) (Catalog, error) { return OpenSQLiteCatalog(ctx, dir) })
}

// SQLiteCatalog stores the catalog in dir/catalog.db. Schemas and analysis
// results are kept as JSON text columns.
type SQLiteCatalog struct {
	db *sql.DB
}

var sqliteDDL = []string{
	`CREATE TABLE IF NOT EXISTS data_sources (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		type          TEXT NOT NULL,
		file_name     TEXT NOT NULL,
		original_name TEXT NOT NULL DEFAULT '',
		size          INTEGER NOT NULL DEFAULT 0,
		schema_json   TEXT,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS analyses (
		id             TEXT PRIMARY KEY,
		data_source_id TEXT NOT NULL,
		prompt         TEXT NOT NULL,
		result_json    TEXT NOT NULL,
		degraded       INTEGER NOT NULL DEFAULT 0,
		provider       TEXT NOT NULL DEFAULT '',
		model          TEXT NOT NULL DEFAULT '',
		feedback       TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS analyses_source_created ON analyses (data_source_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		content_json TEXT NOT NULL DEFAULT '{}',
		is_public    INTEGER NOT NULL DEFAULT 0,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,
}

// OpenSQLiteCatalog opens (creating if needed) the catalog database under dir.
func OpenSQLiteCatalog(ctx context.Context, dir string) (*SQLiteCatalog, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("ensure catalog dir: %w", err)
	}
	dsn := "file:" + filepath.Join(dir, sqliteCatalogFile) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite catalog: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite catalog: %w", err)
	}
	for _, stmt := range sqliteDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create catalog tables: %w", err)
		}
	}
	return &SQLiteCatalog{db: db}, nil
}

func (c *SQLiteCatalog) Close() error { return c.db.Close() }

func formatTime(t time.Time) string { return t.UTC().Format(sqliteTimeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func (c *SQLiteCatalog) Put(ctx context.Context, ds *DataSource) error {
	var schemaJSON sql.NullString
	if ds.Schema != nil {
		b, err := json.Marshal(ds.Schema)
		if err != nil {
			return fmt.Errorf("marshal schema: %w", err)
		}
		schemaJSON = sql.NullString{String: string(b), Valid: true}
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO data_sources (id, name, description, type, file_name, original_name, size, schema_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			type = excluded.type,
			file_name = excluded.file_name,
			original_name = excluded.original_name,
			size = excluded.size,
			schema_json = excluded.schema_json,
			updated_at = excluded.updated_at`,
		ds.ID, ds.Name, ds.Description, ds.Type, ds.FileName, ds.OriginalName, ds.Size, schemaJSON,
		formatTime(ds.CreatedAt), formatTime(ds.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put data source: %w", err)
	}
	return nil
}

const dataSourceColumns = `id, name, description, type, file_name, original_name, size, schema_json, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataSource(r rowScanner) (*DataSource, error) {
	var (
		ds               DataSource
		schemaJSON       sql.NullString
		created, updated string
	)
	if err := r.Scan(&ds.ID, &ds.Name, &ds.Description, &ds.Type, &ds.FileName, &ds.OriginalName, &ds.Size, &schemaJSON, &created, &updated); err != nil {
		return nil, err
	}
	if schemaJSON.Valid {
		var s analysis.Schema
		if err := json.Unmarshal([]byte(schemaJSON.String), &s); err != nil {
			return nil, fmt.Errorf("decode schema of %s: %w", ds.ID, err)
		}
		ds.Schema = &s
	}
	var err error
	if ds.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if ds.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &ds, nil
}

func (c *SQLiteCatalog) Get(ctx context.Context, id string) (*DataSource, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+dataSourceColumns+` FROM data_sources WHERE id = ?`, id)
	ds, err := scanDataSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get data source: %w", err)
	}
	return ds, nil
}

func (c *SQLiteCatalog) List(ctx context.Context) ([]*DataSource, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+dataSourceColumns+` FROM data_sources ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}
	defer rows.Close()
	out := []*DataSource{}
	for rows.Next() {
		ds, err := scanDataSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan data source: %w", err)
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

func (c *SQLiteCatalog) Delete(ctx context.Context, id string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, `DELETE FROM data_sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete data source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM analyses WHERE data_source_id = ?`, id); err != nil {
		return fmt.Errorf("delete analyses: %w", err)
	}
	return tx.Commit()
}

func (c *SQLiteCatalog) PutAnalysis(ctx context.Context, a *Analysis) error {
	b, err := json.Marshal(a.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO analyses (id, data_source_id, prompt, result_json, degraded, provider, model, feedback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			prompt = excluded.prompt,
			result_json = excluded.result_json,
			degraded = excluded.degraded,
			provider = excluded.provider,
			model = excluded.model,
			feedback = excluded.feedback`,
		a.ID, a.DataSourceID, a.Prompt, string(b), a.Degraded, a.Provider, a.Model, a.Feedback, formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("put analysis: %w", err)
	}
	return nil
}

const analysisColumns = `id, data_source_id, prompt, result_json, degraded, provider, model, feedback, created_at`

func scanAnalysis(r rowScanner) (*Analysis, error) {
	var (
		a                   Analysis
		resultJSON, created string
	)
	if err := r.Scan(&a.ID, &a.DataSourceID, &a.Prompt, &resultJSON, &a.Degraded, &a.Provider, &a.Model, &a.Feedback, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(resultJSON), &a.Result); err != nil {
		return nil, fmt.Errorf("decode result of %s: %w", a.ID, err)
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = t
	return &a, nil
}

func (c *SQLiteCatalog) ListAnalyses(ctx context.Context, sourceID string, limit int) ([]*Analysis, error) {
	q := `SELECT ` + analysisColumns + ` FROM analyses`
	var args []any
	if sourceID != "" {
		q += ` WHERE data_source_id = ?`
		args = append(args, sourceID)
	}
	q += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limitOrDefault(limit))
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()
	out := []*Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (c *SQLiteCatalog) GetAnalysis(ctx context.Context, id string) (*Analysis, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrAnalysisNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return a, nil
}

func (c *SQLiteCatalog) SetFeedback(ctx context.Context, id, feedback string) (*Analysis, error) {
	res, err := c.db.ExecContext(ctx, `UPDATE analyses SET feedback = ? WHERE id = ?`, feedback, id)
	if err != nil {
		return nil, fmt.Errorf("set feedback: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%s: %w", id, ErrAnalysisNotFound)
	}
	return c.GetAnalysis(ctx, id)
}

func (c *SQLiteCatalog) PutReport(ctx context.Context, r *Report) error {
	content := string(r.Content)
	if content == "" {
		content = "{}"
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO reports (id, name, description, content_json, is_public, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			content_json = excluded.content_json,
			is_public = excluded.is_public,
			updated_at = excluded.updated_at`,
		r.ID, r.Name, r.Description, content, r.IsPublic, formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put report: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) ListReports(ctx context.Context) ([]*Report, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, description, content_json, is_public, created_at, updated_at
		FROM reports ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()
	out := []*Report{}
	for rows.Next() {
		var (
			r                         Report
			content, created, updated string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &content, &r.IsPublic, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.Content = json.RawMessage(content)
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if r.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
