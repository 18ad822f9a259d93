// Package datasource manages uploaded data sources, their cached schemas and
// the AI analyses run against them.
package datasource

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/KaramelBytes/insighthub-cli/internal/ai"
	"github.com/KaramelBytes/insighthub-cli/internal/analysis"
)

// TypeCSV is the only data-source type that can be processed.
const TypeCSV = "csv"

var (
	ErrNotFound         = errors.New("data source not found")
	ErrAnalysisNotFound = errors.New("analysis not found")
	ErrUnsupportedType  = errors.New("unsupported data source type")
	ErrEmptyContent     = errors.New("no data content found")
	ErrNoFile           = errors.New("no file name recorded for data source")
	ErrEmptyPrompt      = errors.New("prompt is required")
	ErrEmptyFeedback    = errors.New("feedback is required")
	ErrReportName       = errors.New("report name is required")
	ErrInvalidContent   = errors.New("report content must be valid JSON")
)

// DataSource is an uploaded dataset and its metadata.
type DataSource struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Type         string           `json:"type"`
	FileName     string           `json:"fileName"`
	OriginalName string           `json:"originalName"`
	Size         int64            `json:"size"`
	Schema       *analysis.Schema `json:"schema,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// Analysis is one stored answer to a question about a data source.
type Analysis struct {
	ID           string            `json:"id"`
	DataSourceID string            `json:"dataSourceId"`
	Prompt       string            `json:"prompt"`
	Result       ai.AnalysisResult `json:"result"`
	// Degraded marks results built from computed insights after the AI call failed.
	Degraded  bool      `json:"degraded"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	Feedback  string    `json:"feedback,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Report is a saved, named collection of findings. Content is free-form JSON
// and is an empty object when none was given.
type Report struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Content     json.RawMessage `json:"content"`
	IsPublic    bool            `json:"isPublic"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Sample is a bounded view of a data source's rows.
type Sample struct {
	SourceType string            `json:"sourceType"`
	Data       []analysis.Record `json:"data"`
	Schema     *analysis.Schema  `json:"schema"`
}
