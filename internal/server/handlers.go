package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/insighthub-cli/internal/analysis"
	"github.com/KaramelBytes/insighthub-cli/internal/datasource"
)

// intQuery reads a non-negative integer query parameter; absent means 0.
func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

// handleSchema infers a schema from a raw CSV request body.
func (s *Server) handleSchema(c *gin.Context) {
	n, err := intQuery(c, "sampleSize")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if n == 0 {
		n = s.opts.SampleSize
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.fail(c, "Error reading request body", err)
		return
	}
	c.JSON(http.StatusOK, analysis.InferSchema(string(body), n))
}

func (s *Server) handleCreateDataSource(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, "Error creating data source", err)
			return
		}
		badRequest(c, "CSV file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, "Error creating data source", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.fail(c, "Error creating data source", err)
		return
	}
	ds, err := s.svc.Register(c.Request.Context(), datasource.Upload{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		s.fail(c, "Error creating data source", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Data source created successfully", "dataSource": ds})
}

func (s *Server) handleListDataSources(c *gin.Context) {
	list, err := s.svc.List(c.Request.Context())
	if err != nil {
		s.fail(c, "Error fetching data sources", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dataSources": list})
}

func (s *Server) handleGetDataSource(c *gin.Context) {
	ds, err := s.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, "Error fetching data source", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dataSource": ds})
}

func (s *Server) handleDeleteDataSource(c *gin.Context) {
	if err := s.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, "Error deleting data source", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSample(c *gin.Context) {
	limit, err := intQuery(c, "limit")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	sample, err := s.svc.Sample(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.fail(c, "Error extracting sample data", err)
		return
	}
	c.JSON(http.StatusOK, sample)
}

func (s *Server) handleInsights(c *gin.Context) {
	limit, err := intQuery(c, "limit")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	opt := analysis.InsightOptions{Booleans: c.Query("booleans") == "true"}
	rep, err := s.svc.Insights(c.Request.Context(), c.Param("id"), limit, opt)
	if err != nil {
		s.fail(c, "Error generating insights", err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

type analysisRequest struct {
	Prompt       string `json:"prompt"`
	DataSourceID string `json:"dataSourceId"`
}

func (s *Server) handleCreateAnalysis(c *gin.Context) {
	var req analysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		badRequest(c, "Prompt is required")
		return
	}
	if req.DataSourceID == "" {
		badRequest(c, "dataSourceId is required")
		return
	}
	a, err := s.svc.Analyze(c.Request.Context(), req.DataSourceID, req.Prompt)
	if err != nil {
		s.fail(c, "Error performing analysis", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"analysis": a})
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	ctx := c.Request.Context()
	if id := c.Query("id"); id != "" {
		a, err := s.svc.Analysis(ctx, id)
		if err != nil {
			s.fail(c, "Error fetching analysis", err)
			return
		}
		c.Header("Cache-Control", "max-age=60, stale-while-revalidate=600")
		c.JSON(http.StatusOK, gin.H{"analysis": a})
		return
	}
	list, err := s.svc.Analyses(ctx, c.Query("dataSourceId"), datasource.DefaultAnalysesLimit)
	if err != nil {
		s.fail(c, "Error fetching analysis", err)
		return
	}
	c.Header("Cache-Control", "max-age=30, stale-while-revalidate=300")
	c.JSON(http.StatusOK, gin.H{"analyses": list})
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

func (s *Server) handleFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Feedback) == "" {
		badRequest(c, "Feedback is required")
		return
	}
	a, err := s.svc.Feedback(c.Request.Context(), c.Param("id"), req.Feedback)
	if err != nil {
		s.fail(c, "Error saving feedback", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Feedback saved successfully", "analysis": a})
}

type reportRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Content     json.RawMessage `json:"content"`
	IsPublic    bool            `json:"isPublic"`
}

func (s *Server) handleCreateReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		badRequest(c, "Report name is required")
		return
	}
	r, err := s.svc.CreateReport(c.Request.Context(), datasource.ReportInput{
		Name:        req.Name,
		Description: req.Description,
		Content:     req.Content,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		s.fail(c, "Error creating report", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Report created successfully", "report": r})
}

func (s *Server) handleListReports(c *gin.Context) {
	list, err := s.svc.Reports(c.Request.Context())
	if err != nil {
		s.fail(c, "Error fetching reports", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": list})
}
