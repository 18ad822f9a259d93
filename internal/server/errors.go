package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/insighthub-cli/internal/datasource"
	"github.com/KaramelBytes/insighthub-cli/internal/storage"
)

// Error codes carried in the "code" field of error bodies.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeNotFound        = "NOT_FOUND"
	CodeUnsupportedType = "UNSUPPORTED_TYPE"
	CodeTooLarge        = "PAYLOAD_TOO_LARGE"
	CodeServerError     = "SERVER_ERROR"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Error   string `json:"error,omitempty"`
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Message: msg, Code: CodeBadRequest})
}

// fail maps service errors onto status codes. msg is the user-facing
// message used for unexpected failures, e.g. "Error fetching analysis".
func (s *Server) fail(c *gin.Context, msg string, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, datasource.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Message: "Data source not found", Code: CodeNotFound})
	case errors.Is(err, datasource.ErrAnalysisNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Message: "Analysis not found", Code: CodeNotFound})
	case errors.Is(err, storage.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Message: "Data file not found", Code: CodeNotFound})
	case errors.Is(err, datasource.ErrUnsupportedType):
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, errorBody{Message: "Only CSV data sources are supported", Code: CodeUnsupportedType, Error: err.Error()})
	case errors.Is(err, datasource.ErrEmptyContent),
		errors.Is(err, datasource.ErrEmptyPrompt),
		errors.Is(err, datasource.ErrEmptyFeedback),
		errors.Is(err, datasource.ErrReportName),
		errors.Is(err, datasource.ErrInvalidContent),
		errors.Is(err, datasource.ErrNoFile),
		errors.Is(err, storage.ErrInvalidName):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Message: err.Error(), Code: CodeBadRequest})
	case errors.As(err, &tooLarge):
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorBody{Message: "Request body too large", Code: CodeTooLarge})
	default:
		s.log.Error(msg, err, "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Message: msg, Code: CodeServerError, Error: err.Error()})
	}
}
