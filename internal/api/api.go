package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/joescharf/issuetracker/internal/issues"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes bounds request bodies read by readFields.
const maxBodyBytes = 1 << 20

// Options tune the HTTP surface.
type Options struct {
	// StrictStatus maps error payloads to 4xx/5xx instead of a uniform 200.
	StrictStatus bool
	// UI serves everything outside /api. Nil disables the front page.
	UI http.Handler
}

// Server provides the REST API handlers.
type Server struct {
	svc  *issues.Service
	log  zerolog.Logger
	opts Options
}

// NewServer creates a new API server.
func NewServer(svc *issues.Service, log zerolog.Logger, opts Options) *Server {
	return &Server{svc: svc, log: log, opts: opts}
}

// Router returns the gin engine serving the API routes and the UI.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(s.requestLogger())
	r.Use(corsMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	g := r.Group("/api/issues")
	g.POST("/:project", s.createIssue)
	g.GET("/:project", s.listIssues)
	g.PUT("/:project", s.updateIssue)
	g.DELETE("/:project", s.deleteIssue)

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || s.opts.UI == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Status(http.StatusOK)
		s.opts.UI.ServeHTTP(c.Writer, c.Request)
	})

	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = ulid.Make().String()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		s.log.Info().
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("request_id", c.GetString(RequestIDHeader)).
			Msg("http")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// writeError renders a failed operation. id is echoed for update and delete.
func (s *Server) writeError(c *gin.Context, err error, id string) {
	c.JSON(s.errorStatus(err), issues.ErrorResult{Error: issues.Reason(err), ID: id})
}

func (s *Server) errorStatus(err error) int {
	if !s.opts.StrictStatus {
		return http.StatusOK
	}
	switch {
	case errors.Is(err, issues.ErrCreateFailed), errors.Is(err, issues.ErrReadFailed):
		return http.StatusInternalServerError
	case errors.Is(err, issues.ErrUpdateFailed), errors.Is(err, issues.ErrDeleteFailed):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// readFields decodes a JSON or form-encoded body into a field map. form
// reports whether the body was form-encoded. DELETE bodies are read by hand
// because net/http only parses form bodies for POST, PUT and PATCH.
func (s *Server) readFields(c *gin.Context) (fields map[string]any, form bool) {
	fields = map[string]any{}
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	header := c.GetHeader("Content-Type")
	ct, _, _ := mime.ParseMediaType(header)

	if ct == "multipart/form-data" {
		if err := c.Request.ParseMultipartForm(maxBodyBytes); err != nil {
			s.log.Debug().Err(err).Msg("decode multipart body")
			return fields, true
		}
		return valuesToFields(c.Request.MultipartForm.Value), true
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		s.log.Debug().Err(err).Msg("read body")
		return fields, ct != "application/json"
	}

	// Clients that omit Content-Type still get JSON handling for object bodies.
	if ct == "application/json" || (header == "" && looksLikeJSON(raw)) {
		return s.decodeJSON(raw), false
	}

	values, err := url.ParseQuery(string(raw))
	if err != nil {
		s.log.Debug().Err(err).Msg("decode form body")
		return fields, true
	}
	return valuesToFields(values), true
}

// decodeJSON keeps numbers as json.Number so large integers survive as typed.
func (s *Server) decodeJSON(raw []byte) map[string]any {
	fields := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return fields
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		s.log.Debug().Err(err).Msg("decode json body")
		return map[string]any{}
	}
	return fields
}

func looksLikeJSON(raw []byte) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func valuesToFields(values map[string][]string) map[string]any {
	fields := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields
}

// --- Issues ---

func (s *Server) createIssue(c *gin.Context) {
	fields, _ := s.readFields(c)
	issue, err := s.svc.Create(c.Request.Context(), c.Param("project"), issues.CreateInputFromFields(fields))
	if err != nil {
		s.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (s *Server) listIssues(c *gin.Context) {
	found, err := s.svc.List(c.Request.Context(), c.Param("project"), issues.FilterFromQuery(c.Request.URL.Query()))
	if err != nil {
		s.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, found)
}

func (s *Server) updateIssue(c *gin.Context) {
	fields, form := s.readFields(c)
	id := issues.IDFromFields(fields)
	res, err := s.svc.Update(c.Request.Context(), c.Param("project"), id, issues.PatchFromFields(fields, form))
	if err != nil {
		s.writeError(c, err, id)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) deleteIssue(c *gin.Context) {
	fields, _ := s.readFields(c)
	id := issues.IDFromFields(fields)
	res, err := s.svc.Delete(c.Request.Context(), c.Param("project"), id)
	if err != nil {
		s.writeError(c, err, id)
		return
	}
	c.JSON(http.StatusOK, res)
}
