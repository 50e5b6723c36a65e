// Package freeplaytest provides an in-process fake of the Freeplay API for
// caller test suites: register templates, point a freeplay.Client at URL(),
// then inspect what was recorded.
package freeplaytest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"freeplay"
)

const defaultPageSize = 10

// RecordedCompletion captures one POSTed completion payload.
type RecordedCompletion struct {
	SessionID string
	Payload   map[string]any
}

// RecordedTrace captures one POSTed trace payload.
type RecordedTrace struct {
	SessionID string
	TraceID   string
	Payload   map[string]any
}

// NameQuery captures one by-name template lookup as the server saw it.
type NameQuery struct {
	Name        string
	Environment string
	Format      string
	FlavorName  string
}

// Server is a fake Freeplay API backed by an httptest listener. It checks
// the bearer token and project id on every route, serves registered
// templates, and records every completion and trace payload for assertions.
type Server struct {
	apiKey    string
	projectID string

	mu          sync.Mutex
	templates   []freeplay.PromptTemplate
	byID        map[string]freeplay.PromptTemplate
	byName      map[string]freeplay.PromptTemplate
	completions []RecordedCompletion
	traces      []RecordedTrace
	nameQueries []NameQuery

	httpServer *httptest.Server
}

// NewServer starts the fake service. Callers must Close it.
func NewServer(apiKey, projectID string) *Server {
	s := &Server{
		apiKey:    apiKey,
		projectID: projectID,
		byID:      make(map[string]freeplay.PromptTemplate),
		byName:    make(map[string]freeplay.PromptTemplate),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(s.requireAuth)

	e.GET("/projects/:project/prompt-templates", s.handleList)
	e.GET("/projects/:project/prompt-templates/id/:template/versions/:version", s.handleFetchByID)
	e.GET("/projects/:project/prompt-templates/name/:name", s.handleFetchByName)
	e.POST("/projects/:project/sessions/:session/completions", s.handleRecordCompletion)
	e.POST("/projects/:project/sessions/:session/traces/id/:trace", s.handleRecordTrace)

	s.httpServer = httptest.NewServer(e)
	return s
}

// URL returns the base URL to use as the client's API URL.
func (s *Server) URL() string {
	return s.httpServer.URL
}

// Close shuts the fake service down.
func (s *Server) Close() {
	s.httpServer.Close()
}

// AddTemplate registers a template for both id+version and name lookups.
func (s *Server) AddTemplate(t freeplay.PromptTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = append(s.templates, t)
	s.byID[t.TemplateID+"/"+t.VersionID] = t
	s.byName[t.Name] = t
}

// Completions returns every recorded completion, in arrival order.
func (s *Server) Completions() []RecordedCompletion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedCompletion, len(s.completions))
	copy(out, s.completions)
	return out
}

// Traces returns every recorded trace, in arrival order.
func (s *Server) Traces() []RecordedTrace {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedTrace, len(s.traces))
	copy(out, s.traces)
	return out
}

// NameQueries returns every by-name lookup the server received.
func (s *Server) NameQueries() []NameQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]NameQuery, len(s.nameQueries))
	copy(out, s.nameQueries)
	return out
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get("Authorization") != "Bearer "+s.apiKey {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "invalid api key"})
		}
		if c.Param("project") != s.projectID {
			return c.JSON(http.StatusNotFound, map[string]string{"message": "project not found"})
		}
		return next(c)
	}
}

func (s *Server) handleList(c echo.Context) error {
	page := intQueryParam(c, "page", 1)
	pageSize := intQueryParam(c, "page_size", defaultPageSize)

	s.mu.Lock()
	defer s.mu.Unlock()

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(s.templates) {
		start = len(s.templates)
	}
	if end > len(s.templates) {
		end = len(s.templates)
	}

	data := make([]freeplay.PromptTemplate, end-start)
	copy(data, s.templates[start:end])

	return c.JSON(http.StatusOK, freeplay.TemplateList{
		Data: data,
		Pagination: freeplay.Pagination{
			Page:     page,
			PageSize: pageSize,
			HasNext:  end < len(s.templates),
		},
	})
}

func (s *Server) handleFetchByID(c echo.Context) error {
	s.mu.Lock()
	t, ok := s.byID[c.Param("template")+"/"+c.Param("version")]
	s.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "prompt template not found"})
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleFetchByName(c echo.Context) error {
	// Echo leaves path params percent-encoded.
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "malformed template name"})
	}

	s.mu.Lock()
	s.nameQueries = append(s.nameQueries, NameQuery{
		Name:        name,
		Environment: c.QueryParam("environment"),
		Format:      c.QueryParam("format"),
		FlavorName:  c.QueryParam("flavor_name"),
	})
	t, ok := s.byName[name]
	s.mu.Unlock()

	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "prompt template not found"})
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleRecordCompletion(c echo.Context) error {
	var payload map[string]any
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid completion payload"})
	}

	s.mu.Lock()
	s.completions = append(s.completions, RecordedCompletion{
		SessionID: c.Param("session"),
		Payload:   payload,
	})
	s.mu.Unlock()

	return c.JSON(http.StatusCreated, map[string]string{"completion_id": uuid.NewString()})
}

func (s *Server) handleRecordTrace(c echo.Context) error {
	var payload map[string]any
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid trace payload"})
	}

	s.mu.Lock()
	s.traces = append(s.traces, RecordedTrace{
		SessionID: c.Param("session"),
		TraceID:   c.Param("trace"),
		Payload:   payload,
	})
	s.mu.Unlock()

	return c.JSON(http.StatusCreated, map[string]string{"trace_id": c.Param("trace")})
}

func intQueryParam(c echo.Context, name string, fallback int) int {
	value, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
