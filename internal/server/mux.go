// internal/server/mux.go
// Package server implements the HTTP handlers and routing for the admin API.
// It provides RESTful CRUD endpoints for every registered resource with
// bearer token authentication, payload validation, event publishing and
// HATEOAS response shaping.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/awadmin/awadmin-api-go/internal/auth"
	"github.com/awadmin/awadmin-api-go/internal/event"
	"github.com/awadmin/awadmin-api-go/internal/hateoas"
	"github.com/awadmin/awadmin-api-go/internal/metrics"
	"github.com/awadmin/awadmin-api-go/internal/model"
	"github.com/awadmin/awadmin-api-go/internal/openapi"
	"github.com/awadmin/awadmin-api-go/internal/schema"
	"github.com/awadmin/awadmin-api-go/internal/storage"
	"github.com/awadmin/awadmin-api-go/internal/token"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ContextKey is used for context values to avoid collisions
// when storing values in request context
type ContextKey string

const (
	// Context keys for storing request-scoped values
	ContextKeyClaims        ContextKey = "claims"        // Verified access token claims
	ContextKeyCorrelationID ContextKey = "correlationId" // Unique ID for request tracking

	// Default limits for list operations
	DefaultPageSize = 10  // Page size when the client does not ask for one
	MaxPageSize     = 100 // Upper bound for page_size

	tracerName  = "awadmin-api"
	maxBodySize = 1 << 20 // request body limit in bytes
)

// Options holds the dependencies of the mux. Store and Issuer are required;
// every other field has a working default.
type Options struct {
	Store     storage.Store
	Issuer    *token.Issuer
	Publisher event.Publisher
	Registry  *model.Registry
	Validator *schema.Validator
	Auth      *auth.Service
	Metrics   *metrics.Metrics
	Shaper    hateoas.Shaper
	Document  *openapi.Document

	DefaultPageSize    int
	MaxPageSize        int
	PublicBaseURL      string   // overrides scheme and host of generated links
	CORSAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
}

// Mux handles HTTP requests for the admin API.
type Mux struct {
	mux       *http.ServeMux
	store     storage.Store
	pub       event.Publisher
	reg       *model.Registry
	validator *schema.Validator
	auth      *auth.Service
	issuer    *token.Issuer
	metrics   *metrics.Metrics
	shaper    hateoas.Shaper

	defaultPageSize int
	maxPageSize     int
	baseURL         *url.URL // nil unless a public base URL is configured

	// Rendered documentation
	schemaJSON []byte
	schemaYAML []byte
	swaggerUI  []byte
	redoc      []byte

	// CORS configuration
	corsAllowedOrigins []string
}

// NewMux creates the HTTP handler with all admin API endpoints.
func NewMux(opts Options) (http.Handler, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("server: store is required")
	}
	if opts.Issuer == nil {
		return nil, fmt.Errorf("server: token issuer is required")
	}

	m := &Mux{
		mux:                http.NewServeMux(),
		store:              opts.Store,
		pub:                opts.Publisher,
		reg:                opts.Registry,
		validator:          opts.Validator,
		auth:               opts.Auth,
		issuer:             opts.Issuer,
		metrics:            opts.Metrics,
		shaper:             opts.Shaper,
		defaultPageSize:    opts.DefaultPageSize,
		maxPageSize:        opts.MaxPageSize,
		corsAllowedOrigins: opts.CORSAllowedOrigins,
	}
	if m.pub == nil {
		m.pub = event.NewNoop()
	}
	if m.reg == nil {
		m.reg = model.DefaultRegistry()
	}
	if m.validator == nil {
		v, err := schema.NewValidator(m.reg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize schema validator: %w", err)
		}
		m.validator = v
	}
	if m.auth == nil {
		m.auth = auth.NewService(m.store)
	}
	if m.metrics == nil {
		m.metrics = metrics.NewMetrics()
	}
	if m.shaper == nil {
		m.shaper = hateoas.Pipeline{Observe: m.metrics.ObserveShape}
	}
	if m.defaultPageSize <= 0 {
		m.defaultPageSize = DefaultPageSize
	}
	if m.maxPageSize < m.defaultPageSize {
		m.maxPageSize = max(MaxPageSize, m.defaultPageSize)
	}
	if opts.PublicBaseURL != "" {
		u, err := url.Parse(strings.TrimRight(opts.PublicBaseURL, "/"))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("server: invalid public base URL %q", opts.PublicBaseURL)
		}
		m.baseURL = u
	}

	doc := opts.Document
	if doc == nil {
		doc = openapi.Build(m.reg, openapi.Options{Title: "AW Admin API", Version: "1.0.0"})
	}
	if err := m.renderDocs(doc); err != nil {
		return nil, err
	}

	m.routes()
	return m.withCORS(m.mux), nil
}

func (m *Mux) renderDocs(doc *openapi.Document) error {
	var err error
	if m.schemaJSON, err = doc.JSON(); err != nil {
		return fmt.Errorf("failed to render OpenAPI JSON: %w", err)
	}
	if m.schemaYAML, err = doc.YAML(); err != nil {
		return fmt.Errorf("failed to render OpenAPI YAML: %w", err)
	}
	if m.swaggerUI, err = openapi.SwaggerUI(doc.Info.Title, "/api/schema.json"); err != nil {
		return fmt.Errorf("failed to render Swagger UI: %w", err)
	}
	if m.redoc, err = openapi.Redoc(doc.Info.Title, "/api/schema.json"); err != nil {
		return fmt.Errorf("failed to render ReDoc: %w", err)
	}
	return nil
}

// routes registers every endpoint. Collection and detail paths are served
// with and without a trailing slash.
func (m *Mux) routes() {
	// Register health endpoints
	m.mux.HandleFunc("GET /healthz", m.handleHealthz)
	m.mux.HandleFunc("GET /readyz", m.handleReadyz)
	m.mux.Handle("GET /metrics", promhttp.Handler())

	// Documentation
	m.handle("GET /api/schema.json", "/api/schema.json", m.serveBytes("application/json", m.schemaJSON), false)
	m.handle("GET /api/schema.yaml", "/api/schema.yaml", m.serveBytes("application/yaml", m.schemaYAML), false)
	for _, p := range slashed("/api/docs") {
		m.handle("GET "+p, "/api/docs", m.serveBytes("text/html; charset=utf-8", m.swaggerUI), false)
	}
	for _, p := range slashed("/api/docs/redoc") {
		m.handle("GET "+p, "/api/docs/redoc", m.serveBytes("text/html; charset=utf-8", m.redoc), false)
	}

	// Authentication
	for _, p := range slashed("/api/register") {
		m.handle("POST "+p, "/api/register/", m.handleRegister, false)
	}
	for _, p := range slashed("/api/login") {
		m.handle("POST "+p, "/api/login/", m.handleLogin, false)
	}
	for _, p := range slashed("/api/token") {
		m.handle("POST "+p, "/api/token/", m.handleObtainToken, false)
	}
	for _, p := range slashed("/api/token/refresh") {
		m.handle("POST "+p, "/api/token/refresh/", m.handleRefreshToken, false)
	}

	// Resources
	for _, res := range m.reg.All() {
		collection := "/api/" + res.Name
		for _, p := range slashed(collection) {
			m.handle("GET "+p, collection, m.resource(res, m.handleList), true)
			m.handle("POST "+p, collection, m.resource(res, m.handleCreate), true)
			m.handle("OPTIONS "+p, collection, m.resource(res, m.handleOptions(collectionAllow)), true)
			m.handle(p, collection, m.methodNotAllowed(collectionAllow), false)
		}
		detail := collection + "/{id}"
		for _, p := range slashed(detail) {
			m.handle("GET "+p, detail, m.resource(res, m.handleRetrieve), true)
			m.handle("PUT "+p, detail, m.resource(res, m.handleUpdate(schema.ModeReplace)), true)
			m.handle("PATCH "+p, detail, m.resource(res, m.handleUpdate(schema.ModePatch)), true)
			m.handle("DELETE "+p, detail, m.resource(res, m.handleDestroy), true)
			m.handle("OPTIONS "+p, detail, m.resource(res, m.handleOptions(detailAllow)), true)
			m.handle(p, detail, m.methodNotAllowed(detailAllow), false)
		}
	}
}

// slashed returns path and its trailing slash form.
func slashed(path string) []string {
	return []string{path, path + "/{$}"}
}

// handle registers h behind the request middleware. route is the metrics
// and log label of the endpoint.
func (m *Mux) handle(pattern, route string, h http.HandlerFunc, protected bool) {
	m.mux.Handle(pattern, m.withMiddleware(route, h, protected))
}

func (m *Mux) serveBytes(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

// handleHealthz handles liveness health check requests
func (m *Mux) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz handles readiness health check requests by pinging storage.
func (m *Mux) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := m.store.Ping(ctx); err != nil {
		slog.LogAttrs(ctx, slog.LevelWarn, "readiness check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
