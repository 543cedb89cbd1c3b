// internal/server/mux_test.go
// Package server provides unit tests for the HTTP handlers and routing.
package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/awadmin/awadmin-api-go/internal/auth"
	"github.com/awadmin/awadmin-api-go/internal/event"
	"github.com/awadmin/awadmin-api-go/internal/model"
	"github.com/awadmin/awadmin-api-go/internal/storage"
	"github.com/awadmin/awadmin-api-go/internal/token"
	"golang.org/x/crypto/bcrypt"
)

// fixture is a mux over the in-memory store with tokens for a regular and
// a staff user.
type fixture struct {
	handler http.Handler
	store   storage.Store
	events  *event.Recorder
	issuer  *token.Issuer
	user    string // access token of a regular user
	staff   string // access token of a staff user
}

func newFixture(t *testing.T, tweak ...func(*Options)) *fixture {
	t.Helper()

	issuer, err := token.NewIssuer("test-secret", "awadmin-test", 5*time.Minute, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{store: storage.NewMemory(), events: event.NewRecorder(), issuer: issuer}

	opts := Options{
		Store:     f.store,
		Issuer:    issuer,
		Publisher: f.events,
		Auth:      auth.NewService(f.store).WithCost(bcrypt.MinCost),
	}
	for _, fn := range tweak {
		fn(&opts)
	}
	if f.handler, err = NewMux(opts); err != nil {
		t.Fatalf("NewMux() error = %v", err)
	}

	if f.user, err = issuer.IssueAccess(model.User{Username: "alice"}); err != nil {
		t.Fatal(err)
	}
	if f.staff, err = issuer.IssueAccess(model.User{Username: "admin", IsStaff: true}); err != nil {
		t.Fatal(err)
	}
	return f
}

// do serves one request. body, when not nil, is sent as JSON.
func (f *fixture) do(method, target, bearer string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rr.Body.String(), err)
	}
	return out
}

// errorCode returns error.code of an error response.
func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	e, _ := decode(t, rr)["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

// TestHealthzEndpoint tests the healthz endpoint.
func TestHealthzEndpoint(t *testing.T) {
	f := newFixture(t)

	rr := f.do("GET", "/healthz", "", nil)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), "ok")
	}
}

// TestReadyzEndpoint tests the readyz endpoint against the in-memory store.
func TestReadyzEndpoint(t *testing.T) {
	f := newFixture(t)

	rr := f.do("GET", "/readyz", "", nil)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), "ok")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do("GET", "/api/address-types", f.user, nil)

	rr := f.do("GET", "/metrics", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "awadmin_http_requests_total") {
		t.Errorf("metrics output does not contain awadmin_http_requests_total")
	}
}

func TestDocsEndpoints(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		path        string
		contentType string
		contains    string
	}{
		{"/api/schema.json", "application/json", `"openapi"`},
		{"/api/schema.yaml", "application/yaml", "openapi:"},
		{"/api/docs", "text/html; charset=utf-8", "swagger-ui"},
		{"/api/docs/", "text/html; charset=utf-8", "swagger-ui"},
		{"/api/docs/redoc", "text/html; charset=utf-8", "redoc"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := f.do("GET", tt.path, "", nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("GET %s status = %d", tt.path, rr.Code)
			}
			if got := rr.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", got, tt.contentType)
			}
			if !strings.Contains(rr.Body.String(), tt.contains) {
				t.Errorf("body does not contain %q", tt.contains)
			}
		})
	}
}

func TestCorrelationID(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest("GET", "/api/address-types", nil)
	req.Header.Set("X-Correlation-Id", "corr-123")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Correlation-Id"); got != "corr-123" {
		t.Errorf("X-Correlation-Id = %q, want corr-123", got)
	}
	e := decode(t, rr)["error"].(map[string]any)
	if e["correlationId"] != "corr-123" {
		t.Errorf("error correlationId = %v, want corr-123", e["correlationId"])
	}

	rr = f.do("GET", "/healthz", "", nil)
	if rr.Header().Get("X-Correlation-Id") == "" {
		t.Errorf("missing generated X-Correlation-Id")
	}
}

func TestCORS(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.CORSAllowedOrigins = []string{"https://admin.example.com"}
	})

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("OPTIONS", "/api/address-types", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", "POST")
		rr := httptest.NewRecorder()
		f.handler.ServeHTTP(rr, req)
		return rr
	}

	rr := preflight("https://admin.example.com")
	if rr.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Methods"), "PATCH") {
		t.Errorf("Access-Control-Allow-Methods = %q", rr.Header().Get("Access-Control-Allow-Methods"))
	}

	rr = preflight("https://evil.example.com")
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Access-Control-Allow-Origin = %q", got)
	}
}

func TestAuthentication(t *testing.T) {
	f := newFixture(t)

	expired, err := f.issuer.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }).
		IssueAccess(model.User{Username: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	pair, err := f.issuer.IssuePair(model.User{Username: "alice"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing", "", http.StatusUnauthorized, "API_AUTHN"},
		{"wrong scheme", "Basic YWxpY2U6cGFzcw==", http.StatusUnauthorized, "API_AUTHN"},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized, "API_TOKEN_INVALID"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "API_TOKEN_EXPIRED"},
		{"refresh as access", "Bearer " + pair.Refresh, http.StatusUnauthorized, "API_TOKEN_INVALID"},
		{"valid", "Bearer " + pair.Access, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/address-types", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			f.handler.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.status, rr.Body.String())
			}
			if tt.code != "" {
				if got := errorCode(t, rr); got != tt.code {
					t.Errorf("error code = %q, want %q", got, tt.code)
				}
			}
		})
	}
}

func TestAdminOnlyResource(t *testing.T) {
	f := newFixture(t)

	rr := f.do("GET", "/api/api-errors", f.user, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("regular user status = %d, want %d", rr.Code, http.StatusForbidden)
	}
	if got := errorCode(t, rr); got != "API_AUTHZ" {
		t.Errorf("error code = %q, want API_AUTHZ", got)
	}

	rr = f.do("GET", "/api/api-errors", f.staff, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("staff status = %d, want %d", rr.Code, http.StatusOK)
	}
	// the rejected request above was recorded
	if count := decode(t, rr)["count"]; count != float64(1) {
		t.Errorf("api-errors count = %v, want 1", count)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	rr := f.do("PUT", "/api/address-types", f.user, map[string]any{"name": "x"})
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
	if got := rr.Header().Get("Allow"); got != collectionAllow {
		t.Errorf("Allow = %q, want %q", got, collectionAllow)
	}
	if got := errorCode(t, rr); got != "API_METHOD_NOT_ALLOWED" {
		t.Errorf("error code = %q", got)
	}

	rr = f.do("POST", "/api/address-types/1", f.user, map[string]any{"name": "x"})
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("detail POST status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}

func TestNewMuxRequiresDependencies(t *testing.T) {
	if _, err := NewMux(Options{}); err == nil {
		t.Errorf("NewMux without store: want error")
	}
	if _, err := NewMux(Options{Store: storage.NewMemory()}); err == nil {
		t.Errorf("NewMux without issuer: want error")
	}
	issuer, _ := token.NewIssuer("s", "i", time.Minute, time.Hour)
	if _, err := NewMux(Options{Store: storage.NewMemory(), Issuer: issuer, PublicBaseURL: "not a url"}); err == nil {
		t.Errorf("NewMux with relative base URL: want error")
	}
}
