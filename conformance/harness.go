// Package conformance provides a test harness that checks a running admin
// API against the behaviour its clients rely on: authentication, CRUD on
// every registered resource, pagination envelopes and hypermedia links.
package conformance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/awadmin/awadmin-api-go/internal/auth"
	"github.com/awadmin/awadmin-api-go/internal/event"
	"github.com/awadmin/awadmin-api-go/internal/model"
	"github.com/awadmin/awadmin-api-go/internal/server"
	"github.com/awadmin/awadmin-api-go/internal/storage"
	"github.com/awadmin/awadmin-api-go/internal/token"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminUsername = "conformance-admin"
	adminPassword = "conformance-password"
)

// Harness provides a test harness for admin API conformance testing.
type Harness struct {
	server   *httptest.Server
	store    storage.Store
	pub      event.Publisher
	recorder *event.Recorder // nil when events go to NATS
	access   string          // staff access token
}

// Config holds configuration for the conformance test harness.
type Config struct {
	// DatabaseDSN selects PostgreSQL storage; empty means in-memory
	DatabaseDSN string

	// NATSURL selects the JetStream publisher; empty means events are
	// recorded in process
	NATSURL string

	// JWTIssuer is the issuer of the tokens the harness obtains
	JWTIssuer string
}

// NewHarness creates a new conformance test harness.
func NewHarness(cfg Config) (*Harness, error) {
	h := &Harness{}

	// Initialize storage
	if cfg.DatabaseDSN != "" {
		store, err := storage.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to test database: %w", err)
		}
		h.store = store
	} else {
		h.store = storage.NewMemory()
	}

	// Initialize event publisher
	if cfg.NATSURL != "" {
		h.pub = event.NewPublisher(cfg.NATSURL)
	} else {
		h.recorder = event.NewRecorder()
		h.pub = h.recorder
	}

	issuer, err := token.NewIssuer("conformance-secret", cfg.JWTIssuer, 5*time.Minute, time.Hour)
	if err != nil {
		return nil, err
	}
	svc := auth.NewService(h.store).WithCost(bcrypt.MinCost)
	if _, err := svc.EnsureSuperuser(context.Background(), adminUsername, adminPassword); err != nil {
		return nil, fmt.Errorf("failed to create conformance superuser: %w", err)
	}

	mux, err := server.NewMux(server.Options{
		Store:     h.store,
		Issuer:    issuer,
		Publisher: h.pub,
		Auth:      svc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mux: %w", err)
	}
	h.server = httptest.NewServer(mux)
	return h, nil
}

// URL returns the base URL of the test server.
func (h *Harness) URL() string {
	return h.server.URL
}

// Close shuts down the test server and cleans up resources.
func (h *Harness) Close() {
	h.server.Close()
	h.pub.Close()
	h.store.Close()
}

// RunConformanceTests runs all conformance tests against the admin API.
func (h *Harness) RunConformanceTests(t *testing.T) {
	t.Run("HealthEndpoints", h.testHealthEndpoints)
	t.Run("Authentication", h.testAuthentication)
	t.Run("ResourceOperations", h.testResourceOperations)
	t.Run("Pagination", h.testPagination)
	t.Run("Documentation", h.testDocumentation)
}

// RunAcceptanceTests checks every registered resource and the event stream.
func (h *Harness) RunAcceptanceTests(t *testing.T) {
	t.Run("ResourceCoverage", h.testResourceCoverage)
	t.Run("Eventing", h.testEventing)
}

// response is a decoded HTTP response.
type response struct {
	status int
	header http.Header
	body   map[string]any
}

// call sends a request with the staff token unless bearer is "-".
func (h *Harness) call(t *testing.T, method, path, bearer string, body any) response {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.URL()+path, rd)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch bearer {
	case "-":
	case "":
		req.Header.Set("Authorization", "Bearer "+h.staffToken(t))
	default:
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, header: resp.Header}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out.body); err != nil {
			t.Fatalf("%s %s returned invalid JSON: %v", method, path, err)
		}
	}
	return out
}

// staffToken obtains, once, an access token for the conformance superuser.
func (h *Harness) staffToken(t *testing.T) string {
	t.Helper()
	if h.access != "" {
		return h.access
	}
	resp := h.call(t, "POST", "/api/token/", "-", map[string]string{
		"username": adminUsername,
		"password": adminPassword,
	})
	if resp.status != http.StatusOK {
		t.Fatalf("POST /api/token/ status = %d", resp.status)
	}
	h.access, _ = resp.body["access"].(string)
	return h.access
}

// testHealthEndpoints tests the health check endpoints.
func (h *Harness) testHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/healthz", "/readyz"} {
		resp := h.call(t, "GET", path, "-", nil)
		if resp.status != http.StatusOK {
			t.Errorf("expected status 200 for %s, got %d", path, resp.status)
		}
	}
}

// testAuthentication checks that resources require a bearer token and that
// the token endpoints hand one out.
func (h *Harness) testAuthentication(t *testing.T) {
	resp := h.call(t, "GET", "/api/address-types/", "-", nil)
	if resp.status != http.StatusUnauthorized {
		t.Errorf("anonymous list status = %d, want 401", resp.status)
	}

	resp = h.call(t, "POST", "/api/login/", "-", map[string]string{
		"username": adminUsername,
		"password": adminPassword,
	})
	if resp.status != http.StatusOK || resp.body["token"] == nil {
		t.Fatalf("login status = %d body = %v", resp.status, resp.body)
	}

	resp = h.call(t, "POST", "/api/login/", "-", map[string]string{
		"username": adminUsername,
		"password": "wrong",
	})
	if resp.status != http.StatusUnauthorized {
		t.Errorf("login with wrong password status = %d, want 401", resp.status)
	}
}

// testResourceOperations runs create, retrieve, update, patch and delete on
// the address types resource.
func (h *Harness) testResourceOperations(t *testing.T) {
	resp := h.call(t, "POST", "/api/address-types/", "", map[string]any{"name": "Conformance Home"})
	if resp.status != http.StatusCreated {
		t.Fatalf("create status = %d body = %v", resp.status, resp.body)
	}
	location := resp.header.Get("Location")
	u, err := url.Parse(location)
	if err != nil || u.Path == "" {
		t.Fatalf("create returned Location %q", location)
	}
	path := u.Path

	resp = h.call(t, "GET", path, "", nil)
	if resp.status != http.StatusOK {
		t.Fatalf("retrieve status = %d", resp.status)
	}
	data, _ := resp.body["data"].(map[string]any)
	self := linkHref(data["links"], "self")
	if self != location {
		t.Errorf("self link = %q, want %q", self, location)
	}

	resp = h.call(t, "PUT", path, "", map[string]any{"name": "Conformance Billing"})
	if resp.status != http.StatusOK {
		t.Errorf("update status = %d", resp.status)
	}
	resp = h.call(t, "PATCH", path, "", map[string]any{"name": "Conformance Shipping"})
	if resp.status != http.StatusOK {
		t.Errorf("partial update status = %d", resp.status)
	}
	data, _ = resp.body["data"].(map[string]any)
	if data["name"] != "Conformance Shipping" {
		t.Errorf("partial update name = %v", data["name"])
	}

	resp = h.call(t, "DELETE", path, "", nil)
	if resp.status != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.status)
	}
	resp = h.call(t, "GET", path, "", nil)
	if resp.status != http.StatusNotFound {
		t.Errorf("retrieve after delete status = %d, want 404", resp.status)
	}
}

// testPagination checks the list envelope of the sales reasons resource.
func (h *Harness) testPagination(t *testing.T) {
	for i := 1; i <= 5; i++ {
		resp := h.call(t, "POST", "/api/sales-reasons/", "", map[string]any{
			"name":        fmt.Sprintf("Conformance reason %d", i),
			"reason_type": "Other",
		})
		if resp.status != http.StatusCreated {
			t.Fatalf("create sales reason status = %d body = %v", resp.status, resp.body)
		}
	}

	resp := h.call(t, "GET", "/api/sales-reasons/?page_size=2", "", nil)
	if resp.status != http.StatusOK {
		t.Fatalf("list status = %d", resp.status)
	}
	for _, key := range []string{"count", "next", "previous", "links", "results"} {
		if _, ok := resp.body[key]; !ok {
			t.Errorf("list envelope has no %q key", key)
		}
	}
	if results, _ := resp.body["results"].([]any); len(results) != 2 {
		t.Errorf("page holds %d results, want 2", len(results))
	}
	for _, rel := range []string{"self", "first", "last", "next"} {
		if linkHref(resp.body["links"], rel) == "" {
			t.Errorf("list has no %q link", rel)
		}
	}

	next, _ := resp.body["next"].(string)
	u, err := url.Parse(next)
	if err != nil {
		t.Fatalf("next = %q: %v", next, err)
	}
	resp = h.call(t, "GET", u.RequestURI(), "", nil)
	if resp.status != http.StatusOK || resp.body["previous"] == nil {
		t.Errorf("second page status = %d previous = %v", resp.status, resp.body["previous"])
	}

	resp = h.call(t, "GET", "/api/sales-reasons/?page=999", "", nil)
	if resp.status != http.StatusNotFound {
		t.Errorf("out of range page status = %d, want 404", resp.status)
	}
}

// testDocumentation checks the OpenAPI endpoints.
func (h *Harness) testDocumentation(t *testing.T) {
	resp := h.call(t, "GET", "/api/schema.json", "-", nil)
	if resp.status != http.StatusOK {
		t.Fatalf("schema status = %d", resp.status)
	}
	paths, _ := resp.body["paths"].(map[string]any)
	if _, ok := paths["/api/address-types/{id}"]; !ok {
		t.Errorf("schema does not describe /api/address-types/{id}")
	}
	for _, path := range []string{"/api/docs/", "/api/docs/redoc/"} {
		if resp := h.call(t, "GET", path, "-", nil); resp.status != http.StatusOK {
			t.Errorf("GET %s status = %d", path, resp.status)
		}
	}
}

// testResourceCoverage checks that every registered resource answers list
// and OPTIONS requests with the documented shapes.
func (h *Harness) testResourceCoverage(t *testing.T) {
	for _, res := range model.DefaultRegistry().All() {
		t.Run(res.Name, func(t *testing.T) {
			base := "/api/" + res.Name + "/"

			resp := h.call(t, "GET", base, "", nil)
			if resp.status != http.StatusOK {
				t.Fatalf("list status = %d", resp.status)
			}
			if _, ok := resp.body["count"]; !ok {
				t.Errorf("list envelope has no count")
			}

			resp = h.call(t, "OPTIONS", base, "", nil)
			if resp.status != http.StatusOK {
				t.Fatalf("OPTIONS status = %d", resp.status)
			}
			data, _ := resp.body["data"].(map[string]any)
			if data["identifier"] != res.IDField {
				t.Errorf("OPTIONS identifier = %v, want %s", data["identifier"], res.IDField)
			}

			resp = h.call(t, "GET", base+"does-not-exist", "", nil)
			if resp.status != http.StatusNotFound {
				t.Errorf("missing row status = %d, want 404", resp.status)
			}
		})
	}
}

// testEventing checks that changes reach the publisher. It only runs against
// the in-process recorder.
func (h *Harness) testEventing(t *testing.T) {
	if h.recorder == nil {
		t.Skip("events are published to NATS")
	}
	before := len(h.recorder.Envelopes())

	resp := h.call(t, "POST", "/api/currencies/", "", map[string]any{"currency_code": "CNF", "name": "Conformance"})
	if resp.status != http.StatusCreated {
		t.Fatalf("create currency status = %d body = %v", resp.status, resp.body)
	}
	h.call(t, "DELETE", "/api/currencies/CNF/", "", nil)

	envs := h.recorder.Envelopes()[before:]
	if len(envs) != 2 {
		t.Fatalf("recorded %d events, want 2", len(envs))
	}
	if envs[0].Type != "admin.currencies.created" || envs[1].Type != "admin.currencies.deleted" {
		t.Errorf("event types = %s, %s", envs[0].Type, envs[1].Type)
	}
	if envs[0].Actor != adminUsername {
		t.Errorf("event actor = %q, want %q", envs[0].Actor, adminUsername)
	}
}

// linkHref returns the href of the link with relation rel.
func linkHref(links any, rel string) string {
	list, _ := links.([]any)
	for _, l := range list {
		link, _ := l.(map[string]any)
		if link["rel"] == rel {
			href, _ := link["href"].(string)
			return href
		}
	}
	return ""
}
