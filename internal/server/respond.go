package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	errordefs "github.com/awadmin/awadmin-api-go/internal/errors"
	"github.com/awadmin/awadmin-api-go/internal/event"
	"github.com/awadmin/awadmin-api-go/internal/hateoas"
	"github.com/awadmin/awadmin-api-go/internal/model"
	"github.com/awadmin/awadmin-api-go/internal/schema"
	"github.com/awadmin/awadmin-api-go/internal/storage"
)

// writeJSON writes body as the JSON response.
func (m *Mux) writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// writeSuccess writes a successful response
func (m *Mux) writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	m.writeJSON(w, statusCode, map[string]any{"data": data})
}

// writeShaped runs p through the response shaper and writes the result.
func (m *Mux) writeShaped(w http.ResponseWriter, r *http.Request, statusCode int, p hateoas.Payload, res *model.Resource) {
	req := hateoas.NewRequest(m.requestURL(r), m.absolute(r, "/api/"+res.Name), res.IDField)
	req.PageSize = min(req.PageSize, m.maxPageSize)
	m.writeJSON(w, statusCode, m.shaper.Shape(statusCode, p, req))
}

// writeError writes an error response following the API error taxonomy
func (m *Mux) writeError(w http.ResponseWriter, statusCode int, code, message, correlationID string, details any) {
	body := map[string]any{
		"code":          code,
		"message":       message,
		"correlationId": correlationID,
	}
	if details != nil {
		body["details"] = details
	}
	m.writeJSON(w, statusCode, map[string]any{"error": body})
}

// writeErrorDef writes an error response using the error definitions package
func (m *Mux) writeErrorDef(w http.ResponseWriter, err *errordefs.Error) {
	m.writeError(w, err.HTTPStatus, string(err.Code), err.Message, err.CorrelationID, err.Details)
}

// fail writes e, hands it to the request log and records it in the error
// log resource.
func (m *Mux) fail(w http.ResponseWriter, r *http.Request, e *errordefs.Error) {
	e.CorrelationID = correlationID(r.Context())
	if rec, ok := w.(*statusRecorder); ok {
		rec.err = e
	}
	m.writeErrorDef(w, e)
	m.recordError(r, e)
}

// recordError stores e as a row of the api-errors resource. Failures are
// logged and otherwise ignored.
func (m *Mux) recordError(r *http.Request, e *errordefs.Error) {
	res, ok := m.reg.Lookup(model.APIErrorsResource)
	if !ok {
		return
	}
	ctx := context.WithoutCancel(r.Context())

	values := map[string]any{
		"code":       string(e.Code),
		"detail":     e.Message,
		"error_type": e.Kind(),
		"path":       truncate(r.URL.Path, 255),
		"method":     r.Method,
	}
	if problems, ok := e.Details.([]schema.Problem); ok && len(problems) > 0 {
		values["attr"] = truncate(problems[0].Field, 100)
	}
	if user := username(ctx); user != "" {
		values["user"] = user
	}
	if _, err := m.store.Create(ctx, res, values); err != nil {
		slog.LogAttrs(ctx, slog.LevelWarn, "failed to record API error",
			slog.String("code", string(e.Code)),
			slog.String("correlation_id", e.CorrelationID),
			slog.String("error", err.Error()),
		)
	}
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}

// storageError maps a storage failure to an API error.
func (m *Mux) storageError(ctx context.Context, res *model.Resource, err error) *errordefs.Error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return errordefs.New(errordefs.API_NOT_FOUND, fmt.Sprintf("No %s matches the given query.", res.Model), "")
	case errors.Is(err, storage.ErrConflict):
		return errordefs.New(errordefs.API_CONFLICT, err.Error(), "")
	case errors.Is(err, storage.ErrInvalidReference):
		return errordefs.New(errordefs.API_REFERENCE, err.Error(), "")
	case errors.Is(err, storage.ErrInvalidValue):
		return errordefs.New(errordefs.API_VALIDATION, err.Error(), "")
	}
	slog.LogAttrs(ctx, slog.LevelError, "storage operation failed",
		slog.String("resource", res.Name),
		slog.String("error", err.Error()),
	)
	return errordefs.New(errordefs.API_INTERNAL, "internal server error", "")
}

// decodeObject reads a JSON object from the request body. Numbers are kept
// as json.Number.
func decodeObject(r *http.Request, w http.ResponseWriter) (map[string]any, *errordefs.Error) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || (mt != "application/json" && !strings.HasSuffix(mt, "+json")) {
			return nil, errordefs.New(errordefs.API_UNSUPPORTED_MEDIA, fmt.Sprintf("Unsupported media type %q in request.", ct), "")
		}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errordefs.New(errordefs.API_BAD_REQUEST, "request body is empty", "")
		}
		return nil, errordefs.New(errordefs.API_BAD_REQUEST, "invalid JSON", "")
	}
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, errordefs.New(errordefs.API_BAD_REQUEST, "request body must be a JSON object", "")
	}
	return obj, nil
}

// decodeInto reads a JSON request body into dst.
func decodeInto(r *http.Request, w http.ResponseWriter, dst any) *errordefs.Error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(dst); err != nil {
		return errordefs.New(errordefs.API_BAD_REQUEST, "invalid JSON", "")
	}
	return nil
}

// requestURL returns the absolute URL of r. The public base URL, when
// configured, replaces scheme and host and prefixes the path; otherwise
// X-Forwarded-Proto and X-Forwarded-Host are honoured.
func (m *Mux) requestURL(r *http.Request) *url.URL {
	u := &url.URL{Path: r.URL.Path, RawPath: r.URL.RawPath, RawQuery: r.URL.RawQuery}
	if m.baseURL != nil {
		prefix := strings.TrimRight(m.baseURL.Path, "/")
		u.Scheme, u.Host = m.baseURL.Scheme, m.baseURL.Host
		u.Path = prefix + u.Path
		if u.RawPath != "" {
			u.RawPath = prefix + u.RawPath
		}
		return u
	}

	u.Scheme = "http"
	if r.TLS != nil {
		u.Scheme = "https"
	}
	if proto := forwarded(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		u.Scheme = proto
	}
	u.Host = r.Host
	if host := forwarded(r.Header.Get("X-Forwarded-Host")); host != "" {
		u.Host = host
	}
	return u
}

// absolute returns the absolute URL of path on the origin r was sent to.
func (m *Mux) absolute(r *http.Request, path string) string {
	u := m.requestURL(r)
	if m.baseURL != nil {
		path = strings.TrimRight(m.baseURL.Path, "/") + path
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: path}).String()
}

// forwarded returns the first value of a comma separated proxy header.
func forwarded(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}

// logEvent logs a resource action with the caller and request line.
func (m *Mux) logEvent(ctx context.Context, level slog.Level, msg string, r *http.Request, attrs ...slog.Attr) {
	user := username(ctx)
	if user == "" {
		user = "anonymous"
	}
	base := []slog.Attr{
		slog.String("user", user),
		slog.String("method", r.Method),
		slog.String("path", r.URL.RequestURI()),
		slog.String("correlation_id", correlationID(ctx)),
	}
	slog.LogAttrs(ctx, level, msg, append(base, attrs...)...)
}

// publish sends ev and logs, rather than fails on, publishing errors.
func (m *Mux) publish(ctx context.Context, ev event.ResourceEvent) {
	start := time.Now()
	err := m.pub.PublishResourceEvent(ctx, ev)
	m.metrics.ObservePublish(ev.Subject(), err, time.Since(start))
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelWarn, "failed to publish resource event",
			slog.String("subject", ev.Subject()),
			slog.String("error", err.Error()),
		)
	}
}
