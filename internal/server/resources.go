package server

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	errordefs "github.com/awadmin/awadmin-api-go/internal/errors"
	"github.com/awadmin/awadmin-api-go/internal/event"
	"github.com/awadmin/awadmin-api-go/internal/hateoas"
	"github.com/awadmin/awadmin-api-go/internal/model"
	"github.com/awadmin/awadmin-api-go/internal/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// errInvalidPage is returned by parsePage.
var errInvalidPage = errors.New("invalid page")

// pageSize returns the page size requested by raw, falling back to the
// default and capping at the maximum.
func (m *Mux) pageSize(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return m.defaultPageSize
	}
	return min(n, m.maxPageSize)
}

// parsePage returns the 1-based page number in raw. An empty value is page 1.
func parsePage(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errInvalidPage
	}
	return n, nil
}

// pageCursors returns the next and previous page URLs of a page of a list.
// The previous URL of page 2 drops the page parameter.
func pageCursors(self *url.URL, page, size, count int) (next, previous string) {
	with := func(p int) string {
		u := *self
		q := u.Query()
		if p == 1 {
			q.Del("page")
		} else {
			q.Set("page", strconv.Itoa(p))
		}
		u.RawQuery = q.Encode()
		return u.String()
	}
	if page*size < count {
		next = with(page + 1)
	}
	if page > 1 {
		previous = with(page - 1)
	}
	return next, previous
}

// handleList handles GET and HEAD on a collection.
func (m *Mux) handleList(w http.ResponseWriter, r *http.Request, res *model.Resource) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleList")
	defer span.End()
	span.SetAttributes(attribute.String("resource", res.Name))

	m.logEvent(ctx, slog.LevelInfo, res.Model+" list requested", r)

	q := r.URL.Query()
	size := m.pageSize(q.Get("page_size"))
	last := q.Get("page") == "last"
	page := 1
	if !last {
		var err error
		if page, err = parsePage(q.Get("page")); err != nil {
			span.SetStatus(codes.Error, "invalid page")
			m.fail(w, r, errordefs.New(errordefs.API_INVALID_PAGE, "Invalid page.", ""))
			return
		}
	}

	result, err := m.store.List(ctx, res, model.ListQuery{Offset: (page - 1) * size, Limit: size})
	if err == nil && last {
		// page=last resolves once the row count is known
		if page = hateoas.TotalPages(result.Count, size, len(result.Items)); page > 1 {
			result, err = m.store.List(ctx, res, model.ListQuery{Offset: (page - 1) * size, Limit: size})
		}
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.fail(w, r, m.storageError(ctx, res, err))
		return
	}
	if page > 1 && (page-1)*size >= result.Count {
		span.SetStatus(codes.Error, "invalid page")
		m.fail(w, r, errordefs.New(errordefs.API_INVALID_PAGE, "Invalid page.", ""))
		return
	}
	span.SetAttributes(attribute.Int("count", result.Count), attribute.Int("page", page))

	if r.Method == http.MethodHead {
		w.Header().Set("X-Total-Count", strconv.Itoa(result.Count))
		w.Header().Set("Allow", collectionAllow)
		w.WriteHeader(http.StatusOK)
		return
	}

	next, previous := pageCursors(m.requestURL(r), page, size, result.Count)
	env := hateoas.NewPage(result.Count, next, previous, result.Items)
	m.writeShaped(w, r, http.StatusOK, env, res)

	m.logEvent(ctx, slog.LevelInfo, res.Model+" list retrieved", r,
		slog.Int("count", len(result.Items)),
		slog.Int("status", http.StatusOK),
	)
}

// handleRetrieve handles GET on a detail path.
func (m *Mux) handleRetrieve(w http.ResponseWriter, r *http.Request, res *model.Resource) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleRetrieve")
	defer span.End()
	span.SetAttributes(attribute.String("resource", res.Name))

	id, ok := m.pathID(w, r, res)
	if !ok {
		return
	}
	row, err := m.store.Get(ctx, res, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.fail(w, r, m.storageError(ctx, res, err))
		return
	}

	m.logEvent(ctx, slog.LevelInfo, res.Model+" retrieved", r,
		slog.String("id", hateoas.FormatID(id)),
		slog.Int("status", http.StatusOK),
	)
	m.writeShaped(w, r, http.StatusOK, &hateoas.SingleItem{Item: row}, res)
}

// handleCreate handles POST on a collection. Client supplied read-only
// fields, including a database assigned identifier, are ignored.
func (m *Mux) handleCreate(w http.ResponseWriter, r *http.Request, res *model.Resource) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleCreate")
	defer span.End()
	defer r.Body.Close()
	span.SetAttributes(attribute.String("resource", res.Name))

	payload, ferr := decodeObject(r, w)
	if ferr != nil {
		span.SetStatus(codes.Error, ferr.Message)
		m.fail(w, r, ferr)
		return
	}
	m.logEvent(ctx, slog.LevelInfo, "Create "+res.Model+" request received", r,
		slog.Any("payload_keys", payloadKeys(payload)),
	)

	if ferr := m.validate(res, schema.ModeCreate, payload); ferr != nil {
		span.SetStatus(codes.Error, "validation failed")
		m.fail(w, r, ferr)
		return
	}

	row, err := m.store.Create(ctx, res, schema.Clean(res, payload))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.fail(w, r, m.storageError(ctx, res, err))
		return
	}
	id, _ := row.Get(res.IDField)
	span.SetAttributes(attribute.String("id", hateoas.FormatID(id)))

	m.publish(ctx, event.ResourceEvent{
		Resource:      res.Name,
		Action:        event.ActionCreated,
		ID:            id,
		CorrelationID: correlationID(ctx),
		Actor:         username(ctx),
		Payload:       row,
	})

	m.logEvent(ctx, slog.LevelInfo, res.Model+" created successfully", r,
		slog.String("id", hateoas.FormatID(id)),
		slog.Int("status", http.StatusCreated),
	)
	w.Header().Set("Location", hateoas.JoinURL(m.absolute(r, "/api/"+res.Name), hateoas.FormatID(id)))
	m.writeShaped(w, r, http.StatusCreated, &hateoas.SingleItem{Item: row}, res)
}

// handleUpdate returns the PUT (ModeReplace) or PATCH (ModePatch) handler.
// The identifier is immutable; a different identifier in the body is ignored.
func (m *Mux) handleUpdate(mode schema.Mode) resourceHandler {
	verb, done := "Update ", " updated successfully"
	if mode == schema.ModePatch {
		verb, done = "Partial update ", " partially updated successfully"
	}
	return func(w http.ResponseWriter, r *http.Request, res *model.Resource) {
		ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleUpdate")
		defer span.End()
		defer r.Body.Close()
		span.SetAttributes(attribute.String("resource", res.Name), attribute.String("mode", string(mode)))

		id, ok := m.pathID(w, r, res)
		if !ok {
			return
		}
		payload, ferr := decodeObject(r, w)
		if ferr != nil {
			span.SetStatus(codes.Error, ferr.Message)
			m.fail(w, r, ferr)
			return
		}
		m.logEvent(ctx, slog.LevelInfo, verb+res.Model+" request received", r,
			slog.String("id", hateoas.FormatID(id)),
			slog.Any("payload_keys", payloadKeys(payload)),
		)

		if ferr := m.validate(res, mode, payload); ferr != nil {
			span.SetStatus(codes.Error, "validation failed")
			m.fail(w, r, ferr)
			return
		}

		row, err := m.store.Update(ctx, res, id, schema.Clean(res, payload))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			m.fail(w, r, m.storageError(ctx, res, err))
			return
		}

		m.publish(ctx, event.ResourceEvent{
			Resource:      res.Name,
			Action:        event.ActionUpdated,
			ID:            id,
			CorrelationID: correlationID(ctx),
			Actor:         username(ctx),
			Payload:       row,
		})

		m.logEvent(ctx, slog.LevelInfo, res.Model+done, r,
			slog.String("id", hateoas.FormatID(id)),
			slog.Int("status", http.StatusOK),
		)
		m.writeShaped(w, r, http.StatusOK, &hateoas.SingleItem{Item: row}, res)
	}
}

// handleDestroy handles DELETE on a detail path.
func (m *Mux) handleDestroy(w http.ResponseWriter, r *http.Request, res *model.Resource) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleDestroy")
	defer span.End()
	span.SetAttributes(attribute.String("resource", res.Name))

	id, ok := m.pathID(w, r, res)
	if !ok {
		return
	}
	m.logEvent(ctx, slog.LevelWarn, "Delete "+res.Model+" request received", r,
		slog.String("id", hateoas.FormatID(id)),
	)

	if err := m.store.Delete(ctx, res, id); err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.fail(w, r, m.storageError(ctx, res, err))
		return
	}

	m.publish(ctx, event.ResourceEvent{
		Resource:      res.Name,
		Action:        event.ActionDeleted,
		ID:            id,
		CorrelationID: correlationID(ctx),
		Actor:         username(ctx),
	})

	m.logEvent(ctx, slog.LevelInfo, res.Model+" deleted successfully", r,
		slog.String("id", hateoas.FormatID(id)),
		slog.Int("status", http.StatusNoContent),
	)
	w.WriteHeader(http.StatusNoContent)
}

// fieldInfo describes a field in OPTIONS responses.
type fieldInfo struct {
	Type      string `json:"type"`
	Required  bool   `json:"required"`
	ReadOnly  bool   `json:"read_only"`
	Nullable  bool   `json:"nullable,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
	Label     string `json:"label,omitempty"`
}

// handleOptions returns resource metadata for OPTIONS requests.
func (m *Mux) handleOptions(allow string) resourceHandler {
	return func(w http.ResponseWriter, r *http.Request, res *model.Resource) {
		fields := make(map[string]fieldInfo, len(res.Fields))
		for _, f := range res.Fields {
			fields[f.Name] = fieldInfo{
				Type:      f.Kind.String(),
				Required:  f.Required,
				ReadOnly:  f.ReadOnly || (f.Name == res.IDField && res.AutoID),
				Nullable:  f.Nullable,
				MaxLength: f.MaxLength,
				Label:     f.Description,
			}
		}
		w.Header().Set("Allow", allow)
		m.writeSuccess(w, http.StatusOK, map[string]any{
			"name":            res.Model,
			"description":     res.Description,
			"renders":         []string{"application/json"},
			"parses":          []string{"application/json"},
			"allowed_methods": allowList(allow),
			"identifier":      res.IDField,
			"fields":          fields,
		})
	}
}

func allowList(allow string) []string {
	return strings.Split(allow, ", ")
}

// pathID parses the identifier of a detail path. A malformed identifier
// cannot match a row and yields 404.
func (m *Mux) pathID(w http.ResponseWriter, r *http.Request, res *model.Resource) (any, bool) {
	id, err := res.ParseID(r.PathValue("id"))
	if err != nil {
		m.fail(w, r, errordefs.New(errordefs.API_NOT_FOUND, "No "+res.Model+" matches the given query.", ""))
		return nil, false
	}
	return id, true
}

// validate checks payload against the schema of res in mode.
func (m *Mux) validate(res *model.Resource, mode schema.Mode, payload map[string]any) *errordefs.Error {
	start := time.Now()
	err := m.validator.Validate(res, mode, payload)
	m.metrics.ObserveValidation(res.Name, string(mode), err, time.Since(start))
	if err == nil {
		return nil
	}
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return errordefs.NewWithDetails(errordefs.API_VALIDATION, "payload validation failed", "", verr.Problems)
	}
	return errordefs.New(errordefs.API_INTERNAL, err.Error(), "")
}

func payloadKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
