// internal/storage/instrumented.go
package storage

import (
	"context"
	"time"

	"github.com/awadmin/awadmin-api-go/internal/metrics"
	"github.com/awadmin/awadmin-api-go/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// instrumented records a span and the storage metrics around every call of
// the wrapped Store.
type instrumented struct {
	next    Store
	metrics *metrics.Metrics
}

// Instrument wraps s with tracing and Prometheus metrics.
func Instrument(s Store, m *metrics.Metrics) Store {
	return &instrumented{next: s, metrics: m}
}

func (i *instrumented) start(ctx context.Context, operation, resource string) (context.Context, trace.Span, time.Time) {
	ctx, span := otel.Tracer("awadmin-storage").Start(ctx, "storage."+operation)
	span.SetAttributes(attribute.String("resource", resource))
	return ctx, span, time.Now()
}

func (i *instrumented) finish(span trace.Span, operation, resource string, start time.Time, err error) {
	if err != nil && err != ErrNotFound {
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	i.metrics.ObserveStorage(operation, resource, err, time.Since(start))
}

func (i *instrumented) List(ctx context.Context, res *model.Resource, q model.ListQuery) (*model.Page, error) {
	ctx, span, start := i.start(ctx, "list", res.Name)
	page, err := i.next.List(ctx, res, q)
	i.finish(span, "list", res.Name, start, err)
	return page, err
}

func (i *instrumented) Get(ctx context.Context, res *model.Resource, id any) (*model.Row, error) {
	ctx, span, start := i.start(ctx, "get", res.Name)
	row, err := i.next.Get(ctx, res, id)
	i.finish(span, "get", res.Name, start, err)
	return row, err
}

func (i *instrumented) Create(ctx context.Context, res *model.Resource, values map[string]any) (*model.Row, error) {
	ctx, span, start := i.start(ctx, "create", res.Name)
	row, err := i.next.Create(ctx, res, values)
	i.finish(span, "create", res.Name, start, err)
	return row, err
}

func (i *instrumented) Update(ctx context.Context, res *model.Resource, id any, values map[string]any) (*model.Row, error) {
	ctx, span, start := i.start(ctx, "update", res.Name)
	row, err := i.next.Update(ctx, res, id, values)
	i.finish(span, "update", res.Name, start, err)
	return row, err
}

func (i *instrumented) Delete(ctx context.Context, res *model.Resource, id any) error {
	ctx, span, start := i.start(ctx, "delete", res.Name)
	err := i.next.Delete(ctx, res, id)
	i.finish(span, "delete", res.Name, start, err)
	return err
}

func (i *instrumented) CreateUser(ctx context.Context, user model.User) (*model.User, error) {
	ctx, span, start := i.start(ctx, "create_user", "users")
	u, err := i.next.CreateUser(ctx, user)
	i.finish(span, "create_user", "users", start, err)
	return u, err
}

func (i *instrumented) GetUser(ctx context.Context, username string) (*model.User, error) {
	ctx, span, start := i.start(ctx, "get_user", "users")
	u, err := i.next.GetUser(ctx, username)
	i.finish(span, "get_user", "users", start, err)
	return u, err
}

func (i *instrumented) Ping(ctx context.Context) error {
	return i.next.Ping(ctx)
}

func (i *instrumented) Close() {
	i.next.Close()
}
