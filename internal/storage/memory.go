// internal/storage/memory.go
// Package storage provides implementations of the Store interface
// for both in-memory and PostgreSQL storage backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/awadmin/awadmin-api-go/internal/model"
)

// Standard errors returned by the storage layer
var (
	ErrNotFound         = errors.New("not found")         // Returned when a row is not found
	ErrConflict         = errors.New("conflict")          // Returned when a unique value already exists
	ErrInvalidReference = errors.New("invalid reference") // Returned when a foreign key points nowhere
	ErrInvalidValue     = errors.New("invalid value")     // Returned when a value does not fit its column
)

// Store interface defines the storage operations required by the admin API.
// This interface is implemented by both in-memory and PostgreSQL storage backends.
type Store interface {
	// Resource operations over the registered tables
	List(ctx context.Context, res *model.Resource, q model.ListQuery) (*model.Page, error)       // One page ordered by the resource ordering
	Get(ctx context.Context, res *model.Resource, id any) (*model.Row, error)                     // One row by identifier
	Create(ctx context.Context, res *model.Resource, values map[string]any) (*model.Row, error)   // Insert and return the stored row
	Update(ctx context.Context, res *model.Resource, id any, values map[string]any) (*model.Row, error) // Change the given columns
	Delete(ctx context.Context, res *model.Resource, id any) error                                // Remove one row

	// User operations backing authentication
	CreateUser(ctx context.Context, user model.User) (*model.User, error) // Create a new user
	GetUser(ctx context.Context, username string) (*model.User, error)    // Get a user by username

	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error
	// Close releases backend resources
	Close()
}

// table holds the rows of one resource.
type table struct {
	rows   map[string]*model.Row // Map of formatted identifier to row
	nextID int64                 // Last assigned identifier for AutoID resources
}

// memory implements the Store interface using in-memory storage.
// It's intended for development and testing purposes.
type memory struct {
	mu         sync.RWMutex               // Protects concurrent access to maps
	tables     map[string]*table          // Map of resource name to its rows
	resources  map[string]*model.Resource // Resources that have stored rows, for reference checks
	users      map[string]*model.User     // Map of username to user
	nextUserID int64
	now        func() time.Time
}

// NewMemory creates a new in-memory storage implementation.
// Returns a Store interface that can be used for testing or development.
func NewMemory() Store {
	return &memory{
		tables:    make(map[string]*table),
		resources: make(map[string]*model.Resource),
		users:     make(map[string]*model.User),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func key(id any) string {
	return fmt.Sprint(id)
}

func (m *memory) table(name string) *table {
	t, ok := m.tables[name]
	if !ok {
		t = &table{rows: make(map[string]*model.Row)}
		m.tables[name] = t
	}
	return t
}

func (m *memory) List(ctx context.Context, res *model.Resource, q model.ListQuery) (*model.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []*model.Row
	if t, ok := m.tables[res.Name]; ok {
		rows = make([]*model.Row, 0, len(t.rows))
		for _, row := range t.rows {
			rows = append(rows, row)
		}
	}

	column, desc := res.OrderBy()
	sort.Slice(rows, func(i, j int) bool {
		a, _ := rows[i].Get(column)
		b, _ := rows[j].Get(column)
		c := compare(a, b)
		if c == 0 {
			ai, _ := rows[i].Get(res.IDField)
			bi, _ := rows[j].Get(res.IDField)
			return compare(ai, bi) < 0
		}
		if desc {
			return c > 0
		}
		return c < 0
	})

	page := &model.Page{Count: len(rows), Items: []*model.Row{}}
	start := min(max(q.Offset, 0), len(rows))
	end := len(rows)
	if q.Limit > 0 {
		end = min(start+q.Limit, len(rows))
	}
	for _, row := range rows[start:end] {
		page.Items = append(page.Items, copyRow(row))
	}
	return page, nil
}

func (m *memory) Get(ctx context.Context, res *model.Resource, id any) (*model.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[res.Name]
	if !ok {
		return nil, ErrNotFound
	}
	row, ok := t.rows[key(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRow(row), nil
}

func (m *memory) Create(ctx context.Context, res *model.Resource, values map[string]any) (*model.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prepared, err := prepareCreate(res, values, m.now())
	if err != nil {
		return nil, err
	}

	t := m.table(res.Name)
	row := model.NewRow()
	for _, f := range res.Fields {
		if f.Name == res.IDField && res.AutoID {
			row.Set(f.Name, t.nextID+1)
			continue
		}
		v, _ := prepared.Get(f.Name)
		row.Set(f.Name, v)
	}

	id, _ := row.Get(res.IDField)
	if _, exists := t.rows[key(id)]; exists {
		return nil, fmt.Errorf("%w: %s %v already exists", ErrConflict, res.IDField, id)
	}
	if err := m.checkConstraints(res, t, row, ""); err != nil {
		return nil, err
	}

	if res.AutoID {
		t.nextID++
	}
	t.rows[key(id)] = row
	m.resources[res.Name] = res
	return copyRow(row), nil
}

func (m *memory) Update(ctx context.Context, res *model.Resource, id any, values map[string]any) (*model.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[res.Name]
	if !ok {
		return nil, ErrNotFound
	}
	existing, ok := t.rows[key(id)]
	if !ok {
		return nil, ErrNotFound
	}

	changes, err := prepareUpdate(res, values, m.now())
	if err != nil {
		return nil, err
	}
	row := copyRow(existing)
	for pair := changes.Oldest(); pair != nil; pair = pair.Next() {
		row.Set(pair.Key, pair.Value)
	}
	if err := m.checkConstraints(res, t, row, key(id)); err != nil {
		return nil, err
	}

	t.rows[key(id)] = row
	return copyRow(row), nil
}

func (m *memory) Delete(ctx context.Context, res *model.Resource, id any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[res.Name]
	if !ok {
		return ErrNotFound
	}
	if _, ok := t.rows[key(id)]; !ok {
		return ErrNotFound
	}
	if err := m.checkReferenced(res, key(id)); err != nil {
		return err
	}
	delete(t.rows, key(id))
	return nil
}

// checkReferenced fails when a stored row still points at the row of res
// with key k.
func (m *memory) checkReferenced(res *model.Resource, k string) error {
	for name, other := range m.resources {
		for _, f := range other.Fields {
			if f.References != res.Name {
				continue
			}
			for _, row := range m.tables[name].rows {
				if v, _ := row.Get(f.Name); v != nil && key(v) == k {
					return fmt.Errorf("%w: %s %s is referenced by %s", ErrInvalidReference, res.IDField, k, name)
				}
			}
		}
	}
	return nil
}

// checkConstraints enforces unique columns and references for row. self is
// the key of the row being replaced, if any.
func (m *memory) checkConstraints(res *model.Resource, t *table, row *model.Row, self string) error {
	for _, f := range res.Fields {
		v, _ := row.Get(f.Name)
		if v == nil {
			continue
		}
		if f.Unique && f.Name != res.IDField {
			for k, other := range t.rows {
				if k == self {
					continue
				}
				if ov, _ := other.Get(f.Name); equalFold(v, ov) {
					return fmt.Errorf("%w: %s %v already exists", ErrConflict, f.Name, v)
				}
			}
		}
		if f.References != "" {
			ref, ok := m.tables[f.References]
			if !ok {
				return fmt.Errorf("%w: %s %v", ErrInvalidReference, f.Name, v)
			}
			if _, ok := ref.rows[key(v)]; !ok {
				return fmt.Errorf("%w: %s %v", ErrInvalidReference, f.Name, v)
			}
		}
	}
	return nil
}

func (m *memory) CreateUser(ctx context.Context, user model.User) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[user.Username]; exists {
		return nil, fmt.Errorf("%w: username %q already exists", ErrConflict, user.Username)
	}
	m.nextUserID++
	user.ID = m.nextUserID
	user.DateJoined = m.now()
	m.users[user.Username] = &user

	out := user
	return &out, nil
}

func (m *memory) GetUser(ctx context.Context, username string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	out := *user
	return &out, nil
}

func (m *memory) Ping(ctx context.Context) error {
	return nil
}

func (m *memory) Close() {}

// compare orders two column values of the same kind. nil sorts first.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch av := a.(type) {
	case int64:
		if bv, ok := b.(int64); ok {
			return cmpOrdered(av, bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	return strings.Compare(key(a), key(b))
}

func cmpOrdered(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// equalFold reports whether two unique values collide. Strings compare
// case-insensitively.
func equalFold(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.EqualFold(as, bs)
	}
	return a == b
}
