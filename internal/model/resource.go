// internal/model/resource.go
// Package model defines the resource descriptors of the admin API.
// Each descriptor maps one externally owned table to a REST collection:
// its URL name, identifier and the kind and constraints of every column.
package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Row is one record of a resource, keyed by column name in table order.
type Row = orderedmap.OrderedMap[string, any]

// NewRow returns an empty Row.
func NewRow() *Row {
	return orderedmap.New[string, any]()
}

// FieldKind is the value kind of a column.
type FieldKind int

const (
	KindInt FieldKind = iota
	KindString
	KindBool
	KindDecimal // fixed point, carried as a string
	KindUUID
	KindTime
)

func (k FieldKind) String() string {
	switch k {
	case KindInt:
		return "integer"
	case KindString:
		return "string"
	case KindBool:
		return "boolean"
	case KindDecimal:
		return "decimal"
	case KindUUID:
		return "uuid"
	case KindTime:
		return "date-time"
	}
	return "unknown"
}

// Field describes one column.
type Field struct {
	Name        string    // column and JSON name
	Kind        FieldKind // value kind
	ReadOnly    bool      // set by the service, never by clients
	Required    bool      // must be supplied on create and full update
	Unique      bool      // unique across the table
	Nullable    bool      // accepts null
	MaxLength   int       // maximum string length; 0 means unbounded
	References  string    // name of the referenced resource, if any
	Default     any       // value used on create when the field is omitted
	AutoUUID    bool      // random UUID assigned on create
	AutoNow     bool      // current time assigned on every write
	AutoNowAdd  bool      // current time assigned on create
	Description string
}

// Resource describes a REST collection backed by one table.
type Resource struct {
	Name        string // URL segment, e.g. "address-types"
	Model       string // singular display name, e.g. "AddressType"
	Table       string // table name
	IDField     string // identifier column
	AutoID      bool   // identifier assigned by the database
	Ordering    string // default ordering column; a leading "-" sorts descending
	Tag         string // documentation group
	Description string
	AdminOnly   bool // restricted to staff users
	Fields      []Field
}

// Field returns the named field.
func (r *Resource) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// IDKind returns the kind of the identifier column.
func (r *Resource) IDKind() FieldKind {
	f, _ := r.Field(r.IDField)
	return f.Kind
}

// Writable returns the fields clients may set.
func (r *Resource) Writable() []Field {
	var out []Field
	for _, f := range r.Fields {
		if !f.ReadOnly {
			out = append(out, f)
		}
	}
	return out
}

// Columns returns every column name in table order.
func (r *Resource) Columns() []string {
	out := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = f.Name
	}
	return out
}

// OrderBy returns the ordering column and direction.
func (r *Resource) OrderBy() (column string, desc bool) {
	if r.Ordering == "" {
		return r.IDField, false
	}
	if strings.HasPrefix(r.Ordering, "-") {
		return r.Ordering[1:], true
	}
	return r.Ordering, false
}

// ParseID converts an identifier taken from a URL into the identifier's kind.
func (r *Resource) ParseID(raw string) (any, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty %s", r.IDField)
	}
	switch r.IDKind() {
	case KindInt:
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", r.IDField, raw, err)
		}
		return id, nil
	case KindUUID:
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", r.IDField, raw, err)
		}
		return id.String(), nil
	}
	return raw, nil
}

// Registry is the ordered set of resources the API exposes.
type Registry struct {
	resources []*Resource
	byName    map[string]*Resource
}

// NewRegistry returns a registry holding rs in order. Duplicate names are
// rejected.
func NewRegistry(rs ...*Resource) (*Registry, error) {
	reg := &Registry{byName: make(map[string]*Resource, len(rs))}
	for _, r := range rs {
		if _, dup := reg.byName[r.Name]; dup {
			return nil, fmt.Errorf("duplicate resource %q", r.Name)
		}
		if _, ok := r.Field(r.IDField); !ok {
			return nil, fmt.Errorf("resource %q: identifier field %q not declared", r.Name, r.IDField)
		}
		reg.resources = append(reg.resources, r)
		reg.byName[r.Name] = r
	}
	return reg, nil
}

// Lookup returns the resource with the given URL name.
func (reg *Registry) Lookup(name string) (*Resource, bool) {
	r, ok := reg.byName[name]
	return r, ok
}

// All returns the resources in registration order.
func (reg *Registry) All() []*Resource {
	return reg.resources
}

// ListQuery selects one page of a resource.
type ListQuery struct {
	Offset int
	Limit  int
}

// Page is one page of rows plus the total row count.
type Page struct {
	Items []*Row
	Count int
}
