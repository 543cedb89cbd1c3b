// internal/hateoas/payload.go
// Package hateoas shapes successful API responses. It attaches hypermedia
// links to items, narrows items to sparse fieldsets and decorates paginated
// list envelopes with first/last/self/next/previous links.
//
// Everything in this package is pure and request scoped: callers pass the
// payload and a Request describing the current call, and get back a value
// ready for JSON encoding.
package hateoas

import (
	"encoding/json"
	"errors"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Item is a single resource representation. Field order is preserved on
// encoding.
type Item = orderedmap.OrderedMap[string, any]

// NewItem returns an empty Item.
func NewItem() *Item {
	return orderedmap.New[string, any]()
}

// ErrShapeMismatch is returned by DetectPayload when a body is neither a list
// envelope nor a single item.
var ErrShapeMismatch = errors.New("hateoas: payload is neither a list envelope nor a single item")

// Well-known envelope keys.
const (
	KeyCount    = "count"
	KeyNext     = "next"
	KeyPrevious = "previous"
	KeyResults  = "results"
	KeyData     = "data"
	KeyLinks    = "links"
)

// Payload is the tagged variant handed to the shaping pipeline. It is either
// a *ListEnvelope or a *SingleItem.
type Payload interface {
	isPayload()
}

// ListEnvelope is a paginated list body. Body holds every envelope key in its
// original order; the items live under ListKey.
type ListEnvelope struct {
	ListKey string
	Body    *orderedmap.OrderedMap[string, any]
}

// SingleItem wraps a detail representation.
type SingleItem struct {
	Item *Item
}

func (*ListEnvelope) isPayload() {}
func (*SingleItem) isPayload()   {}

// NewPage builds a page-number pagination envelope in the order
// count, next, previous, results. Empty cursors are encoded as null.
func NewPage(count int, next, previous string, items []*Item) *ListEnvelope {
	body := orderedmap.New[string, any]()
	body.Set(KeyCount, count)
	body.Set(KeyNext, nullable(next))
	body.Set(KeyPrevious, nullable(previous))
	if items == nil {
		items = []*Item{}
	}
	body.Set(KeyResults, items)
	return &ListEnvelope{ListKey: KeyResults, Body: body}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Items returns the items held under the list key.
func (e *ListEnvelope) Items() []*Item {
	v, _ := e.Body.Get(e.ListKey)
	items, _ := v.([]*Item)
	return items
}

// SetItems replaces the items held under the list key.
func (e *ListEnvelope) SetItems(items []*Item) {
	e.Body.Set(e.ListKey, items)
}

// Count returns the total record count carried by the envelope, if any.
func (e *ListEnvelope) Count() (int, bool) {
	v, ok := e.Body.Get(KeyCount)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func (e *ListEnvelope) cursor(key string) (string, bool) {
	v, ok := e.Body.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// Render returns the value a payload is encoded as when no shaping applies:
// the envelope mapping for lists and {"data": item} for single items.
func Render(p Payload) any {
	switch v := p.(type) {
	case *ListEnvelope:
		return v.Body
	case *SingleItem:
		out := orderedmap.New[string, any]()
		out.Set(KeyData, v.Item)
		return out
	}
	return nil
}

// DetectPayload classifies a generic body. The list key is the first of
// "results" or "data" holding a list, else the first key holding a non-empty
// list of mappings. A mapping carrying idField is a single item.
func DetectPayload(body *orderedmap.OrderedMap[string, any], idField string) (Payload, error) {
	if body == nil {
		return nil, ErrShapeMismatch
	}
	if key := detectListKey(body); key != "" {
		v, _ := body.Get(key)
		body.Set(key, toItems(v))
		return &ListEnvelope{ListKey: key, Body: body}, nil
	}
	if _, ok := body.Get(idField); ok {
		return &SingleItem{Item: body}, nil
	}
	return nil, ErrShapeMismatch
}

func detectListKey(body *orderedmap.OrderedMap[string, any]) string {
	for _, key := range []string{KeyResults, KeyData} {
		if v, ok := body.Get(key); ok && isList(v) {
			return key
		}
	}
	for pair := body.Oldest(); pair != nil; pair = pair.Next() {
		if listLen(pair.Value) > 0 && isMappingList(pair.Value) {
			return pair.Key
		}
	}
	return ""
}

func isList(v any) bool {
	switch v.(type) {
	case []*Item, []any, []map[string]any:
		return true
	}
	return false
}

func listLen(v any) int {
	switch l := v.(type) {
	case []*Item:
		return len(l)
	case []any:
		return len(l)
	case []map[string]any:
		return len(l)
	}
	return 0
}

func isMappingList(v any) bool {
	switch l := v.(type) {
	case []*Item, []map[string]any:
		return true
	case []any:
		for _, e := range l {
			switch e.(type) {
			case *Item, map[string]any:
			default:
				return false
			}
		}
		return true
	}
	return false
}

// toItems converts a detected list into []*Item. Elements that are not
// mappings are dropped.
func toItems(v any) []*Item {
	switch l := v.(type) {
	case []*Item:
		return l
	case []map[string]any:
		out := make([]*Item, 0, len(l))
		for _, m := range l {
			out = append(out, fromMap(m))
		}
		return out
	case []any:
		out := make([]*Item, 0, len(l))
		for _, e := range l {
			switch m := e.(type) {
			case *Item:
				out = append(out, m)
			case map[string]any:
				out = append(out, fromMap(m))
			}
		}
		return out
	}
	return []*Item{}
}

// fromMap copies a plain map into an Item with keys in sorted order, since
// Go maps carry no order of their own.
func fromMap(m map[string]any) *Item {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	item := NewItem()
	for _, k := range keys {
		item.Set(k, m[k])
	}
	return item
}
