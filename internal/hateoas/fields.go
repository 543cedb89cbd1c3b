// internal/hateoas/fields.go
package hateoas

import "strings"

// ParseFields splits a comma separated field list. Blank names are dropped;
// the result is never nil.
func ParseFields(raw string) []string {
	fields := []string{}
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// FilterItem returns a copy of item holding only the allowed keys, in their
// original order.
func FilterItem(item *Item, allowed []string) *Item {
	out := NewItem()
	if item == nil {
		return out
	}
	keep := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		keep[f] = struct{}{}
	}
	for pair := item.Oldest(); pair != nil; pair = pair.Next() {
		if _, ok := keep[pair.Key]; ok {
			out.Set(pair.Key, pair.Value)
		}
	}
	return out
}

// ApplySparseFields narrows the payload's items to the allowed keys. For a
// list only the elements under the list key change; count, next and the
// other envelope keys are left alone. The payload is updated in place and
// returned.
func ApplySparseFields(p Payload, allowed []string) Payload {
	switch v := p.(type) {
	case *ListEnvelope:
		items := v.Items()
		filtered := make([]*Item, len(items))
		for i, item := range items {
			filtered[i] = FilterItem(item, allowed)
		}
		v.SetItems(filtered)
	case *SingleItem:
		v.Item = FilterItem(v.Item, allowed)
	}
	return p
}
