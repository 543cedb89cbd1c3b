// internal/hateoas/links.go
package hateoas

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ErrIndexOutOfRange is returned by BuildItemLinks for an index outside the
// item slice.
var ErrIndexOutOfRange = errors.New("hateoas: item index out of range")

// Link relations.
const (
	RelSelf          = "self"
	RelList          = "list"
	RelCreate        = "create"
	RelUpdate        = "update"
	RelPartialUpdate = "partial_update"
	RelDestroy       = "destroy"
	RelPrevious      = "previous"
	RelNext          = "next"
	RelFirst         = "first"
	RelLast          = "last"
)

// Link is a hypermedia link descriptor.
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// BuildItemLinks returns the links for items[index]. baseURL is the absolute
// collection URL of the resource; detail URLs append the identifier as one
// path segment.
//
// An item without an identifier only gets list and create. previous and next
// point at the neighbouring items in the slice when those carry an
// identifier.
func BuildItemLinks(items []*Item, index int, idField, baseURL string) ([]Link, error) {
	if index < 0 || index >= len(items) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(items))
	}

	var links []Link
	if id, ok := identifier(items[index], idField); ok {
		detail := JoinURL(baseURL, id)
		links = append(links,
			Link{Href: detail, Rel: RelSelf, Method: http.MethodGet},
			Link{Href: baseURL, Rel: RelList, Method: http.MethodGet},
			Link{Href: baseURL, Rel: RelCreate, Method: http.MethodPost},
			Link{Href: detail, Rel: RelUpdate, Method: http.MethodPut},
			Link{Href: detail, Rel: RelPartialUpdate, Method: http.MethodPatch},
			Link{Href: detail, Rel: RelDestroy, Method: http.MethodDelete},
		)
	} else {
		links = append(links,
			Link{Href: baseURL, Rel: RelList, Method: http.MethodGet},
			Link{Href: baseURL, Rel: RelCreate, Method: http.MethodPost},
		)
	}

	if index > 0 {
		if id, ok := identifier(items[index-1], idField); ok {
			links = append(links, Link{Href: JoinURL(baseURL, id), Rel: RelPrevious, Method: http.MethodGet})
		}
	}
	if index < len(items)-1 {
		if id, ok := identifier(items[index+1], idField); ok {
			links = append(links, Link{Href: JoinURL(baseURL, id), Rel: RelNext, Method: http.MethodGet})
		}
	}
	return links, nil
}

// JoinURL appends segment to base as a single escaped path segment.
func JoinURL(base, segment string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(segment)
}

// identifier returns the string form of item[idField]. Absent, nil and empty
// string values count as no identifier; zero is a valid identifier.
func identifier(item *Item, idField string) (string, bool) {
	if item == nil {
		return "", false
	}
	v, ok := item.Get(idField)
	if !ok || v == nil {
		return "", false
	}
	s := FormatID(v)
	return s, s != ""
}

// FormatID renders an identifier value the way it appears in a URL.
func FormatID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case int:
		return strconv.Itoa(id)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	case fmt.Stringer:
		return id.String()
	}
	return fmt.Sprint(v)
}
