// internal/hateoas/envelope.go
package hateoas

import (
	"net/http"
	"net/url"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// BuildTopLevelLinks returns the envelope links of a list page: self, then
// first and last when the envelope carries a count, then next and previous
// when the envelope carries those cursors.
//
// pageSize is the page size explicitly requested by the client, or 0. When
// it is 0 the number of items on the current page is used to compute the
// page count, and first/last leave page_size untouched.
func BuildTopLevelLinks(env *ListEnvelope, pageSize int, requestURL *url.URL) []Link {
	links := []Link{{Href: requestURL.String(), Rel: RelSelf, Method: http.MethodGet}}

	_, hasList := env.Body.Get(env.ListKey)
	if count, ok := env.Count(); ok && hasList {
		total := TotalPages(count, pageSize, len(env.Items()))
		links = append(links,
			Link{Href: pageURL(requestURL, 1, pageSize), Rel: RelFirst, Method: http.MethodGet},
			Link{Href: pageURL(requestURL, total, pageSize), Rel: RelLast, Method: http.MethodGet},
		)
	}

	if next, ok := env.cursor(KeyNext); ok {
		links = append(links, Link{Href: next, Rel: RelNext, Method: http.MethodGet})
	}
	if previous, ok := env.cursor(KeyPrevious); ok {
		links = append(links, Link{Href: previous, Rel: RelPrevious, Method: http.MethodGet})
	}
	return links
}

// TotalPages is ceil(count / size) and never less than one. size falls back
// to pageLen when pageSize is not positive.
func TotalPages(count, pageSize, pageLen int) int {
	size := pageSize
	if size <= 0 {
		size = pageLen
	}
	if size <= 0 || count <= 0 {
		return 1
	}
	return (count + size - 1) / size
}

func pageURL(u *url.URL, page, pageSize int) string {
	cp := *u
	q := cp.Query()
	q.Set("page", strconv.Itoa(page))
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	cp.RawQuery = q.Encode()
	return cp.String()
}

// ReorderEnvelope returns a new mapping ordered count, links, the list key,
// then the remaining envelope keys in their original order. A links key
// already present in the envelope is replaced.
func ReorderEnvelope(env *ListEnvelope, links []Link) *orderedmap.OrderedMap[string, any] {
	out := orderedmap.New[string, any]()
	if count, ok := env.Body.Get(KeyCount); ok {
		out.Set(KeyCount, count)
	}
	out.Set(KeyLinks, links)
	if list, ok := env.Body.Get(env.ListKey); ok {
		out.Set(env.ListKey, list)
	}
	for pair := env.Body.Oldest(); pair != nil; pair = pair.Next() {
		if _, seen := out.Get(pair.Key); !seen {
			out.Set(pair.Key, pair.Value)
		}
	}
	return out
}
