// internal/hateoas/pipeline.go
package hateoas

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Request describes the call a response is shaped for.
type Request struct {
	URL          *url.URL // absolute URL of the current request
	BaseURL      string   // absolute collection URL of the resource
	IDField      string   // identifier field of the resource
	IncludeLinks bool     // false suppresses the top-level envelope links
	Fields       []string // sparse fieldset; nil when not requested
	PageSize     int      // page size requested by the client; 0 when not supplied
}

// NewRequest reads the include_links, fields and page_size toggles from the
// query string of u. An empty fields value is treated as not requested and a
// page_size that is not a positive integer is ignored.
func NewRequest(u *url.URL, baseURL, idField string) Request {
	q := u.Query()
	req := Request{
		URL:          u,
		BaseURL:      baseURL,
		IDField:      idField,
		IncludeLinks: !strings.EqualFold(q.Get("include_links"), "false"),
	}
	if raw := q.Get("fields"); raw != "" {
		req.Fields = ParseFields(raw)
	}
	if n, err := strconv.Atoi(q.Get("page_size")); err == nil && n > 0 {
		req.PageSize = n
	}
	return req
}

// Shaper turns a handler payload into the value written to the client.
type Shaper interface {
	Shape(status int, p Payload, req Request) any
}

// Shape names reported to Pipeline.Observe.
const (
	ShapeList        = "list"
	ShapeSingle      = "single"
	ShapePassthrough = "passthrough"
)

// Pipeline is the default Shaper.
type Pipeline struct {
	// Observe, when set, is called once per Shape call with the shape that
	// was produced.
	Observe func(shape string)
}

// Shape applies sparse fields, item links and envelope links, in that
// order, to 200 responses. Any other status is rendered unchanged.
func (pl Pipeline) Shape(status int, p Payload, req Request) any {
	if status != http.StatusOK || p == nil {
		pl.observe(ShapePassthrough)
		return Render(p)
	}

	if req.Fields != nil {
		p = ApplySparseFields(p, req.Fields)
	}

	switch v := p.(type) {
	case *ListEnvelope:
		items := v.Items()
		for i, item := range items {
			if item == nil {
				continue
			}
			links, err := BuildItemLinks(items, i, req.IDField, req.BaseURL)
			if err != nil {
				continue
			}
			item.Set(KeyLinks, links)
		}
		pl.observe(ShapeList)
		if req.IncludeLinks && req.URL != nil {
			return ReorderEnvelope(v, BuildTopLevelLinks(v, req.PageSize, req.URL))
		}
		return v.Body
	case *SingleItem:
		if v.Item == nil {
			pl.observe(ShapePassthrough)
			return Render(v)
		}
		if _, ok := v.Item.Get(req.IDField); ok {
			links, _ := BuildItemLinks([]*Item{v.Item}, 0, req.IDField, req.BaseURL)
			v.Item.Set(KeyLinks, links)
			pl.observe(ShapeSingle)
		} else {
			pl.observe(ShapePassthrough)
		}
		return Render(v)
	}
	pl.observe(ShapePassthrough)
	return Render(p)
}

func (pl Pipeline) observe(shape string) {
	if pl.Observe != nil {
		pl.Observe(shape)
	}
}
