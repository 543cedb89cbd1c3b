// internal/openapi/openapi.go
// Package openapi generates the OpenAPI document of the admin API from the
// resource registry and renders it as JSON, YAML and browsable HTML.
package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/awadmin/awadmin-api-go/internal/model"
	"github.com/awadmin/awadmin-api-go/internal/schema"
	"gopkg.in/yaml.v3"
)

// Version of the OpenAPI specification the document follows. 3.1 allows the
// type arrays used for nullable and decimal fields.
const Version = "3.1.0"

// Operation ids, one per resource action.
const (
	OpList          = "list"
	OpRetrieve      = "retrieve"
	OpCreate        = "create"
	OpUpdate        = "update"
	OpPartialUpdate = "partial_update"
	OpDestroy       = "destroy"
)

// Document is the root of an OpenAPI document.
type Document struct {
	OpenAPI    string                `json:"openapi" yaml:"openapi"`
	Info       Info                  `json:"info" yaml:"info"`
	Servers    []Server              `json:"servers,omitempty" yaml:"servers,omitempty"`
	Tags       []Tag                 `json:"tags,omitempty" yaml:"tags,omitempty"`
	Paths      map[string]PathItem   `json:"paths" yaml:"paths"`
	Components Components            `json:"components" yaml:"components"`
	Security   []SecurityRequirement `json:"security,omitempty" yaml:"security,omitempty"`
}

type Info struct {
	Title       string `json:"title" yaml:"title"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type Server struct {
	URL string `json:"url" yaml:"url"`
}

type Tag struct {
	Name string `json:"name" yaml:"name"`
}

// PathItem maps lower-case HTTP methods to operations.
type PathItem map[string]*Operation

// SecurityRequirement maps a security scheme name to its scopes.
type SecurityRequirement map[string][]string

type Operation struct {
	OperationID string                 `json:"operationId" yaml:"operationId"`
	Summary     string                 `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string               `json:"tags,omitempty" yaml:"tags,omitempty"`
	Parameters  []Parameter            `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *RequestBody           `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   map[string]Response    `json:"responses" yaml:"responses"`
	Security    *[]SecurityRequirement `json:"security,omitempty" yaml:"security,omitempty"`
}

type Parameter struct {
	Name        string         `json:"name" yaml:"name"`
	In          string         `json:"in" yaml:"in"`
	Required    bool           `json:"required,omitempty" yaml:"required,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Schema      map[string]any `json:"schema" yaml:"schema"`
}

type RequestBody struct {
	Required bool                 `json:"required,omitempty" yaml:"required,omitempty"`
	Content  map[string]MediaType `json:"content" yaml:"content"`
}

type MediaType struct {
	Schema map[string]any `json:"schema" yaml:"schema"`
}

type Response struct {
	Description string               `json:"description" yaml:"description"`
	Content     map[string]MediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

type Components struct {
	Schemas         map[string]any            `json:"schemas" yaml:"schemas"`
	SecuritySchemes map[string]SecurityScheme `json:"securitySchemes" yaml:"securitySchemes"`
}

type SecurityScheme struct {
	Type         string `json:"type" yaml:"type"`
	Scheme       string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	BearerFormat string `json:"bearerFormat,omitempty" yaml:"bearerFormat,omitempty"`
}

// DefaultErrorResponses are attached to every resource operation.
var DefaultErrorResponses = map[int]string{
	http.StatusBadRequest:           "Bad Request: malformed request or validation failure.",
	http.StatusUnauthorized:         "Unauthorized: missing or invalid authentication.",
	http.StatusForbidden:            "Forbidden: authenticated but lacks permission.",
	http.StatusNotFound:             "Not Found: resource not found.",
	http.StatusMethodNotAllowed:     "Method Not Allowed: HTTP method not supported.",
	http.StatusNotAcceptable:        "Not Acceptable: server cannot produce content matching Accept header.",
	http.StatusUnsupportedMediaType: "Unsupported Media Type: request Content-Type not supported.",
	http.StatusTooManyRequests:      "Too Many Requests: rate limit exceeded.",
	http.StatusInternalServerError:  "Internal Server Error: an unexpected condition prevented the server from fulfilling the request.",
}

// Texts holds the human readable strings of one operation.
type Texts struct {
	Summary     string
	Description string
	Success     string
}

// OperationTexts returns the summary, description and success description
// of operation op on the model named model.
func OperationTexts(model, op string) Texts {
	switch op {
	case OpList:
		return Texts{
			Summary:     fmt.Sprintf("Retrieve all %s resources.", model),
			Description: fmt.Sprintf("Returns a paginated list of %s resources.", model),
			Success:     fmt.Sprintf("List of %s resources returned successfully.", model),
		}
	case OpRetrieve:
		return Texts{
			Summary:     fmt.Sprintf("Retrieve a single %s resource.", model),
			Description: fmt.Sprintf("Returns %s record by ID. Raises 404 if not found.", model),
			Success:     fmt.Sprintf("%s resource retrieved successfully.", model),
		}
	case OpCreate:
		return Texts{
			Summary:     fmt.Sprintf("Create a new %s resource.", model),
			Description: fmt.Sprintf("Accepts validated input and persists a new %s record. Returns created %s object.", model, model),
			Success:     fmt.Sprintf("%s resource created successfully.", model),
		}
	case OpUpdate:
		return Texts{
			Summary:     fmt.Sprintf("Fully updates an existing %s resource.", model),
			Description: fmt.Sprintf("Accepts validated input and updates %s record. Returns updated %s object.", model, model),
			Success:     fmt.Sprintf("%s resource updated successfully.", model),
		}
	case OpPartialUpdate:
		return Texts{
			Summary:     fmt.Sprintf("Partially updates an existing %s resource.", model),
			Description: fmt.Sprintf("Accepts validated input and partially updates %s record. Returns updated %s object.", model, model),
			Success:     fmt.Sprintf("%s resource updated successfully.", model),
		}
	case OpDestroy:
		return Texts{
			Summary:     fmt.Sprintf("Deletes %s record for the provided ID.", model),
			Description: fmt.Sprintf("Deletes %s resource by ID. Raises 404 if not found.", model),
			Success:     fmt.Sprintf("%s resource deleted successfully.", model),
		}
	}
	return Texts{}
}

// Options configures Build.
type Options struct {
	Title     string
	Version   string
	ServerURL string // optional absolute server URL
}

// Build generates the document for every resource in reg plus the
// authentication endpoints.
func Build(reg *model.Registry, opts Options) *Document {
	doc := &Document{
		OpenAPI: Version,
		Info: Info{
			Title:       opts.Title,
			Version:     opts.Version,
			Description: "Administrative CRUD API over the commerce dataset. Successful responses carry HATEOAS links.",
		},
		Paths: make(map[string]PathItem),
		Components: Components{
			Schemas: map[string]any{
				"HATEOASLink": hateoasLinkSchema(),
				"Error":       errorSchema(),
			},
			SecuritySchemes: map[string]SecurityScheme{
				"bearerAuth": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
			},
		},
		Security: []SecurityRequirement{{"bearerAuth": {}}},
	}
	if opts.ServerURL != "" {
		doc.Servers = []Server{{URL: opts.ServerURL}}
	}

	seen := map[string]bool{}
	for _, res := range reg.All() {
		if !seen[res.Tag] {
			seen[res.Tag] = true
			doc.Tags = append(doc.Tags, Tag{Name: res.Tag})
		}
		addResource(doc, res)
	}
	doc.Tags = append(doc.Tags, Tag{Name: "Auth"})
	addAuth(doc)
	return doc
}

func addResource(doc *Document, res *model.Resource) {
	doc.Components.Schemas[res.Model] = itemSchema(res)
	doc.Components.Schemas[res.Model+"Request"] = schema.Document(res, schema.ModeCreate)
	doc.Components.Schemas[res.Model+"PatchRequest"] = schema.Document(res, schema.ModePatch)

	itemRef := ref(res.Model)
	withLinks := map[string]any{
		"allOf": []any{itemRef, map[string]any{
			"type": "object",
			"properties": map[string]any{
				"links": map[string]any{"type": "array", "items": ref("HATEOASLink")},
			},
		}},
	}
	detailBody := map[string]any{
		"type":       "object",
		"properties": map[string]any{"data": withLinks},
	}
	listBody := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"count":    map[string]any{"type": "integer"},
			"links":    map[string]any{"type": "array", "items": ref("HATEOASLink")},
			"results":  map[string]any{"type": "array", "items": withLinks},
			"next":     map[string]any{"type": []string{"string", "null"}, "format": "uri"},
			"previous": map[string]any{"type": []string{"string", "null"}, "format": "uri"},
		},
	}

	idParam := Parameter{
		Name:        "id",
		In:          "path",
		Required:    true,
		Description: fmt.Sprintf("Value of %s.", res.IDField),
		Schema:      schema.Property(model.Field{Kind: res.IDKind()}),
	}
	collection := "/api/" + res.Name
	detail := collection + "/{id}"

	op := func(id string, status int, body map[string]any, request *RequestBody, params ...Parameter) *Operation {
		t := OperationTexts(res.Model, id)
		o := &Operation{
			OperationID: res.Name + "_" + id,
			Summary:     t.Summary,
			Description: t.Description,
			Tags:        []string{res.Tag},
			Parameters:  params,
			RequestBody: request,
			Responses:   errorResponses(),
		}
		success := Response{Description: t.Success}
		if body != nil {
			success.Content = jsonContent(body)
		}
		o.Responses[strconv.Itoa(status)] = success
		return o
	}
	jsonRequest := func(name string) *RequestBody {
		return &RequestBody{Required: true, Content: jsonContent(ref(name))}
	}

	doc.Paths[collection] = PathItem{
		"get":  op(OpList, http.StatusOK, listBody, nil, listParameters()...),
		"post": op(OpCreate, http.StatusCreated, detailBody, jsonRequest(res.Model+"Request")),
	}
	doc.Paths[detail] = PathItem{
		"get":    op(OpRetrieve, http.StatusOK, detailBody, nil, append([]Parameter{idParam}, shapingParameters()...)...),
		"put":    op(OpUpdate, http.StatusOK, detailBody, jsonRequest(res.Model+"Request"), idParam),
		"patch":  op(OpPartialUpdate, http.StatusOK, detailBody, jsonRequest(res.Model+"PatchRequest"), idParam),
		"delete": op(OpDestroy, http.StatusNoContent, nil, nil, idParam),
	}
}

func addAuth(doc *Document) {
	public := &[]SecurityRequirement{}
	object := func(props ...string) map[string]any {
		p := make(map[string]any, len(props))
		for _, name := range props {
			p[name] = map[string]any{"type": "string"}
		}
		return map[string]any{"type": "object", "properties": p, "required": props}
	}
	post := func(id, summary string, status int, request, response map[string]any) PathItem {
		return PathItem{"post": &Operation{
			OperationID: id,
			Summary:     summary,
			Tags:        []string{"Auth"},
			RequestBody: &RequestBody{Required: true, Content: jsonContent(request)},
			Responses: map[string]Response{
				strconv.Itoa(status): {Description: summary, Content: jsonContent(response)},
				"400":                {Description: DefaultErrorResponses[http.StatusBadRequest], Content: jsonContent(ref("Error"))},
				"401":                {Description: DefaultErrorResponses[http.StatusUnauthorized], Content: jsonContent(ref("Error"))},
			},
			Security: public,
		}}
	}
	doc.Paths["/api/register/"] = post("register", "Register a new user.", http.StatusCreated,
		object("username", "email", "password"), object("username", "email"))
	doc.Paths["/api/login/"] = post("login", "Log in and obtain an access token.", http.StatusOK,
		object("username", "password"), object("token"))
	doc.Paths["/api/login/"]["post"].Responses["401"] = Response{
		Description: DefaultErrorResponses[http.StatusUnauthorized],
		Content:     jsonContent(object("error")),
	}
	doc.Paths["/api/token/"] = post("token_obtain", "Obtain an access and refresh token pair.", http.StatusOK,
		object("username", "password"), object("access", "refresh"))
	doc.Paths["/api/token/refresh/"] = post("token_refresh", "Exchange a refresh token for a new access token.", http.StatusOK,
		object("refresh"), object("access"))
}

func itemSchema(res *model.Resource) map[string]any {
	props := make(map[string]any, len(res.Fields))
	for _, f := range res.Fields {
		p := schema.Property(f)
		if f.ReadOnly || (f.Name == res.IDField && res.AutoID) {
			p["readOnly"] = true
		}
		props[f.Name] = p
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if res.Description != "" {
		out["description"] = res.Description
	}
	return out
}

func hateoasLinkSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"href":   map[string]any{"type": "string", "format": "uri"},
			"rel":    map[string]any{"type": "string"},
			"method": map[string]any{"type": "string"},
		},
		"required": []string{"href", "rel", "method"},
	}
}

func errorSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"error": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"code":          map[string]any{"type": "string"},
					"message":       map[string]any{"type": "string"},
					"correlationId": map[string]any{"type": "string"},
					"details":       map[string]any{},
				},
				"required": []string{"code", "message", "correlationId"},
			},
		},
	}
}

func errorResponses() map[string]Response {
	out := make(map[string]Response, len(DefaultErrorResponses)+1)
	for status, desc := range DefaultErrorResponses {
		out[strconv.Itoa(status)] = Response{Description: desc, Content: jsonContent(ref("Error"))}
	}
	return out
}

func shapingParameters() []Parameter {
	return []Parameter{
		{Name: "fields", In: "query", Description: "Comma separated list of fields to return.", Schema: map[string]any{"type": "string"}},
		{Name: "include_links", In: "query", Description: "Set to false to omit the top level links of a list.", Schema: map[string]any{"type": "boolean", "default": true}},
	}
}

func listParameters() []Parameter {
	return append([]Parameter{
		{Name: "page", In: "query", Description: "A page number within the paginated result set.", Schema: map[string]any{"type": "integer", "minimum": 1}},
		{Name: "page_size", In: "query", Description: "Number of results to return per page.", Schema: map[string]any{"type": "integer", "minimum": 1}},
	}, shapingParameters()...)
}

func ref(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

func jsonContent(s map[string]any) map[string]MediaType {
	return map[string]MediaType{"application/json": {Schema: s}}
}

// JSON renders the document as indented JSON.
func (d *Document) JSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// YAML renders the document as YAML.
func (d *Document) YAML() ([]byte, error) {
	return yaml.Marshal(d)
}
