package openapi

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/awadmin/awadmin-api-go/internal/model"
	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func build(t *testing.T) *Document {
	t.Helper()
	return Build(model.DefaultRegistry(), Options{Title: "AW Admin API", Version: "1.0.0"})
}

func TestBuildPaths(t *testing.T) {
	is := assert.New(t)
	doc := build(t)

	is.Equal(Version, doc.OpenAPI)
	for _, res := range model.DefaultRegistry().All() {
		collection, ok := doc.Paths["/api/"+res.Name]
		if is.True(ok, res.Name) {
			is.Contains(collection, "get")
			is.Contains(collection, "post")
			is.Contains(collection["post"].Responses, "201")
		}
		detail, ok := doc.Paths["/api/"+res.Name+"/{id}"]
		if is.True(ok, res.Name) {
			for _, m := range []string{"get", "put", "patch", "delete"} {
				is.Contains(detail, m)
			}
			is.Contains(detail["delete"].Responses, "204")
		}
		is.Contains(doc.Components.Schemas, res.Model)
	}
	for _, p := range []string{"/api/register/", "/api/login/", "/api/token/", "/api/token/refresh/"} {
		item, ok := doc.Paths[p]
		if is.True(ok, p) {
			is.NotNil(item["post"].Security)
			is.Empty(*item["post"].Security)
		}
	}
}

func TestOperationTexts(t *testing.T) {
	is := assert.New(t)
	doc := build(t)

	retrieve := doc.Paths["/api/address-types/{id}"]["get"]
	is.Equal("Retrieve a single AddressType resource.", retrieve.Summary)
	is.Equal("address-types_retrieve", retrieve.OperationID)
	is.Equal([]string{model.TagPeople}, retrieve.Tags)

	is.Equal("Deletes AddressType record for the provided ID.", OperationTexts("AddressType", OpDestroy).Summary)
	is.Equal(Texts{}, OperationTexts("AddressType", "unknown"))
}

func TestDefaultErrorResponses(t *testing.T) {
	is := assert.New(t)
	doc := build(t)

	list := doc.Paths["/api/currencies"]["get"]
	for _, code := range []string{"400", "401", "403", "404", "405", "406", "415", "429", "500"} {
		is.Contains(list.Responses, code)
	}
	is.Contains(list.Responses, "200")
	is.Contains(doc.Components.Schemas, "HATEOASLink")
}

func TestRendering(t *testing.T) {
	is := assert.New(t)
	doc := build(t)

	b, err := doc.JSON()
	is.Nil(err)
	var decoded map[string]any
	is.Nil(json.Unmarshal(b, &decoded))
	is.Equal(Version, decoded["openapi"])

	y, err := doc.YAML()
	is.Nil(err)
	var fromYAML map[string]any
	is.Nil(yaml.Unmarshal(y, &fromYAML))
	is.Equal(Version, fromYAML["openapi"])
	is.Contains(fromYAML["paths"], "/api/address-types/{id}")

	html, err := SwaggerUI("AW Admin API", "/api/schema.json")
	is.Nil(err)
	is.True(strings.Contains(string(html), "swagger-ui"))

	html, err = Redoc("AW Admin API", "/api/schema.json")
	is.Nil(err)
	is.True(strings.Contains(string(html), `spec-url="/api/schema.json"`))
}
