// internal/schema/validator.go
// Package schema validates resource payloads against JSON schemas generated
// from the resource descriptors.
package schema

import (
	"fmt"
	"strings"

	"github.com/awadmin/awadmin-api-go/internal/model"
	"github.com/xeipuuv/gojsonschema"
)

// Mode selects which constraints a payload is checked against.
type Mode string

const (
	ModeCreate  Mode = "create"  // POST: required fields enforced
	ModeReplace Mode = "replace" // PUT: required fields enforced
	ModePatch   Mode = "patch"   // PATCH: every field optional
)

// decimalPattern matches the string form of a decimal value with at most
// two fraction digits.
const decimalPattern = `^-?[0-9]+(\.[0-9]{1,2})?$`

// Problem is one validation failure.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a payload.
type ValidationError struct {
	Resource string
	Problems []Problem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Field + ": " + p.Message
	}
	return fmt.Sprintf("invalid %s payload: %s", e.Resource, strings.Join(msgs, "; "))
}

// Validator validates payloads against the compiled schema of each resource
// and mode.
type Validator struct {
	schemas map[string]*gojsonschema.Schema // Map of "<resource>/<mode>" to compiled schema
}

// NewValidator compiles the create, replace and patch schemas of every
// resource in reg.
func NewValidator(reg *model.Registry) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema)}
	for _, res := range reg.All() {
		for _, mode := range []Mode{ModeCreate, ModeReplace, ModePatch} {
			compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(Document(res, mode)))
			if err != nil {
				return nil, fmt.Errorf("invalid schema for %s (%s): %w", res.Name, mode, err)
			}
			v.schemas[schemaKey(res.Name, mode)] = compiled
		}
	}
	return v, nil
}

func schemaKey(resource string, mode Mode) string {
	return resource + "/" + string(mode)
}

// Document returns the JSON schema a payload of res must satisfy in mode.
// Read-only fields are not described; additional properties are allowed
// and ignored by the handlers.
func Document(res *model.Resource, mode Mode) map[string]any {
	properties := make(map[string]any)
	required := []string{}
	for _, f := range res.Writable() {
		properties[f.Name] = Property(f)
		if f.Required && mode != ModePatch {
			required = append(required, f.Name)
		}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// Property returns the JSON schema of a single field.
func Property(f model.Field) map[string]any {
	p := make(map[string]any)
	var types []string
	switch f.Kind {
	case model.KindInt:
		types = []string{"integer"}
	case model.KindBool:
		types = []string{"boolean"}
	case model.KindDecimal:
		types = []string{"string", "number"}
		p["pattern"] = decimalPattern
	case model.KindUUID:
		types = []string{"string"}
		p["format"] = "uuid"
	case model.KindTime:
		types = []string{"string"}
		p["format"] = "date-time"
	default:
		types = []string{"string"}
		if f.MaxLength > 0 {
			p["maxLength"] = f.MaxLength
		}
		if !f.Nullable && f.Required {
			p["minLength"] = 1
		}
	}
	if f.Nullable {
		types = append(types, "null")
	}
	if len(types) == 1 {
		p["type"] = types[0]
	} else {
		p["type"] = types
	}
	if f.Description != "" {
		p["description"] = f.Description
	}
	return p
}

// Validate checks payload against the schema of res in mode. It returns a
// *ValidationError when the payload does not conform.
func (v *Validator) Validate(res *model.Resource, mode Mode, payload map[string]any) error {
	compiled, ok := v.schemas[schemaKey(res.Name, mode)]
	if !ok {
		return fmt.Errorf("schema not found for %s (%s)", res.Name, mode)
	}

	result, err := compiled.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Resource: res.Name}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if prop, ok := desc.Details()["property"].(string); ok && desc.Type() == "required" {
			field = prop
		}
		verr.Problems = append(verr.Problems, Problem{Field: field, Message: desc.Description()})
	}
	return verr
}

// Clean returns the writable fields of payload. Read-only and unknown keys
// are dropped.
func Clean(res *model.Resource, payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for _, f := range res.Writable() {
		if v, ok := payload[f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out
}
