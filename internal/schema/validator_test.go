package schema

import (
	"errors"
	"testing"

	"github.com/awadmin/awadmin-api-go/internal/model"
	"github.com/stretchr/testify/assert"
)

func newValidator(t *testing.T) (*Validator, *model.Registry) {
	t.Helper()
	reg := model.DefaultRegistry()
	v, err := NewValidator(reg)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v, reg
}

func TestValidateRequiredFields(t *testing.T) {
	is := assert.New(t)
	v, reg := newValidator(t)
	res, _ := reg.Lookup("sales-reasons")

	err := v.Validate(res, ModeCreate, map[string]any{"name": "Price"})
	var verr *ValidationError
	is.True(errors.As(err, &verr))
	is.Equal([]Problem{{Field: "reason_type", Message: verr.Problems[0].Message}}, verr.Problems)

	is.Nil(v.Validate(res, ModePatch, map[string]any{"name": "Price"}))
	is.Nil(v.Validate(res, ModeCreate, map[string]any{"name": "Price", "reason_type": "Marketing"}))
}

func TestValidateTypes(t *testing.T) {
	is := assert.New(t)
	v, reg := newValidator(t)
	res, _ := reg.Lookup("ship-methods")

	valid := map[string]any{"name": "Cargo", "ship_base": "3.95", "ship_rate": 0.99}
	is.Nil(v.Validate(res, ModeCreate, valid))

	is.NotNil(v.Validate(res, ModeCreate, map[string]any{"name": "Cargo", "ship_base": "cheap", "ship_rate": 1}))
	is.NotNil(v.Validate(res, ModeCreate, map[string]any{"name": 12, "ship_base": "1", "ship_rate": 1}))
	is.NotNil(v.Validate(res, ModeCreate, map[string]any{"name": "", "ship_base": "1", "ship_rate": 1}))
}

func TestValidateDecimalPlaces(t *testing.T) {
	is := assert.New(t)
	v, reg := newValidator(t)
	res, _ := reg.Lookup("ship-methods")

	is.Nil(v.Validate(res, ModeCreate, map[string]any{"name": "Cargo", "ship_base": "3.9", "ship_rate": "12"}))

	err := v.Validate(res, ModeCreate, map[string]any{"name": "Cargo", "ship_base": "3.955", "ship_rate": 1})
	var verr *ValidationError
	if is.True(errors.As(err, &verr)) {
		is.Equal("ship_base", verr.Problems[0].Field)
	}
}

func TestValidateMaxLength(t *testing.T) {
	is := assert.New(t)
	v, reg := newValidator(t)
	res, _ := reg.Lookup("currencies")

	is.NotNil(v.Validate(res, ModeCreate, map[string]any{"currency_code": "EURO", "name": "Euro"}))
	is.Nil(v.Validate(res, ModeCreate, map[string]any{"currency_code": "EUR", "name": "Euro"}))
}

func TestValidateIgnoresReadOnlyAndUnknown(t *testing.T) {
	is := assert.New(t)
	v, reg := newValidator(t)
	res, _ := reg.Lookup("address-types")

	payload := map[string]any{"name": "Billing", "address_type_id": "not a number", "rowguid": 1, "other": true}
	is.Nil(v.Validate(res, ModeCreate, payload))
	is.Equal(map[string]any{"name": "Billing"}, Clean(res, payload))
}

func TestValidateNullable(t *testing.T) {
	is := assert.New(t)
	v, reg := newValidator(t)
	res, _ := reg.Lookup(model.APIErrorsResource)

	is.Nil(v.Validate(res, ModeCreate, map[string]any{"code": nil, "path": "/api/currencies"}))
	is.NotNil(v.Validate(res, ModeCreate, map[string]any{"error_type": nil}))
}

func TestDocumentRequired(t *testing.T) {
	is := assert.New(t)
	_, reg := newValidator(t)
	res, _ := reg.Lookup("state-provinces")

	create := Document(res, ModeCreate)
	is.ElementsMatch([]string{"state_province_code", "country_region_code", "name", "sales_territory_id"}, create["required"])

	_, hasRequired := Document(res, ModePatch)["required"]
	is.False(hasRequired)
}
