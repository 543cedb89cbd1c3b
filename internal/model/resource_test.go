package model

import (
	"testing"
)

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()

	for _, r := range reg.All() {
		if _, ok := r.Field(r.IDField); !ok {
			t.Errorf("%s: identifier %q is not a field", r.Name, r.IDField)
		}
		for _, f := range r.Fields {
			if f.References == "" {
				continue
			}
			if _, ok := reg.Lookup(f.References); !ok {
				t.Errorf("%s.%s references unknown resource %q", r.Name, f.Name, f.References)
			}
		}
		got, ok := reg.Lookup(r.Name)
		if !ok || got != r {
			t.Errorf("Lookup(%q) did not return the registered resource", r.Name)
		}
	}

	errs, ok := reg.Lookup(APIErrorsResource)
	if !ok || !errs.AdminOnly {
		t.Errorf("%s should be registered and admin only", APIErrorsResource)
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	r := &Resource{Name: "things", IDField: "id", Fields: []Field{{Name: "id", Kind: KindInt}}}
	if _, err := NewRegistry(r, r); err == nil {
		t.Error("expected an error for duplicate resource names")
	}

	bad := &Resource{Name: "other", IDField: "missing"}
	if _, err := NewRegistry(bad); err == nil {
		t.Error("expected an error for an undeclared identifier field")
	}
}

func TestParseID(t *testing.T) {
	reg := DefaultRegistry()
	addressTypes, _ := reg.Lookup("address-types")
	countries, _ := reg.Lookup("country-regions")

	id, err := addressTypes.ParseID("42")
	if err != nil || id != int64(42) {
		t.Errorf("ParseID(42) = %v, %v; want 42, nil", id, err)
	}
	if _, err := addressTypes.ParseID("abc"); err == nil {
		t.Error("expected an error for a non numeric identifier")
	}
	if _, err := addressTypes.ParseID(""); err == nil {
		t.Error("expected an error for an empty identifier")
	}

	code, err := countries.ParseID("US")
	if err != nil || code != "US" {
		t.Errorf("ParseID(US) = %v, %v; want US, nil", code, err)
	}
}

func TestOrderBy(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		resource string
		column   string
		desc     bool
	}{
		{"address-types", "address_type_id", false},
		{"product-categories", "name", false},
		{APIErrorsResource, "created_at", true},
	}
	for _, tt := range tests {
		r, _ := reg.Lookup(tt.resource)
		column, desc := r.OrderBy()
		if column != tt.column || desc != tt.desc {
			t.Errorf("%s OrderBy() = %q, %v; want %q, %v", tt.resource, column, desc, tt.column, tt.desc)
		}
	}
}

func TestWritableExcludesReadOnly(t *testing.T) {
	reg := DefaultRegistry()
	shipMethods, _ := reg.Lookup("ship-methods")

	for _, f := range shipMethods.Writable() {
		if f.ReadOnly {
			t.Errorf("Writable() returned read-only field %q", f.Name)
		}
		switch f.Name {
		case "ship_method_id", "rowguid", "modified_date":
			t.Errorf("Writable() returned generated field %q", f.Name)
		}
	}
}
