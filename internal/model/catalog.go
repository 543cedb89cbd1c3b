// internal/model/catalog.go
package model

// Documentation tags.
const (
	TagPeople     = "People"
	TagSales      = "Sales"
	TagProduction = "Production"
	TagAdmin      = "Admin"
)

// Name of the resource that records API errors.
const APIErrorsResource = "api-errors"

func rowGUID() Field {
	return Field{Name: "rowguid", Kind: KindUUID, ReadOnly: true, AutoUUID: true, Description: "Globally unique identifier for external mapping."}
}

func modifiedDate() Field {
	return Field{Name: "modified_date", Kind: KindTime, ReadOnly: true, AutoNow: true, Description: "Timestamp of the last update."}
}

func autoID(name string) Field {
	return Field{Name: name, Kind: KindInt, ReadOnly: true}
}

func nameField(maxLength int) Field {
	return Field{Name: "name", Kind: KindString, Required: true, Unique: true, MaxLength: maxLength}
}

func money(column string) Field {
	return Field{Name: column, Kind: KindDecimal, Required: true}
}

// Catalog returns the descriptors of every exposed table.
func Catalog() []*Resource {
	return []*Resource{
		{
			Name: "address-types", Model: "AddressType", Table: "address_types",
			IDField: "address_type_id", AutoID: true, Tag: TagPeople,
			Description: "Categories used to classify address records, such as Billing or Shipping.",
			Fields: []Field{
				autoID("address_type_id"),
				nameField(50),
				rowGUID(),
				modifiedDate(),
			},
		},
		{
			Name: "country-regions", Model: "CountryRegion", Table: "country_regions",
			IDField: "country_region_code", Tag: TagPeople,
			Description: "Countries identified by their country region code.",
			Fields: []Field{
				{Name: "country_region_code", Kind: KindString, Required: true, Unique: true, MaxLength: 3},
				nameField(255),
				modifiedDate(),
			},
		},
		{
			Name: "state-provinces", Model: "StateProvince", Table: "state_provinces",
			IDField: "state_province_id", AutoID: true, Tag: TagPeople,
			Description: "Administrative regions within a country, linked to a sales territory.",
			Fields: []Field{
				autoID("state_province_id"),
				{Name: "state_province_code", Kind: KindString, Required: true, Unique: true, MaxLength: 3},
				{Name: "country_region_code", Kind: KindString, Required: true, MaxLength: 3, References: "country-regions"},
				{Name: "is_only_state_province_flag", Kind: KindBool, Default: true},
				nameField(255),
				{Name: "sales_territory_id", Kind: KindInt, Required: true, References: "sales-territories"},
				rowGUID(),
				modifiedDate(),
			},
		},
		{
			Name: "phone-number-types", Model: "PhoneNumberType", Table: "phone_number_types",
			IDField: "phone_number_type_id", AutoID: true, Tag: TagPeople,
			Description: "Labels for phone numbers, such as Mobile or Work.",
			Fields: []Field{
				autoID("phone_number_type_id"),
				nameField(255),
				rowGUID(),
				modifiedDate(),
			},
		},
		{
			Name: "sales-territories", Model: "SalesTerritory", Table: "sales_territories",
			IDField: "sales_territory_id", AutoID: true, Tag: TagSales,
			Description: "Sales regions with year to date and prior year figures.",
			Fields: []Field{
				autoID("sales_territory_id"),
				nameField(255),
				{Name: "country_region_code", Kind: KindString, Required: true, MaxLength: 3, References: "country-regions"},
				{Name: "region", Kind: KindString, Required: true, MaxLength: 50},
				money("sales_ytd"),
				money("sales_last_year"),
				money("cost_ytd"),
				money("cost_last_year"),
				rowGUID(),
				modifiedDate(),
			},
		},
		{
			Name: "currencies", Model: "Currency", Table: "currencies",
			IDField: "currency_code", Tag: TagSales,
			Description: "ISO currency codes.",
			Fields: []Field{
				{Name: "currency_code", Kind: KindString, Required: true, Unique: true, MaxLength: 3},
				nameField(255),
				modifiedDate(),
			},
		},
		{
			Name: "ship-methods", Model: "ShipMethod", Table: "ship_methods",
			IDField: "ship_method_id", AutoID: true, Tag: TagSales,
			Description: "Shipping companies with their base and per-unit rates.",
			Fields: []Field{
				autoID("ship_method_id"),
				nameField(50),
				money("ship_base"),
				money("ship_rate"),
				rowGUID(),
				modifiedDate(),
			},
		},
		{
			Name: "sales-reasons", Model: "SalesReason", Table: "sales_reasons",
			IDField: "sales_reason_id", AutoID: true, Tag: TagSales,
			Description: "Reasons customers give for a purchase.",
			Fields: []Field{
				autoID("sales_reason_id"),
				nameField(255),
				{Name: "reason_type", Kind: KindString, Required: true, MaxLength: 50},
				modifiedDate(),
			},
		},
		{
			Name: "product-categories", Model: "ProductCategory", Table: "product_categories",
			IDField: "product_category_id", AutoID: true, Ordering: "name", Tag: TagProduction,
			Description: "Top level product categories.",
			Fields: []Field{
				autoID("product_category_id"),
				nameField(255),
				rowGUID(),
				modifiedDate(),
			},
		},
		{
			Name: "unit-measures", Model: "UnitMeasure", Table: "unit_measures",
			IDField: "unit_measure_code", Tag: TagProduction,
			Description: "Units of measure used for product sizes and weights.",
			Fields: []Field{
				{Name: "unit_measure_code", Kind: KindString, Required: true, Unique: true, MaxLength: 8},
				nameField(255),
				modifiedDate(),
			},
		},
		{
			Name: APIErrorsResource, Model: "ApiError", Table: "api_error",
			IDField: "id", AutoID: true, Ordering: "-created_at", Tag: TagAdmin, AdminOnly: true,
			Description: "API error events recorded for observability and debugging.",
			Fields: []Field{
				autoID("id"),
				{Name: "code", Kind: KindString, MaxLength: 100, Nullable: true},
				{Name: "detail", Kind: KindString, Default: "null"},
				{Name: "attr", Kind: KindString, MaxLength: 100, Default: "null"},
				{Name: "error_type", Kind: KindString, MaxLength: 50, Default: "client_error"},
				{Name: "path", Kind: KindString, MaxLength: 255, Nullable: true},
				{Name: "method", Kind: KindString, MaxLength: 10, Nullable: true},
				{Name: "user", Kind: KindString, MaxLength: 255, Nullable: true},
				{Name: "created_at", Kind: KindTime, ReadOnly: true, AutoNowAdd: true},
			},
		},
	}
}

// DefaultRegistry returns a registry over Catalog.
func DefaultRegistry() *Registry {
	reg, err := NewRegistry(Catalog()...)
	if err != nil {
		panic(err)
	}
	return reg
}
