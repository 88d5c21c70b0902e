package domain

var (
	activeInactive = []string{"active", "inactive"}

	stockCategories = []string{
		"White Fish", "Oily Fish", "Exotic/Game Fish", "Shrimp/Prawns", "Crabs",
		"Lobsters", "Bivalves", "Gastropods", "Cephalopods", "Other",
	}

	deliveryLocations = []string{
		"Matara", "Galle", "Anuradhapura", "Kandy",
		"Jaffna", "Colombo", "Hambantota", "Monaragala",
		"Trincomalee", "Polonnaruwa", "Moratuwa", "Ratnapura",
	}
)

var email = []Normalizer{Trim, Lowercase}

// MinVehicleYear is the oldest model year accepted for a vehicle. The upper
// bound is the current calendar year at validation time.
const MinVehicleYear = 1990

func statusField(values []string, def string) Field {
	return Field{Name: "status", Kind: KindEnum, Normalize: []Normalizer{Trim}, Enum: values, Default: Value(def)}
}

func text(name string, required bool) Field {
	return Field{Name: name, Kind: KindString, Required: required, Normalize: []Normalizer{Trim}}
}

// CompanySchema describes partner companies.
func CompanySchema() *Schema {
	return &Schema{
		Entity:     "company",
		Collection: "companies",
		Fields: []Field{
			text("c_regno", true),
			text("c_name", true),
			text("address", true),
			text("o_name", true),
			{Name: "email", Kind: KindString, Required: true, Unique: true, Normalize: email, Rules: "email"},
			{Name: "phone", Kind: KindString, Required: true, Unique: true, Normalize: []Normalizer{DigitsOnly}},
			text("description", true),
			statusField(activeInactive, "active"),
		},
	}
}

// SupplierSchema describes fish suppliers.
func SupplierSchema() *Schema {
	return &Schema{
		Entity:     "supplier",
		Collection: "suppliers",
		Fields: []Field{
			{Name: "s_regno", Kind: KindString, Required: true, Unique: true, Normalize: []Normalizer{Trim, Uppercase}, Rules: "supplier_regno"},
			text("s_name", true),
			text("address", true),
			{Name: "maritalstatus", Kind: KindEnum, Normalize: []Normalizer{Trim, Lowercase},
				Enum: []string{"single", "married", "divorced", "widowed"}, Default: Value("single")},
			{Name: "email", Kind: KindString, Required: true, Unique: true, Normalize: email, Rules: "email"},
			{Name: "phone", Kind: KindString, Required: true, Normalize: []Normalizer{DigitsOnly}, Rules: "phone10"},
			{Name: "gender", Kind: KindEnum, Required: true, Normalize: []Normalizer{Trim, Lowercase},
				Enum: []string{"male", "female", "other"}, Default: Value("male")},
			{Name: "birthday", Kind: KindDate, Required: true},
			text("profile", true),
			statusField(activeInactive, "active"),
		},
	}
}

// StockSchema describes inventory items. t_value is always qty × u_price.
func StockSchema() *Schema {
	return &Schema{
		Entity:     "stock",
		Collection: "stocks",
		Fields: []Field{
			{Name: "i_code", Kind: KindString, Required: true, Unique: true, Normalize: []Normalizer{Trim, Uppercase}, Rules: "item_code"},
			{Name: "i_name", Kind: KindString, Required: true, Normalize: []Normalizer{Trim}, Rules: "min=2,max=100"},
			{Name: "i_category", Kind: KindEnum, Required: true, Normalize: []Normalizer{Trim}, Enum: stockCategories, Default: Value("Other")},
			{Name: "i_description", Kind: KindString, Normalize: []Normalizer{Trim}, Rules: "max=500"},
			{Name: "qty", Kind: KindInteger, Required: true, Rules: "gte=1"},
			{Name: "u_price", Kind: KindNumber, Required: true, Rules: "gte=0.01"},
			{Name: "s_name", Kind: KindString, Normalize: []Normalizer{Trim}, Rules: "max=100"},
			{Name: "d_purchase", Kind: KindDate},
			{Name: "s_contact", Kind: KindString, Normalize: []Normalizer{Trim}},
			{Name: "location", Kind: KindString, Normalize: []Normalizer{Trim}, Rules: "max=100"},
			statusField(activeInactive, "active"),
		},
		Derived: []DerivedField{
			RoundedProduct("t_value", "qty", "u_price", 2),
		},
	}
}

// VehicleSchema describes the delivery fleet.
func VehicleSchema() *Schema {
	return &Schema{
		Entity:     "vehicle",
		Collection: "vehicles",
		Fields: []Field{
			{Name: "licensePlate", Kind: KindString, Required: true, Unique: true, Normalize: []Normalizer{Trim, Uppercase}, Rules: "license_plate"},
			{Name: "v_type", Kind: KindEnum, Required: true, Normalize: []Normalizer{Trim},
				Enum: []string{"Truck", "Van", "Pickup", "Trailer", "Refrigerated Truck"}},
			text("v_model", true),
			{Name: "year", Kind: KindInteger, Required: true, Rules: "vehicle_year"},
			{Name: "refrigeration_type", Kind: KindEnum, Normalize: []Normalizer{Trim},
				Enum: []string{"None", "Basic", "Medium", "Heavy", "Ultra-low"}, Default: Value("None")},
			{Name: "last_maintenance", Kind: KindDate, Default: Now},
			text("delivery_area", true),
			{Name: "max_load", Kind: KindNumber, Required: true, Rules: "gt=0"},
			{Name: "fuel_type", Kind: KindEnum, Required: true, Normalize: []Normalizer{Trim},
				Enum: []string{"Diesel", "Petrol", "Electric", "Hybrid", "CNG"}},
			{Name: "certification_no", Kind: KindString, Unique: true, Normalize: []Normalizer{Trim, Uppercase}, Rules: "certification_no"},
			{Name: "certification_expire_date", Kind: KindDate},
			text("v_image", false),
			text("v_document", false),
			statusField([]string{"active", "inactive", "maintenance", "out_of_service"}, "active"),
		},
	}
}

// DeliverySchema describes outbound deliveries, listed most recent first.
func DeliverySchema() *Schema {
	return &Schema{
		Entity:     "delivery",
		Collection: "deliveries",
		Fields: []Field{
			{Name: "o_no", Kind: KindString, Required: true, Unique: true, Normalize: []Normalizer{Trim}},
			text("c_code", true),
			text("c_name", true),
			text("d_code", true),
			text("d_name", true),
			{Name: "d_contactno", Kind: KindString, Required: true, Normalize: []Normalizer{DigitsOnly}, Rules: "phone10"},
			text("v_no", true),
			{Name: "d_date", Kind: KindDate, Required: true, Default: Now},
			{Name: "d_location", Kind: KindEnum, Required: true, Normalize: []Normalizer{Trim}, Enum: deliveryLocations},
			statusField([]string{"active", "inactive", "pending"}, "active"),
		},
		Sort: []SortKey{{Field: "d_date", Desc: true}},
		CreateDefaults: map[string]func() any{
			"status": Value("pending"),
		},
	}
}

// FeedbackSchema describes customer feedback. It has no unique fields.
func FeedbackSchema() *Schema {
	return &Schema{
		Entity:     "feedback",
		Collection: "feedbacks",
		Fields: []Field{
			text("customerName", true),
			{Name: "email", Kind: KindString, Required: true, Normalize: email, Rules: "email"},
			{Name: "rating", Kind: KindInteger, Required: true, Rules: "gte=1,lte=5"},
			text("comment", true),
			{Name: "date", Kind: KindDate, Default: Now},
			statusField([]string{"pending", "approved", "rejected"}, "pending"),
			{Name: "response", Kind: KindString, Normalize: []Normalizer{Trim}, Default: Value("")},
		},
	}
}

// Resource binds a schema to the URL segment it is served under.
type Resource struct {
	Path   string
	Schema *Schema
}

// Catalog lists every managed entity in routing order.
func Catalog() []Resource {
	return []Resource{
		{Path: "companies", Schema: CompanySchema()},
		{Path: "suppliers", Schema: SupplierSchema()},
		{Path: "stocks", Schema: StockSchema()},
		{Path: "vehicles", Schema: VehicleSchema()},
		{Path: "deliveries", Schema: DeliverySchema()},
		{Path: "feedbacks", Schema: FeedbackSchema()},
	}
}
