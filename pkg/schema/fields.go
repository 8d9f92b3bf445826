package schema

// FieldType describes the value kind a field accepts after normalization.
type FieldType int

const (
	FieldString FieldType = iota
	FieldBool
	FieldInt
	FieldStringList
	FieldBoolMap
)

func (t FieldType) String() string {
	return []string{"string", "bool", "int", "string_list", "bool_map"}[t]
}

// FieldSpec describes one configuration field: its type, default value and
// the bounds enforced by the validator.
type FieldSpec struct {
	Name    string
	Type    FieldType
	Default interface{}

	// String bounds; MaxLen of 0 means unbounded.
	MinLen int
	MaxLen int

	// Integer bounds; only checked when Type is FieldInt.
	Min int64
	Max int64

	// Overridable marks fields that may be replaced by environment-supplied
	// overrides at resolution time.
	Overridable bool
}

// fieldSets holds the fixed field schema per category. The field sets mirror
// the site configuration domains: identity, SEO metadata, theme and
// content-display rules.
var fieldSets = map[Category][]FieldSpec{
	CategorySite: {
		{Name: "site_name", Type: FieldString, Default: "My Site", MinLen: 2, MaxLen: 120},
		{Name: "site_tagline", Type: FieldString, Default: "", MaxLen: 200},
		{Name: "domain", Type: FieldString, Default: "", MaxLen: 255, Overridable: true},
		{Name: "contact_email", Type: FieldString, Default: "", MaxLen: 320},
		{Name: "feature_flags", Type: FieldBoolMap, Default: map[string]bool{}},
	},
	CategorySEO: {
		{Name: "meta_title", Type: FieldString, Default: "", MaxLen: 60},
		{Name: "meta_description", Type: FieldString, Default: "", MaxLen: 160},
		{Name: "meta_keywords", Type: FieldString, Default: "", MaxLen: 255},
		{Name: "noindex", Type: FieldBool, Default: false},
		{Name: "canonical_url", Type: FieldString, Default: "", MaxLen: 2048, Overridable: true},
		{Name: "og_image", Type: FieldString, Default: "", MaxLen: 2048},
		{Name: "google_site_verification", Type: FieldString, Default: "", MaxLen: 100},
		{Name: "google_analytics_id", Type: FieldString, Default: "", MaxLen: 50},
	},
	CategoryTheme: {
		{Name: "primary_color", Type: FieldString, Default: "#007bff", MaxLen: 7},
		{Name: "secondary_color", Type: FieldString, Default: "#6c757d", MaxLen: 7},
		{Name: "favicon_url", Type: FieldString, Default: "", MaxLen: 2048},
		{Name: "logo_url", Type: FieldString, Default: "", MaxLen: 2048},
		{Name: "custom_css", Type: FieldString, Default: ""},
		{Name: "dark_mode_enabled", Type: FieldBool, Default: true},
	},
	CategoryContent: {
		{Name: "maintenance_mode", Type: FieldBool, Default: false, Overridable: true},
		{Name: "maintenance_message", Type: FieldString, Default: "We're currently performing maintenance. Please check back soon.", MaxLen: 500},
		{Name: "comments_enabled", Type: FieldBool, Default: true},
		{Name: "registration_enabled", Type: FieldBool, Default: true},
		{Name: "max_upload_size_mb", Type: FieldInt, Default: int64(10), Min: 1, Max: 100},
		{Name: "allowed_file_extensions", Type: FieldStringList, Default: []string{".jpg", ".jpeg", ".png", ".gif", ".pdf"}},
	},
}

// FieldSet returns the ordered field specs for a category. The returned
// slice must not be mutated.
func FieldSet(category Category) []FieldSpec {
	return fieldSets[category]
}

// FieldSpecFor looks up a single field spec by name.
func FieldSpecFor(category Category, name string) (FieldSpec, bool) {
	for _, spec := range fieldSets[category] {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// Defaults returns a fresh Values map carrying every field's default.
func Defaults(category Category) Values {
	values := make(Values, len(fieldSets[category]))
	for _, spec := range fieldSets[category] {
		values[spec.Name] = cloneValue(spec.Default)
	}
	return values
}

// OverridableFields returns the names of fields eligible for
// environment-supplied overrides.
func OverridableFields(category Category) []string {
	var names []string
	for _, spec := range fieldSets[category] {
		if spec.Overridable {
			names = append(names, spec.Name)
		}
	}
	return names
}
