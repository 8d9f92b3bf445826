package schema

// Typed accessors over the resolved values map. Each falls back to the
// zero value when the field is absent or holds a mismatched type, which
// cannot happen for a normalized document but keeps callers total.

// String returns a string field.
func (d *Document) String(field string) string {
	if d == nil {
		return ""
	}
	s, _ := d.Values[field].(string)
	return s
}

// Bool returns a boolean field.
func (d *Document) Bool(field string) bool {
	if d == nil {
		return false
	}
	b, _ := d.Values[field].(bool)
	return b
}

// Int returns an integer field.
func (d *Document) Int(field string) int64 {
	if d == nil {
		return 0
	}
	i, _ := d.Values[field].(int64)
	return i
}

// StringList returns a string-list field.
func (d *Document) StringList(field string) []string {
	if d == nil {
		return nil
	}
	l, _ := d.Values[field].([]string)
	return l
}

// FeatureFlag reports whether a named flag in the site category's
// feature_flags map is enabled. Unknown flags are disabled.
func (d *Document) FeatureFlag(name string) bool {
	if d == nil {
		return false
	}
	flags, _ := d.Values["feature_flags"].(map[string]bool)
	return flags[name]
}

// MaintenanceMode reports whether the content category has maintenance
// mode switched on, with the operator-facing message.
func (d *Document) MaintenanceMode() (bool, string) {
	return d.Bool("maintenance_mode"), d.String("maintenance_message")
}
