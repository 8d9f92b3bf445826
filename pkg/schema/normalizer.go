package schema

import (
	"sort"
	"strings"
)

// Normalizer canonicalizes raw configuration payloads before validation.
// Normalization is pure and idempotent: no I/O, and normalizing an already
// normalized payload is a no-op.
type Normalizer struct {
	config *NormalizationConfig
}

// NormalizationConfig defines normalization rules.
type NormalizationConfig struct {
	// TrimStrings removes leading/trailing whitespace from string fields.
	TrimStrings bool
	// DropUnknownFields removes keys not present in the category field set.
	DropUnknownFields bool
	// FillDefaults populates absent fields with schema defaults.
	FillDefaults bool
	// LowercaseIdentifiers lowercases emails, domains and hex colors.
	LowercaseIdentifiers bool
}

// DefaultNormalizationConfig returns default normalization settings.
func DefaultNormalizationConfig() *NormalizationConfig {
	return &NormalizationConfig{
		TrimStrings:          true,
		DropUnknownFields:    true,
		FillDefaults:         true,
		LowercaseIdentifiers: true,
	}
}

// NewNormalizer creates a new normalizer.
func NewNormalizer(config *NormalizationConfig) *Normalizer {
	if config == nil {
		config = DefaultNormalizationConfig()
	}
	return &Normalizer{config: config}
}

// lowercased fields get canonical casing so equal configs hash equally.
var lowercasedFields = map[string]bool{
	"contact_email":   true,
	"domain":          true,
	"primary_color":   true,
	"secondary_color": true,
}

// Normalize cleans a raw values map against the category's field set. It
// never fails; values that cannot be coerced to the field's type are
// replaced by the field default.
func (n *Normalizer) Normalize(category Category, raw Values) Values {
	specs := FieldSet(category)
	out := make(Values, len(specs))

	for _, spec := range specs {
		val, present := raw[spec.Name]
		if !present || val == nil {
			if n.config.FillDefaults {
				out[spec.Name] = cloneValue(spec.Default)
			}
			continue
		}
		out[spec.Name] = n.normalizeField(spec, val)
	}

	if !n.config.DropUnknownFields {
		for k, v := range raw {
			if _, known := FieldSpecFor(category, k); !known {
				out[k] = v
			}
		}
	}

	return out
}

func (n *Normalizer) normalizeField(spec FieldSpec, val interface{}) interface{} {
	switch spec.Type {
	case FieldString:
		s, ok := coerceString(val)
		if !ok {
			return cloneValue(spec.Default)
		}
		if n.config.TrimStrings {
			s = strings.TrimSpace(s)
		}
		if n.config.LowercaseIdentifiers && lowercasedFields[spec.Name] {
			s = strings.ToLower(s)
		}
		if spec.Name == "meta_keywords" {
			s = normalizeKeywords(s)
		}
		return s
	case FieldBool:
		b, ok := coerceBool(val)
		if !ok {
			return cloneValue(spec.Default)
		}
		return b
	case FieldInt:
		i, ok := coerceInt(val)
		if !ok {
			return cloneValue(spec.Default)
		}
		return i
	case FieldStringList:
		list, ok := coerceStringList(val)
		if !ok {
			return cloneValue(spec.Default)
		}
		if spec.Name == "allowed_file_extensions" {
			return normalizeExtensions(list)
		}
		if n.config.TrimStrings {
			for i, s := range list {
				list[i] = strings.TrimSpace(s)
			}
		}
		return list
	case FieldBoolMap:
		m, ok := coerceBoolMap(val)
		if !ok {
			return cloneValue(spec.Default)
		}
		return m
	}
	return val
}

// normalizeKeywords collapses a comma-separated keyword list into the
// canonical "a, b, c" form.
func normalizeKeywords(s string) string {
	parts := strings.Split(s, ",")
	keywords := parts[:0]
	for _, p := range parts {
		if kw := strings.TrimSpace(p); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return strings.Join(keywords, ", ")
}

// normalizeExtensions lowercases, dot-prefixes, de-duplicates and sorts
// file extensions.
func normalizeExtensions(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, ext := range list {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if !seen[ext] {
			seen[ext] = true
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}

func coerceString(val interface{}) (string, bool) {
	s, ok := val.(string)
	return s, ok
}

func coerceBool(val interface{}) (bool, bool) {
	switch t := val.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
	}
	return false, false
}

func coerceInt(val interface{}) (int64, bool) {
	switch t := val.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case float64:
		// JSON numbers decode as float64.
		if t == float64(int64(t)) {
			return int64(t), true
		}
	}
	return 0, false
}

func coerceStringList(val interface{}) ([]string, bool) {
	switch t := val.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out, true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func coerceBoolMap(val interface{}) (map[string]bool, bool) {
	switch t := val.(type) {
	case map[string]bool:
		out := make(map[string]bool, len(t))
		for k, v := range t {
			out[k] = v
		}
		return out, true
	case map[string]interface{}:
		out := make(map[string]bool, len(t))
		for k, v := range t {
			b, ok := v.(bool)
			if !ok {
				return nil, false
			}
			out[k] = b
		}
		return out, true
	}
	return nil, false
}
