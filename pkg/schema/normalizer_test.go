package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFillsDefaultsForEmptyPayload(t *testing.T) {
	n := NewNormalizer(nil)

	out := n.Normalize(CategorySite, Values{})

	assert.Equal(t, "My Site", out["site_name"])
	assert.Equal(t, "", out["domain"])
	assert.Equal(t, map[string]bool{}, out["feature_flags"])
}

func TestNormalizeTrimsAndLowercases(t *testing.T) {
	n := NewNormalizer(nil)

	out := n.Normalize(CategorySite, Values{
		"site_name":     "  Acme Corp  ",
		"contact_email": " Admin@Example.COM ",
		"domain":        "EXAMPLE.com",
	})

	assert.Equal(t, "Acme Corp", out["site_name"])
	assert.Equal(t, "admin@example.com", out["contact_email"])
	assert.Equal(t, "example.com", out["domain"])
}

func TestNormalizeDropsUnknownFields(t *testing.T) {
	n := NewNormalizer(nil)

	out := n.Normalize(CategorySite, Values{
		"site_name":    "Acme",
		"legacy_field": "stale",
	})

	_, present := out["legacy_field"]
	assert.False(t, present)
}

func TestNormalizeKeepsUnknownFieldsWhenConfigured(t *testing.T) {
	n := NewNormalizer(&NormalizationConfig{FillDefaults: true})

	out := n.Normalize(CategorySite, Values{"legacy_field": "kept"})

	assert.Equal(t, "kept", out["legacy_field"])
}

func TestNormalizeCoercesTypes(t *testing.T) {
	n := NewNormalizer(nil)

	tests := []struct {
		name     string
		category Category
		field    string
		input    interface{}
		want     interface{}
	}{
		{"string bool", CategoryContent, "comments_enabled", "true", true},
		{"numeric bool", CategoryContent, "comments_enabled", "0", false},
		{"yes bool", CategoryContent, "maintenance_mode", "yes", true},
		{"json float int", CategoryContent, "max_upload_size_mb", float64(25), int64(25)},
		{"native int", CategoryContent, "max_upload_size_mb", 25, int64(25)},
		{"interface list", CategoryContent, "allowed_file_extensions", []interface{}{".png", ".gif"}, []string{".gif", ".png"}},
		{"interface bool map", CategorySite, "feature_flags", map[string]interface{}{"beta": true}, map[string]bool{"beta": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := n.Normalize(tt.category, Values{tt.field: tt.input})
			assert.Equal(t, tt.want, out[tt.field])
		})
	}
}

func TestNormalizeUncoercibleValueFallsBackToDefault(t *testing.T) {
	n := NewNormalizer(nil)

	out := n.Normalize(CategoryContent, Values{
		"max_upload_size_mb": "lots",
		"maintenance_mode":   "maybe",
	})

	assert.Equal(t, int64(10), out["max_upload_size_mb"])
	assert.Equal(t, false, out["maintenance_mode"])
}

func TestNormalizeKeywords(t *testing.T) {
	n := NewNormalizer(nil)

	out := n.Normalize(CategorySEO, Values{
		"meta_keywords": "  go ,  config,,caching ",
	})

	assert.Equal(t, "go, config, caching", out["meta_keywords"])
}

func TestNormalizeExtensions(t *testing.T) {
	n := NewNormalizer(nil)

	out := n.Normalize(CategoryContent, Values{
		"allowed_file_extensions": []string{"PNG", ".png", " jpg ", ""},
	})

	assert.Equal(t, []string{".jpg", ".png"}, out["allowed_file_extensions"])
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := NewNormalizer(nil)

	raw := Values{
		"site_name":     "  Acme  ",
		"contact_email": "INFO@acme.IO",
		"feature_flags": map[string]interface{}{"beta": true},
	}

	once := n.Normalize(CategorySite, raw)
	twice := n.Normalize(CategorySite, once)

	require.Equal(t, once, twice)
	assert.Equal(t, HashValues(once), HashValues(twice))
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	n := NewNormalizer(nil)

	raw := Values{"site_name": "  Acme  "}
	n.Normalize(CategorySite, raw)

	assert.Equal(t, "  Acme  ", raw["site_name"])
}
