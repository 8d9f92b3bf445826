package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashValuesIsOrderIndependent(t *testing.T) {
	a := Values{"site_name": "Acme", "domain": "acme.io"}
	b := Values{"domain": "acme.io", "site_name": "Acme"}

	assert.Equal(t, HashValues(a), HashValues(b))
	assert.NotEqual(t, HashValues(a), HashValues(Values{"site_name": "Other"}))
}

func TestParseCategory(t *testing.T) {
	category, err := ParseCategory("theme")
	require.NoError(t, err)
	assert.Equal(t, CategoryTheme, category)

	_, err = ParseCategory("plugins")
	assert.Error(t, err)
}

func TestDefaultDocument(t *testing.T) {
	doc := DefaultDocument(CategoryContent)

	assert.Equal(t, int64(0), doc.Version)
	assert.Equal(t, Defaults(CategoryContent), doc.Values)
	assert.NotEmpty(t, doc.SourceHash)
}

func TestDocumentEqualUsesContentHash(t *testing.T) {
	a := NewDocument(CategorySite, Defaults(CategorySite), 1)
	b := NewDocument(CategorySite, Defaults(CategorySite), 2)

	// Same content, different version: still equal.
	assert.True(t, a.Equal(b))

	c := NewDocument(CategorySite, Values{"site_name": "Other"}, 1)
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestValuesCloneIsDeep(t *testing.T) {
	original := Values{
		"feature_flags":           map[string]bool{"beta": true},
		"allowed_file_extensions": []string{".png"},
	}
	clone := original.Clone()

	clone["feature_flags"].(map[string]bool)["beta"] = false
	clone["allowed_file_extensions"].([]string)[0] = ".exe"

	assert.True(t, original["feature_flags"].(map[string]bool)["beta"])
	assert.Equal(t, ".png", original["allowed_file_extensions"].([]string)[0])
}

func TestDocumentAccessors(t *testing.T) {
	doc := NewDocument(CategorySite, Values{
		"site_name":     "Acme",
		"feature_flags": map[string]bool{"beta": true},
	}, 1)

	assert.Equal(t, "Acme", doc.String("site_name"))
	assert.True(t, doc.FeatureFlag("beta"))
	assert.False(t, doc.FeatureFlag("unknown"))
	assert.Equal(t, "", doc.String("missing"))
	assert.Equal(t, int64(0), doc.Int("missing"))

	var nilDoc *Document
	assert.False(t, nilDoc.FeatureFlag("beta"))
}

func TestMaintenanceModeAccessor(t *testing.T) {
	doc := NewDocument(CategoryContent, Values{
		"maintenance_mode":    true,
		"maintenance_message": "back soon",
	}, 3)

	mode, msg := doc.MaintenanceMode()
	assert.True(t, mode)
	assert.Equal(t, "back soon", msg)
}
