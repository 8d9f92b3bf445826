package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Values is a mapping of field name to resolved field value.
type Values map[string]interface{}

// Clone returns a deep copy of the values map.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = cloneValue(val)
	}
	return out
}

func cloneValue(val interface{}) interface{} {
	switch t := val.(type) {
	case map[string]bool:
		m := make(map[string]bool, len(t))
		for k, b := range t {
			m[k] = b
		}
		return m
	case []string:
		s := make([]string, len(t))
		copy(s, t)
		return s
	default:
		return val
	}
}

// Document is the resolved, validated configuration for one category.
// Version starts at 0 for a category that has never been written and
// increases by exactly one per accepted write.
type Document struct {
	Category   Category  `json:"category"`
	Values     Values    `json:"values"`
	Version    int64     `json:"version"`
	SourceHash string    `json:"source_hash"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// NewDocument builds a document and stamps its content fingerprint.
func NewDocument(category Category, values Values, version int64) *Document {
	return &Document{
		Category:   category,
		Values:     values,
		Version:    version,
		SourceHash: HashValues(values),
		ResolvedAt: time.Now().UTC(),
	}
}

// DefaultDocument returns the schema-default document for a category at
// version 0.
func DefaultDocument(category Category) *Document {
	return NewDocument(category, Defaults(category), 0)
}

// Equal reports whether two documents carry the same content, using the
// source hash as a cheap equality check.
func (d *Document) Equal(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.Category == other.Category && d.SourceHash == other.SourceHash
}

// HashValues computes a stable content fingerprint of a values map.
// JSON marshalling sorts map keys, so equal maps hash equally.
func HashValues(values Values) string {
	data, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
