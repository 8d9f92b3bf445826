// Package audit provides the append-only change log for accepted
// configuration writes. Records are created exactly once per accepted write
// and are never mutated or deleted by this module.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/confsys/sitecfg/pkg/schema"
)

// Record is one immutable audit entry.
type Record struct {
	ID               string           `json:"id"`
	Category         schema.Category  `json:"category"`
	Operation        schema.Operation `json:"operation"`
	Actor            string           `json:"actor"`
	Timestamp        time.Time        `json:"timestamp"`
	ResultingVersion int64            `json:"resulting_version"`
	Diff             *Diff            `json:"diff,omitempty"`
}

// ActorSystem is recorded when no caller identity is available.
const ActorSystem = "system"

// NewRecord builds a record for one accepted write. Actor defaults to
// ActorSystem when empty; the diff may be empty for a create.
func NewRecord(category schema.Category, op schema.Operation, actor string, previous, current schema.Values, version int64) *Record {
	if actor == "" {
		actor = ActorSystem
	}
	return &Record{
		ID:               uuid.NewString(),
		Category:         category,
		Operation:        op,
		Actor:            actor,
		Timestamp:        time.Now().UTC(),
		ResultingVersion: version,
		Diff:             ComputeDiff(previous, current),
	}
}

// Diff captures the previous and new value of every changed field.
type Diff struct {
	Before schema.Values `json:"before,omitempty"`
	After  schema.Values `json:"after,omitempty"`
}

// ComputeDiff returns the per-field difference between two value maps,
// keeping only keys whose value changed. Returns nil when nothing changed.
func ComputeDiff(previous, current schema.Values) *Diff {
	diff := &Diff{Before: schema.Values{}, After: schema.Values{}}

	keys := make(map[string]bool, len(previous)+len(current))
	for k := range previous {
		keys[k] = true
	}
	for k := range current {
		keys[k] = true
	}

	for k := range keys {
		before, after := previous[k], current[k]
		if !valuesEqual(before, after) {
			if before != nil {
				diff.Before[k] = before
			}
			if after != nil {
				diff.After[k] = after
			}
		}
	}

	if len(diff.Before) == 0 && len(diff.After) == 0 {
		return nil
	}
	return diff
}

// valuesEqual compares field values through their JSON form, which covers
// the map and slice types a Values map can hold.
func valuesEqual(a, b interface{}) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}

// ChangedFields lists the names of fields the diff touches.
func (d *Diff) ChangedFields() []string {
	if d == nil {
		return nil
	}
	seen := make(map[string]bool)
	var fields []string
	for k := range d.Before {
		if !seen[k] {
			seen[k] = true
			fields = append(fields, k)
		}
	}
	for k := range d.After {
		if !seen[k] {
			seen[k] = true
			fields = append(fields, k)
		}
	}
	return fields
}

// Filter narrows Recent queries.
type Filter struct {
	// Category restricts results to one category when non-nil.
	Category *schema.Category
	// Actor restricts results to one actor when non-empty.
	Actor string
	// Limit bounds the result size; zero applies DefaultLimit.
	Limit int
}

// DefaultLimit bounds unbounded Recent queries.
const DefaultLimit = 50
