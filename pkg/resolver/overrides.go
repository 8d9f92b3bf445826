package resolver

import (
	"os"
	"strconv"
	"strings"

	"github.com/confsys/sitecfg/pkg/schema"
)

// Environment overrides sit between the persisted store and schema
// defaults: for fields marked override-eligible, a set
// SITECFG_OVERRIDE_<CATEGORY>_<FIELD> variable replaces whatever the store
// holds. Overrides are captured once at construction; the resolved
// document already reflects them when it is cached.

const overridePrefix = "SITECFG_OVERRIDE_"

func loadOverrides(lookup func(string) (string, bool)) map[schema.Category]schema.Values {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	validator := schema.NewValidator(nil)
	out := make(map[schema.Category]schema.Values)
	for _, category := range schema.Categories() {
		for _, field := range schema.OverridableFields(category) {
			key := overridePrefix + strings.ToUpper(category.String()) + "_" + strings.ToUpper(field)
			raw, ok := lookup(key)
			if !ok {
				continue
			}
			spec, _ := schema.FieldSpecFor(category, field)
			val, ok := parseOverride(spec, raw)
			if !ok {
				continue
			}
			if !overrideValid(validator, category, field, val) {
				continue
			}
			if out[category] == nil {
				out[category] = schema.Values{}
			}
			out[category][field] = val
		}
	}
	return out
}

// overrideValid checks the candidate value against the schema once, merged
// over the category defaults. A value the validator would reject is dropped
// here instead of poisoning every document it would later be merged into.
func overrideValid(validator *schema.Validator, category schema.Category, field string, val interface{}) bool {
	merged := schema.Defaults(category)
	merged[field] = val
	result := validator.Validate(category, merged)
	if result.Valid {
		return true
	}
	for _, ferr := range result.Errors {
		if ferr.Field == field {
			return false
		}
	}
	return true
}

func parseOverride(spec schema.FieldSpec, raw string) (interface{}, bool) {
	raw = strings.TrimSpace(raw)
	switch spec.Type {
	case schema.FieldString:
		return raw, true
	case schema.FieldBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, false
		}
		return b, true
	case schema.FieldInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, false
		}
		return i, true
	case schema.FieldStringList:
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

func (s *Service) applyOverrides(category schema.Category, values schema.Values) schema.Values {
	overrides := s.overrides[category]
	if len(overrides) == 0 {
		return values
	}
	for field, val := range overrides {
		values[field] = val
	}
	return values
}
