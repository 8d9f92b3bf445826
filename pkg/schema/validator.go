package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Validator performs schema and business-rule validation on normalized
// configuration values. Validation never mutates its input and reports
// every violated field in a single pass.
type Validator struct {
	config *ValidationConfig
}

// ValidationConfig defines validation rules.
type ValidationConfig struct {
	// EnforceLengthBounds checks string length limits per field.
	EnforceLengthBounds bool
	// EnforceURLFormat checks URL-shaped fields for well-formedness.
	EnforceURLFormat bool
	// EnforceCrossFieldRules applies rules spanning more than one field.
	EnforceCrossFieldRules bool
	// RejectDangerousContent blocks script tags and executable upload types.
	RejectDangerousContent bool
}

// DefaultValidationConfig returns default validation settings.
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		EnforceLengthBounds:    true,
		EnforceURLFormat:       true,
		EnforceCrossFieldRules: true,
		RejectDangerousContent: true,
	}
}

// NewValidator creates a new validator.
func NewValidator(config *ValidationConfig) *Validator {
	if config == nil {
		config = DefaultValidationConfig()
	}
	return &Validator{config: config}
}

// FieldError describes one violated field.
type FieldError struct {
	Field   string
	Rule    string
	Message string
}

func (e *FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult contains all violations found in one pass.
type ValidationResult struct {
	Errors   []*FieldError
	Warnings []*FieldError
	Valid    bool
}

func (r *ValidationResult) addError(field, rule, message string) {
	r.Errors = append(r.Errors, &FieldError{Field: field, Rule: rule, Message: message})
}

func (r *ValidationResult) addWarning(field, rule, message string) {
	r.Warnings = append(r.Warnings, &FieldError{Field: field, Rule: rule, Message: message})
}

// Err returns a *ValidationError when the result is invalid, nil otherwise.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Fields: r.Errors}
}

// ValidationError is the error form of a failed validation; it carries
// every violated field so a caller can report all problems at once.
type ValidationError struct {
	Fields []*FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.String()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

var (
	emailPattern      = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	domainPattern     = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9.-]*\.[a-zA-Z0-9]+$`)
	ga4Pattern        = regexp.MustCompile(`^G-[A-Z0-9]{10}$`)
	uaPattern         = regexp.MustCompile(`^UA-\d+-\d+$`)
	verifyPattern     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	extensionPattern  = regexp.MustCompile(`^\.[a-z0-9]+$`)
	dangerousUploads  = map[string]bool{".exe": true, ".bat": true, ".cmd": true, ".com": true, ".pif": true, ".scr": true, ".vbs": true, ".js": true, ".jar": true, ".php": true, ".asp": true, ".aspx": true, ".jsp": true}
	imageExtensions   = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".ico"}
	dangerousMarkup   = []string{"<script", "<iframe", "<object", "<embed"}
)

// Validate checks normalized values against the category schema and the
// category's business rules. Every violation is collected; the pass never
// stops at the first error.
func (v *Validator) Validate(category Category, values Values) *ValidationResult {
	result := &ValidationResult{Valid: true}

	for _, spec := range FieldSet(category) {
		val, present := values[spec.Name]
		if !present {
			continue
		}
		v.validateField(spec, val, result)
	}

	if v.config.EnforceCrossFieldRules {
		v.validateCrossField(category, values, result)
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func (v *Validator) validateField(spec FieldSpec, val interface{}, result *ValidationResult) {
	switch spec.Type {
	case FieldString:
		s, ok := val.(string)
		if !ok {
			result.addError(spec.Name, "TYPE", fmt.Sprintf("expected string, got %T", val))
			return
		}
		v.validateString(spec, s, result)
	case FieldBool:
		if _, ok := val.(bool); !ok {
			result.addError(spec.Name, "TYPE", fmt.Sprintf("expected bool, got %T", val))
		}
	case FieldInt:
		i, ok := val.(int64)
		if !ok {
			result.addError(spec.Name, "TYPE", fmt.Sprintf("expected integer, got %T", val))
			return
		}
		if i < spec.Min || i > spec.Max {
			result.addError(spec.Name, "RANGE",
				fmt.Sprintf("value %d outside allowed range [%d, %d]", i, spec.Min, spec.Max))
		}
	case FieldStringList:
		list, ok := val.([]string)
		if !ok {
			result.addError(spec.Name, "TYPE", fmt.Sprintf("expected string list, got %T", val))
			return
		}
		if spec.Name == "allowed_file_extensions" {
			v.validateExtensions(spec.Name, list, result)
		}
	case FieldBoolMap:
		if _, ok := val.(map[string]bool); !ok {
			result.addError(spec.Name, "TYPE", fmt.Sprintf("expected bool map, got %T", val))
		}
	}
}

func (v *Validator) validateString(spec FieldSpec, s string, result *ValidationResult) {
	if v.config.EnforceLengthBounds {
		if len(s) < spec.MinLen {
			result.addError(spec.Name, "MIN_LENGTH",
				fmt.Sprintf("must be at least %d characters", spec.MinLen))
		}
		if spec.MaxLen > 0 && len(s) > spec.MaxLen {
			result.addError(spec.Name, "MAX_LENGTH",
				fmt.Sprintf("must be %d characters or less", spec.MaxLen))
		}
	}
	if s == "" {
		return
	}

	switch spec.Name {
	case "contact_email":
		if !emailPattern.MatchString(s) {
			result.addError(spec.Name, "EMAIL_FORMAT", "invalid email format")
		}
	case "domain":
		if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
			result.addError(spec.Name, "DOMAIN_FORMAT", "domain must not include protocol")
		} else if !domainPattern.MatchString(s) {
			result.addError(spec.Name, "DOMAIN_FORMAT", "invalid domain format")
		}
	case "canonical_url", "og_image":
		if v.config.EnforceURLFormat && !isSiteURL(s) {
			result.addError(spec.Name, "URL_FORMAT",
				"must be absolute http(s) or a site-relative path")
		}
	case "favicon_url", "logo_url":
		if v.config.EnforceURLFormat {
			if !isSiteURL(s) {
				result.addError(spec.Name, "URL_FORMAT",
					"must be absolute http(s) or a site-relative path")
			} else if !hasImageExtension(s) {
				result.addError(spec.Name, "IMAGE_FORMAT",
					"must end with one of: "+strings.Join(imageExtensions, ", "))
			}
		}
	case "google_analytics_id":
		if !ga4Pattern.MatchString(s) && !uaPattern.MatchString(s) {
			result.addError(spec.Name, "GA_ID_FORMAT",
				"expected G-XXXXXXXXXX (GA4) or UA-XXXXXXXX-X (Universal Analytics)")
		}
	case "google_site_verification":
		if len(s) < 40 || len(s) > 50 {
			result.addError(spec.Name, "VERIFICATION_LENGTH",
				"verification code should be 40-50 characters")
		} else if !verifyPattern.MatchString(s) {
			result.addError(spec.Name, "VERIFICATION_FORMAT",
				"verification code may only contain letters, numbers, hyphens and underscores")
		}
	case "primary_color", "secondary_color":
		if !isHexColor(s) {
			result.addError(spec.Name, "COLOR_FORMAT", "color must be #rgb or #rrggbb hex")
		}
	case "custom_css":
		v.validateCSS(spec.Name, s, result)
	case "maintenance_message":
		if v.config.RejectDangerousContent {
			lower := strings.ToLower(s)
			for _, tag := range dangerousMarkup {
				if strings.Contains(lower, tag) {
					result.addError(spec.Name, "UNSAFE_MARKUP",
						fmt.Sprintf("message cannot contain %s tags", tag))
				}
			}
		}
	}
}

func (v *Validator) validateCSS(field, css string, result *ValidationResult) {
	if v.config.RejectDangerousContent {
		lower := strings.ToLower(css)
		if strings.Contains(lower, "<script") {
			result.addError(field, "UNSAFE_CSS", "custom CSS cannot contain script tags")
		}
		if strings.Contains(lower, "javascript:") {
			result.addError(field, "UNSAFE_CSS", "custom CSS cannot contain javascript: URLs")
		}
	}
	if strings.Count(css, "{") != strings.Count(css, "}") {
		result.addError(field, "CSS_SYNTAX", "custom CSS has unbalanced braces")
	}
}

func (v *Validator) validateExtensions(field string, list []string, result *ValidationResult) {
	for _, ext := range list {
		if len(ext) > 10 {
			result.addError(field, "EXTENSION_LENGTH", fmt.Sprintf("extension %q is too long", ext))
			continue
		}
		if !extensionPattern.MatchString(ext) {
			result.addError(field, "EXTENSION_FORMAT", fmt.Sprintf("invalid extension %q", ext))
			continue
		}
		if v.config.RejectDangerousContent && dangerousUploads[ext] {
			result.addError(field, "EXTENSION_UNSAFE",
				fmt.Sprintf("extension %q is not allowed for security reasons", ext))
		}
	}
}

func (v *Validator) validateCrossField(category Category, values Values, result *ValidationResult) {
	switch category {
	case CategoryContent:
		mode, _ := values["maintenance_mode"].(bool)
		msg, _ := values["maintenance_message"].(string)
		if mode && strings.TrimSpace(msg) == "" {
			result.addError("maintenance_message", "REQUIRED_WITH",
				"maintenance_message is required while maintenance_mode is enabled")
		}
	case CategorySEO:
		noindex, _ := values["noindex"].(bool)
		canonical, _ := values["canonical_url"].(string)
		if noindex && canonical != "" {
			result.addWarning("canonical_url", "CONTRADICTORY",
				"canonical_url has no effect while noindex is enabled")
		}
	}
}

func isSiteURL(s string) bool {
	return strings.HasPrefix(s, "/") ||
		strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://")
}

func hasImageExtension(s string) bool {
	lower := strings.ToLower(s)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func isHexColor(s string) bool {
	if !strings.HasPrefix(s, "#") {
		return false
	}
	if len(s) != 4 && len(s) != 7 {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
