// Package validation checks job variables against JSON schemas.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateInput validates input against a JSON schema document.
// An empty schema accepts everything.
func ValidateInput(input map[string]interface{}, schema map[string]interface{}) (*ValidationResult, error) {
	if len(schema) == 0 {
		return &ValidationResult{Valid: true}, nil
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(input))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if prop, ok := desc.Details()["property"].(string); ok && desc.Type() == "required" {
			field = prop
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// CompileSchema reports whether schema is a loadable JSON schema.
func CompileSchema(schema map[string]interface{}) error {
	if len(schema) == 0 {
		return nil
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema)); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	return nil
}

// ValidateActivityNaming validates activity ID follows naming convention
func ValidateActivityNaming(activityId string) error {
	namingPattern := regexp.MustCompile(`^[a-z]+\.[a-z]+\.[a-z]+$`)
	if !namingPattern.MatchString(activityId) {
		return fmt.Errorf("activity ID must follow format: domain.subdomain.action (e.g., review.mapping.complete)")
	}
	return nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors reports whether field has any error.
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}
