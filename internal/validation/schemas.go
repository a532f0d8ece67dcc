package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const (
	// ClickEventsSchema is the stored events_json document.
	ClickEventsSchema = "click-events"
	// PurchasesSchema is the stored purchased_json document.
	PurchasesSchema = "purchases"
	// BoughtTogetherSchema is a JSON-encoded bought_together list.
	BoughtTogetherSchema = "bought-together"
)

// Schemas constrain only the document shape. Individual entries that carry
// no usable id are skipped by the decoder.
var builtinSchemas = map[string]string{
	ClickEventsSchema: `{
		"type": "object",
		"properties": {
			"click": {"type": "array"}
		}
	}`,
	PurchasesSchema: `{
		"type": "array"
	}`,
	BoughtTogetherSchema: `{
		"type": "array"
	}`,
}

// SchemaValidator checks stored JSON documents before they are decoded
type SchemaValidator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewSchemaValidator compiles the built-in record schemas
func NewSchemaValidator() (*SchemaValidator, error) {
	sv := &SchemaValidator{
		schemas: make(map[string]*gojsonschema.Schema, len(builtinSchemas)),
	}

	for name, source := range builtinSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
		if err != nil {
			return nil, fmt.Errorf("failed to load schema %s: %w", name, err)
		}
		sv.schemas[name] = schema
	}

	return sv, nil
}

// MustNewSchemaValidator is NewSchemaValidator for package-level setup.
func MustNewSchemaValidator() *SchemaValidator {
	sv, err := NewSchemaValidator()
	if err != nil {
		panic(err)
	}
	return sv
}

// Validate checks a raw JSON document against a named schema
func (sv *SchemaValidator) Validate(schemaName string, document []byte) *ValidationResult {
	schema, exists := sv.schemas[schemaName]
	if !exists {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "schema",
				Message: fmt.Sprintf("Schema '%s' not found", schemaName),
				Code:    "SCHEMA_NOT_FOUND",
			}},
		}
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		// Not parseable as JSON at all
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "document",
				Message: fmt.Sprintf("Validation error: %v", err),
				Code:    "MALFORMED_DOCUMENT",
			}},
		}
	}

	validationResult := &ValidationResult{
		Valid:  result.Valid(),
		Errors: make([]ValidationError, 0),
	}

	if !result.Valid() {
		for _, err := range result.Errors() {
			validationResult.Errors = append(validationResult.Errors, ValidationError{
				Field:   err.Field(),
				Message: err.Description(),
				Code:    "VALIDATION_ERROR",
				Value:   err.Value(),
				Context: err.Context().String(),
			})
		}
	}

	return validationResult
}

// ValidationResult represents the result of a validation operation
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Value   interface{} `json:"value,omitempty"`
	Context string      `json:"context,omitempty"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", ve.Field, ve.Message)
}

// FirstError returns the first validation error, or nil when the document
// is valid.
func (vr *ValidationResult) FirstError() error {
	if vr.Valid || len(vr.Errors) == 0 {
		return nil
	}
	return vr.Errors[0]
}
