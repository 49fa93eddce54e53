// Package schema validates week files and their events against embedded
// JSON Schemas before they are merged into an archive.
package schema

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed week.schema.json
var weekSchemaJSON string

// ValidationError lists every schema violation of a document.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// SchemaLoadError represents errors loading or compiling the schema itself.
type SchemaLoadError struct {
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema: %s: %v", e.Message, e.Cause)
	}
	return "failed to load schema: " + e.Message
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

//go:embed event.schema.json
var eventSchemaJSON string

// compiled lazily compiles one embedded schema.
type compiled struct {
	name   string
	source *string
	once   sync.Once
	schema *gojsonschema.Schema
	err    error
}

func (c *compiled) get() (*gojsonschema.Schema, error) {
	c.once.Do(func() {
		c.schema, c.err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(*c.source))
		if c.err != nil {
			c.err = &SchemaLoadError{Message: c.name, Cause: c.err}
		}
	})
	return c.schema, c.err
}

var (
	weekSchema  = &compiled{name: "week schema", source: &weekSchemaJSON}
	eventSchema = &compiled{name: "event schema", source: &eventSchemaJSON}
)

// ValidateWeekFile checks the envelope of raw week-file JSON: an object with
// an events list. Events themselves are checked one by one with
// ValidateEvent. Malformed JSON is reported as a plain error, schema
// violations as *ValidationError.
func ValidateWeekFile(data []byte) error {
	return validate(weekSchema, data, "week document")
}

// ValidateEvent checks one raw event object of a week file.
func ValidateEvent(data []byte) error {
	return validate(eventSchema, data, "event")
}

func validate(c *compiled, data []byte, what string) error {
	s, err := c.get()
	if err != nil {
		return err
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("load %s: %w", what, err)
	}
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
