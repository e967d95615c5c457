package detector

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Schema describes the expected shape of one payload kind. Required lists
// fields that must be present and non-nil; Fields maps field names to
// validator tag expressions evaluated against the field's value.
type Schema struct {
	Required []string          `yaml:"required"`
	Fields   map[string]string `yaml:"fields"`
}

// SchemaRegistry holds named payload schemas. Schemas are registered
// programmatically or loaded from a YAML file; lookups are safe for
// concurrent use.
type SchemaRegistry struct {
	mu       sync.RWMutex
	schemas  map[string]*Schema
	validate *validator.Validate
}

// NewSchemaRegistry creates an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{
		schemas:  make(map[string]*Schema),
		validate: validator.New(),
	}
}

// Register adds or replaces the schema for key.
func (r *SchemaRegistry) Register(key string, schema *Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[key] = schema
}

// Get returns the schema for key, or nil when none is registered.
func (r *SchemaRegistry) Get(key string) *Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas[key]
}

// LoadFile merges schemas from a YAML file into the registry. The file has a
// single top-level "schemas" map:
//
//	schemas:
//	  patient_intake:
//	    required: [patient_id, admission_date]
//	    fields:
//	      patient_id: "uuid4"
//	      score: "gte=0,lte=100"
func (r *SchemaRegistry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema file: %w", err)
	}

	var file struct {
		Schemas map[string]*Schema `yaml:"schemas"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse schema file %s: %w", path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, schema := range file.Schemas {
		r.schemas[key] = schema
	}
	return nil
}

// MissingFields returns the required fields absent from payload or present
// with a nil value.
func (s *Schema) MissingFields(payload map[string]interface{}) []string {
	var missing []string
	for _, field := range s.Required {
		v, ok := payload[field]
		if !ok || v == nil {
			missing = append(missing, field)
		}
	}
	return missing
}

// Violations evaluates every field rule against payload and returns one
// message per failed rule. Absent fields are skipped; presence is the
// business of MissingFields.
func (r *SchemaRegistry) Violations(schema *Schema, payload map[string]interface{}) []string {
	var violations []string
	for field, tag := range schema.Fields {
		v, ok := payload[field]
		if !ok || v == nil {
			continue
		}
		if err := r.validate.Var(v, tag); err != nil {
			violations = append(violations, fmt.Sprintf("field %s failed rule %q", field, tag))
		}
	}
	return violations
}
