package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// configSchema is the structural contract a simulation definition must
// satisfy before it is ever handed to the orchestrator. It deliberately
// only constrains shape (required fields, types, minimum counts such as
// at least one scenario with at least one step); cross-field business
// rules — an execution block needing exactly one termination policy,
// unique scenario names, data-source references that resolve — are
// checked separately by validateBusinessRules, which Validate runs after
// the schema.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["scenarios"],
  "properties": {
    "scenarios": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "steps"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "weight": {"type": "integer", "minimum": 0},
          "rate": {"type": "integer", "minimum": 0},
          "steps": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["name", "method", "url"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "method": {"type": "string", "minLength": 1},
                "url": {"type": "string", "minLength": 1}
              }
            }
          }
        }
      }
    },
    "execution": {
      "type": "object",
      "properties": {
        "concurrency": {"type": "integer", "minimum": 0},
        "rate": {"type": "integer", "minimum": 0},
        "requestCount": {"type": "integer", "minimum": 0},
        "fixedRuns": {"type": "integer", "minimum": 0},
        "timeoutMs": {"type": "integer", "minimum": 0}
      }
    }
  }
}`

// ValidationError is one field-level validation failure, identified by a
// dotted/indexed path into the document (e.g. "scenarios[1].steps[0].url").
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors collects every failure found by one Validate call.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	parts := make([]string, len(ve))
	for i, e := range ve {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("maestro-config.json", strings.NewReader(configSchema)); err != nil {
		panic("config: invalid embedded schema: " + err.Error())
	}
	schema, err := compiler.Compile("maestro-config.json")
	if err != nil {
		panic("config: embedded schema failed to compile: " + err.Error())
	}
	return schema
}

// Validate checks raw (the original YAML file's bytes, already decoded
// into cfg by Load) against the schema, then runs the business-rule
// checks a schema can't express. It returns a ValidationErrors wrapping
// every failure found, or nil if cfg is a valid simulation definition.
// This is the spec's "Validation error" category: surfaced to the caller
// before any worker launches, never as a panic or a partial run.
func Validate(raw []byte, cfg *Config) error {
	var errs ValidationErrors

	if doc, err := yamlToJSONCompatible(raw); err == nil {
		if err := compiledSchema.Validate(doc); err != nil {
			errs = append(errs, schemaValidationErrors(err)...)
		}
	}

	errs = append(errs, validateBusinessRules(cfg)...)

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// yamlToJSONCompatible decodes raw YAML into a generic document and
// round-trips it through JSON so the jsonschema library — which only
// understands JSON-shaped Go values (map[string]any, []any, string,
// float64, bool, nil) — never sees a yaml.v3-specific type like
// time.Duration or yaml.Node.
func yamlToJSONCompatible(raw []byte) (any, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func schemaValidationErrors(err error) ValidationErrors {
	valErr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return ValidationErrors{{Path: "<root>", Message: err.Error()}}
	}
	return flattenSchemaError(valErr)
}

func flattenSchemaError(err *jsonschema.ValidationError) ValidationErrors {
	var out ValidationErrors
	if err.Message != "" && len(err.Causes) == 0 {
		out = append(out, ValidationError{
			Path:    schemaPath(err.InstanceLocation),
			Message: err.Message,
		})
	}
	for _, cause := range err.Causes {
		out = append(out, flattenSchemaError(cause)...)
	}
	return out
}

func schemaPath(location string) string {
	trimmed := strings.Trim(location, "/")
	if trimmed == "" {
		return "<root>"
	}
	return strings.Join(strings.Split(trimmed, "/"), ".")
}

// validateBusinessRules checks the cross-field invariants a JSON Schema
// can't express: exactly one termination policy, unique scenario names,
// data-source references that resolve, HTTP methods the httpstep package
// actually knows how to send.
func validateBusinessRules(cfg *Config) ValidationErrors {
	var errs ValidationErrors
	if cfg == nil {
		return errs
	}

	policies := 0
	if cfg.Execution.Duration > 0 {
		policies++
	}
	if cfg.Execution.RequestCount > 0 {
		policies++
	}
	if cfg.Execution.FixedRuns > 0 {
		policies++
	}
	if policies != 1 {
		errs = append(errs, ValidationError{
			Path:    "execution",
			Message: fmt.Sprintf("exactly one of duration, requestCount, or fixedRuns must be set, found %d", policies),
		})
	}

	names := make(map[string]bool, len(cfg.Scenarios))
	for i, scn := range cfg.Scenarios {
		path := fmt.Sprintf("scenarios[%d]", i)
		if names[scn.Name] {
			errs = append(errs, ValidationError{Path: path + ".name", Message: fmt.Sprintf("duplicate scenario name %q", scn.Name)})
		}
		names[scn.Name] = true

		if scn.DataSource != "" {
			if _, ok := cfg.DataSources[scn.DataSource]; !ok {
				errs = append(errs, ValidationError{
					Path:    path + ".dataSource",
					Message: fmt.Sprintf("references undefined data source %q", scn.DataSource),
				})
			}
		}

		for j, step := range scn.Steps {
			if !validMethod(step.Method) {
				errs = append(errs, ValidationError{
					Path:    fmt.Sprintf("%s.steps[%d].method", path, j),
					Message: fmt.Sprintf("unsupported HTTP method %q", step.Method),
				})
			}
		}
	}

	return errs
}

func validMethod(m string) bool {
	switch strings.ToUpper(m) {
	case "GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS":
		return true
	default:
		return false
	}
}
