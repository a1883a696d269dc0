package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// flowSchema is a permissive structural check on the input flow document:
// it enforces the top-level "functions" array, that each step is an object
// with at least one key, and that a recognized step key holds an object. It
// does not limit a step to a single key, reject unrecognized step keys, or
// check the fields inside a step, so that the format's "unknown fields are
// accepted and ignored" rule holds; the flow decoder reports those cases.
const flowSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["functions"],
  "properties": {
    "functions": {
      "type": "array",
      "items": { "$ref": "#/definitions/step" }
    }
  },
  "definitions": {
    "step": {
      "type": "object",
      "minProperties": 1,
      "properties": {
        "HttpRequest": { "type": "object" },
        "Sleep": { "type": "object" },
        "RunScript": { "type": "object" },
        "LoadGen": { "type": "object" }
      }
    }
  }
}`

// ValidationErrors collects every schema violation found in one document.
type ValidationErrors []error

func (ve ValidationErrors) Error() string {
	parts := make([]string, len(ve))
	for i, err := range ve {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}

// ValidateFlow checks raw flow JSON against the flow schema before it is
// handed to the flow package's decoder. It returns the validation failures,
// if any. Input that is not valid JSON, and a compile or schema-loading error
// (a bug in flowSchema itself), are returned separately as the error.
func ValidateFlow(raw []byte) (ValidationErrors, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("flow.json", strings.NewReader(flowSchema)); err != nil {
		return nil, fmt.Errorf("config: compiling flow schema: %w", err)
	}
	schema, err := compiler.Compile("flow.json")
	if err != nil {
		return nil, fmt.Errorf("config: compiling flow schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: flow is not valid JSON: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		validationErr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return ValidationErrors{err}, nil
		}
		return extractValidationErrors(validationErr), nil
	}

	return nil, nil
}

func extractValidationErrors(err *jsonschema.ValidationError) ValidationErrors {
	var errs ValidationErrors
	if err.Message != "" {
		errs = append(errs, fmt.Errorf("at %s: %s", err.InstanceLocation, err.Message))
	}
	for _, cause := range err.Causes {
		errs = append(errs, extractValidationErrors(cause)...)
	}
	return errs
}
