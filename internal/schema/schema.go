// Package schema describes the probe's request and response shapes as JSON
// schema, for harness authors who stand in for the completion endpoint.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/stoewer/go-strcase"

	"github.com/logkn/poemprobe/internal/completion"
)

// Reflect generates a JSON schema for v. Struct fields without a json tag are
// named in snake_case.
func Reflect(v any) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		KeyNamer:       strcase.SnakeCase,
		DoNotReference: true,
	}
	return r.Reflect(v)
}

// Document returns the request and response schemas keyed by name.
func Document() map[string]*jsonschema.Schema {
	return map[string]*jsonschema.Schema{
		"request":  Reflect(completion.Request{}),
		"response": Reflect(completion.Response{}),
	}
}

// Dumps renders the document as indented JSON without HTML escaping.
func Dumps(doc map[string]*jsonschema.Schema) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}
	return buf.String(), nil
}
