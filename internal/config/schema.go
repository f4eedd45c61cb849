package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/quantlab/backtest-engine/pkg/errors"
)

// GenerateSchema reflects Config into a JSON Schema document, the same way
// the engine reflects strategy/indicator param structs for the UI.
func GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
	}

	schema := reflector.Reflect(&Config{})
	schema.Title = "backtest-engine-config"
	schema.Description = "Engine configuration schema (db connection and job defaults)"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON renders GenerateSchema as indented JSON.
func GenerateSchemaJSON() (string, error) {
	bytes, err := json.MarshalIndent(GenerateSchema(), "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeUnknown, "failed to marshal config schema", err)
	}

	return string(bytes), nil
}
