// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package config

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// SchemaID identifies the generated config schema.
const SchemaID = "https://tripdesk.dev/schemas/config.schema.json"

var compiledSchema = sync.OnceValues(compileSchema)

// GenerateSchema returns the JSON schema of the config file.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := r.Reflect(&Config{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Tripdesk configuration"
	schema.Description = "Schema for the tripdesk config.yaml file"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}
	return data, nil
}

func compileSchema() (*jschema.Schema, error) {
	data, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource(SchemaID, doc); err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}
	sch, err := c.Compile(SchemaID)
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}
	return sch, nil
}

// ValidateDocument checks a YAML config document against the schema.
// Unknown keys and wrongly typed values are rejected.
func ValidateDocument(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "parse yaml").Wrap(err)
	}
	if doc == nil {
		return nil
	}

	// Round-trip through JSON so the validator sees JSON types.
	raw, err := json.Marshal(doc)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "convert yaml").Wrap(err)
	}
	inst, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "convert yaml").Wrap(err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(inst); err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "validate schema").Wrap(err)
	}
	return nil
}
