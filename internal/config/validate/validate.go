package validate

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema/*.json
var schemaFS embed.FS

const (
	configSchemaName   = "config.schema.json"
	manifestSchemaName = "manifest.schema.json"
)

// ValidateAgainstSchema validates JSON data against the named schema. ref
// optionally selects a sub-schema, e.g. "#/definitions/asset".
func ValidateAgainstSchema(name string, schema []byte, data []byte, ref string) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(schema)); err != nil {
		return fmt.Errorf("loading schema %s: %w", name, err)
	}

	sch, err := compiler.Compile(name + ref)
	if err != nil {
		return fmt.Errorf("compiling schema %s%s: %w", name, ref, err)
	}

	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON document: %w", err)
	}

	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema validation against %s failed: %w", name, err)
	}
	return nil
}

// ValidateConfigJSON validates a configuration document.
func ValidateConfigJSON(data []byte) error {
	schema, err := schemaFS.ReadFile("schema/" + configSchemaName)
	if err != nil {
		return fmt.Errorf("reading config schema: %w", err)
	}
	return ValidateAgainstSchema(configSchemaName, schema, data, "")
}

// ValidateConfigYAML converts a YAML configuration to JSON and validates it.
func ValidateConfigYAML(data []byte) error {
	jsonData, err := YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("converting YAML to JSON: %w", err)
	}
	return ValidateConfigJSON(jsonData)
}

// ValidateAssetJSON validates a single asset entry object.
func ValidateAssetJSON(data []byte) error {
	schema, err := schemaFS.ReadFile("schema/" + configSchemaName)
	if err != nil {
		return fmt.Errorf("reading config schema: %w", err)
	}
	return ValidateAgainstSchema(configSchemaName, schema, data, "#/definitions/asset")
}

// ValidateManifestJSON validates the shape of a remote manifest.
func ValidateManifestJSON(data []byte) error {
	schema, err := schemaFS.ReadFile("schema/" + manifestSchemaName)
	if err != nil {
		return fmt.Errorf("reading manifest schema: %w", err)
	}
	return ValidateAgainstSchema(manifestSchemaName, schema, data, "")
}

// maxYAMLNodes bounds alias expansion so a small hostile document cannot
// blow up into a huge JSON one.
const maxYAMLNodes = 1 << 20

// YAMLToJSON converts a YAML 1.2 document to JSON. Only the core schema
// scalars (null, true/false, numbers) keep their type; everything else,
// including YAML 1.1 words like on, no or y, stays a string, which is how
// yaml.v3 decodes the same document into a struct. Input that already is
// JSON is returned unchanged.
func YAMLToJSON(data []byte) ([]byte, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
		return trimmed, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	c := &jsonConverter{budget: maxYAMLNodes}
	v, err := c.value(&root)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

type jsonConverter struct {
	budget int
}

func (c *jsonConverter) value(n *yaml.Node) (interface{}, error) {
	c.budget--
	if c.budget < 0 {
		return nil, fmt.Errorf("document too large after alias expansion")
	}

	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return c.value(n.Content[0])
	case yaml.AliasNode:
		return c.value(n.Alias)
	case yaml.SequenceNode:
		out := make([]interface{}, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := c.value(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]interface{}, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			v, err := c.value(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[key.Value] = v
		}
		return out, nil
	case yaml.ScalarNode:
		return scalarValue(n)
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

func scalarValue(n *yaml.Node) (interface{}, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return b, nil
	case "!!int", "!!float":
		// Keep the literal so "1.10" does not turn into 1.1.
		if json.Valid([]byte(n.Value)) {
			return json.Number(n.Value), nil
		}
		var v interface{}
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		if f, ok := v.(float64); ok {
			return json.Number(fmt.Sprint(f)), nil
		}
		return v, nil
	}
	return n.Value, nil
}
