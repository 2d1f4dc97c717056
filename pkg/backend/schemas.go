package backend

import (
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/seqgpt/helper-mcp/pkg/errmodel"
)

// Request body schemas, enforced before handlers touch the payload.
var requestSchemas = map[string]string{
	"create-random-csv": `{
		"type": "object",
		"properties": {
			"num_rows": {"type": "integer", "minimum": 1, "maximum": 10000},
			"columns": {
				"type": "array",
				"items": {"type": "string", "minLength": 1},
				"maxItems": 64
			},
			"value_min": {"type": "number"},
			"value_max": {"type": "number"}
		},
		"additionalProperties": false
	}`,
	"preview-csv": `{
		"type": "object",
		"properties": {
			"url": {"type": "string", "minLength": 1},
			"lines": {"type": "integer", "minimum": 1, "maximum": 1000}
		},
		"required": ["url"],
		"additionalProperties": false
	}`,
	"csv-sql": `{
		"type": "object",
		"properties": {
			"url": {"type": "string", "minLength": 1},
			"sql": {"type": "string", "minLength": 1}
		},
		"required": ["url", "sql"],
		"additionalProperties": false
	}`,
}

type requestValidator struct {
	name   string
	schema *jsonschema.Schema
}

func compileRequestValidators() (map[string]*requestValidator, error) {
	out := make(map[string]*requestValidator, len(requestSchemas))
	for name, raw := range requestSchemas {
		c := jsonschema.NewCompiler()
		var doc any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("backend: parse schema %s: %w", name, err)
		}
		url := "mem://" + name + ".json"
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("backend: add schema %s: %w", name, err)
		}
		sch, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("backend: compile schema %s: %w", name, err)
		}
		out[name] = &requestValidator{name: name, schema: sch}
	}
	return out, nil
}

// decodeAndValidate unmarshals body into both a generic document (for
// schema validation) and the typed request struct.
func (v *requestValidator) decodeAndValidate(body []byte, dst any) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return errmodel.Validation("bad_json", fmt.Sprintf("decode request body: %v", err), nil)
	}
	if err := v.schema.Validate(doc); err != nil {
		return errmodel.Validation("schema_violation", err.Error(), map[string]any{"endpoint": v.name})
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errmodel.Validation("bad_json", fmt.Sprintf("decode request body: %v", err), nil)
	}
	return nil
}
