package salesrest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"salesboard/internal/sales"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// ErrInvalidPayload marks a response that is not a list of records.
var ErrInvalidPayload = errors.New("invalid sales payload")

// envelopeKeys are tried in order when the body is an object.
var envelopeKeys = []string{"data", "records", "result", "items"}

const recordsSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["label", "value"],
    "properties": {
      "label": {"type": ["string", "number"]},
      "value": {"type": "number"}
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("records.json", strings.NewReader(recordsSchema)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = compiler.Compile("records.json")
	})
	return schema, schemaErr
}

// decodeRecords accepts a bare array or an object wrapping one under a known
// key. An empty body or null decodes to no records.
func decodeRecords(body []byte) ([]sales.Record, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return []sales.Record{}, nil
	}
	if !gjson.Valid(trimmed) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidPayload)
	}
	root := gjson.Parse(trimmed)
	list, err := locateList(root)
	if err != nil {
		return nil, err
	}
	if err := validateList(list.Raw); err != nil {
		return nil, err
	}
	records := make([]sales.Record, 0, len(list.Array()))
	list.ForEach(func(_, item gjson.Result) bool {
		records = append(records, sales.Record{
			Label: item.Get("label").String(),
			Value: item.Get("value").Float(),
		})
		return true
	})
	return records, nil
}

func locateList(root gjson.Result) (gjson.Result, error) {
	if root.IsArray() {
		return root, nil
	}
	if !root.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: root must be an array or object", ErrInvalidPayload)
	}
	for _, key := range envelopeKeys {
		if v := root.Get(key); v.Exists() {
			if v.Type == gjson.Null {
				return gjson.Parse("[]"), nil
			}
			if !v.IsArray() {
				return gjson.Result{}, fmt.Errorf("%w: %q must be an array", ErrInvalidPayload, key)
			}
			return v, nil
		}
	}
	return gjson.Result{}, fmt.Errorf("%w: no record list in response", ErrInvalidPayload)
}

func validateList(raw string) error {
	sch, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile records schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
