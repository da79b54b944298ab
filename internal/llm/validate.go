package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var compiled sync.Map // schema JSON -> *jsonschema.Schema

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	schema, err := compileSchema(schemaMap)
	if err != nil {
		return err
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	if s, ok := compiled.Load(string(b)); ok {
		return s.(*jsonschema.Schema), nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	compiled.Store(string(b), schema)
	return schema, nil
}

// ValidateOrRepair validates model output against req.Schema. Record-shaped
// outputs that fail get one lenient sanitize pass and are validated again.
func ValidateOrRepair(req StructuredRequest, content []byte, logger *slog.Logger) ([]byte, error) {
	err := ValidateJSONAgainstSchema(req.Schema, content)
	if err == nil {
		return content, nil
	}
	var withFlag bool
	switch req.Name {
	case SchemaProcurementRecord:
		withFlag = true
	case SchemaFieldRecovery:
		withFlag = false
	default:
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	cleaned, changed, sErr := SanitizeRecordJSON(content, withFlag, logger)
	if sErr != nil {
		return nil, fmt.Errorf("sanitize failed: %w", sErr)
	}
	if vErr := ValidateJSONAgainstSchema(req.Schema, cleaned); vErr != nil {
		return nil, fmt.Errorf("schema validation failed: %w", vErr)
	}
	if logger != nil {
		logger.Warn("llm.lenient_sanitize_applied", "schema", req.Name, "changes", changed)
	}
	return cleaned, nil
}
