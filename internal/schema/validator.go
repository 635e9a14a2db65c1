package dialogschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed dialog.schema.json
var dialogSchemaJSON string

// DialogPayload is a validated v1 dialog import document.
type DialogPayload struct {
	PayloadVersion string           `json:"payload_version"`
	Title          *string          `json:"title,omitempty"`
	SourceLang     *string          `json:"source_lang,omitempty"`
	Transcript     string           `json:"transcript"`
	Segments       []SegmentPayload `json:"segments"`
}

// SegmentPayload is one speaker utterance of an import document.
type SegmentPayload struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	StartMS *int64 `json:"start_ms,omitempty"`
	EndMS   *int64 `json:"end_ms,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateDialogPayload checks a raw dialog document against the v1
// schema and returns the decoded payload.
func ValidateDialogPayload(payload json.RawMessage) (*DialogPayload, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var dialog DialogPayload
	if err := json.Unmarshal(normalized, &dialog); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&dialog); err != nil {
		return nil, err
	}

	return &dialog, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("dialog.schema.json", strings.NewReader(dialogSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("dialog.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(dialog *DialogPayload) error {
	if dialog == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(dialog.Transcript) == "" {
		return fmt.Errorf("transcript must not be blank")
	}

	for i, segment := range dialog.Segments {
		if strings.TrimSpace(segment.Speaker) == "" {
			return fmt.Errorf("segments[%d].speaker must not be blank", i)
		}
		if strings.TrimSpace(segment.Text) == "" {
			return fmt.Errorf("segments[%d].text must not be blank", i)
		}
		if segment.StartMS != nil && segment.EndMS != nil && *segment.EndMS < *segment.StartMS {
			return fmt.Errorf("segments[%d] end_ms must be >= start_ms", i)
		}
	}

	return nil
}
