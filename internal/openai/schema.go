package openai

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sumire/verdictrelay/internal/domain"
)

// Only the fields we read are constrained; everything else may vary between models.
const chatCompletionSchema = `{
  "type": "object",
  "required": ["choices"],
  "properties": {
    "choices": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["message"],
        "properties": {
          "message": {
            "type": "object",
            "required": ["content"],
            "properties": {"content": {"type": "string", "minLength": 1}}
          }
        }
      }
    }
  }
}`

const imageGenerationSchema = `{
  "type": "object",
  "required": ["data"],
  "properties": {
    "data": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["url"],
        "properties": {"url": {"type": "string", "minLength": 1}}
      }
    }
  }
}`

// validateResponse checks raw against schema and reports a mismatch as a malformed upstream response.
func validateResponse(schema *jsonschema.Schema, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: malformed response: %v", domain.ErrUpstream, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: unexpected response shape: %v", domain.ErrUpstream, err)
	}
	return nil
}
