package migration

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// MessageSchema returns the JSON Schema of the per-conversation output document.
func MessageSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	schema := reflector.Reflect(&ConversationResult{})
	schema.Title = "Hangouts conversation"
	return schema
}

// MessageSchemaJSON renders MessageSchema as indented JSON.
func MessageSchemaJSON() ([]byte, error) {
	b, err := json.MarshalIndent(MessageSchema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("MessageSchemaJSON: %w", err)
	}
	return b, nil
}
