package proto

import (
	"github.com/invopop/jsonschema"
)

// ClientSchema describes the inbound websocket message for client tooling.
func ClientSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(ClientMessage))
	schema.Title = "The Locked Study client message"
	schema.Description = "Inbound websocket frame; JSON as text frames or msgpack as binary frames with the same field names"
	return schema
}

// ServerSchema describes the outbound envelope. Payloads vary by type.
func ServerSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(Frame))
	schema.Title = "The Locked Study server frame"
	return schema
}
