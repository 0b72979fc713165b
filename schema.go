package agentflow

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const graphSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id":       {"type": "string", "minLength": 1},
          "type":     {"enum": ["llmNode", "agentNode", "toolNode"]},
          "position": {
            "type": "object",
            "properties": {"x": {"type": "number"}, "y": {"type": "number"}}
          },
          "data":     {"type": "object"}
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["source", "target"],
        "properties": {
          "id":           {"type": "string"},
          "source":       {"type": "string", "minLength": 1},
          "target":       {"type": "string", "minLength": 1},
          "sourceHandle": {"type": ["string", "null"]},
          "targetHandle": {"type": ["string", "null"]}
        }
      }
    }
  }
}`

const chatRequestSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["message"],
  "properties": {
    "workflowId": {"type": "string"},
    "stackId":    {"type": "string"},
    "sessionId":  {"type": "string"},
    "message":    {"type": "string"},
    "history": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["role", "content"],
        "properties": {
          "role":    {"enum": ["user", "assistant", "system"]},
          "content": {"type": "string"}
        }
      }
    }
  }
}`

var (
	graphSchema       = jsonschema.MustCompileString("agentflow://graph.json", graphSchemaJSON)
	chatRequestSchema = jsonschema.MustCompileString("agentflow://chat-request.json", chatRequestSchemaJSON)
)

func checkGraphSchema(data []byte) error {
	return checkSchema(graphSchema, data, "invalid graph")
}

// CheckChatRequest validates a raw chat request body.
func CheckChatRequest(data []byte) error {
	return checkSchema(chatRequestSchema, data, "invalid chat request")
}

func checkSchema(schema *jsonschema.Schema, data []byte, msg string) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return &InputError{Msg: msg + ": " + err.Error()}
	}

	err := schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return &InputError{Msg: msg + ": " + err.Error()}
	}
	return &InputError{Msg: msg, Details: leafCauses(verr, nil)}
}

// leafCauses flattens the schema error tree down to its most specific causes.
func leafCauses(e *jsonschema.ValidationError, out []FieldError) []FieldError {
	if len(e.Causes) == 0 {
		path := e.InstanceLocation
		if path == "" {
			path = "/"
		}
		return append(out, FieldError{Path: path, Message: e.Message})
	}
	for _, c := range e.Causes {
		out = leafCauses(c, out)
	}
	return out
}
