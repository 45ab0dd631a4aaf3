package tool

// Definition is a tool definition passed to the model.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// objectSchema builds a JSON-Schema object with the given properties.
func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string, enum ...string) map[string]any {
	p := map[string]any{"type": "string", "description": description}
	if len(enum) > 0 {
		values := make([]any, len(enum))
		for i, v := range enum {
			values[i] = v
		}
		p["enum"] = values
	}
	return p
}

func integerProp(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

var coordinatesProp = map[string]any{
	"type":        "object",
	"description": "Screen coordinates",
	"properties": map[string]any{
		"x": map[string]any{"type": "integer"},
		"y": map[string]any{"type": "integer"},
	},
	"required": []any{"x", "y"},
}
