package tool

import "encoding/json"

type ArgType string

const (
	ArgString  ArgType = "string"
	ArgNumber  ArgType = "number"
	ArgInteger ArgType = "integer"
	ArgBoolean ArgType = "boolean"
)

// Arg declares one named argument of a tool. Values are fluent builders:
//
//	NewArg("path").WithDescription("File to read.").AsRequired()
type Arg struct {
	Name        string
	Description string
	Type        ArgType
	Required    bool
	Enum        []string
}

func NewArg(name string) Arg {
	return Arg{Name: name, Type: ArgString}
}

func (a Arg) WithDescription(d string) Arg {
	a.Description = d
	return a
}

func (a Arg) OfType(t ArgType) Arg {
	a.Type = t
	return a
}

func (a Arg) WithEnum(values ...string) Arg {
	a.Enum = values
	return a
}

func (a Arg) AsRequired() Arg {
	a.Required = true
	return a
}

type schemaProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

type objectSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]schemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// BuildSchema renders the JSON-schema object the model sees for a tool's
// argument list.
func BuildSchema(args []Arg) json.RawMessage {
	schema := objectSchema{
		Type:       "object",
		Properties: map[string]schemaProperty{},
	}
	for _, a := range args {
		schema.Properties[a.Name] = schemaProperty{
			Type:        string(a.Type),
			Description: a.Description,
			Enum:        a.Enum,
		}
		if a.Required {
			schema.Required = append(schema.Required, a.Name)
		}
	}
	out, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return out
}
