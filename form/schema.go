package form

import (
	"encoding/json"
	"strconv"

	js "github.com/invopop/jsonschema"

	"github.com/SwouitAzia/formshandler/element"
)

const schemaVersion = "https://json-schema.org/draft/2020-12/schema"

var nullSchema = &js.Schema{Type: "null"}

// ReplySchema describes the replies the client may send for f. A reply that
// matches the schema may still have per-element values replaced if it was
// produced by a client that ignores it.
func (f *CustomForm) ReplySchema() *js.Schema {
	elems := f.Elements()
	n := uint64(len(elems))
	items := make([]*js.Schema, len(elems))
	for i, e := range elems {
		items[i] = elementSchema(e)
	}
	arr := &js.Schema{
		Type:        "array",
		PrefixItems: items,
		Items:       js.FalseSchema,
		MinItems:    &n,
		MaxItems:    &n,
	}
	return &js.Schema{Version: schemaVersion, Title: f.titleText(), AnyOf: []*js.Schema{nullSchema, arr}}
}

// ReplySchema describes the replies the client may send for f: null or the
// index of a selectable button.
func (f *SimpleForm) ReplySchema() *js.Schema {
	var indexes []any
	for i, b := range f.Buttons() {
		if b.Selectable() {
			indexes = append(indexes, i)
		}
	}
	choice := &js.Schema{Type: "integer", Enum: indexes}
	return &js.Schema{Version: schemaVersion, Title: f.titleText(), AnyOf: []*js.Schema{nullSchema, choice}}
}

// ReplySchema describes the replies the client may send for f: null or a
// boolean.
func (f *ModalForm) ReplySchema() *js.Schema {
	return &js.Schema{Version: schemaVersion, Title: f.titleText(), AnyOf: []*js.Schema{nullSchema, {Type: "boolean"}}}
}

func (b *base) titleText() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.title
}

func elementSchema(e element.Element) *js.Schema {
	var s *js.Schema
	switch el := e.(type) {
	case element.Toggle:
		s = &js.Schema{Type: "boolean", Title: el.Text}
	case element.Input:
		s = &js.Schema{Type: "string", Title: el.Text}
	case element.Dropdown:
		s = indexSchema(el.Text, len(el.Options))
	case element.StepSlider:
		s = indexSchema(el.Text, len(el.Steps))
	case element.Slider:
		s = &js.Schema{Type: "number", Title: el.Text, Minimum: number(el.Min), Maximum: number(el.Max)}
	default:
		return &js.Schema{Type: "null"}
	}
	if v, ok := e.DefaultValue(); ok {
		s.Default = v
	}
	if label, ok := e.Key(); ok {
		s.Description = label
	}
	return s
}

func indexSchema(title string, n int) *js.Schema {
	s := &js.Schema{Type: "integer", Title: title, Minimum: "0"}
	if n > 0 {
		s.Maximum = json.Number(strconv.Itoa(n - 1))
	}
	return s
}

func number(f float64) json.Number {
	return json.Number(strconv.FormatFloat(f, 'f', -1, 64))
}
