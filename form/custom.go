package form

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SwouitAzia/formshandler/element"
	"github.com/SwouitAzia/formshandler/internal/validation"
)

// CustomForm presents a list of elements and receives one value per element.
type CustomForm struct {
	base
	elements []element.Element
	onSubmit func(ctx context.Context, conn Conn, result *Result)
}

var _ Form = (*CustomForm)(nil)

// NewCustomForm returns an empty multi-element form.
func NewCustomForm(title string) *CustomForm {
	return &CustomForm{base: base{kind: KindCustom, title: title}}
}

func (f *CustomForm) SetTitle(title string) *CustomForm {
	f.modify(func() { f.title = title })
	return f
}

func (f *CustomForm) AddElement(e element.Element) *CustomForm {
	f.modify(func() { f.elements = append(f.elements, e) })
	return f
}

// SetElements replaces every element of the form.
func (f *CustomForm) SetElements(elems ...element.Element) *CustomForm {
	f.modify(func() { f.elements = append([]element.Element(nil), elems...) })
	return f
}

func (f *CustomForm) AddLabel(text string) *CustomForm {
	return f.AddElement(element.Label{Text: text})
}

func (f *CustomForm) AddHeader(text string) *CustomForm {
	return f.AddElement(element.Header{Text: text})
}

func (f *CustomForm) AddDivider() *CustomForm {
	return f.AddElement(element.Divider{})
}

func (f *CustomForm) OnSubmit(fn func(ctx context.Context, conn Conn, result *Result)) *CustomForm {
	f.modify(func() { f.onSubmit = fn })
	return f
}

func (f *CustomForm) OnClose(fn CloseFunc) *CustomForm {
	f.modify(func() { f.onClose = fn })
	return f
}

// Elements returns a copy of the form's elements.
func (f *CustomForm) Elements() []element.Element {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]element.Element(nil), f.elements...)
}

func (f *CustomForm) Seal() error {
	return f.seal(func() error {
		keys := make([]string, len(f.elements))
		for i, e := range f.elements {
			if err := validation.Element(e); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			keys[i], _ = e.Key()
		}
		return validation.Labels(keys)
	})
}

// Interpret converts a decoded reply. closed is true when raw is nil. A
// reply that is not an array with one value per element is rejected; an
// invalid value for a single element is replaced by its fallback.
func (f *CustomForm) Interpret(raw any) (result *Result, closed bool, err error) {
	if raw == nil {
		return nil, true, nil
	}
	values, ok := raw.([]any)
	if !ok {
		return nil, false, invalid(KindCustom, "expected an array response, got %s", typeName(raw))
	}
	elems := f.Elements()
	if len(values) != len(elems) {
		return nil, false, invalid(KindCustom, "expected an array response with the size %d, got %d", len(elems), len(values))
	}
	entries := make([]Entry, len(elems))
	for i, e := range elems {
		label, _ := e.Key()
		entry := Entry{Index: i, Label: label, Kind: e.Kind()}
		switch {
		case e.Kind().Visual():
			// always nil, whatever the client sent
		case validation.Value(e, values[i]):
			entry.Value = validation.Normalize(e, values[i])
		default:
			entry.Value = element.Fallback(e)
			entry.Substituted = true
		}
		entries[i] = entry
	}
	return newResult(entries), false, nil
}

func (f *CustomForm) Handle(ctx context.Context, conn Conn, raw any) error {
	if err := f.resolve(); err != nil {
		return err
	}
	result, closed, err := f.Interpret(raw)
	if err != nil {
		return err
	}
	if closed {
		if fn := f.closeFunc(); fn != nil {
			fn(ctx, conn)
		}
		return nil
	}
	f.mu.Lock()
	fn := f.onSubmit
	f.mu.Unlock()
	if fn != nil {
		fn(ctx, conn, result)
	}
	return nil
}

func (f *CustomForm) MarshalJSON() ([]byte, error) { return f.encode(EncodeOptions{}) }

func (f *CustomForm) encode(EncodeOptions) ([]byte, error) {
	var (
		title string
		elems []element.Element
	)
	err := f.snapshot(func() {
		title = f.title
		elems = append([]element.Element{}, f.elements...)
	})
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(struct {
		Type    Kind              `json:"type"`
		Title   string            `json:"title"`
		Content []element.Element `json:"content"`
	}{KindCustom, title, elems})
	if err != nil {
		return nil, fmt.Errorf("form: encode custom form: %w", err)
	}
	return b, nil
}
