package form

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/SwouitAzia/formshandler/element"
	"github.com/SwouitAzia/formshandler/internal/validation"
)

// Choice is the result of a simple form: the selected button.
type Choice struct {
	Index int
	Label string
}

// Key returns the button's label when it has one, otherwise its index.
func (c Choice) Key() any {
	if c.Label != "" {
		return c.Label
	}
	return c.Index
}

func (c Choice) String() string {
	if c.Label != "" {
		return c.Label
	}
	return strconv.Itoa(c.Index)
}

// SimpleForm presents a list of buttons.
type SimpleForm struct {
	base
	content  string
	buttons  []element.Button
	onSubmit func(ctx context.Context, conn Conn, choice Choice)
}

var _ Form = (*SimpleForm)(nil)

// NewSimpleForm returns an empty button-list form.
func NewSimpleForm(title string) *SimpleForm {
	return &SimpleForm{base: base{kind: KindSimple, title: title}}
}

func (f *SimpleForm) SetTitle(title string) *SimpleForm {
	f.modify(func() { f.title = title })
	return f
}

func (f *SimpleForm) SetContent(content string) *SimpleForm {
	f.modify(func() { f.content = content })
	return f
}

func (f *SimpleForm) AddButton(b element.Button) *SimpleForm {
	f.modify(func() { f.buttons = append(f.buttons, b) })
	return f
}

// SetButtons replaces every entry of the form.
func (f *SimpleForm) SetButtons(buttons ...element.Button) *SimpleForm {
	f.modify(func() { f.buttons = append([]element.Button(nil), buttons...) })
	return f
}

func (f *SimpleForm) AddLabel(text string) *SimpleForm {
	return f.AddButton(element.LabelButton(text))
}

func (f *SimpleForm) AddHeader(text string) *SimpleForm {
	return f.AddButton(element.HeaderButton(text))
}

func (f *SimpleForm) AddDivider() *SimpleForm {
	return f.AddButton(element.DividerButton())
}

func (f *SimpleForm) OnSubmit(fn func(ctx context.Context, conn Conn, choice Choice)) *SimpleForm {
	f.modify(func() { f.onSubmit = fn })
	return f
}

func (f *SimpleForm) OnClose(fn CloseFunc) *SimpleForm {
	f.modify(func() { f.onClose = fn })
	return f
}

// Buttons returns a copy of the form's entries.
func (f *SimpleForm) Buttons() []element.Button {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]element.Button(nil), f.buttons...)
}

func (f *SimpleForm) Seal() error {
	return f.seal(func() error {
		keys := make([]string, len(f.buttons))
		for i, b := range f.buttons {
			keys[i], _ = b.Key()
		}
		return validation.Labels(keys)
	})
}

// Interpret converts a decoded reply. closed is true when raw is nil.
func (f *SimpleForm) Interpret(raw any) (choice Choice, closed bool, err error) {
	if raw == nil {
		return Choice{}, true, nil
	}
	idx, ok := validation.Index(raw)
	if !ok {
		return Choice{}, false, invalid(KindSimple, "expected an integer response, got %s", typeName(raw))
	}
	buttons := f.Buttons()
	if idx < 0 || idx >= len(buttons) {
		return Choice{}, false, invalid(KindSimple, "button at %d does not exist", idx)
	}
	b := buttons[idx]
	if !b.Selectable() {
		return Choice{}, false, invalid(KindSimple, "entry at index %d is not a button", idx)
	}
	label, _ := b.Key()
	return Choice{Index: idx, Label: label}, false, nil
}

func (f *SimpleForm) Handle(ctx context.Context, conn Conn, raw any) error {
	if err := f.resolve(); err != nil {
		return err
	}
	choice, closed, err := f.Interpret(raw)
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
		fn(ctx, conn, choice)
	}
	return nil
}

func (f *SimpleForm) MarshalJSON() ([]byte, error) { return f.encode(EncodeOptions{}) }

func (f *SimpleForm) encode(opts EncodeOptions) ([]byte, error) {
	var (
		title, content string
		buttons        []any
	)
	err := f.snapshot(func() {
		title, content = f.title, f.content
		buttons = make([]any, len(f.buttons))
		for i, b := range f.buttons {
			buttons[i] = b.Description(opts.PlainVisuals)
		}
	})
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(struct {
		Type    Kind   `json:"type"`
		Title   string `json:"title"`
		Content string `json:"content"`
		Buttons []any  `json:"buttons"`
	}{KindSimple, title, content, buttons})
	if err != nil {
		return nil, fmt.Errorf("form: encode simple form: %w", err)
	}
	return b, nil
}
