package form

import (
	"context"
	"encoding/json"
	"fmt"
)

// ModalForm asks a yes/no question with two buttons. The reply is true for
// the top button and false for the bottom one.
type ModalForm struct {
	base
	content  string
	button1  string
	button2  string
	onSubmit func(ctx context.Context, conn Conn, top bool)
}

var _ Form = (*ModalForm)(nil)

// NewModalForm returns a two-choice form.
func NewModalForm(title string) *ModalForm {
	return &ModalForm{base: base{kind: KindModal, title: title}}
}

func (f *ModalForm) SetTitle(title string) *ModalForm {
	f.modify(func() { f.title = title })
	return f
}

func (f *ModalForm) SetContent(content string) *ModalForm {
	f.modify(func() { f.content = content })
	return f
}

func (f *ModalForm) SetTopButton(text string) *ModalForm {
	f.modify(func() { f.button1 = text })
	return f
}

func (f *ModalForm) SetBottomButton(text string) *ModalForm {
	f.modify(func() { f.button2 = text })
	return f
}

// SetButtons sets both buttons at once.
func (f *ModalForm) SetButtons(top, bottom string) *ModalForm {
	f.modify(func() { f.button1, f.button2 = top, bottom })
	return f
}

func (f *ModalForm) OnSubmit(fn func(ctx context.Context, conn Conn, top bool)) *ModalForm {
	f.modify(func() { f.onSubmit = fn })
	return f
}

func (f *ModalForm) OnClose(fn CloseFunc) *ModalForm {
	f.modify(func() { f.onClose = fn })
	return f
}

func (f *ModalForm) Seal() error { return f.seal(nil) }

// Interpret converts a decoded reply. No coercion is applied.
func (f *ModalForm) Interpret(raw any) (top bool, closed bool, err error) {
	switch v := raw.(type) {
	case nil:
		return false, true, nil
	case bool:
		return v, false, nil
	default:
		return false, false, invalid(KindModal, "expected a boolean response, got %s", typeName(raw))
	}
}

func (f *ModalForm) Handle(ctx context.Context, conn Conn, raw any) error {
	if err := f.resolve(); err != nil {
		return err
	}
	top, closed, err := f.Interpret(raw)
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
		fn(ctx, conn, top)
	}
	return nil
}

func (f *ModalForm) MarshalJSON() ([]byte, error) { return f.encode(EncodeOptions{}) }

func (f *ModalForm) encode(EncodeOptions) ([]byte, error) {
	var desc struct {
		Type    Kind   `json:"type"`
		Title   string `json:"title"`
		Content string `json:"content"`
		Button1 string `json:"button1"`
		Button2 string `json:"button2"`
	}
	err := f.snapshot(func() {
		desc.Type = KindModal
		desc.Title, desc.Content = f.title, f.content
		desc.Button1, desc.Button2 = f.button1, f.button2
	})
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("form: encode modal form: %w", err)
	}
	return b, nil
}
