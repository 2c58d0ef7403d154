package element

import (
	"encoding/json"
	"fmt"
)

// Kind identifies one of the element variants.
type Kind uint8

const (
	KindToggle Kind = iota + 1
	KindInput
	KindDropdown
	KindSlider
	KindStepSlider
	KindLabel
	KindHeader
	KindDivider
)

// String returns the wire discriminator for the kind.
func (k Kind) String() string {
	switch k {
	case KindToggle:
		return "toggle"
	case KindInput:
		return "input"
	case KindDropdown:
		return "dropdown"
	case KindSlider:
		return "slider"
	case KindStepSlider:
		return "step_slider"
	case KindLabel:
		return "label"
	case KindHeader:
		return "header"
	case KindDivider:
		return "divider"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Visual reports whether elements of this kind never carry a value.
func (k Kind) Visual() bool {
	return k == KindLabel || k == KindHeader || k == KindDivider
}

// Element is a field of a custom form. The interface is sealed; the
// implementations in this package are the only ones.
type Element interface {
	json.Marshaler

	Kind() Kind
	// Key returns the label used as the element's result key, if any.
	Key() (string, bool)
	// DefaultValue returns the configured default value, if any.
	DefaultValue() (any, bool)

	element()
}

// Bool returns a pointer to v. Use it to set optional defaults.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

func key(label string) (string, bool) { return label, label != "" }

// Toggle is an on/off switch. Its value is a bool.
type Toggle struct {
	Text    string
	Default *bool
	Label   string
}

func (Toggle) Kind() Kind            { return KindToggle }
func (t Toggle) Key() (string, bool) { return key(t.Label) }
func (Toggle) element()              {}

func (t Toggle) DefaultValue() (any, bool) {
	if t.Default == nil {
		return nil, false
	}
	return *t.Default, true
}

func (t Toggle) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Text    string `json:"text"`
		Default *bool  `json:"default,omitempty"`
	}{KindToggle.String(), t.Text, t.Default})
}

// Input is a free text field. Its value is a string.
type Input struct {
	Text        string
	Placeholder string
	Default     *string
	Label       string
}

func (Input) Kind() Kind            { return KindInput }
func (i Input) Key() (string, bool) { return key(i.Label) }
func (Input) element()              {}

func (i Input) DefaultValue() (any, bool) {
	if i.Default == nil {
		return nil, false
	}
	return *i.Default, true
}

func (i Input) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string  `json:"type"`
		Text        string  `json:"text"`
		Placeholder string  `json:"placeholder"`
		Default     *string `json:"default,omitempty"`
	}{KindInput.String(), i.Text, i.Placeholder, i.Default})
}

// Dropdown selects one of Options. Its value is the selected index.
type Dropdown struct {
	Text    string
	Options []string
	Default *int
	Label   string
}

func (Dropdown) Kind() Kind            { return KindDropdown }
func (d Dropdown) Key() (string, bool) { return key(d.Label) }
func (Dropdown) element()              {}

func (d Dropdown) DefaultValue() (any, bool) {
	if d.Default == nil {
		return nil, false
	}
	return *d.Default, true
}

func (d Dropdown) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string   `json:"type"`
		Text    string   `json:"text"`
		Options []string `json:"options"`
		Default *int     `json:"default,omitempty"`
	}{KindDropdown.String(), d.Text, nonNil(d.Options), d.Default})
}

// Slider selects a number in [Min, Max]. A zero Step means the client's
// default step of 1.
type Slider struct {
	Text    string
	Min     float64
	Max     float64
	Step    float64
	Default *float64
	Label   string
}

func (Slider) Kind() Kind            { return KindSlider }
func (s Slider) Key() (string, bool) { return key(s.Label) }
func (Slider) element()              {}

func (s Slider) DefaultValue() (any, bool) {
	if s.Default == nil {
		return nil, false
	}
	return *s.Default, true
}

func (s Slider) MarshalJSON() ([]byte, error) {
	var step *float64
	if s.Step != 0 && s.Step != 1 {
		step = &s.Step
	}
	return json.Marshal(struct {
		Type    string   `json:"type"`
		Text    string   `json:"text"`
		Min     float64  `json:"min"`
		Max     float64  `json:"max"`
		Step    *float64 `json:"step,omitempty"`
		Default *float64 `json:"default,omitempty"`
	}{KindSlider.String(), s.Text, s.Min, s.Max, step, s.Default})
}

// StepSlider selects one of Steps. Its value is the selected index.
type StepSlider struct {
	Text    string
	Steps   []string
	Default *int
	Label   string
}

func (StepSlider) Kind() Kind            { return KindStepSlider }
func (s StepSlider) Key() (string, bool) { return key(s.Label) }
func (StepSlider) element()              {}

func (s StepSlider) DefaultValue() (any, bool) {
	if s.Default == nil {
		return nil, false
	}
	return *s.Default, true
}

func (s StepSlider) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string   `json:"type"`
		Text    string   `json:"text"`
		Steps   []string `json:"steps"`
		Default *int     `json:"default,omitempty"`
	}{KindStepSlider.String(), s.Text, nonNil(s.Steps), s.Default})
}

// Label is a block of text.
type Label struct{ Text string }

// Header is a section heading.
type Header struct{ Text string }

// Divider is a horizontal rule.
type Divider struct{}

func (Label) Kind() Kind   { return KindLabel }
func (Header) Kind() Kind  { return KindHeader }
func (Divider) Kind() Kind { return KindDivider }

func (Label) Key() (string, bool)   { return "", false }
func (Header) Key() (string, bool)  { return "", false }
func (Divider) Key() (string, bool) { return "", false }

func (Label) DefaultValue() (any, bool)   { return nil, false }
func (Header) DefaultValue() (any, bool)  { return nil, false }
func (Divider) DefaultValue() (any, bool) { return nil, false }

func (Label) element()   {}
func (Header) element()  {}
func (Divider) element() {}

func (l Label) MarshalJSON() ([]byte, error)  { return marshalVisual(KindLabel, l.Text) }
func (h Header) MarshalJSON() ([]byte, error) { return marshalVisual(KindHeader, h.Text) }
func (Divider) MarshalJSON() ([]byte, error)  { return marshalVisual(KindDivider, "") }

func marshalVisual(k Kind, text string) ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{k.String(), text})
}

// Fallback returns the value substituted for an invalid submission: the
// configured default, or the value the client itself starts from when no
// default is set. Visual elements fall back to nil.
func Fallback(e Element) any {
	if v, ok := e.DefaultValue(); ok {
		return v
	}
	switch el := e.(type) {
	case Toggle:
		return false
	case Input:
		return ""
	case Dropdown, StepSlider:
		return 0
	case Slider:
		return el.Min
	default:
		return nil
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
