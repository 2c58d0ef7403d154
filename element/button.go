package element

import "encoding/json"

// ImageType selects how a button image is resolved by the client.
type ImageType string

const (
	ImagePath ImageType = "path"
	ImageURL  ImageType = "url"
)

// Image is an optional icon shown on a button.
type Image struct {
	Type ImageType `json:"type"`
	Data string    `json:"data"`
}

// Colour-code markers prepended to the text of visual pseudo-buttons. A
// client resource pack matches on them to render the entry as plain content.
const (
	labelMarker   = "§l§a§b§e§l§r"
	headerMarker  = "§h§e§a§d§e§r§r"
	dividerMarker = "§d§i§v§i§d§e§r§r"
)

// Button is an entry of a button-list form. Visual buttons (see
// LabelButton, HeaderButton, DividerButton) are rendered as content and
// cannot be selected.
type Button struct {
	Text  string
	Image *Image
	Label string

	visual Kind
}

// LabelButton returns a non-selectable text entry for button-list forms.
func LabelButton(text string) Button { return Button{Text: text, visual: KindLabel} }

// HeaderButton returns a non-selectable heading for button-list forms.
func HeaderButton(text string) Button { return Button{Text: text, visual: KindHeader} }

// DividerButton returns a non-selectable separator for button-list forms.
func DividerButton() Button { return Button{visual: KindDivider} }

// Selectable reports whether the client may reply with this button's index.
func (b Button) Selectable() bool { return b.visual == 0 }

// Visual returns the visual kind of a non-selectable button.
func (b Button) Visual() (Kind, bool) { return b.visual, b.visual != 0 }

// Key returns the label used as the result key, if any.
func (b Button) Key() (string, bool) { return key(b.Label) }

// DisplayText returns the text sent to the client. Unless plain is set,
// visual buttons carry the marker expected by the enhanced UI pack.
func (b Button) DisplayText(plain bool) string {
	if plain {
		return b.Text
	}
	switch b.visual {
	case KindLabel:
		return labelMarker + b.Text
	case KindHeader:
		return headerMarker + b.Text
	case KindDivider:
		return dividerMarker + b.Text
	default:
		return b.Text
	}
}

// Description returns the JSON value describing the button.
func (b Button) Description(plain bool) any {
	return struct {
		Text  string `json:"text"`
		Image *Image `json:"image,omitempty"`
	}{b.DisplayText(plain), b.Image}
}

func (b Button) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Description(false))
}
