// Package element describes the fields a form can contain.
//
// The set of element kinds is closed: Toggle, Input, Dropdown, Slider and
// StepSlider carry a submitted value; Label, Header and Divider are visual
// only and never produce one. Button belongs to button-list forms, where the
// reply is the button's index rather than a value.
//
// Elements are plain values. Their JSON encoding is the description sent to
// the client and is deterministic: the same element always encodes to the
// same bytes.
//
//	elems := []element.Element{
//	    element.Toggle{Text: "Enable PvP", Label: "pvp"},
//	    element.Dropdown{Text: "Difficulty", Options: []string{"easy", "hard"}, Default: element.Int(0)},
//	    element.Slider{Text: "Radius", Min: 1, Max: 16, Step: 1},
//	}
package element
