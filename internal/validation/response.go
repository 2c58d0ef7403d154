// Package validation holds the rules applied to client-submitted form values
// and to element definitions before a form is sent.
package validation

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/SwouitAzia/formshandler/element"
)

// Value reports whether v is an acceptable submission for e. It never
// panics. Visual elements accept nothing but nil.
func Value(e element.Element, v any) bool {
	switch el := e.(type) {
	case element.Toggle:
		_, ok := v.(bool)
		return ok
	case element.Input:
		_, ok := v.(string)
		return ok
	case element.Dropdown:
		i, ok := Index(v)
		return ok && i >= 0 && i < len(el.Options)
	case element.Slider:
		f, ok := Number(v)
		return ok && f >= el.Min && f <= el.Max
	case element.StepSlider:
		i, ok := Index(v)
		return ok && i >= 0 && i < len(el.Steps)
	case element.Label, element.Header, element.Divider:
		return v == nil
	default:
		return false
	}
}

// Normalize converts a value accepted by Value into the element's result
// type: bool, string, int (dropdown and step slider) or float64 (slider).
func Normalize(e element.Element, v any) any {
	switch e.(type) {
	case element.Dropdown, element.StepSlider:
		i, _ := Index(v)
		return i
	case element.Slider:
		f, _ := Number(v)
		return f
	case element.Label, element.Header, element.Divider:
		return nil
	default:
		return v
	}
}

// Index extracts an integer from v. JSON numbers must be written without a
// fraction or exponent; floating point values are never indexes.
func Index(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := strconv.ParseInt(string(n), 10, 0)
		if err != nil {
			return 0, false
		}
		return int(i), true
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		if n < math.MinInt || n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		if uint64(n) > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// Number extracts a finite numeric value from v.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	default:
		i, ok := Index(v)
		if !ok {
			return 0, false
		}
		return float64(i), true
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
