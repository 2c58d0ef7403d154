package form

import (
	"encoding/json"
	"strconv"

	"github.com/SwouitAzia/formshandler/element"
)

// Entry is the interpreted value of one custom form element.
type Entry struct {
	Index int
	Label string
	Kind  element.Kind
	// Value is bool, string, int, float64 or nil for visual elements.
	Value any
	// Substituted is set when the submitted value was invalid and Value is
	// the element's fallback.
	Substituted bool
}

// Key returns the entry's label, or its index when it has none.
func (e Entry) Key() string {
	if e.Label != "" {
		return e.Label
	}
	return strconv.Itoa(e.Index)
}

// Result holds the interpreted reply of a custom form, in element order.
// Entries are addressed by label or, for unlabeled elements, by the decimal
// index.
type Result struct {
	entries []Entry
	byKey   map[string]int
}

func newResult(entries []Entry) *Result {
	r := &Result{entries: entries, byKey: make(map[string]int, len(entries))}
	for i, e := range entries {
		r.byKey[e.Key()] = i
	}
	return r
}

func (r *Result) Len() int { return len(r.entries) }

// Entry returns the i-th entry.
func (r *Result) Entry(i int) Entry { return r.entries[i] }

// Entries returns a copy of all entries.
func (r *Result) Entries() []Entry { return append([]Entry(nil), r.entries...) }

// Get returns the value stored under key.
func (r *Result) Get(key string) (any, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return nil, false
	}
	return r.entries[i].Value, true
}

// Bool returns the value under key, or false.
func (r *Result) Bool(key string) bool {
	v, _ := r.Get(key)
	b, _ := v.(bool)
	return b
}

// String returns the value under key, or "".
func (r *Result) String(key string) string {
	v, _ := r.Get(key)
	s, _ := v.(string)
	return s
}

// Int returns the index under key, or 0.
func (r *Result) Int(key string) int {
	v, _ := r.Get(key)
	i, _ := v.(int)
	return i
}

// Float returns the number under key, or 0.
func (r *Result) Float(key string) float64 {
	v, _ := r.Get(key)
	f, _ := v.(float64)
	return f
}

// Values returns the values in element order.
func (r *Result) Values() []any {
	out := make([]any, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Value
	}
	return out
}

// Map returns the values keyed by label or index.
func (r *Result) Map() map[string]any {
	out := make(map[string]any, len(r.entries))
	for _, e := range r.entries {
		out[e.Key()] = e.Value
	}
	return out
}

func (r *Result) MarshalJSON() ([]byte, error) { return json.Marshal(r.Map()) }
