package validation

import (
	"fmt"
	"strconv"

	"github.com/SwouitAzia/formshandler/element"
)

// Element checks the construction invariants of e.
func Element(e element.Element) error {
	switch el := e.(type) {
	case nil:
		return fmt.Errorf("nil element")
	case element.Dropdown:
		if len(el.Options) == 0 {
			return fmt.Errorf("dropdown %q has no options", el.Text)
		}
		if el.Default != nil && (*el.Default < 0 || *el.Default >= len(el.Options)) {
			return fmt.Errorf("dropdown %q default %d out of range [0,%d)", el.Text, *el.Default, len(el.Options))
		}
	case element.StepSlider:
		if len(el.Steps) == 0 {
			return fmt.Errorf("step slider %q has no steps", el.Text)
		}
		if el.Default != nil && (*el.Default < 0 || *el.Default >= len(el.Steps)) {
			return fmt.Errorf("step slider %q default %d out of range [0,%d)", el.Text, *el.Default, len(el.Steps))
		}
	case element.Slider:
		if el.Min > el.Max {
			return fmt.Errorf("slider %q minimum greater than maximum", el.Text)
		}
		if el.Step < 0 {
			return fmt.Errorf("slider %q negative step", el.Text)
		}
		if el.Default != nil && (*el.Default < el.Min || *el.Default > el.Max) {
			return fmt.Errorf("slider %q default %g outside [%g,%g]", el.Text, *el.Default, el.Min, el.Max)
		}
	}
	return nil
}

// Labels checks that no result key is used twice. keys[i] is the label of
// entry i, or "" when the entry is keyed by its index.
func Labels(keys []string) error {
	seen := make(map[string]int, len(keys))
	for i, k := range keys {
		if k == "" {
			k = strconv.Itoa(i)
		}
		if prev, dup := seen[k]; dup {
			return fmt.Errorf("entries %d and %d share result key %q", prev, i, k)
		}
		seen[k] = i
	}
	return nil
}
