package assistant

import "strings"

type Selector string

const (
	SelectorAugment    Selector = "augment"
	SelectorAutomation Selector = "automation"
)

// Selectors lists every tag the gateway accepts.
var Selectors = []Selector{SelectorAugment, SelectorAutomation}

func (s Selector) Valid() bool {
	for _, known := range Selectors {
		if s == known {
			return true
		}
	}
	return false
}

// Registry maps selector tags to provider assistant ids. It is built once at
// start-up and only read afterwards.
type Registry struct {
	ids map[Selector]string
}

// NewRegistry keeps only known selectors with a non-empty assistant id.
func NewRegistry(ids map[Selector]string) Registry {
	r := Registry{ids: make(map[Selector]string, len(Selectors))}
	for sel, id := range ids {
		id = strings.TrimSpace(id)
		if sel.Valid() && id != "" {
			r.ids[sel] = id
		}
	}
	return r
}

// Resolve returns the assistant id configured for tag.
func (r Registry) Resolve(tag string) (string, error) {
	id, ok := r.ids[Selector(tag)]
	if !ok {
		return "", &InvalidSelectorError{Selector: tag}
	}
	return id, nil
}

// Configured returns the selectors that resolve, in declaration order.
func (r Registry) Configured() []Selector {
	out := make([]Selector, 0, len(r.ids))
	for _, sel := range Selectors {
		if _, ok := r.ids[sel]; ok {
			out = append(out, sel)
		}
	}
	return out
}
