package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidIdentifier is returned for an identifier that names neither a
// designator nor a collection, or both.
var ErrInvalidIdentifier = errors.New("invalid catalog identifier")

// Identifier selects catalog records: either one international designator
// ("1998-067A") or a named collection ("weather"). Exactly one is set.
type Identifier struct {
	Designator string `json:"id,omitempty" mapstructure:"id"`
	Collection string `json:"group,omitempty" mapstructure:"group"`
}

// Designator returns an identifier for a single international designator.
func Designator(id string) Identifier { return Identifier{Designator: id} }

// Collection returns an identifier for a named catalog collection.
func Collection(name string) Identifier { return Identifier{Collection: name} }

// Validate reports whether exactly one of Designator and Collection is set.
func (id Identifier) Validate() error {
	d := strings.TrimSpace(id.Designator)
	c := strings.TrimSpace(id.Collection)
	if (d == "") == (c == "") {
		return fmt.Errorf("%w: exactly one of id and group must be set (id=%q group=%q)", ErrInvalidIdentifier, id.Designator, id.Collection)
	}
	return nil
}

// query returns the GP query parameters for the identifier.
func (id Identifier) query() url.Values {
	q := url.Values{}
	if id.Designator != "" {
		q.Set("INTDES", strings.TrimSpace(id.Designator))
	} else {
		q.Set("GROUP", strings.TrimSpace(id.Collection))
	}
	q.Set("FORMAT", "json")
	return q
}

func (id Identifier) String() string {
	if id.Designator != "" {
		return "INTDES=" + id.Designator
	}
	return "GROUP=" + id.Collection
}

// Group is a labelled catalog identifier; the label keys the disk cache.
type Group struct {
	Label      string `json:"label" mapstructure:"label"`
	Identifier `mapstructure:",squash"`
}

// Validate checks the label and identifier.
func (g Group) Validate() error {
	if strings.TrimSpace(g.Label) == "" {
		return fmt.Errorf("%w: empty group label", ErrInvalidIdentifier)
	}
	if err := g.Identifier.Validate(); err != nil {
		return fmt.Errorf("group %q: %w", g.Label, err)
	}
	return nil
}
