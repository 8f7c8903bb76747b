package groups

import (
	"fmt"

	"github.com/star/orbtrack/internal/catalog"
	"github.com/star/orbtrack/internal/propagation"
)

// State is a group entry's selection state.
type State int

const (
	Unselected State = iota
	Loading
	Selected
)

func (s State) String() string {
	switch s {
	case Unselected:
		return "unselected"
	case Loading:
		return "loading"
	case Selected:
		return "selected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for _, c := range []State{Unselected, Loading, Selected} {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown group state %q", b)
}

// Entry is a point-in-time view of one group entry.
type Entry struct {
	Index      int                `json:"index"`
	Label      string             `json:"label"`
	Identifier catalog.Identifier `json:"identifier"`
	State      State              `json:"state"`
	Refreshing bool               `json:"refreshing,omitempty"`
	Objects    int                `json:"objects"`
	Error      string             `json:"error,omitempty"`
}

// Entries returns a view of every entry in configuration order.
func (p *Pipeline) Entries() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Entry, len(p.entries))
	for i, e := range p.entries {
		out[i] = p.view(i, e)
	}
	return out
}

// view snapshots entry i. Callers hold p.mu.
func (p *Pipeline) view(i int, e *entry) Entry {
	v := Entry{
		Index:      i,
		Label:      e.group.Label,
		Identifier: e.group.Identifier,
		State:      e.state,
		Refreshing: e.refreshing,
		Objects:    len(e.objects),
	}
	if e.err != nil {
		v.Error = e.err.Error()
	}
	return v
}

// Entry returns a view of entry i.
func (p *Pipeline) Entry(i int) (Entry, error) {
	entries := p.Entries()
	if i < 0 || i >= len(entries) {
		return Entry{}, fmt.Errorf("%w: index %d", ErrUnknownGroup, i)
	}
	return entries[i], nil
}

// Roster returns the current tracked objects and the roster version. The
// slice must not be modified; a later rebuild replaces it rather than
// mutating it.
func (p *Pipeline) Roster() ([]*propagation.Object, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.roster, p.version
}

// ObjectRef is a weak reference to a roster position. It resolves only
// against the roster version it was taken from.
type ObjectRef struct {
	Index   int    `json:"index"`
	Version uint64 `json:"version"`
}

// Ref returns a reference to roster index i in the current version.
func (p *Pipeline) Ref(i int) (ObjectRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i < 0 || i >= len(p.roster) {
		return ObjectRef{}, fmt.Errorf("%w: index %d", ErrUnknownObject, i)
	}
	return ObjectRef{Index: i, Version: p.version}, nil
}

// Resolve returns the object ref points at, or ErrStaleRef when the roster
// has been rebuilt since the reference was taken.
func (p *Pipeline) Resolve(ref ObjectRef) (*propagation.Object, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ref.Version != p.version {
		return nil, ErrStaleRef
	}
	if ref.Index < 0 || ref.Index >= len(p.roster) {
		return nil, fmt.Errorf("%w: index %d", ErrUnknownObject, ref.Index)
	}
	return p.roster[ref.Index], nil
}
