package scripting

import (
	"context"
	"fmt"
)

// MutationKind identifies the store a pending mutation targets.
type MutationKind int

const (
	// MutationSetUvar writes a user variable.
	MutationSetUvar MutationKind = iota
	// MutationDeleteUvar removes a user variable.
	MutationDeleteUvar
	// MutationCharacter records a change to the active character.
	MutationCharacter
)

func (k MutationKind) String() string {
	switch k {
	case MutationSetUvar:
		return "set_uvar"
	case MutationDeleteUvar:
		return "delete_uvar"
	case MutationCharacter:
		return "character"
	}
	return "unknown"
}

// Mutation is one side effect requested by a script.
type Mutation struct {
	Kind MutationKind
	// Op names the builtin that requested a character mutation.
	Op    string
	Key   string
	Value string
}

// MutationSet accumulates the side effects of one invocation in request order.
//
// Invariant: a MutationSet is flushed at most once; after Discard or Flush
// it accepts no further mutations.
type MutationSet struct {
	items  []Mutation
	closed bool
}

// Add enqueues m. It is ignored once the set is closed.
func (s *MutationSet) Add(m Mutation) {
	if s.closed {
		return
	}
	s.items = append(s.items, m)
}

// Len returns the number of pending mutations.
func (s *MutationSet) Len() int { return len(s.items) }

// Items returns a copy of the pending mutations in request order.
func (s *MutationSet) Items() []Mutation {
	return append([]Mutation(nil), s.items...)
}

// HasCharacterChanges reports whether any pending mutation targets the character.
func (s *MutationSet) HasCharacterChanges() bool {
	for _, m := range s.items {
		if m.Kind == MutationCharacter {
			return true
		}
	}
	return false
}

// Discard drops every pending mutation and closes the set.
func (s *MutationSet) Discard() {
	s.items = nil
	s.closed = true
}

// Flush calls apply for each mutation in request order and closes the set.
//
// Postcondition: returns the number applied; stops at the first apply error.
// A second Flush returns ErrAlreadyFlushed without calling apply.
func (s *MutationSet) Flush(ctx context.Context, apply func(context.Context, Mutation) error) (int, error) {
	if s.closed {
		return 0, ErrAlreadyFlushed
	}
	s.closed = true
	for i, m := range s.items {
		if err := apply(ctx, m); err != nil {
			return i, fmt.Errorf("scripting: applying %s %q: %w", m.Kind, m.Key, err)
		}
	}
	return len(s.items), nil
}
