package pager

import (
	"slices"

	"github.com/stake-plus/bobu-forum/src/forum/types"
)

// DefaultState replaces an empty selection.
const DefaultState = types.StateActive

// Selection is an immutable filter-and-page snapshot. Transitions return a
// new value; Generation increases whenever the state set changes so that
// anything computed for an older set can be recognised as stale.
type Selection struct {
	States     []types.ProposalState `json:"states"`
	Page       int                   `json:"page"`
	Generation uint64                `json:"generation"`
}

func NewSelection(states ...types.ProposalState) Selection {
	return Selection{States: normalize(states), Page: 1}
}

func normalize(states []types.ProposalState) []types.ProposalState {
	out := Ordered(states)
	if len(out) == 0 {
		return []types.ProposalState{DefaultState}
	}
	return out
}

func (s Selection) Has(state types.ProposalState) bool {
	return slices.Contains(s.States, state)
}

// Toggle adds or removes one state. Removing the last state leaves the
// default state selected.
func (s Selection) Toggle(state types.ProposalState) Selection {
	next := make([]types.ProposalState, 0, len(s.States)+1)
	for _, st := range s.States {
		if st != state {
			next = append(next, st)
		}
	}
	if !s.Has(state) {
		next = append(next, state)
	}
	return s.SetStates(next...)
}

// SetStates replaces the state set and resets to page 1.
func (s Selection) SetStates(states ...types.ProposalState) Selection {
	next := normalize(states)
	gen := s.Generation
	if !slices.Equal(next, s.States) {
		gen++
	}
	return Selection{States: next, Page: 1, Generation: gen}
}

// GotoPage moves to page n clamped into [1, totalPages].
func (s Selection) GotoPage(n, totalPages int) Selection {
	if totalPages < 1 {
		totalPages = 1
	}
	return Selection{
		States:     slices.Clone(s.States),
		Page:       clamp(n, 1, totalPages),
		Generation: s.Generation,
	}
}
