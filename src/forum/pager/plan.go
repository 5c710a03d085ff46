// Package pager pages through the hub's proposals as if every selected
// state's list were concatenated, in canonical order, into one sequence.
// The hub only answers per-state offset/count queries, so a page is planned
// as a set of per-state segments and reassembled after the fetch.
package pager

import (
	"github.com/stake-plus/bobu-forum/src/forum/types"
)

// CanonicalOrder is the display order of states, used for both counts and
// listings.
var CanonicalOrder = []types.ProposalState{
	types.StateActive,
	types.StateOpen,
	types.StateDraft,
	types.StateClosed,
}

const DefaultPageSize = 10

// Segment is one per-state fetch: Count addresses starting at Offset within
// State's newest-first list.
type Segment struct {
	State  types.ProposalState `json:"state"`
	Offset uint64              `json:"offset"`
	Count  uint64              `json:"count"`
}

// Window is a planned page over the virtual concatenation [Start, End).
type Window struct {
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
	Total      uint64    `json:"total"`
	Start      uint64    `json:"start"`
	End        uint64    `json:"end"`
	Segments   []Segment `json:"segments"`
}

// Ordered returns the selected states in canonical order without
// duplicates or unknown values.
func Ordered(selected []types.ProposalState) []types.ProposalState {
	want := make(map[types.ProposalState]bool, len(selected))
	for _, s := range selected {
		want[s] = true
	}
	out := make([]types.ProposalState, 0, len(want))
	for _, s := range CanonicalOrder {
		if want[s] {
			out = append(out, s)
		}
	}
	return out
}

// TotalPages is ceil(total/size) and never less than 1.
func TotalPages(total uint64, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	pages := (total + uint64(size) - 1) / uint64(size)
	if pages < 1 {
		return 1
	}
	return int(pages)
}

// Plan maps page (1-based, clamped into [1, TotalPages]) of the selected
// states onto per-state segments.
func Plan(selected []types.ProposalState, counts types.Counts, page, size int) Window {
	if size <= 0 {
		size = DefaultPageSize
	}
	states := Ordered(selected)
	total := counts.Total(states)
	w := Window{TotalPages: TotalPages(total, size), Total: total}
	w.Page = clamp(page, 1, w.TotalPages)

	w.Start = uint64(w.Page-1) * uint64(size)
	w.End = w.Start + uint64(size)
	if w.End > total {
		w.End = total
	}

	var cum uint64
	for _, s := range states {
		spanStart, spanEnd := cum, cum+counts[s]
		cum = spanEnd
		lo, hi := max(spanStart, w.Start), min(spanEnd, w.End)
		if lo >= hi {
			continue
		}
		w.Segments = append(w.Segments, Segment{State: s, Offset: lo - spanStart, Count: hi - lo})
	}
	return w
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
