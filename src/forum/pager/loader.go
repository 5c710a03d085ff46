package pager

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/stake-plus/bobu-forum/src/forum/ledger"
	"github.com/stake-plus/bobu-forum/src/forum/types"
)

// Page is one loaded page together with the counts snapshot it was sliced
// from.
type Page struct {
	Selection Selection       `json:"selection"`
	Window    Window          `json:"window"`
	Counts    types.Counts    `json:"counts"`
	Addresses []types.Address `json:"addresses"`
}

type Loader struct {
	Reader   ledger.Reader
	PageSize int
}

func (l Loader) pageSize() int {
	if l.PageSize <= 0 {
		return DefaultPageSize
	}
	return l.PageSize
}

// Counts fetches a fresh count for every state.
func (l Loader) Counts(ctx context.Context) (types.Counts, error) {
	vals := make([]uint64, len(types.AllStates))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range types.AllStates {
		g.Go(func() error {
			n, err := l.Reader.CountByState(gctx, s)
			if err != nil {
				return fmt.Errorf("count %s: %w", s, err)
			}
			vals[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	counts := make(types.Counts, len(vals))
	for i, s := range types.AllStates {
		counts[s] = vals[i]
	}
	return counts, nil
}

// Load refreshes the counts and loads sel's page from that same snapshot.
func (l Loader) Load(ctx context.Context, sel Selection) (Page, error) {
	counts, err := l.Counts(ctx)
	if err != nil {
		return Page{}, err
	}
	return l.LoadWith(ctx, sel, counts)
}

// LoadWith loads sel's page against an existing counts snapshot. Segments
// are fetched concurrently and reassembled in canonical order.
func (l Loader) LoadWith(ctx context.Context, sel Selection, counts types.Counts) (Page, error) {
	w := Plan(sel.States, counts, sel.Page, l.pageSize())
	parts := make([][]types.Address, len(w.Segments))
	g, gctx := errgroup.WithContext(ctx)
	for i, seg := range w.Segments {
		g.Go(func() error {
			addrs, err := l.Reader.ListAddressesByState(gctx, seg.State, seg.Offset, seg.Count, true)
			if err != nil {
				return fmt.Errorf("list %s [%d+%d]: %w", seg.State, seg.Offset, seg.Count, err)
			}
			if uint64(len(addrs)) > seg.Count {
				addrs = addrs[:seg.Count]
			}
			parts[i] = addrs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Page{}, err
	}

	out := make([]types.Address, 0, w.End-w.Start)
	for _, p := range parts {
		out = append(out, p...)
	}
	sel.Page = w.Page
	return Page{Selection: sel, Window: w, Counts: counts, Addresses: out}, nil
}
