package pager

import (
	"context"
	"sync"

	"github.com/stake-plus/bobu-forum/src/forum/types"
)

const (
	KeyProposals = "proposals"
	KeyCounts    = "counts"
)

func CommentsKey(proposal types.Address) string { return "comments:" + proposal.Hex() }
func AccessKey(account types.Address) string    { return "access:" + account.Hex() }

// Tracker implements last-request-wins per logical resource. Starting a
// request for a key cancels the context of the previous request for that
// key and makes its token stale.
type Tracker struct {
	mu      sync.Mutex
	next    uint64
	entries map[string]*entry
}

type entry struct {
	seq    uint64
	cancel context.CancelFunc
}

// Token identifies one request started with Begin.
type Token struct {
	t   *Tracker
	key string
	seq uint64
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]*entry)}
}

func (t *Tracker) Begin(ctx context.Context, key string) (context.Context, Token) {
	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.entries[key]; ok {
		prev.cancel()
	}
	t.next++
	seq := t.next
	t.entries[key] = &entry{seq: seq, cancel: cancel}
	return ctx, Token{t: t, key: key, seq: seq}
}

func (tok Token) currentLocked() bool {
	e, ok := tok.t.entries[tok.key]
	return ok && e.seq == tok.seq
}

// Current reports whether no newer request for the same key has started.
func (tok Token) Current() bool {
	tok.t.mu.Lock()
	defer tok.t.mu.Unlock()
	return tok.currentLocked()
}

// Apply runs fn only if the token is still current and reports whether it
// ran. fn must not call back into the tracker.
func (tok Token) Apply(fn func()) bool {
	tok.t.mu.Lock()
	defer tok.t.mu.Unlock()
	if !tok.currentLocked() {
		return false
	}
	fn()
	return true
}

// Release ends the request. A current token drops its entry; a stale one
// is a no-op.
func (tok Token) Release() {
	tok.t.mu.Lock()
	defer tok.t.mu.Unlock()
	if e, ok := tok.t.entries[tok.key]; ok && e.seq == tok.seq {
		e.cancel()
		delete(tok.t.entries, tok.key)
	}
}
