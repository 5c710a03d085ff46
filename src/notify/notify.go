// Package notify fans forum events out to the event stream and to Discord.
package notify

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stake-plus/bobu-forum/src/forum/types"
)

const (
	KindProposalCreated = "proposal.created"
	KindWindowSet       = "proposal.window"
	KindActivation      = "proposal.activation"
	KindStateSync       = "proposal.sync"
	KindCommentAdded    = "comment.added"
	KindTokenMinted     = "token.minted"
)

// Event is a submitted forum write. Tx is the pending transaction hash; the
// write may still fail on-chain.
type Event struct {
	Kind     string
	Proposal types.Address
	Actor    types.Address
	Tx       common.Hash
	Title    string
	Detail   string
}

func (e Event) Fields() map[string]interface{} {
	f := map[string]interface{}{
		"actor": e.Actor.Hex(),
		"tx":    e.Tx.Hex(),
	}
	if !types.IsZeroAddress(e.Proposal) {
		f["proposal"] = e.Proposal.Hex()
	}
	if e.Title != "" {
		f["title"] = e.Title
	}
	if e.Detail != "" {
		f["detail"] = e.Detail
	}
	return f
}

type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Multi publishes to every sink and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }

// StreamPublisher is satisfied by data.Events.
type StreamPublisher interface {
	Publish(ctx context.Context, kind string, fields map[string]interface{}) error
}

// Stream adapts a Redis stream publisher to Sink.
type Stream struct {
	Pub StreamPublisher
}

func (s Stream) Publish(ctx context.Context, ev Event) error {
	return s.Pub.Publish(ctx, ev.Kind, ev.Fields())
}
