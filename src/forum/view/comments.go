package view

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stake-plus/bobu-forum/src/forum/types"
)

// CommentBatch is the number of comment addresses fetched per load.
const CommentBatch = 20

// CommentReader is the part of ledger.Reader the feed needs.
type CommentReader interface {
	ListCommentAddresses(ctx context.Context, proposal types.Address, offset, count uint64, reverse bool) ([]types.Address, error)
	ReadComment(ctx context.Context, addr types.Address) (types.Comment, error)
}

type CommentRow struct {
	Address     types.Address `json:"address"`
	Author      types.Address `json:"author"`
	ShortAuthor string        `json:"shortAuthor"`
	Content     string        `json:"content"`
	CreatedAt   uint64        `json:"createdAt"`
	TimeAgo     string        `json:"timeAgo"`
	Sentiment   string        `json:"sentiment"`
}

func NewCommentRow(c types.Comment, now time.Time) CommentRow {
	return CommentRow{
		Address:     c.Address,
		Author:      c.Author,
		ShortAuthor: ShortAddress(c.Author),
		Content:     c.Content,
		CreatedAt:   c.CreatedAt,
		TimeAgo:     RelativeTime(c.CreatedAt, now),
		Sentiment:   c.Sentiment.String(),
	}
}

// CommentFeed loads a proposal's comments newest first, one batch at a
// time. Offset counts fetched slots, tombstones included.
//
// HasMore is true when the last batch was full. It is a heuristic: a full
// final batch reports more even though none remain.
type CommentFeed struct {
	Proposal types.Address `json:"proposal"`
	Offset   uint64        `json:"offset"`
	HasMore  bool          `json:"hasMore"`
	Rows     []CommentRow  `json:"rows"`
}

func NewCommentFeed(proposal types.Address) *CommentFeed {
	return &CommentFeed{Proposal: proposal, HasMore: true}
}

// Reset drops loaded rows and rewinds to the newest comment.
func (f *CommentFeed) Reset() {
	f.Offset = 0
	f.HasMore = true
	f.Rows = nil
}

// LoadMore fetches the next batch and appends its visible comments. It
// returns the rows added by this call.
func (f *CommentFeed) LoadMore(ctx context.Context, r CommentReader, now time.Time) ([]CommentRow, error) {
	addrs, err := r.ListCommentAddresses(ctx, f.Proposal, f.Offset, CommentBatch, true)
	if err != nil {
		return nil, fmt.Errorf("list comments of %s: %w", f.Proposal.Hex(), err)
	}
	comments := make([]types.Comment, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range addrs {
		g.Go(func() error {
			c, err := r.ReadComment(gctx, a)
			if err != nil {
				return fmt.Errorf("read comment %s: %w", a.Hex(), err)
			}
			comments[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	added := make([]CommentRow, 0, len(comments))
	for _, c := range comments {
		if c.Deleted {
			continue
		}
		added = append(added, NewCommentRow(c, now))
	}
	f.Offset += uint64(len(addrs))
	f.HasMore = len(addrs) == CommentBatch
	f.Rows = append(f.Rows, added...)
	return added, nil
}
