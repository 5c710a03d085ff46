package view

import (
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/stake-plus/bobu-forum/src/forum/markdown"
	"github.com/stake-plus/bobu-forum/src/forum/types"
)

const Untitled = "(untitled)"

// DisplayStatus maps a ledger state onto its label.
func DisplayStatus(s types.ProposalState) string {
	if !s.Valid() {
		return "unknown"
	}
	return s.String()
}

// ShortAddress renders 0x1234...abcd.
func ShortAddress(a types.Address) string {
	h := a.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}

// SumVotes adds two tallies. The ledger stores uint256; the sum saturates at
// math.MaxUint64, which is far above any realistic vote count.
func SumVotes(a, b *big.Int) uint64 {
	sum := new(big.Int)
	if a != nil {
		sum.Add(sum, a)
	}
	if b != nil {
		sum.Add(sum, b)
	}
	if sum.Sign() < 0 {
		return 0
	}
	if !sum.IsUint64() {
		return math.MaxUint64
	}
	return sum.Uint64()
}

type ProposalRow struct {
	Address     types.Address `json:"address"`
	ShortID     string        `json:"shortId"`
	Title       string        `json:"title"`
	Author      types.Address `json:"author"`
	ShortAuthor string        `json:"shortAuthor"`
	Votes       uint64        `json:"votes"`
	CreatedAt   uint64        `json:"createdAt"`
	TimeAgo     string        `json:"timeAgo"`
	Status      string        `json:"status"`
	Snippet     string        `json:"snippet"`
}

// NewProposalRow builds a list row. An empty ledger title falls back to the
// title in the body envelope.
func NewProposalRow(p types.Proposal, now time.Time) ProposalRow {
	env := markdown.ParseEnvelope(p.Body)
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = env.Title
	}
	return ProposalRow{
		Address:     p.Address,
		ShortID:     ShortAddress(p.Address),
		Title:       title,
		Author:      p.Author,
		ShortAuthor: ShortAddress(p.Author),
		Votes:       SumVotes(p.VotesFor, p.VotesAgainst),
		CreatedAt:   p.CreatedAt,
		TimeAgo:     RelativeTime(p.CreatedAt, now),
		Status:      DisplayStatus(p.State),
		Snippet:     markdown.Snippet(env.Body),
	}
}

type ProposalDetail struct {
	ProposalRow
	Body         string `json:"body"`
	VoteStart    uint64 `json:"voteStart"`
	VoteEnd      uint64 `json:"voteEnd"`
	HasWindow    bool   `json:"hasWindow"`
	VotesFor     string `json:"votesFor"`
	VotesAgainst string `json:"votesAgainst"`
	Meta         string `json:"meta"`
}

// NewProposalDetail builds the detail view. The title falls back from the
// ledger title to the envelope title to Untitled.
func NewProposalDetail(p types.Proposal, now time.Time) ProposalDetail {
	row := NewProposalRow(p, now)
	if row.Title == "" {
		row.Title = Untitled
	}
	return ProposalDetail{
		ProposalRow:  row,
		Body:         markdown.ParseEnvelope(p.Body).Body,
		VoteStart:    p.VoteStart,
		VoteEnd:      p.VoteEnd,
		HasWindow:    p.HasWindow(),
		VotesFor:     bigString(p.VotesFor),
		VotesAgainst: bigString(p.VotesAgainst),
		Meta:         metaLine(p),
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func metaLine(p types.Proposal) string {
	var parts []string
	if !types.IsZeroAddress(p.Author) {
		parts = append(parts, "by "+ShortAddress(p.Author))
	}
	if p.CreatedAt != 0 {
		parts = append(parts, "created "+Timestamp(p.CreatedAt))
	}
	if p.VoteStart != 0 && p.VoteEnd != 0 {
		parts = append(parts, "voting "+Timestamp(p.VoteStart)+" → "+Timestamp(p.VoteEnd))
	} else {
		parts = append(parts, "no voting window")
	}
	return strings.Join(parts, " · ")
}
