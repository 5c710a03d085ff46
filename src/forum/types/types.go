package types

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address is a 20-byte ledger address.
type Address = common.Address

// ProposalState is the lifecycle state computed by the hub.
type ProposalState uint8

const (
	StateDraft ProposalState = iota
	StateOpen
	StateActive
	StateClosed
)

// AllStates lists states in ledger (numeric) order.
var AllStates = []ProposalState{StateDraft, StateOpen, StateActive, StateClosed}

func (s ProposalState) String() string {
	switch s {
	case StateDraft:
		return "draft"
	case StateOpen:
		return "open"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Valid reports whether s is one of the four known states.
func (s ProposalState) Valid() bool {
	return s <= StateClosed
}

// ParseState accepts a state name or its numeric value.
func ParseState(v string) (ProposalState, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "draft", "0":
		return StateDraft, nil
	case "open", "1":
		return StateOpen, nil
	case "active", "2":
		return StateActive, nil
	case "closed", "3":
		return StateClosed, nil
	}
	return 0, fmt.Errorf("unknown proposal state %q", v)
}

// Counts maps each state to the number of proposals the hub holds in it.
type Counts map[ProposalState]uint64

// Total sums the counts of the given states.
func (c Counts) Total(states []ProposalState) uint64 {
	var n uint64
	for _, s := range states {
		n += c[s]
	}
	return n
}

// Proposal mirrors the fields of a proposal contract.
type Proposal struct {
	Address      Address       `json:"address"`
	Title        string        `json:"title"`
	Author       Address       `json:"author"`
	CreatedAt    uint64        `json:"createdAt"`
	VoteStart    uint64        `json:"voteStart"`
	VoteEnd      uint64        `json:"voteEnd"`
	VotesFor     *big.Int      `json:"votesFor"`
	VotesAgainst *big.Int      `json:"votesAgainst"`
	Body         string        `json:"body,omitempty"`
	State        ProposalState `json:"state"`
}

// HasWindow reports whether a voting window has been scheduled.
func (p Proposal) HasWindow() bool {
	return p.VoteStart != 0 || p.VoteEnd != 0
}

// Sentiment is the commenter's stance on a proposal.
type Sentiment uint8

const (
	SentimentPositive Sentiment = 1
	SentimentNegative Sentiment = 2
	SentimentNeutral  Sentiment = 3
	SentimentInquiry  Sentiment = 4
)

func (s Sentiment) Valid() bool {
	return s >= SentimentPositive && s <= SentimentInquiry
}

func (s Sentiment) String() string {
	switch s {
	case SentimentPositive:
		return "positive"
	case SentimentNegative:
		return "negative"
	case SentimentNeutral:
		return "neutral"
	case SentimentInquiry:
		return "inquiry"
	}
	return ""
}

// Comment mirrors the fields of a comment contract. Deleted comments keep
// their slot in the proposal's comment sequence.
type Comment struct {
	Address   Address   `json:"address"`
	Author    Address   `json:"author"`
	Content   string    `json:"content"`
	CreatedAt uint64    `json:"createdAt"`
	Deleted   bool      `json:"deleted"`
	Sentiment Sentiment `json:"sentiment"`
}

// LegacySubmission is one ProposalSubmitted event from the pre-hub contract.
type LegacySubmission struct {
	ID          string  `json:"id"`
	Author      Address `json:"author"`
	Text        string  `json:"proposal"`
	BlockNumber uint64  `json:"blockNumber"`
	Timestamp   uint64  `json:"timestamp"`
}

// LegacyPage is a window of submissions. PrevCursor is nil once the scan
// has reached the genesis block. Partial is set when the provider stopped
// the scan before ToBlock; blocks from ScannedTo+1 on were not read.
type LegacyPage struct {
	Items      []LegacySubmission `json:"items"`
	FromBlock  uint64             `json:"fromBlock"`
	ToBlock    uint64             `json:"toBlock"`
	PrevCursor *uint64            `json:"prevCursor"`
	Partial    bool               `json:"partial,omitempty"`
	ScannedTo  *uint64            `json:"scannedTo,omitempty"`
}

// ParseAddress validates a 0x-prefixed 40 hex character address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	if !common.IsHexAddress(s) {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// IsZeroAddress reports whether a is unset.
func IsZeroAddress(a Address) bool {
	return a == (Address{})
}

var proposalRoute = regexp.MustCompile(`#/proposal/(0x[0-9a-fA-F]{40})`)

// ProposalFromRoute extracts the proposal address from a location hash
// such as "#/proposal/0xabc...".
func ProposalFromRoute(hash string) (Address, bool) {
	m := proposalRoute.FindStringSubmatch(hash)
	if m == nil {
		return Address{}, false
	}
	return common.HexToAddress(m[1]), true
}
