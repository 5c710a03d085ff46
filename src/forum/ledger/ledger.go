// Package ledger is the typed call contract between the forum and the
// governance contracts: a hub that indexes proposals by state, one contract
// per proposal and one per comment.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stake-plus/bobu-forum/src/forum/types"
)

var (
	// ErrInvalidWindow rejects a voting window that is neither cleared
	// (both zero) nor strictly increasing.
	ErrInvalidWindow = errors.New("invalid voting window: end must be after start, or both zero")
	ErrNoSigner      = errors.New("no signer configured for ledger writes")
	ErrMintDisabled  = errors.New("minting access tokens is only enabled on testnet")
)

// ConfigError reports a missing or all-zero contract address.
type ConfigError struct {
	Setting string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s is not configured: set %s to the deployed contract address", e.Setting, e.Setting)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// PendingTx is the handle returned by a submitted write. Writes do not wait
// for the transaction to be mined.
type PendingTx struct {
	Hash common.Hash `json:"hash"`
}

// Reader is the read side of the ledger. All calls are idempotent.
type Reader interface {
	CountByState(ctx context.Context, state types.ProposalState) (uint64, error)
	ListAddressesByState(ctx context.Context, state types.ProposalState, offset, count uint64, reverse bool) ([]types.Address, error)
	ReadProposal(ctx context.Context, addr types.Address) (types.Proposal, error)
	ReadProposalBody(ctx context.Context, addr types.Address) (string, error)
	ListCommentAddresses(ctx context.Context, proposal types.Address, offset, count uint64, reverse bool) ([]types.Address, error)
	ReadComment(ctx context.Context, addr types.Address) (types.Comment, error)
	HasAccessToken(ctx context.Context, addr types.Address) (bool, error)
	IsCommentGatingEnabled(ctx context.Context) (bool, error)
}

// Writer submits transactions. A write only requests a state change; the
// caller re-reads to observe the outcome.
type Writer interface {
	CreateProposal(ctx context.Context, title, envelope string, voteStart, voteEnd uint64) (PendingTx, error)
	SetVotingWindow(ctx context.Context, proposal types.Address, voteStart, voteEnd uint64) (PendingTx, error)
	RequestActivation(ctx context.Context, proposal types.Address, active bool) (PendingTx, error)
	RequestStateSync(ctx context.Context, proposal types.Address) (PendingTx, error)
	AddComment(ctx context.Context, proposal types.Address, content string, sentiment types.Sentiment) (PendingTx, error)
	MintAccessToken(ctx context.Context, to types.Address) (PendingTx, error)
}

// SubmissionLog is a decoded ProposalSubmitted event.
type SubmissionLog struct {
	TxHash      common.Hash
	Contract    types.Address
	BlockNumber uint64
	LogIndex    uint
	Author      types.Address
	Text        string
}

// LogSource is the log-scanning read API used by the legacy listing.
type LogSource interface {
	LatestBlock(ctx context.Context) (uint64, error)
	SubmissionLogs(ctx context.Context, from, to uint64) ([]SubmissionLog, error)
	BlockTime(ctx context.Context, number uint64) (uint64, error)
}

// ValidateWindow accepts (0, 0) or any pair with end > start.
func ValidateWindow(start, end uint64) error {
	if start == 0 && end == 0 {
		return nil
	}
	if end > start {
		return nil
	}
	return ErrInvalidWindow
}
