package logging

import (
	"errors"
	"fmt"
	"strings"
)

func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "rate_limit") || strings.Contains(msg, "429")
}

func containsAny(err error, needles ...string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}

// IsUserRejected matches a signer refusing to sign or a caller giving up
// on the request.
func IsUserRejected(err error) bool {
	return containsAny(err, "user rejected", "user denied", "rejected the request", "request rejected", "context canceled")
}

func IsInsufficientFunds(err error) bool {
	return containsAny(err, "insufficient funds", "insufficient balance")
}

// IsPermissionDenied matches the hub's revert for non-author/non-admin
// activation and window changes.
func IsPermissionDenied(err error) bool {
	return containsAny(err, "not creator or admin", "not author", "not authorized", "unauthorized", "only admin", "only creator")
}

// IsTokenRequired matches the comment gating revert.
func IsTokenRequired(err error) bool {
	return containsAny(err, "token required", "no access token", "missing token", "must hold")
}

// IsRangeTooLarge matches provider errors for eth_getLogs ranges that are
// too wide or return too many results.
func IsRangeTooLarge(err error) bool {
	return containsAny(err,
		"too many blocks",
		"block range",
		"response too large",
		"query returned more than",
		"limit exceeded",
		"log response size exceeded",
		"maximum allowed number of requested blocks",
		"exceeds defined limit",
	)
}

// WriteKind classifies a rejected write.
type WriteKind string

const (
	KindCancelled         WriteKind = "cancelled"
	KindInsufficientFunds WriteKind = "insufficient_funds"
	KindPermission        WriteKind = "permission"
	KindTokenRequired     WriteKind = "token_required"
	KindUnclassified      WriteKind = "unclassified"
)

// MaxErrorDetail caps the raw text shown for an unclassified failure.
const MaxErrorDetail = 160

// WriteError is a failed ledger write with a user-facing message.
type WriteError struct {
	Kind    WriteKind
	Message string
	Err     error
}

func (e *WriteError) Error() string { return e.Message }
func (e *WriteError) Unwrap() error { return e.Err }

// ClassifyWrite wraps err in a WriteError. nil stays nil.
func ClassifyWrite(err error) error {
	if err == nil {
		return nil
	}
	var we *WriteError
	if errors.As(err, &we) {
		return we
	}
	kind := KindUnclassified
	switch {
	case IsUserRejected(err):
		kind = KindCancelled
	case IsInsufficientFunds(err):
		kind = KindInsufficientFunds
	case IsTokenRequired(err):
		kind = KindTokenRequired
	case IsPermissionDenied(err):
		kind = KindPermission
	}
	return &WriteError{Kind: kind, Message: Describe(kind, err), Err: err}
}

// Describe renders the message for a write failure of the given kind.
func Describe(kind WriteKind, err error) string {
	switch kind {
	case KindCancelled:
		return "transaction cancelled by user"
	case KindInsufficientFunds:
		return "insufficient funds for gas: top up the signer account and retry"
	case KindPermission:
		return "permission denied: only the proposal author or an admin can do this"
	case KindTokenRequired:
		return "an access token is required to comment on proposals"
	}
	return fmt.Sprintf("transaction failed: %s", FirstLine(err, MaxErrorDetail))
}

// FirstLine returns the first line of err's message, truncated to max runes.
func FirstLine(err error, max int) string {
	if err == nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(err.Error()), "\n")
	line = strings.TrimSpace(line)
	r := []rune(line)
	if max > 0 && len(r) > max {
		return string(r[:max]) + "…"
	}
	return line
}
