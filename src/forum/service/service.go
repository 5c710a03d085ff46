// Package service is the forum's use-case layer: it validates input,
// runs the pager and view-model over the ledger, submits writes and
// announces them.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/stake-plus/bobu-forum/src/forum/ledger"
	"github.com/stake-plus/bobu-forum/src/forum/logscan"
	"github.com/stake-plus/bobu-forum/src/forum/markdown"
	"github.com/stake-plus/bobu-forum/src/forum/pager"
	"github.com/stake-plus/bobu-forum/src/forum/types"
	"github.com/stake-plus/bobu-forum/src/forum/view"
	"github.com/stake-plus/bobu-forum/src/logging"
	"github.com/stake-plus/bobu-forum/src/notify"
)

const (
	MaxTitleLen = 128
	// PlaceholderContract is reported when no legacy contract address is
	// stored or configured.
	PlaceholderContract = "0x1234567890123456789012345678901234567890"
)

// ValidationError rejects input before any ledger write is attempted.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Err: errors.New(msg)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ContractStore persists the overridden legacy contract address.
type ContractStore interface {
	Get() string
	Set(value string) error
}

type Options struct {
	Reader   ledger.Reader
	Writer   ledger.Writer
	Logs     ledger.LogSource
	PageSize int
	Events   notify.Sink
	Contract ContractStore
	// Configured is the legacy contract address from configuration.
	Configured types.Address
	// OnContractChange is called after a new legacy address is stored.
	OnContractChange func(types.Address)
	Now              func() time.Time
}

type Service struct {
	reader   ledger.Reader
	writer   ledger.Writer
	loader   pager.Loader
	scanner  *logscan.Scanner
	events   notify.Sink
	contract ContractStore
	cfgAddr  types.Address
	onChange func(types.Address)
	now      func() time.Time
}

func New(opts Options) *Service {
	s := &Service{
		reader:   opts.Reader,
		writer:   opts.Writer,
		loader:   pager.Loader{Reader: opts.Reader, PageSize: opts.PageSize},
		events:   opts.Events,
		contract: opts.Contract,
		cfgAddr:  opts.Configured,
		onChange: opts.OnContractChange,
		now:      opts.Now,
	}
	if opts.Logs != nil {
		s.scanner = logscan.New(opts.Logs)
	}
	if s.events == nil {
		s.events = notify.Discard{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type BrowseResult struct {
	Selection pager.Selection    `json:"selection"`
	Window    pager.Window       `json:"window"`
	Counts    map[string]uint64  `json:"counts"`
	Rows      []view.ProposalRow `json:"rows"`
}

func countsByName(c types.Counts) map[string]uint64 {
	out := make(map[string]uint64, len(types.AllStates))
	for _, s := range types.AllStates {
		out[s.String()] = c[s]
	}
	return out
}

// Counts returns a fresh per-state count snapshot.
func (s *Service) Counts(ctx context.Context) (map[string]uint64, error) {
	c, err := s.loader.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return countsByName(c), nil
}

// Browse loads one page of proposal rows for sel.
func (s *Service) Browse(ctx context.Context, sel pager.Selection) (BrowseResult, error) {
	page, err := s.loader.Load(ctx, sel)
	if err != nil {
		return BrowseResult{}, err
	}
	props, err := s.readProposals(ctx, page.Addresses)
	if err != nil {
		return BrowseResult{}, err
	}
	now := s.now()
	rows := make([]view.ProposalRow, len(props))
	for i, p := range props {
		rows[i] = view.NewProposalRow(p, now)
	}
	return BrowseResult{
		Selection: page.Selection,
		Window:    page.Window,
		Counts:    countsByName(page.Counts),
		Rows:      rows,
	}, nil
}

// readProposals reads every proposal with its body concurrently. The result
// is index-aligned with addrs.
func (s *Service) readProposals(ctx context.Context, addrs []types.Address) ([]types.Proposal, error) {
	out := make([]types.Proposal, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for i, a := range addrs {
		g.Go(func() error {
			p, err := s.readProposal(gctx, a)
			out[i] = p
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) readProposal(ctx context.Context, addr types.Address) (types.Proposal, error) {
	var (
		p    types.Proposal
		body string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p, err = s.reader.ReadProposal(gctx, addr)
		return err
	})
	g.Go(func() (err error) {
		body, err = s.reader.ReadProposalBody(gctx, addr)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.Proposal{}, fmt.Errorf("read proposal %s: %w", addr.Hex(), err)
	}
	p.Address = addr
	p.Body = body
	return p, nil
}

type ProposalPage struct {
	Proposal view.ProposalDetail `json:"proposal"`
	Comments *view.CommentFeed   `json:"comments"`
}

// Proposal loads the detail view and the newest batch of comments.
func (s *Service) Proposal(ctx context.Context, addr types.Address) (ProposalPage, error) {
	var (
		p    types.Proposal
		feed = view.NewCommentFeed(addr)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p, err = s.readProposal(gctx, addr)
		return err
	})
	g.Go(func() error {
		_, err := feed.LoadMore(gctx, s.reader, s.now())
		return err
	})
	if err := g.Wait(); err != nil {
		return ProposalPage{}, err
	}
	return ProposalPage{Proposal: view.NewProposalDetail(p, s.now()), Comments: feed}, nil
}

// MoreComments loads the comment batch starting at offset.
func (s *Service) MoreComments(ctx context.Context, addr types.Address, offset uint64) (*view.CommentFeed, error) {
	feed := view.NewCommentFeed(addr)
	feed.Offset = offset
	if _, err := feed.LoadMore(ctx, s.reader, s.now()); err != nil {
		return nil, err
	}
	return feed, nil
}

type Access struct {
	HasToken   bool `json:"hasToken"`
	Gated      bool `json:"gated"`
	CanComment bool `json:"canComment"`
}

// Access reports whether account may comment.
func (s *Service) Access(ctx context.Context, account types.Address) (Access, error) {
	var a Access
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		a.Gated, err = s.reader.IsCommentGatingEnabled(gctx)
		return err
	})
	g.Go(func() (err error) {
		a.HasToken, err = s.reader.HasAccessToken(gctx, account)
		return err
	})
	if err := g.Wait(); err != nil {
		return Access{}, err
	}
	a.CanComment = !a.Gated || a.HasToken
	return a, nil
}

// Legacy returns one block window of the pre-hub contract's submissions.
func (s *Service) Legacy(ctx context.Context, endBlock *uint64, blocks uint64) (types.LegacyPage, error) {
	if s.scanner == nil {
		return types.LegacyPage{}, &ledger.ConfigError{Setting: "RPC_URL"}
	}
	return s.scanner.Page(ctx, endBlock, blocks)
}

// LegacyRecent scans the last lookback blocks of the pre-hub contract
// (logscan.DefaultLookback when 0).
func (s *Service) LegacyRecent(ctx context.Context, lookback uint64) (types.LegacyPage, error) {
	if s.scanner == nil {
		return types.LegacyPage{}, &ledger.ConfigError{Setting: "RPC_URL"}
	}
	return s.scanner.ScanAll(ctx, lookback)
}

// ContractAddress is the stored override, else the configured address,
// else a placeholder.
func (s *Service) ContractAddress() string {
	if s.contract != nil {
		if v := s.contract.Get(); v != "" {
			if _, err := types.ParseAddress(v); err == nil {
				return v
			}
		}
	}
	if !types.IsZeroAddress(s.cfgAddr) {
		return s.cfgAddr.Hex()
	}
	return PlaceholderContract
}

// SetContractAddress stores a syntactically valid address; anything else is
// rejected without touching the store.
func (s *Service) SetContractAddress(value string) (types.Address, error) {
	addr, err := types.ParseAddress(value)
	if err != nil {
		return types.Address{}, &ValidationError{Field: "address", Err: err}
	}
	if s.contract != nil {
		if err := s.contract.Set(addr.Hex()); err != nil {
			return types.Address{}, fmt.Errorf("store contract address: %w", err)
		}
	}
	if s.onChange != nil {
		s.onChange(addr)
	}
	return addr, nil
}

type SubmitInput struct {
	Title    string
	Body     string
	BodyHTML string
}

// Submit creates a proposal as a draft with no voting window. The body
// may be Markdown or editor HTML.
func (s *Service) Submit(ctx context.Context, author types.Address, in SubmitInput) (ledger.PendingTx, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return ledger.PendingTx{}, invalid("title", "title is required")
	}
	if strings.ContainsAny(title, "\r\n") {
		return ledger.PendingTx{}, invalid("title", "title must be a single line")
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return ledger.PendingTx{}, invalid("title", fmt.Sprintf("title must be at most %d characters", MaxTitleLen))
	}
	body := in.Body
	if strings.TrimSpace(in.BodyHTML) != "" {
		md, err := markdown.HTMLToMarkdown(in.BodyHTML)
		if err != nil {
			return ledger.PendingTx{}, &ValidationError{Field: "bodyHtml", Err: err}
		}
		body = md
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return ledger.PendingTx{}, invalid("body", "body is required")
	}

	envelope := markdown.ComposeEnvelope(title, author.Hex(), body)
	tx, err := s.writer.CreateProposal(ctx, title, envelope, 0, 0)
	if err != nil {
		return ledger.PendingTx{}, s.writeFailed("createProposal", author, err)
	}
	s.publish(ctx, notify.Event{Kind: notify.KindProposalCreated, Actor: author, Tx: tx.Hash, Title: title})
	return tx, nil
}

// SetWindow schedules (or with 0,0 clears) a proposal's voting window.
func (s *Service) SetWindow(ctx context.Context, actor, proposal types.Address, start, end uint64) (ledger.PendingTx, error) {
	if err := ledger.ValidateWindow(start, end); err != nil {
		return ledger.PendingTx{}, &ValidationError{Field: "window", Err: err}
	}
	tx, err := s.writer.SetVotingWindow(ctx, proposal, start, end)
	if err != nil {
		return ledger.PendingTx{}, s.writeFailed("setVotingWindow", actor, err)
	}
	detail := "cleared"
	if start != 0 || end != 0 {
		detail = view.Timestamp(start) + " → " + view.Timestamp(end)
	}
	s.publish(ctx, notify.Event{Kind: notify.KindWindowSet, Actor: actor, Proposal: proposal, Tx: tx.Hash, Detail: detail})
	return tx, nil
}

type ActivationResult struct {
	Activation ledger.PendingTx  `json:"activation"`
	Sync       *ledger.PendingTx `json:"sync,omitempty"`
	SyncError  string            `json:"syncError,omitempty"`
}

// Activate requests the active flag and then a state recompute. The
// resulting state must be re-read; a failed sync does not fail the call.
func (s *Service) Activate(ctx context.Context, actor, proposal types.Address, active bool) (ActivationResult, error) {
	tx, err := s.writer.RequestActivation(ctx, proposal, active)
	if err != nil {
		return ActivationResult{}, s.writeFailed("setActiveByCreatorOrAdmin", actor, err)
	}
	detail := "close"
	if active {
		detail = "activation"
	}
	s.publish(ctx, notify.Event{Kind: notify.KindActivation, Actor: actor, Proposal: proposal, Tx: tx.Hash, Detail: detail})

	res := ActivationResult{Activation: tx}
	sync, err := s.Sync(ctx, actor, proposal)
	if err != nil {
		res.SyncError = err.Error()
		return res, nil
	}
	res.Sync = &sync
	return res, nil
}

// Sync asks the hub to recompute a proposal's state from the clock.
func (s *Service) Sync(ctx context.Context, actor, proposal types.Address) (ledger.PendingTx, error) {
	tx, err := s.writer.RequestStateSync(ctx, proposal)
	if err != nil {
		return ledger.PendingTx{}, s.writeFailed("syncProposalState", actor, err)
	}
	s.publish(ctx, notify.Event{Kind: notify.KindStateSync, Actor: actor, Proposal: proposal, Tx: tx.Hash})
	return tx, nil
}

// Comment adds a comment. Sentiment 0 means neutral. When the hub gates
// comments the actor must hold the access token.
func (s *Service) Comment(ctx context.Context, actor, proposal types.Address, content string, sentiment types.Sentiment) (ledger.PendingTx, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return ledger.PendingTx{}, invalid("content", "comment cannot be empty")
	}
	if sentiment == 0 {
		sentiment = types.SentimentNeutral
	}
	if !sentiment.Valid() {
		return ledger.PendingTx{}, invalid("sentiment", "sentiment must be 1 (positive) to 4 (inquiry)")
	}
	access, err := s.Access(ctx, actor)
	if err != nil {
		return ledger.PendingTx{}, fmt.Errorf("check comment access: %w", err)
	}
	if !access.CanComment {
		return ledger.PendingTx{}, &logging.WriteError{
			Kind:    logging.KindTokenRequired,
			Message: logging.Describe(logging.KindTokenRequired, nil),
		}
	}
	tx, err := s.writer.AddComment(ctx, proposal, content, sentiment)
	if err != nil {
		return ledger.PendingTx{}, s.writeFailed("addComment", actor, err)
	}
	s.publish(ctx, notify.Event{Kind: notify.KindCommentAdded, Actor: actor, Proposal: proposal, Tx: tx.Hash, Detail: sentiment.String()})
	return tx, nil
}

// Mint sends one access token to actor. Testnet only.
func (s *Service) Mint(ctx context.Context, actor types.Address) (ledger.PendingTx, error) {
	tx, err := s.writer.MintAccessToken(ctx, actor)
	if err != nil {
		return ledger.PendingTx{}, s.writeFailed("mint", actor, err)
	}
	s.publish(ctx, notify.Event{Kind: notify.KindTokenMinted, Actor: actor, Tx: tx.Hash})
	return tx, nil
}

// writeFailed logs a rejected write and classifies it. Configuration and
// signer errors keep their identity.
func (s *Service) writeFailed(op string, actor types.Address, err error) error {
	log.WithFields(log.Fields{"op": op, "actor": actor.Hex()}).Warnf("ledger write failed: %v", err)
	if errors.Is(err, ledger.ErrInvalidWindow) {
		return &ValidationError{Field: "window", Err: err}
	}
	if ledger.IsConfigError(err) || errors.Is(err, ledger.ErrNoSigner) ||
		errors.Is(err, ledger.ErrMintDisabled) || IsValidation(err) {
		return err
	}
	return logging.ClassifyWrite(err)
}

func (s *Service) publish(ctx context.Context, ev notify.Event) {
	log.WithFields(log.Fields{"kind": ev.Kind, "tx": ev.Tx.Hex()}).Info("ledger write submitted")
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Warnf("publish %s: %v", ev.Kind, err)
	}
}
