// Package logscan lists proposals of the pre-hub contract by scanning its
// ProposalSubmitted events over block ranges.
package logscan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/stake-plus/bobu-forum/src/forum/ledger"
	"github.com/stake-plus/bobu-forum/src/forum/types"
	"github.com/stake-plus/bobu-forum/src/logging"
	"github.com/stake-plus/bobu-forum/src/webclient"
)

const (
	DefaultMaxChunk   = 1000
	DefaultMaxChunks  = 200
	DefaultPageBlocks = 10
	DefaultLookback   = 50_000

	rateLimitAttempts = 4
)

type Scanner struct {
	Source ledger.LogSource
	// MaxChunk is the widest block range requested at once.
	MaxChunk uint64
	// MaxChunks bounds the number of requests of a single Scan.
	MaxChunks int
	// Now is used for blocks whose timestamp cannot be read.
	Now func() time.Time
	// RetryDelay is the first backoff after a rate-limited request.
	RetryDelay time.Duration
}

func New(src ledger.LogSource) *Scanner {
	return &Scanner{Source: src, MaxChunk: DefaultMaxChunk, MaxChunks: DefaultMaxChunks, Now: time.Now}
}

func (s *Scanner) maxChunk() uint64 {
	if s.MaxChunk == 0 {
		return DefaultMaxChunk
	}
	return s.MaxChunk
}

func (s *Scanner) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Scan reads submissions in [from, to] in ascending chunks. A provider
// complaint about range size halves the chunk and retries; success doubles
// it back toward MaxChunk. When the chunk cannot shrink any further, or
// MaxChunks requests are spent, the scan stops and returns what it has.
func (s *Scanner) Scan(ctx context.Context, from, to uint64) ([]types.LegacySubmission, error) {
	logs, _, err := s.collect(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return s.materialize(ctx, logs)
}

// collect returns the logs of [from, to] and the first block it did not
// read (to+1 when the range was covered).
func (s *Scanner) collect(ctx context.Context, from, to uint64) ([]ledger.SubmissionLog, uint64, error) {
	if from > to {
		return nil, to + 1, nil
	}
	maxChunks := s.MaxChunks
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	chunk := s.maxChunk()
	var logs []ledger.SubmissionLog
	cur := from
	for req := 0; req < maxChunks; req++ {
		end := to
		if to-cur >= chunk {
			end = cur + chunk - 1
		}
		var batch []ledger.SubmissionLog
		err := webclient.Retry(ctx, rateLimitAttempts, s.RetryDelay, logging.IsRateLimit, func(ctx context.Context) (err error) {
			batch, err = s.Source.SubmissionLogs(ctx, cur, end)
			return err
		})
		if err != nil {
			if !logging.IsRangeTooLarge(err) {
				return nil, 0, fmt.Errorf("logs %d-%d: %w", cur, end, err)
			}
			if chunk <= 1 {
				log.WithFields(log.Fields{"block": cur, "to": to}).Warnf("logscan: provider rejects single-block ranges, stopping: %v", err)
				return logs, cur, nil
			}
			chunk /= 2
			continue
		}
		logs = append(logs, batch...)
		if end == to {
			return logs, to + 1, nil
		}
		cur = end + 1
		chunk = min(chunk*2, s.maxChunk())
	}
	log.WithFields(log.Fields{"block": cur, "to": to, "requests": maxChunks}).Warn("logscan: request budget spent, stopping")
	return logs, cur, nil
}

// ScanAll scans the last lookback blocks up to the latest block
// (DefaultLookback when lookback is 0).
func (s *Scanner) ScanAll(ctx context.Context, lookback uint64) (types.LegacyPage, error) {
	if lookback == 0 {
		lookback = DefaultLookback
	}
	return s.Page(ctx, nil, lookback)
}

// Page returns the pageBlocks-wide window ending at endBlock (the latest
// block when nil), newest first.
func (s *Scanner) Page(ctx context.Context, endBlock *uint64, pageBlocks uint64) (types.LegacyPage, error) {
	if pageBlocks == 0 {
		pageBlocks = DefaultPageBlocks
	}
	var to uint64
	if endBlock != nil {
		to = *endBlock
	} else {
		latest, err := s.Source.LatestBlock(ctx)
		if err != nil {
			return types.LegacyPage{}, fmt.Errorf("latest block: %w", err)
		}
		to = latest
	}
	var from uint64
	if to+1 > pageBlocks {
		from = to + 1 - pageBlocks
	}
	logs, next, err := s.collect(ctx, from, to)
	if err != nil {
		return types.LegacyPage{}, err
	}
	items, err := s.materialize(ctx, logs)
	if err != nil {
		return types.LegacyPage{}, err
	}
	page := types.LegacyPage{Items: items, FromBlock: from, ToBlock: to}
	if next <= to {
		page.Partial = true
		if next > from {
			scanned := next - 1
			page.ScannedTo = &scanned
		}
	}
	if from > 0 {
		prev := from - 1
		page.PrevCursor = &prev
	}
	if page.Items == nil {
		page.Items = []types.LegacySubmission{}
	}
	return page, nil
}

// ID is the transaction hash, or contract-block-logIndex when the log has
// no hash.
func ID(l ledger.SubmissionLog) string {
	if l.TxHash != (common.Hash{}) {
		return l.TxHash.Hex()
	}
	return fmt.Sprintf("%s-%d-%d", l.Contract.Hex(), l.BlockNumber, l.LogIndex)
}

func (s *Scanner) materialize(ctx context.Context, logs []ledger.SubmissionLog) ([]types.LegacySubmission, error) {
	times := s.blockTimes(ctx, logs)
	seen := make(map[string]bool, len(logs))
	out := make([]types.LegacySubmission, 0, len(logs))
	for i := len(logs) - 1; i >= 0; i-- {
		l := logs[i]
		id := ID(l)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, types.LegacySubmission{
			ID:          id,
			Author:      l.Author,
			Text:        l.Text,
			BlockNumber: l.BlockNumber,
			Timestamp:   times[l.BlockNumber],
		})
	}
	sortNewestFirst(out)
	return out, nil
}

// blockTimes reads each distinct block's timestamp once, concurrently.
func (s *Scanner) blockTimes(ctx context.Context, logs []ledger.SubmissionLog) map[uint64]uint64 {
	var blocks []uint64
	seen := make(map[uint64]bool)
	for _, l := range logs {
		if !seen[l.BlockNumber] {
			seen[l.BlockNumber] = true
			blocks = append(blocks, l.BlockNumber)
		}
	}
	stamps := make([]uint64, len(blocks))
	fallback := uint64(s.now().Unix())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, n := range blocks {
		g.Go(func() error {
			ts, err := s.Source.BlockTime(gctx, n)
			if err != nil {
				log.Printf("logscan: block %d time: %v", n, err)
				ts = fallback
			}
			stamps[i] = ts
			return nil
		})
	}
	_ = g.Wait()
	times := make(map[uint64]uint64, len(blocks))
	for i, n := range blocks {
		times[n] = stamps[i]
	}
	return times
}

func sortNewestFirst(items []types.LegacySubmission) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].BlockNumber > items[j].BlockNumber
	})
}

// Merge appends older submissions to existing, skipping ids already
// present.
func Merge(existing, older []types.LegacySubmission) []types.LegacySubmission {
	seen := make(map[string]bool, len(existing))
	out := make([]types.LegacySubmission, 0, len(existing)+len(older))
	for _, it := range existing {
		if !seen[it.ID] {
			seen[it.ID] = true
			out = append(out, it)
		}
	}
	for _, it := range older {
		if !seen[it.ID] {
			seen[it.ID] = true
			out = append(out, it)
		}
	}
	return out
}
