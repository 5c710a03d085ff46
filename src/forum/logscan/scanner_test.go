package logscan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/bobu-forum/src/forum/ledger"
	"github.com/stake-plus/bobu-forum/src/forum/types"
)

type fakeSource struct {
	mu       sync.Mutex
	latest   uint64
	logs     []ledger.SubmissionLog
	maxRange uint64 // 0 = unlimited
	rangeErr string // error text for ranges wider than maxRange
	failWith error
	throttle int // calls rejected with 429 before serving
	ok       [][2]uint64
	timeErr  map[uint64]bool
	timeHits map[uint64]int
}

func (f *fakeSource) LatestBlock(context.Context) (uint64, error) { return f.latest, nil }

func (f *fakeSource) SubmissionLogs(_ context.Context, from, to uint64) ([]ledger.SubmissionLog, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.throttle > 0 {
		f.throttle--
		return nil, errors.New("429 Too Many Requests")
	}
	if f.maxRange > 0 && to-from+1 > f.maxRange {
		if f.rangeErr != "" {
			return nil, errors.New(f.rangeErr)
		}
		return nil, errors.New("query returned more than 10000 results")
	}
	f.ok = append(f.ok, [2]uint64{from, to})
	var out []ledger.SubmissionLog
	for _, l := range f.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeSource) BlockTime(_ context.Context, n uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timeHits == nil {
		f.timeHits = map[uint64]int{}
	}
	f.timeHits[n]++
	if f.timeErr[n] {
		return 0, errors.New("header not found")
	}
	return 1_000_000 + n, nil
}

func sub(block uint64, idx uint, hash string) ledger.SubmissionLog {
	return ledger.SubmissionLog{
		TxHash:      common.HexToHash(hash),
		Contract:    common.HexToAddress("0xc0"),
		BlockNumber: block,
		LogIndex:    idx,
		Author:      common.HexToAddress("0xa1"),
		Text:        "proposal",
	}
}

func TestScanShrinksAndRegrows(t *testing.T) {
	src := &fakeSource{
		maxRange: 3,
		logs:     []ledger.SubmissionLog{sub(0, 0, "0x01"), sub(5, 0, "0x02"), sub(11, 0, "0x03"), sub(20, 0, "0x04")},
	}
	s := &Scanner{Source: src, MaxChunk: 8}
	items, err := s.Scan(context.Background(), 0, 20)
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, uint64(20), items[0].BlockNumber)
	assert.Equal(t, uint64(0), items[3].BlockNumber)

	next := uint64(0)
	for _, r := range src.ok {
		assert.Equal(t, next, r[0], "ranges must be contiguous")
		assert.LessOrEqual(t, r[1]-r[0]+1, uint64(3))
		next = r[1] + 1
	}
	assert.Equal(t, uint64(21), next)
}

func TestScanGivesUpWithoutError(t *testing.T) {
	src := &fakeSource{failWith: errors.New("eth_getLogs: too many blocks requested")}
	items, err := (&Scanner{Source: src, MaxChunk: 16}).Scan(context.Background(), 0, 100)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestScanReturnsUnknownErrors(t *testing.T) {
	src := &fakeSource{failWith: errors.New("connection refused")}
	_, err := New(src).Scan(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestScanShrinksOnProviderLimitMessages(t *testing.T) {
	for _, msg := range []string{
		"Maximum allowed number of requested blocks is 500",
		"query exceeds defined limit 500",
	} {
		t.Run(msg, func(t *testing.T) {
			src := &fakeSource{maxRange: 500, rangeErr: msg, logs: []ledger.SubmissionLog{sub(1200, 0, "0x01")}}
			items, err := New(src).Scan(context.Background(), 0, 1999)
			require.NoError(t, err)
			require.Len(t, items, 1)
			for _, r := range src.ok {
				assert.LessOrEqual(t, r[1]-r[0]+1, uint64(500))
			}
			assert.Equal(t, uint64(1999), src.ok[len(src.ok)-1][1])
		})
	}
}

func TestScanAll(t *testing.T) {
	src := &fakeSource{latest: 2500, logs: []ledger.SubmissionLog{sub(10, 0, "0x01"), sub(2499, 0, "0x02")}}
	page, err := New(src).ScanAll(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.False(t, page.Partial)
	assert.Nil(t, page.PrevCursor)
	assert.Equal(t, [][2]uint64{{0, 999}, {1000, 1999}, {2000, 2500}}, src.ok)
}

func TestScanAllLooksBackFromLatest(t *testing.T) {
	src := &fakeSource{latest: 1_000_000, logs: []ledger.SubmissionLog{sub(999_990, 0, "0x01"), sub(10, 0, "0x02")}}
	page, err := New(src).ScanAll(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, uint64(999_990), page.Items[0].BlockNumber)
	assert.Equal(t, uint64(1_000_000-DefaultLookback+1), page.FromBlock)
	assert.Equal(t, uint64(1_000_000-DefaultLookback+1), src.ok[0][0])
	assert.Equal(t, uint64(1_000_000), src.ok[len(src.ok)-1][1])

	src.ok = nil
	page, err = New(src).ScanAll(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(999_901), page.FromBlock)
	require.NotNil(t, page.PrevCursor)
	assert.Equal(t, uint64(999_900), *page.PrevCursor)
}

func TestPageReportsPartialScan(t *testing.T) {
	src := &fakeSource{latest: 99, logs: []ledger.SubmissionLog{sub(95, 0, "0x01")}}
	s := &Scanner{Source: src, MaxChunk: 10, MaxChunks: 3}
	page, err := s.Page(context.Background(), nil, 50)
	require.NoError(t, err)
	assert.True(t, page.Partial)
	require.NotNil(t, page.ScannedTo)
	assert.Equal(t, uint64(79), *page.ScannedTo)
	assert.Empty(t, page.Items)

	src.ok = nil
	src.failWith = errors.New("eth_getLogs: too many blocks requested")
	page, err = (&Scanner{Source: src, MaxChunk: 4}).Page(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.True(t, page.Partial)
	assert.Nil(t, page.ScannedTo)

	src.failWith = nil
	page, err = New(src).Page(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.False(t, page.Partial)
	assert.Nil(t, page.ScannedTo)
	require.Len(t, page.Items, 1)
}

func TestPageCursor(t *testing.T) {
	src := &fakeSource{latest: 25, logs: []ledger.SubmissionLog{sub(16, 0, "0x01"), sub(15, 0, "0x02"), sub(25, 1, "0x03")}}
	s := New(src)

	page, err := s.Page(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), page.FromBlock)
	assert.Equal(t, uint64(25), page.ToBlock)
	require.NotNil(t, page.PrevCursor)
	assert.Equal(t, uint64(15), *page.PrevCursor)
	require.Len(t, page.Items, 2)
	assert.Equal(t, uint64(25), page.Items[0].BlockNumber)
	assert.Equal(t, uint64(1_000_025), page.Items[0].Timestamp)

	older, err := s.Page(context.Background(), page.PrevCursor, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), older.FromBlock)
	require.Len(t, older.Items, 1)

	end := uint64(4)
	first, err := s.Page(context.Background(), &end, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), first.FromBlock)
	assert.Nil(t, first.PrevCursor)
	assert.NotNil(t, first.Items)
	assert.Empty(t, first.Items)
}

func TestIDFallbackAndDedupe(t *testing.T) {
	noHash := sub(7, 3, "0x00")
	noHash.TxHash = common.Hash{}
	assert.Equal(t, common.HexToAddress("0xc0").Hex()+"-7-3", ID(noHash))
	assert.Equal(t, common.HexToHash("0x09").Hex(), ID(sub(7, 3, "0x09")))

	src := &fakeSource{logs: []ledger.SubmissionLog{sub(7, 0, "0x09"), sub(7, 1, "0x09"), noHash}}
	items, err := New(src).Scan(context.Background(), 0, 9)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 1, src.timeHits[7])
}

func TestMissingBlockTimeFallsBackToNow(t *testing.T) {
	now := time.Unix(5_000_000, 0)
	src := &fakeSource{logs: []ledger.SubmissionLog{sub(3, 0, "0x01")}, timeErr: map[uint64]bool{3: true}}
	s := New(src)
	s.Now = func() time.Time { return now }
	items, err := s.Scan(context.Background(), 0, 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, uint64(now.Unix()), items[0].Timestamp)
}

func TestMerge(t *testing.T) {
	a := []types.LegacySubmission{{ID: "x", BlockNumber: 9}, {ID: "y", BlockNumber: 8}}
	b := []types.LegacySubmission{{ID: "y", BlockNumber: 8}, {ID: "z", BlockNumber: 2}}
	got := Merge(a, b)
	ids := make([]string, 0, len(got))
	for _, it := range got {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"x", "y", "z"}, ids)
	assert.Empty(t, Merge(nil, nil))
}

func TestScanRetriesRateLimitedRequests(t *testing.T) {
	src := &fakeSource{throttle: 2, logs: []ledger.SubmissionLog{sub(3, 0, "0x01")}}
	s := &Scanner{Source: src, MaxChunk: 100, RetryDelay: time.Millisecond}
	items, err := s.Scan(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, [][2]uint64{{0, 10}}, src.ok)
}
