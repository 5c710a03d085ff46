package webserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/bobu-forum/src/config"
	"github.com/stake-plus/bobu-forum/src/data"
	"github.com/stake-plus/bobu-forum/src/forum/ledger"
	"github.com/stake-plus/bobu-forum/src/forum/markdown"
	"github.com/stake-plus/bobu-forum/src/forum/pager"
	"github.com/stake-plus/bobu-forum/src/forum/service"
	"github.com/stake-plus/bobu-forum/src/forum/types"
	"github.com/stake-plus/bobu-forum/src/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memNonces struct {
	mu sync.Mutex
	m  map[string]string
}

func (n *memNonces) Set(_ context.Context, addr, nonce string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.m[addr] = nonce
	return nil
}

func (n *memNonces) Take(_ context.Context, addr string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.m[addr]
	if !ok {
		return "", data.ErrNoNonce
	}
	delete(n.m, addr)
	return v, nil
}

// stubLedger serves a fixed set of active proposals and records writes.
type stubLedger struct {
	mu      sync.Mutex
	active  []types.Address
	writes  []string
	mintErr error
}

func (l *stubLedger) CountByState(_ context.Context, s types.ProposalState) (uint64, error) {
	if s == types.StateActive {
		return uint64(len(l.active)), nil
	}
	return 0, nil
}

func (l *stubLedger) ListAddressesByState(_ context.Context, s types.ProposalState, offset, count uint64, _ bool) ([]types.Address, error) {
	if s != types.StateActive || offset >= uint64(len(l.active)) {
		return nil, nil
	}
	return l.active[offset:min(offset+count, uint64(len(l.active)))], nil
}

func (l *stubLedger) ReadProposal(_ context.Context, a types.Address) (types.Proposal, error) {
	return types.Proposal{Title: "Proposal " + a.Hex()[2:6], State: types.StateActive, CreatedAt: 1_700_000_000}, nil
}

func (l *stubLedger) ReadProposalBody(context.Context, types.Address) (string, error) {
	return markdown.ComposeEnvelope("T", "0xabc", "hello <script>alert(1)</script> **world**"), nil
}

func (l *stubLedger) ListCommentAddresses(context.Context, types.Address, uint64, uint64, bool) ([]types.Address, error) {
	return nil, nil
}

func (l *stubLedger) ReadComment(context.Context, types.Address) (types.Comment, error) {
	return types.Comment{}, errors.New("unexpected")
}

func (l *stubLedger) HasAccessToken(context.Context, types.Address) (bool, error) { return false, nil }

func (l *stubLedger) IsCommentGatingEnabled(context.Context) (bool, error) { return false, nil }

func (l *stubLedger) record(method string) (ledger.PendingTx, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writes = append(l.writes, method)
	return ledger.PendingTx{Hash: common.HexToHash("0x01")}, nil
}

func (l *stubLedger) CreateProposal(context.Context, string, string, uint64, uint64) (ledger.PendingTx, error) {
	return l.record("createProposal")
}

func (l *stubLedger) SetVotingWindow(context.Context, types.Address, uint64, uint64) (ledger.PendingTx, error) {
	return l.record("setVotingWindow")
}

func (l *stubLedger) RequestActivation(context.Context, types.Address, bool) (ledger.PendingTx, error) {
	return l.record("setActiveByCreatorOrAdmin")
}

func (l *stubLedger) RequestStateSync(context.Context, types.Address) (ledger.PendingTx, error) {
	return l.record("syncProposalState")
}

func (l *stubLedger) AddComment(context.Context, types.Address, string, types.Sentiment) (ledger.PendingTx, error) {
	return l.record("addComment")
}

func (l *stubLedger) MintAccessToken(context.Context, types.Address) (ledger.PendingTx, error) {
	if l.mintErr != nil {
		return ledger.PendingTx{}, l.mintErr
	}
	return l.record("mint")
}

type memContract struct{ v string }

func (m *memContract) Get() string { return m.v }

func (m *memContract) Set(v string) error {
	m.v = v
	return nil
}

const testSecret = "test-secret"

var user = common.HexToAddress("0x1111111111111111111111111111111111111111")

type harness struct {
	router *gin.Engine
	ledger *stubLedger
	nonces *memNonces
}

func newHarness(t *testing.T, cfg config.Config) *harness {
	t.Helper()
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = testSecret
	}
	if cfg.Env == "" {
		cfg.Env = config.EnvTestnet
	}
	cfg.AllowedOrigins = []string{"http://localhost:5173"}
	l := &stubLedger{}
	for i := int64(1); i <= 3; i++ {
		l.active = append(l.active, common.BigToAddress(big.NewInt(0x1000+i)))
	}
	svc := service.New(service.Options{Reader: l, Writer: l, PageSize: 10, Contract: &memContract{}})
	nonces := &memNonces{m: map[string]string{}}
	return &harness{router: New(cfg, svc, nonces), ledger: l, nonces: nonces}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}, token string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func token(t *testing.T, addr common.Address) string {
	t.Helper()
	tok, err := issueJWT(addr.Hex(), []byte(testSecret))
	require.NoError(t, err)
	return tok
}

func personalSign(t *testing.T, msg string) (common.Address, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return crypto.PubkeyToAddress(key.PublicKey), hexutil.Encode(sig)
}

func TestVerifySignature(t *testing.T) {
	msg := signInMessage("abc")
	addr, sig := personalSign(t, msg)
	require.NoError(t, verifySignature(addr, sig, msg))
	assert.ErrorIs(t, verifySignature(user, sig, msg), errSignatureMismatch)
	assert.Error(t, verifySignature(addr, sig, signInMessage("other")))
	assert.Error(t, verifySignature(addr, "0x1234", msg))
	assert.Error(t, verifySignature(addr, "nothex", msg))
}

func TestSignInFlow(t *testing.T) {
	h := newHarness(t, config.Config{})
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	w := h.do(t, http.MethodPost, "/v1/auth/challenge", gin.H{"address": addr.Hex()}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	msg := decode(t, w)["message"].(string)

	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	verify := gin.H{"address": addr.Hex(), "signature": hexutil.Encode(sig)}

	w = h.do(t, http.MethodPost, "/v1/auth/verify", verify, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tok := decode(t, w)["token"].(string)

	w = h.do(t, http.MethodGet, "/v1/access", nil, tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"hasToken": false, "gated": false, "canComment": true}, decode(t, w))

	// The challenge is single use.
	w = h.do(t, http.MethodPost, "/v1/auth/verify", verify, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChallengeRejectsBadAddress(t *testing.T) {
	h := newHarness(t, config.Config{})
	w := h.do(t, http.MethodPost, "/v1/auth/challenge", gin.H{"address": "5Grw..."}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSecuredRoutesNeedSession(t *testing.T) {
	h := newHarness(t, config.Config{})
	w := h.do(t, http.MethodPost, "/v1/proposals", gin.H{"title": "t", "body": "b"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	forged, err := issueJWT(user.Hex(), []byte("other-secret"))
	require.NoError(t, err)
	w = h.do(t, http.MethodPost, "/v1/proposals", gin.H{"title": "t", "body": "b"}, forged)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, h.ledger.writes)
}

func TestListProposalsWithETag(t *testing.T) {
	h := newHarness(t, config.Config{})
	w := h.do(t, http.MethodGet, "/v1/proposals?states=active&page=1", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	body := decode(t, w)
	assert.Len(t, body["rows"], 3)
	assert.Equal(t, float64(3), body["counts"].(map[string]interface{})["active"])

	w = h.do(t, http.MethodGet, "/v1/proposals?states=active&page=1", nil, "", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = h.do(t, http.MethodGet, "/v1/proposals?states=active,bogus", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = h.do(t, http.MethodGet, "/v1/proposals?page=x", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDetailSanitizesBody(t *testing.T) {
	h := newHarness(t, config.Config{})
	addr := h.ledger.active[0]
	w := h.do(t, http.MethodGet, "/v1/proposals/"+addr.Hex(), nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	html := decode(t, w)["bodyHtml"].(string)
	assert.NotContains(t, html, "<script")
	assert.Contains(t, html, "<strong>world</strong>")

	w = h.do(t, http.MethodGet, "/v1/proposals/not-an-address", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreview(t *testing.T) {
	h := newHarness(t, config.Config{})
	w := h.do(t, http.MethodPost, "/v1/preview", gin.H{"markdown": "# Hi\n<img src=x onerror=alert(1)>"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	html := decode(t, w)["html"].(string)
	assert.Contains(t, html, "<h1>Hi</h1>")
	assert.NotContains(t, html, "onerror")
}

func TestSetWindowRejectedBeforeWrite(t *testing.T) {
	h := newHarness(t, config.Config{})
	path := "/v1/proposals/" + h.ledger.active[0].Hex() + "/window"
	w := h.do(t, http.MethodPost, path, gin.H{"voteStart": 100, "voteEnd": 50}, token(t, user))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decode(t, w)["kind"])
	assert.Empty(t, h.ledger.writes)

	w = h.do(t, http.MethodPost, path, gin.H{"voteStart": 0, "voteEnd": 0}, token(t, user))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"setVotingWindow"}, h.ledger.writes)
}

func TestActivateRunsSync(t *testing.T) {
	h := newHarness(t, config.Config{})
	path := "/v1/proposals/" + h.ledger.active[0].Hex() + "/activate"
	w := h.do(t, http.MethodPost, path, gin.H{}, token(t, user))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, path, gin.H{"active": false}, token(t, user))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, []string{"setActiveByCreatorOrAdmin", "syncProposalState"}, h.ledger.writes)
}

func TestMintDisabled(t *testing.T) {
	h := newHarness(t, config.Config{})
	h.ledger.mintErr = ledger.ErrMintDisabled
	w := h.do(t, http.MethodPost, "/v1/dev/mint", nil, token(t, user))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "mint_disabled", decode(t, w)["kind"])
}

func TestContractAddressAdmin(t *testing.T) {
	admin := common.HexToAddress("0x9999999999999999999999999999999999999999")
	h := newHarness(t, config.Config{Env: config.EnvMainnet, Admins: []types.Address{admin}})
	next := "0x2222222222222222222222222222222222222222"

	w := h.do(t, http.MethodGet, "/v1/settings/contract-address", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.PlaceholderContract, decode(t, w)["address"])

	w = h.do(t, http.MethodPut, "/v1/settings/contract-address", gin.H{"address": next}, token(t, user))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodPut, "/v1/settings/contract-address", gin.H{"address": "0x12"}, token(t, admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPut, "/v1/settings/contract-address", gin.H{"address": next}, token(t, admin))
	require.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodGet, "/v1/settings/contract-address", nil, "")
	assert.Equal(t, common.HexToAddress(next).Hex(), decode(t, w)["address"])
}

func TestLegacyNeedsLogSource(t *testing.T) {
	h := newHarness(t, config.Config{})
	w := h.do(t, http.MethodGet, "/v1/legacy/proposals", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = h.do(t, http.MethodGet, "/v1/legacy/proposals?blocks=0", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorResponse(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{&service.ValidationError{Field: "title", Err: errors.New("required")}, http.StatusBadRequest, "validation"},
		{&ledger.ConfigError{Setting: "HUB_ADDRESS"}, http.StatusServiceUnavailable, "config"},
		{ledger.ErrNoSigner, http.StatusServiceUnavailable, "config"},
		{logging.ClassifyWrite(errors.New("insufficient funds for gas")), http.StatusPaymentRequired, "insufficient_funds"},
		{logging.ClassifyWrite(errors.New("user rejected transaction")), http.StatusConflict, "cancelled"},
		{logging.ClassifyWrite(errors.New("execution reverted: not creator or admin")), http.StatusForbidden, "permission"},
		{errors.New("dial tcp: connection refused"), http.StatusBadGateway, "ledger"},
	}
	for _, tc := range cases {
		status, body := errorResponse(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.kind, body["kind"], tc.err.Error())
	}
}

func TestRateLimiter(t *testing.T) {
	rl := &RateLimiter{requests: map[string][]time.Time{}, rate: 2, window: time.Minute}
	now := time.Now()
	assert.True(t, rl.Allow("a", now))
	assert.True(t, rl.Allow("a", now))
	assert.False(t, rl.Allow("a", now))
	assert.True(t, rl.Allow("b", now))
	assert.True(t, rl.Allow("a", now.Add(time.Minute)))

	rl.cleanup(now.Add(3 * time.Minute))
	assert.Empty(t, rl.requests)
}

type stubLogs struct {
	latest uint64
	logs   []ledger.SubmissionLog
}

func (s *stubLogs) LatestBlock(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.latest, nil
}

func (s *stubLogs) SubmissionLogs(ctx context.Context, from, to uint64) ([]ledger.SubmissionLog, error) {
	var out []ledger.SubmissionLog
	for _, l := range s.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *stubLogs) BlockTime(context.Context, uint64) (uint64, error) { return 1_700_000_000, nil }

func legacyRouter(src ledger.LogSource) *gin.Engine {
	svc := service.New(service.Options{Reader: &stubLedger{}, Logs: src, Contract: &memContract{}})
	cfg := config.Config{JWTSecret: testSecret, Env: config.EnvTestnet, AllowedOrigins: []string{"http://localhost:5173"}}
	return New(cfg, svc, &memNonces{m: map[string]string{}})
}

func TestLegacyRecentScan(t *testing.T) {
	src := &stubLogs{latest: 1_000_000, logs: []ledger.SubmissionLog{
		{TxHash: common.HexToHash("0x01"), BlockNumber: 999_990, Author: common.HexToAddress("0xa1"), Text: "recent"},
		{TxHash: common.HexToHash("0x02"), BlockNumber: 10, Author: common.HexToAddress("0xa1"), Text: "ancient"},
	}}
	h := &harness{router: legacyRouter(src)}

	w := h.do(t, http.MethodGet, "/v1/legacy/proposals?all=1", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page types.LegacyPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "recent", page.Items[0].Text)
	assert.Equal(t, uint64(950_001), page.FromBlock)
	assert.False(t, page.Partial)

	w = h.do(t, http.MethodGet, "/v1/legacy/proposals?lookback=5", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Empty(t, page.Items)
	assert.Equal(t, uint64(999_996), page.FromBlock)

	w = h.do(t, http.MethodGet, "/v1/legacy/proposals?lookback=0", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlersUseRequestContext(t *testing.T) {
	router := legacyRouter(&stubLogs{latest: 100})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/v1/legacy/proposals", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestSupersededRead(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tr := pager.NewTracker()
	_, old := tr.Begin(context.Background(), "1.2.3.4:"+pager.KeyCounts)
	_, cur := tr.Begin(context.Background(), "1.2.3.4:"+pager.KeyCounts)
	defer cur.Release()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	assert.True(t, superseded(c, old))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"superseded"`)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	assert.False(t, superseded(c, cur))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}
