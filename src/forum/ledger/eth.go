package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/sync/errgroup"

	"github.com/stake-plus/bobu-forum/src/forum/types"
	"github.com/stake-plus/bobu-forum/src/webclient"
)

const rpcTimeout = 30 * time.Second

// Backend is the subset of an Ethereum RPC client the forum needs.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	BlockNumber(ctx context.Context) (uint64, error)
}

// Options configures an EthClient.
type Options struct {
	ChainID          *big.Int
	Hub              types.Address
	ProposalContract types.Address
	// SignerKey is a hex secp256k1 private key; empty disables writes.
	SignerKey string
	Testnet   bool
}

// EthClient implements Reader, Writer and LogSource on top of JSON-RPC.
type EthClient struct {
	backend Backend
	opts    Options
	signer  *bind.TransactOpts

	mu     sync.RWMutex
	legacy types.Address
}

var (
	_ Reader    = (*EthClient)(nil)
	_ Writer    = (*EthClient)(nil)
	_ LogSource = (*EthClient)(nil)
)

// Dial connects to rpcURL and wraps the connection.
func Dial(ctx context.Context, rpcURL string, opts Options) (*EthClient, error) {
	rc, err := rpc.DialOptions(ctx, rpcURL, rpc.WithHTTPClient(webclient.NewDefault(rpcTimeout)))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return NewEthClient(ethclient.NewClient(rc), opts)
}

func NewEthClient(backend Backend, opts Options) (*EthClient, error) {
	c := &EthClient{backend: backend, opts: opts, legacy: opts.ProposalContract}
	if opts.SignerKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(opts.SignerKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse signer key: %w", err)
		}
		if c.signer, err = transactor(key, opts.ChainID); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func transactor(key *ecdsa.PrivateKey, chainID *big.Int) (*bind.TransactOpts, error) {
	if chainID == nil {
		return nil, fmt.Errorf("chain id is required to sign transactions")
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("keyed transactor: %w", err)
	}
	return opts, nil
}

// SignerAddress is the account writes are sent from, if any.
func (c *EthClient) SignerAddress() (types.Address, bool) {
	if c.signer == nil {
		return types.Address{}, false
	}
	return c.signer.From, true
}

// SetProposalContract swaps the legacy contract address at runtime.
func (c *EthClient) SetProposalContract(addr types.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.legacy = addr
}

func (c *EthClient) hub() (common.Address, error) {
	if types.IsZeroAddress(c.opts.Hub) {
		return common.Address{}, &ConfigError{Setting: "HUB_ADDRESS"}
	}
	return c.opts.Hub, nil
}

func (c *EthClient) legacyContract() (common.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if types.IsZeroAddress(c.legacy) {
		return common.Address{}, &ConfigError{Setting: "PROPOSAL_CONTRACT_ADDRESS"}
	}
	return c.legacy, nil
}

func (c *EthClient) call(ctx context.Context, parsed abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	input, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	vals, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return vals, nil
}

// first extracts the single return value of a call as T.
func first[T any](vals []interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if len(vals) == 0 {
		return zero, fmt.Errorf("empty call result")
	}
	v, ok := vals[0].(T)
	if !ok {
		return zero, fmt.Errorf("unexpected result type %T", vals[0])
	}
	return v, nil
}

func u64(v *big.Int, err error) (uint64, error) {
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("value %s overflows uint64", v)
	}
	return v.Uint64(), nil
}

func (c *EthClient) CountByState(ctx context.Context, state types.ProposalState) (uint64, error) {
	hub, err := c.hub()
	if err != nil {
		return 0, err
	}
	return u64(first[*big.Int](c.call(ctx, hubABI, hub, "getProposalCountByState", new(big.Int).SetUint64(uint64(state)))))
}

func (c *EthClient) ListAddressesByState(ctx context.Context, state types.ProposalState, offset, count uint64, reverse bool) ([]types.Address, error) {
	hub, err := c.hub()
	if err != nil {
		return nil, err
	}
	return first[[]common.Address](c.call(ctx, hubABI, hub, "getProposals",
		new(big.Int).SetUint64(uint64(state)),
		new(big.Int).SetUint64(offset),
		new(big.Int).SetUint64(count),
		reverse,
	))
}

// ReadProposal reads every field of a proposal concurrently.
func (c *EthClient) ReadProposal(ctx context.Context, addr types.Address) (types.Proposal, error) {
	p := types.Proposal{Address: addr}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p.Title, err = first[string](c.call(gctx, proposalABI, addr, "title"))
		return err
	})
	g.Go(func() (err error) {
		p.Author, err = first[common.Address](c.call(gctx, proposalABI, addr, "author"))
		return err
	})
	g.Go(func() (err error) {
		p.CreatedAt, err = u64(first[*big.Int](c.call(gctx, proposalABI, addr, "createdAt")))
		return err
	})
	g.Go(func() (err error) {
		p.VoteStart, err = u64(first[*big.Int](c.call(gctx, proposalABI, addr, "voteStart")))
		return err
	})
	g.Go(func() (err error) {
		p.VoteEnd, err = u64(first[*big.Int](c.call(gctx, proposalABI, addr, "voteEnd")))
		return err
	})
	g.Go(func() (err error) {
		p.VotesFor, err = first[*big.Int](c.call(gctx, proposalABI, addr, "votesFor"))
		return err
	})
	g.Go(func() (err error) {
		p.VotesAgainst, err = first[*big.Int](c.call(gctx, proposalABI, addr, "votesAgainst"))
		return err
	})
	g.Go(func() error {
		s, err := first[uint8](c.call(gctx, proposalABI, addr, "state"))
		p.State = types.ProposalState(s)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.Proposal{}, err
	}
	return p, nil
}

func (c *EthClient) ReadProposalBody(ctx context.Context, addr types.Address) (string, error) {
	return first[string](c.call(ctx, proposalABI, addr, "body"))
}

func (c *EthClient) ListCommentAddresses(ctx context.Context, proposal types.Address, offset, count uint64, reverse bool) ([]types.Address, error) {
	return first[[]common.Address](c.call(ctx, proposalABI, proposal, "getComments",
		new(big.Int).SetUint64(offset),
		new(big.Int).SetUint64(count),
		reverse,
	))
}

func (c *EthClient) ReadComment(ctx context.Context, addr types.Address) (types.Comment, error) {
	cm := types.Comment{Address: addr}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cm.Author, err = first[common.Address](c.call(gctx, commentABI, addr, "author"))
		return err
	})
	g.Go(func() (err error) {
		cm.Content, err = first[string](c.call(gctx, commentABI, addr, "content"))
		return err
	})
	g.Go(func() (err error) {
		cm.CreatedAt, err = u64(first[*big.Int](c.call(gctx, commentABI, addr, "createdAt")))
		return err
	})
	g.Go(func() (err error) {
		cm.Deleted, err = first[bool](c.call(gctx, commentABI, addr, "deleted"))
		return err
	})
	g.Go(func() error {
		s, err := first[uint8](c.call(gctx, commentABI, addr, "sentiment"))
		cm.Sentiment = types.Sentiment(s)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.Comment{}, err
	}
	return cm, nil
}

func (c *EthClient) HasAccessToken(ctx context.Context, addr types.Address) (bool, error) {
	hub, err := c.hub()
	if err != nil {
		return false, err
	}
	return first[bool](c.call(ctx, hubABI, hub, "hasToken", addr))
}

func (c *EthClient) IsCommentGatingEnabled(ctx context.Context) (bool, error) {
	hub, err := c.hub()
	if err != nil {
		return false, err
	}
	return first[bool](c.call(ctx, hubABI, hub, "gateComments"))
}

func (c *EthClient) transact(ctx context.Context, parsed abi.ABI, to common.Address, method string, args ...interface{}) (PendingTx, error) {
	if c.signer == nil {
		return PendingTx{}, ErrNoSigner
	}
	opts := *c.signer
	opts.Context = ctx
	contract := bind.NewBoundContract(to, parsed, c.backend, c.backend, c.backend)
	tx, err := contract.Transact(&opts, method, args...)
	if err != nil {
		return PendingTx{}, fmt.Errorf("%s: %w", method, err)
	}
	return PendingTx{Hash: tx.Hash()}, nil
}

func (c *EthClient) CreateProposal(ctx context.Context, title, envelope string, voteStart, voteEnd uint64) (PendingTx, error) {
	hub, err := c.hub()
	if err != nil {
		return PendingTx{}, err
	}
	if err := ValidateWindow(voteStart, voteEnd); err != nil {
		return PendingTx{}, err
	}
	return c.transact(ctx, hubABI, hub, "createProposal", title, envelope,
		new(big.Int).SetUint64(voteStart), new(big.Int).SetUint64(voteEnd))
}

func (c *EthClient) SetVotingWindow(ctx context.Context, proposal types.Address, voteStart, voteEnd uint64) (PendingTx, error) {
	hub, err := c.hub()
	if err != nil {
		return PendingTx{}, err
	}
	if err := ValidateWindow(voteStart, voteEnd); err != nil {
		return PendingTx{}, err
	}
	return c.transact(ctx, hubABI, hub, "setVotingWindow", proposal,
		new(big.Int).SetUint64(voteStart), new(big.Int).SetUint64(voteEnd))
}

func (c *EthClient) RequestActivation(ctx context.Context, proposal types.Address, active bool) (PendingTx, error) {
	hub, err := c.hub()
	if err != nil {
		return PendingTx{}, err
	}
	return c.transact(ctx, hubABI, hub, "setActiveByCreatorOrAdmin", proposal, active)
}

func (c *EthClient) RequestStateSync(ctx context.Context, proposal types.Address) (PendingTx, error) {
	hub, err := c.hub()
	if err != nil {
		return PendingTx{}, err
	}
	return c.transact(ctx, hubABI, hub, "syncProposalState", proposal)
}

func (c *EthClient) AddComment(ctx context.Context, proposal types.Address, content string, sentiment types.Sentiment) (PendingTx, error) {
	hub, err := c.hub()
	if err != nil {
		return PendingTx{}, err
	}
	return c.transact(ctx, hubABI, hub, "addComment", proposal, content, uint8(sentiment))
}

// MintAccessToken mints one gating token to the given account. The token
// contract and id are read from the hub.
func (c *EthClient) MintAccessToken(ctx context.Context, to types.Address) (PendingTx, error) {
	if !c.opts.Testnet {
		return PendingTx{}, ErrMintDisabled
	}
	hub, err := c.hub()
	if err != nil {
		return PendingTx{}, err
	}
	token, err := first[common.Address](c.call(ctx, hubABI, hub, "tokenContract1155"))
	if err != nil {
		return PendingTx{}, err
	}
	if types.IsZeroAddress(token) {
		return PendingTx{}, &ConfigError{Setting: "hub tokenContract1155"}
	}
	id, err := first[*big.Int](c.call(ctx, hubABI, hub, "tokenId1155"))
	if err != nil {
		return PendingTx{}, err
	}
	return c.transact(ctx, erc1155ABI, token, "mint", to, id, big.NewInt(1), []byte{})
}

func (c *EthClient) LatestBlock(ctx context.Context) (uint64, error) {
	return c.backend.BlockNumber(ctx)
}

func (c *EthClient) SubmissionLogs(ctx context.Context, from, to uint64) ([]SubmissionLog, error) {
	addr, err := c.legacyContract()
	if err != nil {
		return nil, err
	}
	event := legacyABI.Events["ProposalSubmitted"]
	logs, err := c.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{addr},
		Topics:    [][]common.Hash{{event.ID}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]SubmissionLog, 0, len(logs))
	for _, l := range logs {
		entry := SubmissionLog{
			TxHash:      l.TxHash,
			Contract:    l.Address,
			BlockNumber: l.BlockNumber,
			LogIndex:    l.Index,
		}
		if len(l.Topics) > 1 {
			entry.Author = common.BytesToAddress(l.Topics[1].Bytes())
		}
		if text, err := first[string](legacyABI.Unpack("ProposalSubmitted", l.Data)); err == nil {
			entry.Text = text
		}
		out = append(out, entry)
	}
	return out, nil
}

func (c *EthClient) BlockTime(ctx context.Context, number uint64) (uint64, error) {
	h, err := c.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}
	return h.Time, nil
}
