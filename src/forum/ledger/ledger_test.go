package ledger

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWindow(t *testing.T) {
	assert.NoError(t, ValidateWindow(0, 0))
	assert.NoError(t, ValidateWindow(100, 200))
	assert.ErrorIs(t, ValidateWindow(100, 50), ErrInvalidWindow)
	assert.ErrorIs(t, ValidateWindow(100, 100), ErrInvalidWindow)
	assert.ErrorIs(t, ValidateWindow(100, 0), ErrInvalidWindow)
}

func TestConfigError(t *testing.T) {
	err := error(&ConfigError{Setting: "HUB_ADDRESS"})
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "HUB_ADDRESS")
	assert.False(t, IsConfigError(ErrNoSigner))
}

func TestEthClientGuards(t *testing.T) {
	ctx := context.Background()
	p := common.HexToAddress("0x2222222222222222222222222222222222222222")

	c, err := NewEthClient(nil, Options{ChainID: big.NewInt(11155111)})
	require.NoError(t, err)
	_, ok := c.SignerAddress()
	assert.False(t, ok)

	_, err = c.CountByState(ctx, 1)
	assert.True(t, IsConfigError(err))
	_, err = c.SubmissionLogs(ctx, 0, 10)
	assert.True(t, IsConfigError(err))
	_, err = c.MintAccessToken(ctx, p)
	assert.ErrorIs(t, err, ErrMintDisabled)

	c, err = NewEthClient(nil, Options{ChainID: big.NewInt(1), Hub: p})
	require.NoError(t, err)
	_, err = c.SetVotingWindow(ctx, p, 100, 50)
	assert.ErrorIs(t, err, ErrInvalidWindow)
	_, err = c.RequestStateSync(ctx, p)
	assert.ErrorIs(t, err, ErrNoSigner)
}

func TestEthClientSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := common.Bytes2Hex(crypto.FromECDSA(key))

	c, err := NewEthClient(nil, Options{ChainID: big.NewInt(1), SignerKey: "0x" + hexKey})
	require.NoError(t, err)
	from, ok := c.SignerAddress()
	require.True(t, ok)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), from)

	_, err = NewEthClient(nil, Options{ChainID: big.NewInt(1), SignerKey: "zz"})
	assert.Error(t, err)
}
