package webserver

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	log "github.com/sirupsen/logrus"

	"github.com/stake-plus/bobu-forum/src/forum/types"
)

var errSignatureMismatch = errors.New("signature does not match address")

// signInMessage is the text the wallet signs with personal_sign.
func signInMessage(nonce string) string {
	return "Sign in to the Bobu forum.\n\nNonce: " + nonce
}

// verifySignature checks an EIP-191 personal_sign signature of msg by addr.
func verifySignature(addr types.Address, sigHex, msg string) error {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("invalid signature length: %d", len(sig))
	}
	// Wallets return V as 27/28; recovery wants 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(msg)), sig)
	if err != nil {
		return fmt.Errorf("recover signer: %w", err)
	}
	if recovered := crypto.PubkeyToAddress(*pub); recovered != addr {
		log.Debugf("signature recovered %s, expected %s", recovered.Hex(), addr.Hex())
		return errSignatureMismatch
	}
	return nil
}
