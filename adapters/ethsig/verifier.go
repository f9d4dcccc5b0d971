// Package ethsig verifies EIP-191 personal_sign signatures produced by
// Ethereum wallets.
package ethsig

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/payroll-auth/core"
	"github.com/layer-3/payroll-auth/ports"
)

// PersonalSignVerifier recovers the signer of a personal_sign signature and
// compares it to the claimed address
type PersonalSignVerifier struct{}

// NewPersonalSignVerifier creates a new verifier
func NewPersonalSignVerifier() ports.SignatureVerifier {
	return PersonalSignVerifier{}
}

// Verify checks that signature is address's personal_sign over message.
// Every failure wraps core.ErrInvalidSignature.
func (PersonalSignVerifier) Verify(message, signature, address string) error {
	if !strings.HasPrefix(signature, "0x") && !strings.HasPrefix(signature, "0X") {
		signature = "0x" + signature
	}
	decodedSig, err := hexutil.Decode(signature)
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", core.ErrInvalidSignature)
	}
	if len(decodedSig) != crypto.SignatureLength {
		return fmt.Errorf("signature must be %d bytes: %w", crypto.SignatureLength, core.ErrInvalidSignature)
	}

	// wallets emit v as 27/28, SigToPub wants 0/1
	if decodedSig[crypto.RecoveryIDOffset] >= 27 {
		decodedSig[crypto.RecoveryIDOffset] -= 27
	}
	if decodedSig[crypto.RecoveryIDOffset] > 1 {
		return fmt.Errorf("invalid recovery id: %w", core.ErrInvalidSignature)
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), decodedSig)
	if err != nil {
		return fmt.Errorf("failed to recover signer: %w", core.ErrInvalidSignature)
	}

	recovered := crypto.PubkeyToAddress(*pub)
	if !strings.EqualFold(recovered.Hex(), address) {
		return fmt.Errorf("recovered %s: %w", strings.ToLower(recovered.Hex()), core.ErrInvalidSignature)
	}

	return nil
}

// Sign produces the personal_sign signature a wallet would return for
// message, with v in 27/28 form
func Sign(key *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// Address returns the lowercase wallet address of key
func Address(key *ecdsa.PrivateKey) string {
	return strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
}
