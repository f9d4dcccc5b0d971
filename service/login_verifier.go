package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/layer-3/payroll-auth/core"
	"github.com/layer-3/payroll-auth/ports"
)

// LoginVerifier checks a signed challenge. Every attempt that gets past
// input validation consumes the challenge, whatever the outcome.
type LoginVerifier struct {
	nonces     ports.NonceStore
	signatures ports.SignatureVerifier
	clock      ports.Clock
}

// NewLoginVerifier creates a new login verifier
func NewLoginVerifier(nonces ports.NonceStore, signatures ports.SignatureVerifier, clock ports.Clock) *LoginVerifier {
	return &LoginVerifier{
		nonces:     nonces,
		signatures: signatures,
		clock:      clock,
	}
}

// Verify consumes the challenge for nonce and checks that signature over its
// message came from address. The returned challenge carries the normalized address.
func (v *LoginVerifier) Verify(ctx context.Context, address, signature, nonce string) (core.Challenge, error) {
	address = strings.TrimSpace(address)
	signature = strings.TrimSpace(signature)
	if err := checkInput(loginRequest{Address: address, Signature: signature, Nonce: nonce}); err != nil {
		return core.Challenge{}, err
	}

	challenge, ok, err := v.nonces.Consume(ctx, nonce)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("consume challenge: %w", err)
	}
	if !ok {
		return core.Challenge{}, core.ErrChallengeNotFound
	}

	if challenge.Expired(v.clock.Now()) {
		return core.Challenge{}, core.ErrChallengeExpired
	}

	if challenge.Address != strings.ToLower(address) {
		return core.Challenge{}, core.ErrSignerMismatch
	}

	if err := v.signatures.Verify(challenge.Message, signature, challenge.Address); err != nil {
		return core.Challenge{}, fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
	}

	return challenge, nil
}
