package ports

import "github.com/layer-3/payroll-auth/core"

// Tokenizer converts between access claims and signed tokens
type Tokenizer interface {
	Sign(claims core.AccessClaims) (string, error)

	// Parse checks integrity only. Expiry is left to the caller so it can be
	// evaluated against an injected clock.
	Parse(token string) (core.AccessClaims, error)
}

// SignatureVerifier checks that signature over message was produced by address
type SignatureVerifier interface {
	Verify(message, signature, address string) error
}
