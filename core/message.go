package core

import (
	"regexp"
	"strings"
	"time"
)

var (
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	noncePattern   = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// IsWalletAddress reports whether s is a 0x-prefixed 20-byte hex address.
// Case is not checked.
func IsWalletAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// NormalizeAddress lowercases a wallet address, returning ErrInvalidInput
// when it is malformed.
func NormalizeAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !IsWalletAddress(s) {
		return "", ErrInvalidInput
	}
	return strings.ToLower(s), nil
}

// IsNonce reports whether s has the shape of an issued nonce.
func IsNonce(s string) bool {
	return noncePattern.MatchString(s)
}

// BuildChallengeMessage renders the text a wallet signs to log in. Clients
// that rebuild the message must produce exactly the same bytes.
func BuildChallengeMessage(product, domain, address, nonce string, issuedAt time.Time) string {
	lines := []string{
		product + " wants you to sign in with your wallet.",
		"",
		"Sign this message to prove you control this wallet. It will not trigger a blockchain transaction or cost any gas.",
		"",
		"Domain: " + domain,
		"Wallet: " + address,
		"Nonce: " + nonce,
		"Issued At: " + issuedAt.UTC().Format(time.RFC3339),
	}
	return strings.Join(lines, "\n")
}
