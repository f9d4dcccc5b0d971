package tokenizer

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/payroll-auth/core"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func testClaims() core.AccessClaims {
	issued := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	return core.AccessClaims{
		ID:        "token-id",
		Subject:   "user-1",
		Wallet:    "0x71c7656ec7ab88b098defb751b7401b5f6d8976f",
		IssuedAt:  issued,
		ExpiresAt: issued.Add(15 * time.Minute),
	}
}

func TestSignParseRoundTrip(t *testing.T) {
	tok := NewJWTTokenizer(testKey, "", "")
	claims := testClaims()

	signed, err := tok.Sign(claims)
	require.NoError(t, err)

	got, err := tok.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, claims, got)
}

func TestParseIgnoresExpiry(t *testing.T) {
	tok := NewJWTTokenizer(testKey, "", "")
	claims := testClaims()
	claims.IssuedAt = claims.IssuedAt.AddDate(-1, 0, 0)
	claims.ExpiresAt = claims.ExpiresAt.AddDate(-1, 0, 0)

	signed, err := tok.Sign(claims)
	require.NoError(t, err)

	got, err := tok.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, claims.ExpiresAt, got.ExpiresAt)
}

func TestParseRejects(t *testing.T) {
	tok := NewJWTTokenizer(testKey, "", "")
	valid, err := tok.Sign(testClaims())
	require.NoError(t, err)

	registered := jwt.RegisteredClaims{
		Issuer:    DefaultIssuer,
		Subject:   "user-1",
		Audience:  jwt.ClaimStrings{DefaultAudience},
		IssuedAt:  jwt.NewNumericDate(testClaims().IssuedAt),
		ExpiresAt: jwt.NewNumericDate(testClaims().ExpiresAt),
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{RegisteredClaims: registered}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, AccessClaims{RegisteredClaims: registered}).
		SignedString(testKey)
	require.NoError(t, err)

	otherKey, err := NewJWTTokenizer([]byte("another-key-another-key-another-k"), "", "").Sign(testClaims())
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"truncated signature", valid[:len(valid)-4]},
		{"alg none", none},
		{"alg HS512", hs512},
		{"other key", otherKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tok.Parse(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestParseChecksIssuerAndAudience(t *testing.T) {
	tok := NewJWTTokenizer(testKey, "", "")

	foreign, err := NewJWTTokenizer(testKey, "someone-else", "").Sign(testClaims())
	require.NoError(t, err)
	_, err = tok.Parse(foreign)
	assert.ErrorIs(t, err, ErrIssuerMismatch)

	refreshAudience, err := NewJWTTokenizer(testKey, "", "session:refresh").Sign(testClaims())
	require.NoError(t, err)
	_, err = tok.Parse(refreshAudience)
	assert.ErrorIs(t, err, ErrAudienceMismatch)
}

func TestParseRequiresClaims(t *testing.T) {
	tok := NewJWTTokenizer(testKey, "", "")

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   DefaultIssuer,
			Subject:  "user-1",
			Audience: jwt.ClaimStrings{DefaultAudience},
			IssuedAt: jwt.NewNumericDate(testClaims().IssuedAt),
		},
	}).SignedString(testKey)
	require.NoError(t, err)

	_, err = tok.Parse(noExpiry)
	assert.ErrorIs(t, err, ErrMissingClaims)
}

func TestTokenizerCopiesKey(t *testing.T) {
	key := append([]byte(nil), testKey...)
	tok := NewJWTTokenizer(key, "", "")

	signed, err := tok.Sign(testClaims())
	require.NoError(t, err)

	key[0] ^= 0xff
	_, err = tok.Parse(signed)
	assert.NoError(t, err)
}
