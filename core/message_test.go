package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildChallengeMessage(t *testing.T) {
	issuedAt := time.Date(2025, 1, 2, 3, 4, 5, 999, time.FixedZone("CET", 3600))
	nonce := strings.Repeat("ab", 32)
	address := "0x" + strings.Repeat("cd", 20)

	msg := BuildChallengeMessage("Stablecoin Payroll", "payroll.example.com", address, nonce, issuedAt)

	want := "Stablecoin Payroll wants you to sign in with your wallet.\n" +
		"\n" +
		"Sign this message to prove you control this wallet. It will not trigger a blockchain transaction or cost any gas.\n" +
		"\n" +
		"Domain: payroll.example.com\n" +
		"Wallet: " + address + "\n" +
		"Nonce: " + nonce + "\n" +
		"Issued At: 2025-01-02T02:04:05Z"
	assert.Equal(t, want, msg)
	assert.False(t, strings.HasSuffix(msg, "\n"))
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0xAbCdEf0123456789aBcDeF0123456789AbCdEf01", want: "0xabcdef0123456789abcdef0123456789abcdef01"},
		{in: "  0xabcdef0123456789abcdef0123456789abcdef01 ", want: "0xabcdef0123456789abcdef0123456789abcdef01"},
		{in: "0Xabcdef0123456789abcdef0123456789abcdef01", wantErr: true},
		{in: "abcdef0123456789abcdef0123456789abcdef01", wantErr: true},
		{in: "0xabcdef0123456789abcdef0123456789abcdef", wantErr: true},
		{in: "0xabcdef0123456789abcdef0123456789abcdef0123", wantErr: true},
		{in: "0xzzcdef0123456789abcdef0123456789abcdef01", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeAddress(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsNonce(t *testing.T) {
	assert.True(t, IsNonce(strings.Repeat("0a", 32)))
	assert.False(t, IsNonce(strings.Repeat("0A", 32)))
	assert.False(t, IsNonce(strings.Repeat("0a", 31)))
	assert.False(t, IsNonce("0x"+strings.Repeat("0a", 31)))
}

func TestChallengeExpiredIsStrict(t *testing.T) {
	exp := time.Date(2025, 1, 1, 0, 5, 0, 0, time.UTC)
	c := Challenge{ExpiresAt: exp}

	assert.False(t, c.Expired(exp))
	assert.True(t, c.Expired(exp.Add(time.Nanosecond)))
}

func TestRefreshSessionRotated(t *testing.T) {
	assert.False(t, RefreshSession{}.Rotated())
	assert.False(t, RefreshSession{Revoked: true, RevokeReason: RevokeReasonLogout}.Rotated())
	assert.True(t, RefreshSession{Revoked: true, RevokeReason: RevokeReasonRotated}.Rotated())
}
