package payrollauth

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/payroll-auth/adapters/ethsig"
	"github.com/layer-3/payroll-auth/core"
)

func TestNewInMemoryRequiresKey(t *testing.T) {
	_, err := NewInMemory(Options{})
	require.ErrorIs(t, err, ErrEmptySigningKey)
}

func TestInMemoryClient(t *testing.T) {
	c, err := NewInMemory(Options{SigningKey: []byte("0123456789abcdef0123456789abcdef")})
	require.NoError(t, err)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	ch, err := c.Challenge(ctx, address, "127.0.0.1")
	require.NoError(t, err)

	sig, err := ethsig.Sign(key, ch.Message)
	require.NoError(t, err)

	pair, err := c.Login(ctx, address, sig, ch.Nonce, "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, ethsig.Address(key), pair.Address)

	claims, err := c.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, pair.UserID, claims.Subject)

	rotated, err := c.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	_, err = c.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, core.ErrInvalidRefreshToken)

	require.NoError(t, c.Logout(ctx, rotated.RefreshToken))
	n, err := c.LogoutAll(ctx, pair.UserID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
