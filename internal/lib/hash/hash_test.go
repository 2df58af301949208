package hash

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	t.Parallel()

	h := New(bcrypt.MinCost, 2)
	ctx := context.Background()

	passHash, err := h.Hash(ctx, "Passw0rd!")
	require.NoError(t, err)

	assert.True(t, h.Verify(ctx, "Passw0rd!", passHash))
	assert.False(t, h.Verify(ctx, "wrong", passHash))
}

func TestHash_SaltedPerCall(t *testing.T) {
	t.Parallel()

	h := New(bcrypt.MinCost, 1)
	ctx := context.Background()

	first, err := h.Hash(ctx, "Passw0rd!")
	require.NoError(t, err)
	second, err := h.Hash(ctx, "Passw0rd!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerify_MalformedHashIsMismatch(t *testing.T) {
	t.Parallel()

	assert.False(t, New(bcrypt.MinCost, 1).Verify(context.Background(), "Passw0rd!", []byte("not-a-hash")))
}

func TestVerify_CancelledContextIsMismatch(t *testing.T) {
	t.Parallel()

	h := New(bcrypt.MinCost, 1)

	passHash, err := h.Hash(context.Background(), "Passw0rd!")
	require.NoError(t, err)

	// Hold the only slot so Acquire has to wait on the cancelled context.
	require.NoError(t, h.sem.Acquire(context.Background(), 1))
	defer h.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, h.Verify(ctx, "Passw0rd!", passHash))

	_, err = h.Hash(ctx, "Passw0rd!")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	h := New(0, 0)
	assert.Equal(t, DefaultCost, h.cost)
}
