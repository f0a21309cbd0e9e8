package escalation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	unlock, err := locker.Acquire(ctx, "escalation:conv_1")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "escalation:conv_1")
	assert.ErrorIs(t, err, ErrLockHeld)

	other, err := locker.Acquire(ctx, "escalation:conv_2")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, unlock(ctx))
	require.NoError(t, unlock(ctx))

	again, err := locker.Acquire(ctx, "escalation:conv_1")
	require.NoError(t, err)
	assert.NoError(t, again(ctx))
}
