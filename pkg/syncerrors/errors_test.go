package syncerrors_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacroPower/qsync/pkg/syncerrors"
)

func TestInterrupted(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := syncerrors.Interrupted(ctx)
	require.ErrorIs(t, err, syncerrors.ErrInterrupted)
	require.ErrorIs(t, err, context.Canceled)
}

func TestInterruptedCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("stop")
	ctx, cancel := context.WithCancelCause(t.Context())
	cancel(cause)

	err := syncerrors.Interrupted(ctx)
	require.ErrorIs(t, err, syncerrors.ErrInterrupted)
	require.ErrorIs(t, err, cause)
}

func TestWrappers(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, syncerrors.IllegalState("not owner"), syncerrors.ErrIllegalState)
	assert.ErrorIs(t, syncerrors.Unsupported("tryAcquire"), syncerrors.ErrUnsupported)
	assert.ErrorIs(t, syncerrors.ErrShutdown, syncerrors.ErrRejected)
	assert.Equal(t, "illegal monitor state: not owner", syncerrors.IllegalState("not owner").Error())
}
