package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorRetryable(t *testing.T) {
	transient := NewError(KindTransientUpstream, "upstream timeout", errors.New("dial tcp: timeout"))
	require.True(t, transient.Retryable())

	fatal := NewError(KindFatal, "programmer error", nil)
	require.False(t, fatal.Retryable())
}

func TestIsKind(t *testing.T) {
	err := NewError(KindNotFound, "order not found", nil)
	require.True(t, IsKind(err, KindNotFound))
	require.False(t, IsKind(err, KindConflict))
	require.False(t, IsKind(errors.New("plain error"), KindNotFound))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError(KindTransientUpstream, "publish failed", cause)
	require.ErrorIs(t, err, cause)
}
