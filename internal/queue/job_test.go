package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDoublesUntilCap(t *testing.T) {
	base := 2 * time.Second
	cap := 32 * time.Second

	require.Equal(t, 2*time.Second, Backoff(1, base, cap))
	require.Equal(t, 4*time.Second, Backoff(2, base, cap))
	require.Equal(t, 8*time.Second, Backoff(3, base, cap))
	require.Equal(t, 16*time.Second, Backoff(4, base, cap))
	require.Equal(t, 32*time.Second, Backoff(5, base, cap))
	require.Equal(t, cap, Backoff(6, base, cap), "attempt 6 would exceed cap and should clamp")
	require.Equal(t, cap, Backoff(20, base, cap), "far-out attempts must never exceed cap")
}

func TestBackoffClampsNonPositiveAttempt(t *testing.T) {
	base := time.Second
	cap := 10 * time.Second
	require.Equal(t, base, Backoff(0, base, cap))
	require.Equal(t, base, Backoff(-5, base, cap))
}

func TestJobMarshalRoundTrip(t *testing.T) {
	j := Job{ID: "job-1", Queue: "webhook-retry", Payload: []byte(`{"k":"v"}`), Attempts: 2}
	raw, err := Marshal(j)
	require.NoError(t, err)

	decoded, err := Unmarshal(raw)
	require.NoError(t, err)
	require.Equal(t, j.ID, decoded.ID)
	require.Equal(t, j.Queue, decoded.Queue)
	require.Equal(t, j.Attempts, decoded.Attempts)
	require.JSONEq(t, string(j.Payload), string(decoded.Payload))
}
