package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	payload, err := json.Marshal(map[string]string{"order_id": "abc-123"})
	require.NoError(t, err)

	env := NewEnvelope(EventOrderCreated, "commerce-core", "trace-1", "req-1", payload)
	require.NotEmpty(t, env.EventID)
	require.Equal(t, EventOrderCreated, env.EventType)

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(raw, &decoded))

	require.Equal(t, env.EventID, decoded.EventID)
	require.Equal(t, env.EventType, decoded.EventType)
	require.Equal(t, env.Source, decoded.Source)
	require.JSONEq(t, string(payload), string(decoded.Payload))
}

func TestEnvelopeOmitsEmptyOptionalFields(t *testing.T) {
	env := NewEnvelope(EventOrderPaid, "commerce-core", "", "", json.RawMessage(`{}`))
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var asMap map[string]any
	require.NoError(t, json.Unmarshal(raw, &asMap))
	_, hasTrace := asMap["trace_id"]
	_, hasRequest := asMap["request_id"]
	require.False(t, hasTrace)
	require.False(t, hasRequest)
}
