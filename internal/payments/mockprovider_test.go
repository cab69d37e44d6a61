package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockProviderCreateAndGetIntent(t *testing.T) {
	p := NewMockProvider()
	intent, err := p.CreateIntent(context.Background(), 1000, "usd", "idem-1")
	require.NoError(t, err)
	require.NotEmpty(t, intent.ID)
	require.Equal(t, "requires_payment_method", intent.Status)

	p.SetStatus(intent.ID, "succeeded")
	got, err := p.GetIntent(context.Background(), intent.ID)
	require.NoError(t, err)
	require.Equal(t, "succeeded", got.Status)
}

func TestMockProviderWebhookSignature(t *testing.T) {
	p := NewMockProvider()
	require.NoError(t, p.VerifyWebhookSignature(nil, "mock-valid", "secret"))
	require.Error(t, p.VerifyWebhookSignature(nil, "bad-signature", "secret"))
}
