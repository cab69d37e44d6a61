package payments

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nordkit/commerce-core/internal/domain"
)

func TestHasSeenWebhookDeduplicates(t *testing.T) {
	p := &domain.Payment{WebhookEventIDs: []string{"evt-1", "evt-2"}}
	require.True(t, p.HasSeenWebhook("evt-1"))
	require.True(t, p.HasSeenWebhook("evt-2"))
	require.False(t, p.HasSeenWebhook("evt-3"))
}

func TestMapStripeStatus(t *testing.T) {
	cases := []struct {
		in       string
		want     string
		wantKnown bool
	}{
		{"succeeded", "SUCCEEDED", true},
		{"canceled", "FAILED", true},
		{"refunded", "REFUNDED", true},
		{"requires_payment_method", "", false},
		{"requires_action", "", false},
		{"processing", "", false},
		{"something_unknown", "", false},
	}
	for _, c := range cases {
		status, known := mapStripeStatus(c.in)
		require.Equal(t, c.wantKnown, known, "status %q", c.in)
		if c.wantKnown {
			require.Equal(t, c.want, status)
		}
	}
}
