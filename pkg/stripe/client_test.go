package stripe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley-backend/pkg/config"
)

func TestNewClientDerivesModeFromKeyPrefix(t *testing.T) {
	tests := []struct {
		name string
		key  string
		live bool
	}{
		{name: "live secret key", key: "sk_live_abc", live: true},
		{name: "live restricted key", key: "rk_live_abc", live: true},
		{name: "test secret key", key: "sk_test_abc", live: false},
		{name: "restricted test key", key: "rk_test_abc", live: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(context.Background(), config.StripeConfig{
				APIKey:        tt.key,
				WebhookSecret: "whsec_x",
			}, nil)
			require.NoError(t, err)
			require.Equal(t, tt.live, client.Live())
		})
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), config.StripeConfig{WebhookSecret: "whsec_x"}, nil)
	require.ErrorIs(t, err, errAPIKeyRequired)

	_, err = NewClient(context.Background(), config.StripeConfig{APIKey: "sk_test_abc"}, nil)
	require.ErrorIs(t, err, errSecretRequired)
}
