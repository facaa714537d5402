package stripe

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/parley-ai/parley-backend/pkg/config"
	"github.com/parley-ai/parley-backend/pkg/logger"
)

var (
	errAPIKeyRequired = errors.New("stripe api key is required")
	errSecretRequired = errors.New("stripe webhook secret is required")
)

// livePrefixes mark a secret key as live mode. Everything else is test mode;
// the flag is fixed at construction and never changes afterwards, so price
// lookups and subscription matches stay in a single mode for the process
// lifetime.
var livePrefixes = []string{"sk_live", "rk_live"}

// Client wraps Stripe's API credentials plus the derived billing mode.
type Client struct {
	live          bool
	signingSecret string
}

// NewClient initializes Stripe once with the configured secrets.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	signingSecret := strings.TrimSpace(cfg.WebhookSecret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	stripe.Key = apiKey

	client := &Client{
		live:          isLiveKey(apiKey),
		signingSecret: signingSecret,
	}

	if logg != nil {
		mode := "test"
		if client.live {
			mode = "live"
		}
		logg.Info(logg.WithField(ctx, "stripe_mode", mode), "stripe client initialized")
	}

	return client, nil
}

// Live reports whether the configured key is a live-mode key.
func (c *Client) Live() bool {
	if c == nil {
		return false
	}
	return c.live
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func isLiveKey(key string) bool {
	for _, prefix := range livePrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
