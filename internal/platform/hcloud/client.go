package hcloud

import (
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/calcifer/internal/util/retry"
)

// Client lists servers from the Hetzner Cloud API.
type Client struct {
	client *hcloud.Client
	policy retry.Policy
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// WithRetry sets the retry policy for rate-limited or unavailable API calls.
func WithRetry(attempts int, initialDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.policy.Attempts = attempts
		c.policy.InitialDelay = initialDelay
	}
}

// NewClient returns a Client authenticated with token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		client: hcloud.NewClient(hcloud.WithToken(token), hcloud.WithApplication("calcifer", "")),
		policy: retry.Policy{Attempts: 3, InitialDelay: 2 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
