// Package slackapi is the outbound side of the bot: posting replies,
// resolving display names, and learning each tenant's own bot user id. Each
// tenant has its own bot token and therefore its own slack-go client.
package slackapi

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/slack-go/slack"
)

// ErrUnknownTenant is returned for a tenant without a configured token.
var ErrUnknownTenant = errors.New("no bot token for tenant")

// Client multiplexes per-tenant slack-go clients.
type Client struct {
	apis map[string]*slack.Client

	mu      sync.Mutex
	botUser map[string]string
}

// New builds a client per tenant token. apiURL overrides the Slack API root
// (must end in "/"); empty uses the default.
func New(tokens map[string]string, apiURL string) *Client {
	c := &Client{
		apis:    make(map[string]*slack.Client, len(tokens)),
		botUser: make(map[string]string, len(tokens)),
	}
	for tenant, token := range tokens {
		if token == "" {
			continue
		}
		var opts []slack.Option
		if apiURL != "" {
			opts = append(opts, slack.OptionAPIURL(apiURL))
		}
		c.apis[tenant] = slack.New(token, opts...)
	}
	return c
}

func (c *Client) api(tenant string) (*slack.Client, error) {
	api, ok := c.apis[tenant]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTenant, tenant)
	}
	return api, nil
}

// PostMessage posts text to channel, threaded under threadTS when non-empty.
func (c *Client) PostMessage(ctx context.Context, tenant, channel, threadTS, text string) error {
	api, err := c.api(tenant)
	if err != nil {
		return err
	}
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	if _, _, err := api.PostMessageContext(ctx, channel, opts...); err != nil {
		return fmt.Errorf("chat.postMessage: %w", err)
	}
	return nil
}

// UserName returns the best human-readable name for user: real name, then
// display name, then handle, then "Unknown User".
func (c *Client) UserName(ctx context.Context, tenant, user string) (string, error) {
	api, err := c.api(tenant)
	if err != nil {
		return "", err
	}
	u, err := api.GetUserInfoContext(ctx, user)
	if err != nil {
		return "", fmt.Errorf("users.info: %w", err)
	}
	switch {
	case u.RealName != "":
		return u.RealName, nil
	case u.Profile.DisplayName != "":
		return u.Profile.DisplayName, nil
	case u.Name != "":
		return u.Name, nil
	}
	return "Unknown User", nil
}

// BotUserID returns the tenant bot's own user id. Successful lookups are
// cached; failures are retried on the next call.
func (c *Client) BotUserID(ctx context.Context, tenant string) (string, error) {
	c.mu.Lock()
	id, ok := c.botUser[tenant]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	api, err := c.api(tenant)
	if err != nil {
		return "", err
	}
	resp, err := api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("auth.test: %w", err)
	}

	c.mu.Lock()
	c.botUser[tenant] = resp.UserID
	c.mu.Unlock()
	return resp.UserID, nil
}
