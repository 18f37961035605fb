package redis

import "strings"

// Keyspace prefixes every key the services write so one redis can be shared
// between environments.
type Keyspace string

const DefaultKeyspace Keyspace = "js"

func (k Keyspace) build(kind string, parts ...string) string {
	ns := string(k)
	if ns == "" {
		ns = string(DefaultKeyspace)
	}
	var b strings.Builder
	b.WriteString(ns)
	b.WriteByte(':')
	b.WriteString(kind)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// IdempotencyKey holds a stored response for scope and client key id.
func (c *Client) IdempotencyKey(scope, id string) string {
	return c.keys.build("idempotency", scope, id)
}

// RateLimitKey holds a fixed window counter.
func (c *Client) RateLimitKey(scope string) string {
	return c.keys.build("rate_limit", scope)
}

// AccessSessionKey holds the refresh token of one access token jti.
func (c *Client) AccessSessionKey(accessID string) string {
	return c.keys.build("session", "access", accessID)
}

// OneTimeTokenKey holds the user behind a single-use token digest.
func (c *Client) OneTimeTokenKey(purpose, digest string) string {
	return c.keys.build("token", purpose, digest)
}

// WebhookEventKey marks a provider event as claimed.
func (c *Client) WebhookEventKey(provider, eventID string) string {
	return c.keys.build("webhook_event", provider, eventID)
}

// LockKey names a distributed lock.
func (c *Client) LockKey(name string) string {
	return c.keys.build("lock", name)
}
