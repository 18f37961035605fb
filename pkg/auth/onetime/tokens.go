// Package onetime issues single-use tokens for password resets and email
// verification. Redis holds only the SHA-256 of each token, mapped to the
// user it was issued for.
package onetime

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	redisclient "github.com/classickits/jerseystore-backend/pkg/redis"
	"github.com/classickits/jerseystore-backend/pkg/security"
)

type Purpose string

const (
	PasswordReset Purpose = "password_reset"
	EmailVerify   Purpose = "email_verify"
)

const tokenBytes = 32

// ErrInvalidToken covers unknown, expired and already used tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	OneTimeTokenKey(purpose, digest string) string
}

type Tokens struct {
	store store
}

func NewTokens(client *redisclient.Client) (*Tokens, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &Tokens{store: client}, nil
}

// Issue mints a token for userID that stays valid for ttl.
func (t *Tokens) Issue(ctx context.Context, purpose Purpose, userID uuid.UUID, ttl time.Duration) (string, error) {
	if userID == uuid.Nil {
		return "", errors.New("user id is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%s token ttl must be positive", purpose)
	}
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating %s token: %w", purpose, err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	if err := t.store.Set(ctx, t.key(purpose, token), userID.String(), ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Peek reports who token belongs to without using it up.
func (t *Tokens) Peek(ctx context.Context, purpose Purpose, token string) (uuid.UUID, error) {
	return t.lookup(ctx, purpose, token, t.store.Get)
}

// Consume returns the token's user and deletes it, so a second call fails.
func (t *Tokens) Consume(ctx context.Context, purpose Purpose, token string) (uuid.UUID, error) {
	return t.lookup(ctx, purpose, token, t.store.GetDel)
}

func (t *Tokens) lookup(ctx context.Context, purpose Purpose, token string, read func(context.Context, string) (string, error)) (uuid.UUID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return uuid.Nil, ErrInvalidToken
	}
	val, err := read(ctx, t.key(purpose, token))
	if errors.Is(err, redislib.Nil) {
		return uuid.Nil, ErrInvalidToken
	}
	if err != nil {
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}

func (t *Tokens) key(purpose Purpose, token string) string {
	return t.store.OneTimeTokenKey(string(purpose), security.SHA256Hex([]byte(token)))
}
