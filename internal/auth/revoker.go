package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "auth:revoked:"

// Revoker keeps a deny-list of token ids in redis until the tokens expire.
// A nil Revoker, or one without a client, treats every token as live.
type Revoker struct {
	client *redis.Client
}

func NewRevoker(client *redis.Client) *Revoker {
	return &Revoker{client: client}
}

func NewRevokerFromURL(url string) (*Revoker, error) {
	if url == "" {
		return &Revoker{}, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRevoker(redis.NewClient(opts)), nil
}

func (r *Revoker) Enabled() bool {
	return r != nil && r.client != nil
}

func (r *Revoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if !r.Enabled() {
		return nil
	}
	if tokenID == "" {
		return errors.New("token id required")
	}
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedPrefix+tokenID, 1, ttl).Err()
}

func (r *Revoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if !r.Enabled() || tokenID == "" {
		return false, nil
	}
	n, err := r.client.Exists(ctx, revokedPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Revoker) Ping(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	return r.client.Ping(ctx).Err()
}

func (r *Revoker) Close() error {
	if !r.Enabled() {
		return nil
	}
	return r.client.Close()
}
