// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/camporahq/campora/internal/platform/constants"
	"github.com/camporahq/campora/internal/platform/sec"
)

// RedisRevocationStore implements [RevocationStore] on Redis.
//
// Keys carry the SHA-256 digest of the token rather than the token itself,
// so a compromised cache never yields replayable credentials. Entries expire
// on their own at the instant the token would have expired anyway.
type RedisRevocationStore struct {
	client *redis.Client
}

// NewRevocationStore creates a new Redis-backed [RevocationStore].
func NewRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

/*
Revoke blacklists an access token for the given TTL.

Parameters:
  - ctx: context.Context
  - token: string (raw access token; hashed before storage)
  - ttl: time.Duration (remaining token lifetime)

Returns:
  - error: Execution errors
*/
func (store *RedisRevocationStore) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	key := revocationKey(token)

	if err := store.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis_revocation_set_failed: %w", err)
	}

	return nil
}

/*
IsRevoked reports whether a token sits on the blacklist.

Returns:
  - bool: true when a live revocation entry exists
  - error: Connectivity errors (absence is not an error)
*/
func (store *RedisRevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	key := revocationKey(token)

	if err := store.client.Get(ctx, key).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis_revocation_get_failed: %w", err)
	}

	return true, nil
}

func revocationKey(token string) string {
	return constants.RedisPrefixRevoked + sec.HashChallenge(token)
}
