/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rulego/streamcep/types"
)

const defaultTimeout = 5 * time.Second

// Redis stores units as plain string keys prefix+org/name/version.
type Redis struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

var _ Repository = (*Redis)(nil)

// NewRedis connects to cfg.Address and verifies the connection with PING.
func NewRedis(cfg types.RepositoryConfig) (*Redis, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: redis repository needs an address", types.ErrConfiguration)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisFromClient(client, cfg.Prefix, timeout), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, prefix string, timeout time.Duration) *Redis {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Redis{client: client, prefix: prefix, timeout: timeout}
}

func (r *Redis) key(id Identity) string {
	return r.prefix + id.key()
}

func (r *Redis) Fetch(ctx context.Context, id Identity) ([]byte, bool, error) {
	id = id.normalize()
	if err := id.validate(); err != nil {
		return nil, false, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch %s from Redis: %w", id, err)
	}
	return data, true, nil
}

func (r *Redis) Store(ctx context.Context, id Identity, data []byte) error {
	id = id.normalize()
	if err := id.validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, r.key(id), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store %s to Redis: %w", id, err)
	}
	return nil
}

func (r *Redis) Search(ctx context.Context, term string) ([]Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var found []Identity
	// SCAN may return a key more than once
	seen := make(map[string]struct{})
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		id, ok := parseKey(strings.TrimPrefix(key, r.prefix))
		if ok && id.Matches(term) {
			found = append(found, id)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	sortIdentities(found)
	return found, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
