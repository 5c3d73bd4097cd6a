// Package infra opens connections to optional infrastructure.
package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 3 * time.Second

// ErrRedisURLRequired is returned when Redis is requested without a URL.
var ErrRedisURLRequired = errors.New("redis url is required")

// NewRedisClient connects to the Redis instance that backs console sessions,
// idempotency keys and login throttling. The connection is tagged with
// clientName so it shows up in CLIENT LIST.
func NewRedisClient(ctx context.Context, url, clientName string) (*redis.Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrRedisURLRequired
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.ClientName == "" {
		opt.ClientName = strings.ToLower(clientName)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opt.Addr, err)
	}

	return client, nil
}
