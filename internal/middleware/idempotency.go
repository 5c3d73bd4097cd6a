package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader   = "Idempotency-Key"
	idempotencyPrefix      = "loandesk:idem:"
	inProgressMarker       = "__in_progress__"
	idempotentReplayHeader = "Idempotent-Replayed"
	idempotencyOpTimeout   = 2 * time.Second
)

type storedResponse struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// replayStore keeps confirmed responses keyed by user and Idempotency-Key.
type replayStore struct {
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func (s replayStore) key(c *fiber.Ctx, key string) string {
	if userID, _ := c.Locals(userIDLocal).(string); userID != "" {
		return idempotencyPrefix + userID + ":" + key
	}
	return idempotencyPrefix + key
}

// reserve claims the key. ok is false when another request holds it; stored is
// set when a finished response exists.
func (s replayStore) reserve(ctx context.Context, cacheKey string) (stored *storedResponse, ok bool, err error) {
	acquired, err := s.cache.SetNX(ctx, cacheKey, inProgressMarker, s.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if acquired {
		return nil, true, nil
	}
	raw, err := s.cache.Get(ctx, cacheKey).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls; let the caller retry
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if raw == inProgressMarker {
		return nil, false, nil
	}
	var resp storedResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, false, err
	}
	return &resp, false, nil
}

func (s replayStore) save(cacheKey string, resp storedResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyOpTimeout)
	defer cancel()
	return s.cache.Set(ctx, cacheKey, payload, s.ttl).Err()
}

func (s replayStore) release(cacheKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyOpTimeout)
	defer cancel()
	if err := s.cache.Del(ctx, cacheKey).Err(); err != nil {
		s.logger.Warn("idempotency release failed", slog.String("key", cacheKey), slog.Any("error", err))
	}
}

// Idempotency replays the stored response for a repeated Idempotency-Key so a
// payment confirmation retried by the console is applied once. Keys are scoped
// to the session user. Failed requests release their key so they can be
// retried. Without Redis the middleware is a pass-through.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	store := replayStore{cache: cache, ttl: ttl, logger: logger}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := strings.TrimSpace(c.Get(idempotencyKeyHeader))
		if key == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
		}
		cacheKey := store.key(c, key)

		ctx, cancel := context.WithTimeout(c.UserContext(), idempotencyOpTimeout)
		stored, ok, err := store.reserve(ctx, cacheKey)
		cancel()
		if err != nil {
			logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusServiceUnavailable, "idempotency store unavailable")
		}
		if stored != nil {
			for header, value := range stored.Headers {
				if strings.EqualFold(header, fiber.HeaderContentLength) {
					continue
				}
				c.Set(header, value)
			}
			c.Set(idempotentReplayHeader, "true")
			return c.Status(stored.Status).SendString(stored.Body)
		}
		if !ok {
			return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
		}

		if err := c.Next(); err != nil {
			store.release(cacheKey)
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			store.release(cacheKey)
			return nil
		}

		resp := storedResponse{
			Status:  status,
			Body:    string(c.Response().Body()),
			Headers: map[string]string{},
		}
		c.Response().Header.VisitAll(func(k, v []byte) {
			resp.Headers[string(k)] = string(v)
		})
		if err := store.save(cacheKey, resp); err != nil {
			logger.Error("idempotent response not stored", slog.String("key", key), slog.Any("error", err))
			store.release(cacheKey)
		}
		return nil
	}
}
