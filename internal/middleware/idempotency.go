package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// CorrelationHeader carries the client generated idempotency key
const CorrelationHeader = "X-Correlation-ID"

// inFlightTTL bounds how long a reservation survives a handler that never finishes
const inFlightTTL = 30 * time.Second

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Status 0 marks a request that is still running
var inFlightMarker, _ = json.Marshal(cachedResponse{})

// IdempotencyMiddleware replays the stored response of a mutating request when the same
// X-Correlation-ID is seen again within ttl. Keys are scoped per user when one is known.
//
// The key is reserved with SETNX before the handler runs, so a duplicate that arrives
// while the first request is still in flight gets 409 instead of running the handler twice.
func IdempotencyMiddleware(redisClient *redis.Client, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPatch && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		correlationID := c.Get(CorrelationHeader)
		if correlationID == "" {
			return c.Next()
		}

		key := fmt.Sprintf("idempotency:%s:%s:%s", GetUserID(c), c.Path(), correlationID)
		ctx := c.UserContext()

		reserved, err := redisClient.SetNX(ctx, key, inFlightMarker, inFlightTTL).Result()
		if err != nil {
			log.Printf("[Idempotency] Redis unavailable for %s, running without replay: %v", key, err)
			return c.Next()
		}
		if !reserved {
			return replayStored(c, redisClient, key)
		}

		if err := c.Next(); err != nil {
			release(redisClient, key)
			return err
		}

		// Only successful responses are replayed
		status := c.Response().StatusCode()
		if status < 200 || status >= 300 {
			release(redisClient, key)
			return nil
		}

		// fasthttp reuses the response buffer once the handler returns
		resp := cachedResponse{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		}
		payload, err := json.Marshal(resp)
		if err != nil {
			release(redisClient, key)
			return nil
		}

		storeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := redisClient.Set(storeCtx, key, payload, ttl).Err(); err != nil {
			log.Printf("[Idempotency] Failed to store response for %s: %v", key, err)
		}
		return nil
	}
}

func replayStored(c *fiber.Ctx, redisClient *redis.Client, key string) error {
	cached, err := redisClient.Get(c.UserContext(), key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("[Idempotency] Redis read failed for %s: %v", key, err)
	}

	var resp cachedResponse
	if err == nil && json.Unmarshal(cached, &resp) == nil && resp.Status != 0 {
		c.Set("X-Idempotent-Replay", "true")
		if resp.ContentType != "" {
			c.Set(fiber.HeaderContentType, resp.ContentType)
		}
		return c.Status(resp.Status).Send(resp.Body)
	}

	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"success": false,
		"error":   "a request with this X-Correlation-ID is already in progress",
	})
}

// release drops a reservation so the client can retry a failed request
func release(redisClient *redis.Client, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := redisClient.Del(ctx, key).Err(); err != nil {
		log.Printf("[Idempotency] Failed to release %s: %v", key, err)
	}
}
