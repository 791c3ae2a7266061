// Package cache keeps short-lived order snapshots and webhook receipts in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"marketplace-api/models"

	"github.com/redis/go-redis/v9"
)

const webhookTTL = 24 * time.Hour

type OrderCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewOrderCache(rdb redis.UniversalClient, ttl time.Duration) *OrderCache {
	return &OrderCache{rdb: rdb, ttl: ttl}
}

func orderKey(id int64) string {
	return "order:" + strconv.FormatInt(id, 10)
}

// Get returns the cached order, or (nil, nil) on a miss.
func (c *OrderCache) Get(ctx context.Context, id int64) (*models.Order, error) {
	raw, err := c.rdb.Get(ctx, orderKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	var o models.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &o, nil
}

func (c *OrderCache) Set(ctx context.Context, o *models.Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	return c.rdb.Set(ctx, orderKey(o.ID), raw, c.ttl).Err()
}

func (c *OrderCache) Invalidate(ctx context.Context, id int64) error {
	return c.rdb.Del(ctx, orderKey(id)).Err()
}

// WebhookDeduper remembers processed provider event ids for a day.
type WebhookDeduper struct {
	rdb redis.UniversalClient
}

func NewWebhookDeduper(rdb redis.UniversalClient) *WebhookDeduper {
	return &WebhookDeduper{rdb: rdb}
}

// FirstDelivery reports whether eventID has not been seen before and claims it.
func (d *WebhookDeduper) FirstDelivery(ctx context.Context, provider, eventID string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, "webhook:"+provider+":"+eventID, time.Now().Unix(), webhookTTL).Result()
	if err != nil {
		return false, fmt.Errorf("webhook dedupe: %w", err)
	}
	return ok, nil
}
