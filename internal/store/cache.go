package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/farshadkazemi/clarity/config"
	"github.com/farshadkazemi/clarity/internal/pipeline"
)

const defaultContextTTL = 30 * time.Minute

// Cache keeps conversation context in Redis so follow-up requests skip the
// message-history query. Misses and Redis errors both read as a cache miss.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

func NewCache(cfg config.RedisConfig) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultContextTTL
	}
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl:    ttl,
		logger: log.New(log.Writer(), "[CACHE] ", log.LstdFlags),
	}
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error { return c.client.Close() }

func contextKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:context", conversationID)
}

func (c *Cache) GetContext(ctx context.Context, conversationID string) (pipeline.ConversationContext, bool) {
	raw, err := c.client.Get(ctx, contextKey(conversationID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Printf("context read failed: %v", err)
		}
		return pipeline.ConversationContext{}, false
	}
	var cc pipeline.ConversationContext
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Printf("context decode failed: %v", err)
		return pipeline.ConversationContext{}, false
	}
	return cc, true
}

func (c *Cache) SetContext(ctx context.Context, conversationID string, cc pipeline.ConversationContext) {
	raw, err := json.Marshal(cc)
	if err != nil {
		c.logger.Printf("context encode failed: %v", err)
		return
	}
	if err := c.client.Set(ctx, contextKey(conversationID), raw, c.ttl).Err(); err != nil {
		c.logger.Printf("context write failed: %v", err)
	}
}
