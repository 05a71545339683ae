package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client persists the session credential in Redis so several gateway
// processes share one login.
type Client struct {
	rdb       *redis.Client
	prefix    string
	tokenKey  string
	extraKeys []string
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config, tokenKey string, extraKeys []string) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newClient(rdb, cfg.Prefix, tokenKey, extraKeys), nil
}

func newClient(rdb *redis.Client, prefix, tokenKey string, extraKeys []string) *Client {
	if prefix == "" {
		prefix = "crmgate"
	}
	return &Client{rdb: rdb, prefix: prefix, tokenKey: tokenKey, extraKeys: extraKeys}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) key(name string) string {
	return fmt.Sprintf("%s:session:%s", c.prefix, name)
}

// Get returns the stored token, or "" when none is set.
func (c *Client) Get(ctx context.Context) (string, error) {
	tok, err := c.rdb.Get(ctx, c.key(c.tokenKey)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get token failed: %w", err)
	}
	return tok, nil
}

// Set stores the token without expiry; the server decides validity.
func (c *Client) Set(ctx context.Context, token string) error {
	if err := c.rdb.Set(ctx, c.key(c.tokenKey), token, 0).Err(); err != nil {
		return fmt.Errorf("set token failed: %w", err)
	}
	return nil
}

// Clear deletes the token and the companion session keys in one round trip.
func (c *Client) Clear(ctx context.Context) error {
	keys := make([]string, 0, len(c.extraKeys)+1)
	keys = append(keys, c.key(c.tokenKey))
	for _, k := range c.extraKeys {
		keys = append(keys, c.key(k))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear session failed: %w", err)
	}
	return nil
}
