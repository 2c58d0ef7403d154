package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis stream reporter. Defaults can be loaded
// via envdecode.
type RedisConfig struct {
	// Addr like "localhost:6379". ENV: FORMS_REDIS_ADDR
	Addr string `env:"FORMS_REDIS_ADDR,default=localhost:6379"`
	// Stream key receiving one entry per violation. ENV: FORMS_REDIS_STREAM
	Stream string `env:"FORMS_REDIS_STREAM,default=formshandler:violations"`
	// MaxLen caps the stream approximately; 0 disables trimming.
	// ENV: FORMS_REDIS_STREAM_MAXLEN
	MaxLen int64 `env:"FORMS_REDIS_STREAM_MAXLEN,default=10000,strict"`
}

const defaultStream = "formshandler:violations"

// Redis appends violations to a Redis stream.
type Redis struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(context.Background()).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	stream := cfg.Stream
	if stream == "" {
		stream = defaultStream
	}
	return &Redis{client: cl, stream: stream, maxLen: cfg.MaxLen}, nil
}

// RedisConfigFromEnv populates RedisConfig with envdecode. Defaults are
// provided via struct tags.
func RedisConfigFromEnv() (RedisConfig, error) {
	var cfg RedisConfig
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return RedisConfig{}, fmt.Errorf("redis config env: %w", err)
	}
	return cfg, nil
}

// NewRedisFromEnv builds a Redis reporter from RedisConfigFromEnv.
func NewRedisFromEnv() (*Redis, error) {
	cfg, err := RedisConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewRedis(cfg)
}

// Close closes the Redis client.
func (r *Redis) Close() error { return r.client.Close() }

// Stream returns the key violations are appended to.
func (r *Redis) Stream() string { return r.stream }

func (r *Redis) Report(ctx context.Context, v Violation) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode violation: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"conn": v.ConnID,
			"kind": string(v.Kind),
			"d":    data,
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd %s: %w", r.stream, err)
	}
	return nil
}

// Recent returns up to n of the newest violations, newest first.
func (r *Redis) Recent(ctx context.Context, n int64) ([]Violation, error) {
	msgs, err := r.client.XRevRangeN(ctx, r.stream, "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("redis xrevrange %s: %w", r.stream, err)
	}
	out := make([]Violation, 0, len(msgs))
	for _, m := range msgs {
		raw, ok := m.Values["d"].(string)
		if !ok {
			return nil, fmt.Errorf("stream entry %s: missing payload", m.ID)
		}
		var v Violation
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("stream entry %s: %w", m.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Trim deletes every entry of the stream.
func (r *Redis) Trim(ctx context.Context) error {
	if err := r.client.Del(ctx, r.stream).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.stream, err)
	}
	return nil
}
