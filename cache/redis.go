package cache

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	entryVersionV1 = 1
	maxValueLen    = 1 << 20
)

// Redis stores entries as versioned binary records under a key prefix.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisOption customizes a Redis backend.
type RedisOption func(*Redis)

// WithRedisPrefix sets the key prefix (default "authflow:tok").
func WithRedisPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithRedisTTL expires entries after ttl. Zero keeps them forever.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// NewRedis wraps client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client, prefix: "authflow:tok"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) key(key string) string {
	return r.prefix + ":" + key
}

// Get implements Cache. Undecodable records return ErrCorrupt.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	value, err := decodeEntry(raw)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return value, true, nil
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	encoded, err := encodeEntry(value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(key), encoded, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Remove implements Cache.
func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// entry layout: version(1) | updatedAt unix(8) | len(4) | value
func encodeEntry(value string) ([]byte, error) {
	if len(value) > maxValueLen {
		return nil, ErrValueTooLarge
	}

	var buf bytes.Buffer
	buf.Grow(13 + len(value))
	buf.WriteByte(entryVersionV1)
	_ = binary.Write(&buf, binary.BigEndian, time.Now().Unix())
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(value)))
	buf.WriteString(value)
	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (string, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	if version != entryVersionV1 {
		return "", fmt.Errorf("unsupported entry version %d", version)
	}

	var updatedAt int64
	if err := binary.Read(reader, binary.BigEndian, &updatedAt); err != nil {
		return "", err
	}
	var n uint32
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if n > maxValueLen || int(n) != reader.Len() {
		return "", errors.New("entry length mismatch")
	}

	value := make([]byte, n)
	if _, err := io.ReadFull(reader, value); err != nil {
		return "", err
	}
	return string(value), nil
}
