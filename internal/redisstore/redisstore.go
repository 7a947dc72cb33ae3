// Package redisstore is the Redis backend of the local files index. Each
// namespace is one hash under a shared key prefix: {prefix}:files and
// {prefix}:meta, plus {prefix}:metadata for scheduler state.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"localfiles/internal/apperr"
	"localfiles/internal/logging"
	"localfiles/internal/metrics"
)

const (
	// Backend is the metrics label for this store.
	Backend = "redis"

	// DefaultPrefix namespaces all keys.
	DefaultPrefix = "localfiles"

	KeySeparator = ":"
	ScanCount    = 1000

	metadataLastScanPass = "last_scan_pass"
	pingTimeout          = 5 * time.Second
)

// Store owns the Redis client.
type Store struct {
	cl     *redis.Client
	prefix string
}

// New connects to the server at redisURL and verifies it with PING.
func New(ctx context.Context, redisURL, prefix string) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}

	cl := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := cl.Ping(pingCtx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("cannot reach redis at %s: %w", opt.Addr, err)
	}

	logging.Info("Connected to redis at %s (db %d, prefix %q)", opt.Addr, opt.DB, prefix)
	return &Store{cl: cl, prefix: prefix}, nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.cl.Close()
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += KeySeparator + p
	}
	return k
}

// Files returns the path -> record namespace.
func (s *Store) Files() *Hash {
	return &Hash{cl: s.cl, key: s.key("files"), ns: "files"}
}

// Meta returns the inverted key -> path set namespace.
func (s *Store) Meta() *Hash {
	return &Hash{cl: s.cl, key: s.key("meta"), ns: "meta"}
}

// GetLastScanPass returns the start time of the last completed scan pass.
func (s *Store) GetLastScanPass(ctx context.Context) (time.Time, error) {
	val, err := s.cl.HGet(ctx, s.key("metadata"), metadataLastScanPass).Result()
	if errors.Is(err, redis.Nil) || (err == nil && val == "") {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot get last scan pass: %w", err)
	}
	return time.Parse(time.RFC3339, val)
}

// SetLastScanPass stores the start time of the last completed scan pass.
func (s *Store) SetLastScanPass(ctx context.Context, t time.Time) error {
	val := ""
	if !t.IsZero() {
		val = t.UTC().Format(time.RFC3339)
	}
	return s.cl.HSet(ctx, s.key("metadata"), metadataLastScanPass, val).Err()
}

// Hash is one namespace stored as a Redis hash. It implements index.KV.
type Hash struct {
	cl  *redis.Client
	key string
	ns  string
}

// Get implements index.KV.
func (h *Hash) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	val, err := h.cl.HGet(ctx, h.key, key).Bytes()
	if errors.Is(err, redis.Nil) {
		recordOp(h.ns+".get", start, nil)
		return nil, apperr.NotFound("redis."+h.ns+".get", key)
	}
	recordOp(h.ns+".get", start, err)
	if err != nil {
		return nil, apperr.Internal("redis."+h.ns+".get", err)
	}
	return val, nil
}

// Put implements index.KV.
func (h *Hash) Put(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := h.cl.HSet(ctx, h.key, key, value).Err()
	recordOp(h.ns+".put", start, err)
	if err != nil {
		return apperr.Internal("redis."+h.ns+".put", err)
	}
	return nil
}

// Scan implements index.KV with HSCAN. Order is unspecified.
func (h *Hash) Scan(ctx context.Context, fn func(key string, value []byte) error) error {
	start := time.Now()
	var err error
	defer func() { recordOp(h.ns+".scan", start, err) }()

	var cursor uint64
	for {
		var kvs []string
		kvs, cursor, err = h.cl.HScan(ctx, h.key, cursor, "", ScanCount).Result()
		if err != nil {
			return apperr.Internal("redis."+h.ns+".scan", err)
		}
		for i := 0; i+1 < len(kvs); i += 2 {
			if err = fn(kvs[i], []byte(kvs[i+1])); err != nil {
				return err
			}
		}
		if cursor == 0 {
			return nil
		}
	}
}

// Len returns the number of fields in the hash.
func (h *Hash) Len(ctx context.Context) (int64, error) {
	return h.cl.HLen(ctx, h.key).Result()
}

func recordOp(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreOperationsTotal.WithLabelValues(Backend, operation, status).Inc()
	metrics.StoreOperationDuration.WithLabelValues(Backend, operation).Observe(time.Since(start).Seconds())
}
