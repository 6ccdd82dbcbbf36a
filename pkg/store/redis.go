package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	pmerrors "github.com/logflow/pmdash/pkg/errors"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	// Address is the Redis server address (e.g., "localhost:6379")
	Address  string
	Password string
	Database int

	// Prefix is prepended to all keys (e.g., "pmdash:")
	Prefix string

	Timeout time.Duration
}

// DefaultRedisConfig returns defaults for address.
func DefaultRedisConfig(address string) RedisConfig {
	return RedisConfig{
		Address: address,
		Prefix:  "pmdash:",
		Timeout: 5 * time.Second,
	}
}

// Redis shares the active snapshot between server replicas. The encoded
// log lives under one key and its snapshot ID under another; a replica
// decodes each version once and keeps it.
type Redis struct {
	cfg    RedisConfig
	client *redis.Client

	mu     sync.Mutex
	cached *Snapshot
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, pmerrors.Wrap(err, pmerrors.CodeStoreFailed, "failed to connect to Redis").
			WithContext("address", cfg.Address)
	}

	return &Redis{cfg: cfg, client: client}, nil
}

func (r *Redis) dataKey() string    { return r.cfg.Prefix + "snapshot:data" }
func (r *Redis) versionKey() string { return r.cfg.Prefix + "snapshot:version" }

// Current returns the active snapshot, decoding it only when the version
// changed since the last call.
func (r *Redis) Current(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	version, err := r.client.Get(ctx, r.versionKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSnapshot
		}
		return nil, pmerrors.Wrap(err, pmerrors.CodeStoreFailed, "failed to read snapshot version")
	}

	r.mu.Lock()
	cached := r.cached
	r.mu.Unlock()
	if cached != nil && cached.ID == version {
		return cached, nil
	}

	data, err := r.client.Get(ctx, r.dataKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSnapshot
		}
		return nil, pmerrors.Wrap(err, pmerrors.CodeStoreFailed, "failed to read snapshot")
	}

	s, err := Decode(data)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cached = s
	r.mu.Unlock()
	return s, nil
}

// Replace publishes s; data and version are written in one transaction.
func (r *Redis) Replace(ctx context.Context, s *Snapshot) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.dataKey(), data, 0)
		pipe.Set(ctx, r.versionKey(), s.ID, 0)
		return nil
	})
	if err != nil {
		return pmerrors.Wrap(err, pmerrors.CodeStoreFailed, "failed to publish snapshot").
			WithContext("snapshot", s.ID)
	}

	r.mu.Lock()
	r.cached = s
	r.mu.Unlock()
	return nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Encode serializes a snapshot with msgpack.
func Encode(s *Snapshot) ([]byte, error) {
	data, err := msgpack.Marshal(s)
	if err != nil {
		return nil, pmerrors.Wrap(err, pmerrors.CodeStoreFailed, "failed to encode snapshot")
	}
	return data, nil
}

// Decode parses a snapshot produced by Encode.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, pmerrors.Wrap(err, pmerrors.CodeStoreFailed, "failed to decode snapshot")
	}

	// msgpack restores times in the local zone
	s.LoadedAt = s.LoadedAt.UTC()
	if s.Log != nil {
		for i := range s.Log.Events {
			s.Log.Events[i].Timestamp = s.Log.Events[i].Timestamp.UTC()
		}
	}
	return &s, nil
}
