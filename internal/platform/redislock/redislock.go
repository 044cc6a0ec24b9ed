package redislock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

// releaseScript deletes the key only while it still carries our token, so a
// lease that expired and was re-acquired elsewhere is never dropped.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
}

func New(log *logger.Logger, rdb goredis.UniversalClient, prefix string) *Locker {
	if prefix == "" {
		prefix = "lease:"
	}
	return &Locker{
		log:    log.With("service", "RedisLocker"),
		rdb:    rdb,
		prefix: prefix,
	}
}

// Dial connects to addr and pings it before returning.
func Dial(ctx context.Context, log *logger.Logger, addr string) (*Locker, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(log, rdb, ""), nil
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if l == nil || l.rdb == nil {
		return nil, false, fmt.Errorf("redis locker not initialized")
	}
	token, err := newToken()
	if err != nil {
		return nil, false, err
	}
	full := l.prefix + key
	ok, err := l.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, l.rdb, []string{full}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
			l.log.Warn("lease release failed", "key", full, "error", err)
		}
	}
	return release, true, nil
}

func (l *Locker) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Client exposes the underlying connection for health collectors.
func (l *Locker) Client() goredis.UniversalClient { return l.rdb }

func (l *Locker) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}

func newToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
