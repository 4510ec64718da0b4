package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/radiocms/config"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// GetRedis returns the shared Redis client, or nil when Redis is not
// configured or did not answer the startup ping. Callers fall back to
// in-process state when it is nil.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		cfg := config.Get()
		if cfg.RedisHost == "" {
			return
		}
		rc := redis.NewClient(&redis.Options{
			Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Ping(ctx).Err(); err != nil {
			Sugar.Warnf("redis unavailable at %s, using in-memory stores: %v", rc.Options().Addr, err)
			_ = rc.Close()
			return
		}
		redisClient = rc
	})
	return redisClient
}
