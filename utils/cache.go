package utils

import (
	"context"
	"encoding/json"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// CacheGetJSON loads key into v. It reports false on a miss, a decode error or
// when Redis is disabled.
func CacheGetJSON(key string, v interface{}) bool {
	rc := GetRedis()
	if rc == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		Sugar.Debugf("cache miss key=%s err=%v", key, err)
		return false
	}
	return json.Unmarshal(b, v) == nil
}

// CacheSetJSON marshals v and stores it under key.
func CacheSetJSON(key string, v interface{}, ttl time.Duration) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Set(ctx, key, b, ttl).Err(); err != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
func InvalidateByPrefix(prefix string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ {
		keys, next, err := rc.Scan(ctx, cursor, prefix+"*", 500).Result()
		if err != nil {
			Sugar.Warnf("cache invalidate scan failed prefix=%s err=%v", prefix, err)
			return
		}
		if len(keys) > 0 {
			if err := rc.Del(ctx, keys...).Err(); err != nil {
				Sugar.Warnf("cache invalidate del failed prefix=%s err=%v", prefix, err)
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
