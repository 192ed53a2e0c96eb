package directory

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/logger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
)

// Cache key prefixes of the two directories.
const (
	PrefixInternal = "internal"
	PrefixExternal = "external"
)

// CachedDirectory is a read-through Redis cache in front of another Directory.
// Cache failures fall through to the underlying directory; misses are not cached.
type CachedDirectory struct {
	next   Directory
	redis  redis.Cmdable
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

// NewCachedDirectory caches next under "user:<prefix>:<id>" keys.
func NewCachedDirectory(next Directory, rdb redis.Cmdable, prefix string, ttl time.Duration, log logger.Logger) *CachedDirectory {
	prefix = strings.Trim(prefix, ":")
	return &CachedDirectory{
		next:   next,
		redis:  rdb,
		prefix: prefix,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"directory": prefix}),
	}
}

func (d *CachedDirectory) key(userID string) string {
	return "user:" + d.prefix + ":" + userID
}

func (d *CachedDirectory) GetUser(ctx context.Context, userID string) (*models.UserAccount, error) {
	cacheKey := d.key(userID)

	val, err := d.redis.Get(ctx, cacheKey).Result()
	switch {
	case err == nil:
		var u models.UserAccount
		if jsonErr := json.Unmarshal([]byte(val), &u); jsonErr == nil {
			return &u, nil
		}
		d.logger.Warn("discarding unreadable cached user", map[string]interface{}{"key": cacheKey})
	case !stderrors.Is(err, redis.Nil):
		d.logger.Warn("user cache read failed", map[string]interface{}{"key": cacheKey, "error": err})
	}

	u, err := d.next.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(u)
	if err == nil {
		if err := d.redis.Set(ctx, cacheKey, data, d.ttl).Err(); err != nil {
			d.logger.Warn("user cache write failed", map[string]interface{}{"key": cacheKey, "error": err})
		}
	}
	return u, nil
}
