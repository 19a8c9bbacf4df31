// Package directory resolves member display names, caching them for a while
// so booking requests do not each hit the person store.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"coworking/backend/internal/cache"
	"coworking/backend/internal/store"
)

const keyPrefix = "person-name:"

type Directory struct {
	people store.PersonDirectory
	cache  cache.Cache
	ttl    time.Duration
	group  singleflight.Group
	log    *slog.Logger
}

func New(people store.PersonDirectory, c cache.Cache, ttl time.Duration, log *slog.Logger) *Directory {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Directory{
		people: people,
		cache:  c,
		ttl:    ttl,
		log:    log.With(slog.String("component", "service.directory")),
	}
}

// PersonName returns the display name of userID. Cache failures fall through
// to the store; store failures are returned.
func (d *Directory) PersonName(ctx context.Context, userID string) (string, error) {
	key := keyPrefix + userID
	if name, ok, err := d.cache.Get(ctx, key); err != nil {
		d.log.Warn("cache read failed", slog.Any("err", err), slog.String("user_id", userID))
	} else if ok {
		return name, nil
	}

	v, err, _ := d.group.Do(userID, func() (any, error) {
		name, err := d.people.PersonName(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("lookup person %s: %w", userID, err)
		}
		if err := d.cache.Set(ctx, key, name, d.ttl); err != nil {
			d.log.Warn("cache write failed", slog.Any("err", err), slog.String("user_id", userID))
		}
		return name, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
