/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

const (
	// localCacheSize is the number of entries kept in the in-process TinyLFU layer.
	localCacheSize = 128000
	localCacheTTL  = time.Minute

	colorKeyPrefix = "colormap_"
)

// ColorCache persists the per-user reason -> color map used by the report
// view as a Redis hash with no expiry. Reads go through a local TinyLFU
// layer. A locally cached map can only lag Redis by missing reasons, since an
// assigned color is never changed.
type ColorCache struct {
	client redis.UniversalClient
	local  *cache.Cache
}

func NewColorCache(client redis.UniversalClient) *ColorCache {
	return &ColorCache{
		client: client,
		local: cache.New(&cache.Options{
			LocalCache: cache.NewTinyLFU(localCacheSize, localCacheTTL),
		}),
	}
}

// ColorKey is the storage key of a user's color map.
func ColorKey(userID string) string {
	return colorKeyPrefix + userID
}

// GetColors returns the stored map, or an empty map when nothing is stored yet.
func (c *ColorCache) GetColors(ctx context.Context, userID string) (map[string]string, error) {
	colors := make(map[string]string)
	err := c.local.Get(ctx, ColorKey(userID), &colors)
	if err == nil {
		return colors, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		return nil, err
	}

	colors, err = c.client.HGetAll(ctx, ColorKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	if err := c.remember(ctx, userID, colors); err != nil {
		return nil, err
	}
	return colors, nil
}

// AddColors stores each color whose reason has none yet and returns the full
// stored map. A reason that already has a color keeps it.
func (c *ColorCache) AddColors(ctx context.Context, userID string, colors map[string]string) (map[string]string, error) {
	key := ColorKey(userID)
	var stored *redis.MapStringStringCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for reason, color := range colors {
			pipe.HSetNX(ctx, key, reason, color)
		}
		stored = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := c.remember(ctx, userID, stored.Val()); err != nil {
		return nil, err
	}
	return stored.Val(), nil
}

func (c *ColorCache) remember(ctx context.Context, userID string, colors map[string]string) error {
	if len(colors) == 0 {
		return nil
	}
	return c.local.Set(&cache.Item{
		Ctx:   ctx,
		Key:   ColorKey(userID),
		Value: colors,
	})
}
