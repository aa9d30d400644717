package settings

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	trackingCacheKey = "settings:tracking"
	trackingCacheTTL = 30 * time.Second
)

// Store reads settings from Postgres with a short-lived Redis cache in front,
// so the polling worker can snapshot configuration every tick without a
// database round trip.
type Store struct {
	db    *gorm.DB
	cache *goredis.Client
}

func NewStore(db *gorm.DB, cache *goredis.Client) *Store {
	return &Store{db: db, cache: cache}
}

func (s *Store) Tracking(ctx context.Context) (TrackingConfig, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, trackingCacheKey).Result(); err == nil {
			var cfg TrackingConfig
			if err := json.Unmarshal([]byte(data), &cfg); err == nil {
				return cfg, nil
			}
		}
	}

	var rows []Setting
	if err := s.db.WithContext(ctx).
		Where("key LIKE ?", "email_tracking.%").
		Find(&rows).Error; err != nil {
		return TrackingConfig{}, err
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	cfg := parseConfig(values)

	if s.cache != nil {
		if data, err := json.Marshal(cfg); err == nil {
			s.cache.Set(ctx, trackingCacheKey, data, trackingCacheTTL)
		}
	}
	return cfg, nil
}

// Put upserts one setting and invalidates the cached snapshot.
func (s *Store) Put(ctx context.Context, key, value string) error {
	setting := Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Save(&setting).Error; err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Del(ctx, trackingCacheKey)
	}
	return nil
}
