// Package prefs persists playback selections across sessions in Redis.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playscope/playkit/internal/metrics"
	"github.com/playscope/playkit/pkg/models"
)

// Store provides preference persistence using Redis
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a new preference store
func NewStore(host string, port int, password string, db int, ttl time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client, ttl: ttl}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Load retrieves the persisted preference blob for a profile. A missing key
// or an unreadable blob yields empty preferences, never an error the caller
// must branch on: invalid stored state is discarded.
func (s *Store) Load(ctx context.Context, profile string) (models.Preferences, error) {
	key := prefKey(profile)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			metrics.PreferenceOpsTotal.WithLabelValues("load", "miss").Inc()
			return models.Preferences{}, nil
		}
		metrics.PreferenceOpsTotal.WithLabelValues("load", "error").Inc()
		return models.Preferences{}, fmt.Errorf("failed to get preferences: %w", err)
	}
	metrics.PreferenceOpsTotal.WithLabelValues("load", "ok").Inc()

	var prefs models.Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		// a corrupt blob is treated as no stored preferences
		return models.Preferences{}, nil
	}

	return prefs, nil
}

// Save writes the preference blob for a profile
func (s *Store) Save(ctx context.Context, profile string, prefs models.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	if err := s.client.Set(ctx, prefKey(profile), data, s.ttl).Err(); err != nil {
		metrics.PreferenceOpsTotal.WithLabelValues("save", "error").Inc()
		return err
	}
	metrics.PreferenceOpsTotal.WithLabelValues("save", "ok").Inc()
	return nil
}

// Clear removes the stored blob for a profile
func (s *Store) Clear(ctx context.Context, profile string) error {
	return s.client.Del(ctx, prefKey(profile)).Err()
}

// Ping checks store health
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func prefKey(profile string) string {
	return fmt.Sprintf("playkit:prefs:%s", profile)
}
