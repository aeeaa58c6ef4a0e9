package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"docqa/internal/domain"
)

const keyPrefix = "session:"

// Store keeps session object lists in redis as JSON values with a TTL, so
// multiple server instances share one session space.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func New(cfg Config) *Store {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Store{client: client, ttl: ttl}
}

// Ping verifies connectivity at startup.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) SetObjects(ctx context.Context, id string, list []domain.Object) error {
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+id, data, s.ttl).Err()
}

func (s *Store) Objects(ctx context.Context, id string) ([]domain.Object, bool, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var list []domain.Object
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, false, err
	}
	return list, true, nil
}
