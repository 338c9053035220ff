package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/annel0/blockbyte/internal/logging"
	"github.com/go-redis/redis/v8"
)

// PresenceConfig параметры подключения к Redis
type PresenceConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Key           string        // Хеш с записями, по умолчанию blockbyte:presence
	TTL           time.Duration // Срок жизни записи без обновления
}

// RedisPresence каталог присутствия в хеше Redis.
// Каждая запись хранит UpdatedAt; весь хеш получает EXPIRE, так что
// каталог упавшего сервера исчезает сам.
type RedisPresence struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisPresence подключается к Redis и проверяет соединение
func NewRedisPresence(config *PresenceConfig) (*RedisPresence, error) {
	if config.Key == "" {
		config.Key = "blockbyte:presence"
	}
	if config.TTL == 0 {
		config.TTL = 30 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.RedisAddr,
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("Redis presence initialized: %s (key %s, ttl %s)", config.RedisAddr, config.Key, config.TTL)
	return &RedisPresence{client: rdb, key: config.Key, ttl: config.TTL}, nil
}

func (r *RedisPresence) Put(ctx context.Context, p Presence) error {
	p.UpdatedAt = time.Now()
	if p.JoinedAt.IsZero() {
		p.JoinedAt = p.UpdatedAt
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("ошибка сериализации присутствия: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.key, p.ID, data)
	pipe.Expire(ctx, r.key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis presence put: %w", err)
	}
	return nil
}

func (r *RedisPresence) Remove(ctx context.Context, id string) error {
	n, err := r.client.HDel(ctx, r.key, id).Result()
	if err != nil {
		return fmt.Errorf("redis presence remove: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisPresence) List(ctx context.Context) ([]Presence, error) {
	values, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis presence list: %w", err)
	}

	now := time.Now()
	out := make([]Presence, 0, len(values))
	var stale []string
	for id, raw := range values {
		var p Presence
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			logging.Warn("Повреждённая запись присутствия %s: %v", id, err)
			stale = append(stale, id)
			continue
		}
		if now.Sub(p.UpdatedAt) > r.ttl {
			stale = append(stale, id)
			continue
		}
		out = append(out, p)
	}
	if len(stale) > 0 {
		r.client.HDel(ctx, r.key, stale...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

func (r *RedisPresence) Close() error {
	return r.client.Close()
}
