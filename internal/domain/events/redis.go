package events

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/platform/errors"
)

const defaultRedisKey = "dronewatch:events"

// redisStore keeps the log in one list: LPUSH puts the newest at index 0 and
// LTRIM enforces the bound in the same MULTI block.
type redisStore struct {
	client   *redis.Client
	key      string
	capacity int
	now      func() time.Time
}

// NewRedis connects and clears the list key so that no events survive a restart.
func NewRedis(cfg Config, now func() time.Time) (Store, error) {
	if cfg.Redis == nil {
		return nil, errors.New(errors.KindConfig, "events.redis", "redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, errors.New(errors.KindConfig, "events.redis", "redis address required")
	}
	if now == nil {
		now = time.Now
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.KindStorage, "events.redis", "redis ping failed", err)
	}

	key := cfg.Redis.Key
	if key == "" {
		key = defaultRedisKey
	}
	if err := client.Del(ctx, key).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.KindStorage, "events.redis", "reset event list", err)
	}

	return &redisStore{
		client:   client,
		key:      key,
		capacity: cfg.capacity(),
		now:      now,
	}, nil
}

func (s *redisStore) Record(ctx context.Context, result detection.ClassificationResult, frame detection.Frame) (*detection.Event, error) {
	event := buildEvent(result, frame, s.now)
	if event == nil {
		return nil, nil
	}
	data, err := sonic.Marshal(event)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "events.redis.record", "encode event", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.key, data)
		pipe.LTrim(ctx, s.key, 0, int64(s.capacity-1))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "events.redis.record", "append event", err)
	}
	return event, nil
}

func (s *redisStore) List(ctx context.Context) ([]detection.Event, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, int64(s.capacity-1)).Result()
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "events.redis.list", "read event list", err)
	}
	out := make([]detection.Event, 0, len(raw))
	for i, item := range raw {
		var event detection.Event
		if err := sonic.UnmarshalString(item, &event); err != nil {
			return nil, errors.Wrap(errors.KindStorage, "events.redis.list", fmt.Sprintf("decode event %d", i), err)
		}
		out = append(out, event)
	}
	return out, nil
}

func (s *redisStore) Get(ctx context.Context, id string) (detection.Event, error) {
	list, err := s.List(ctx)
	if err != nil {
		return detection.Event{}, err
	}
	for _, event := range list {
		if event.ID == id {
			return event, nil
		}
	}
	return detection.Event{}, ErrNotFound
}

func (s *redisStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return 0, errors.Wrap(errors.KindStorage, "events.redis.len", "read list length", err)
	}
	return int(n), nil
}

// Close drops the list and the connection.
func (s *redisStore) Close(ctx context.Context) error {
	delErr := s.client.Del(ctx, s.key).Err()
	closeErr := s.client.Close()
	if delErr != nil {
		return errors.Wrap(errors.KindStorage, "events.redis.close", "drop event list", delErr)
	}
	return closeErr
}
