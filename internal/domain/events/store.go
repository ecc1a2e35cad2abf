package events

import (
	"context"
	"time"

	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/platform/config"
	"dronewatch-server-go/internal/platform/errors"
)

// DefaultCapacity is how many events the log keeps.
const DefaultCapacity = 50

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New(errors.KindStorage, "events.get", "event not found")

// Store is the bounded, newest-first detection event log.
type Store interface {
	// Record appends an event for result and returns it, or returns nil when
	// the result is not noteworthy (none or error).
	Record(ctx context.Context, result detection.ClassificationResult, frame detection.Frame) (*detection.Event, error)
	// List returns the events newest first. Reading does not consume them.
	List(ctx context.Context) ([]detection.Event, error)
	Get(ctx context.Context, id string) (detection.Event, error)
	Len(ctx context.Context) (int, error)
	Close(ctx context.Context) error
}

// Config describes the store selection parameters.
type Config struct {
	Driver   string
	Capacity int
	Redis    *RedisConfig
	SQLite   *SQLiteConfig
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Key      string
}

// SQLiteConfig names the database to open when no handle is injected.
type SQLiteConfig struct {
	DSN string
}

// FromConfig maps the events section of the service config.
func FromConfig(cfg config.EventsConfig) Config {
	return Config{
		Driver:   cfg.Driver,
		Capacity: cfg.Capacity,
		Redis: &RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
		},
		SQLite: &SQLiteConfig{DSN: cfg.SQLite.DSN},
	}
}

func (c Config) capacity() int {
	if c.Capacity <= 0 {
		return DefaultCapacity
	}
	return c.Capacity
}

// buildEvent returns nil for results that do not produce an event.
func buildEvent(result detection.ClassificationResult, frame detection.Frame, now func() time.Time) *detection.Event {
	result = result.Normalize()
	if !result.ObjectType.Noteworthy() {
		return nil
	}
	event := detection.NewEvent(result, frame, now())
	return &event
}
