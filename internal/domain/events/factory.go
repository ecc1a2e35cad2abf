package events

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"dronewatch-server-go/internal/platform/errors"
)

// Driver identifiers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Dependencies captures external handles required by certain drivers.
type Dependencies struct {
	SQLiteDB *gorm.DB
	Now      func() time.Time
}

func (d Dependencies) clock() func() time.Time {
	if d.Now != nil {
		return d.Now
	}
	return time.Now
}

// New creates an event store for cfg.Driver (memory when empty).
func New(cfg Config, deps Dependencies) (Store, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(cfg.capacity(), deps.clock()), nil
	case DriverSQLite:
		return NewSQLite(deps.SQLiteDB, cfg, deps.clock())
	case DriverRedis:
		return NewRedis(cfg, deps.clock())
	default:
		return nil, errors.New(errors.KindConfig, "events.new", "unsupported events driver: "+cfg.Driver)
	}
}
