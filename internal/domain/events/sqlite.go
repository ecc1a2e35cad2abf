package events

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/platform/errors"
	"dronewatch-server-go/internal/platform/storage"
)

type sqliteStore struct {
	db       *gorm.DB
	ownsDB   bool
	capacity int
	now      func() time.Time
}

// NewSQLite uses db, or opens cfg.SQLite.DSN (a private in-memory database by
// default). The table is emptied on open so no events survive a restart.
func NewSQLite(db *gorm.DB, cfg Config, now func() time.Time) (Store, error) {
	owns := false
	if db == nil {
		dsn := ""
		if cfg.SQLite != nil {
			dsn = cfg.SQLite.DSN
		}
		opened, err := storage.Open(dsn)
		if err != nil {
			return nil, err
		}
		db = opened
		owns = true
	}
	if now == nil {
		now = time.Now
	}

	s := &sqliteStore{db: db, ownsDB: owns, capacity: cfg.capacity(), now: now}
	if err := s.truncate(context.Background()); err != nil {
		if owns {
			_ = storage.Close(db)
		}
		return nil, err
	}
	return s, nil
}

func (s *sqliteStore) Record(ctx context.Context, result detection.ClassificationResult, frame detection.Frame) (*detection.Event, error) {
	event := buildEvent(result, frame, s.now)
	if event == nil {
		return nil, nil
	}
	raw, err := sonic.Marshal(result.Normalize())
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "events.sqlite.record", "encode result", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := &storage.DetectionEventRecord{
			EventID:      event.ID,
			CreatedAt:    event.CreatedAt,
			ObjectType:   string(event.ObjectType),
			Explanation:  event.Explanation,
			FrameDataURI: event.FrameDataURI,
			Result:       datatypes.JSON(raw),
		}
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		keep := tx.Model(&storage.DetectionEventRecord{}).Select("id").Order("id DESC").Limit(s.capacity)
		return tx.Where("id NOT IN (?)", keep).Delete(&storage.DetectionEventRecord{}).Error
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "events.sqlite.record", "append event", err)
	}
	return event, nil
}

func (s *sqliteStore) List(ctx context.Context) ([]detection.Event, error) {
	var records []storage.DetectionEventRecord
	err := s.db.WithContext(ctx).Order("id DESC").Limit(s.capacity).Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "events.sqlite.list", "query events", err)
	}
	out := make([]detection.Event, 0, len(records))
	for _, r := range records {
		out = append(out, toEvent(r))
	}
	return out, nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (detection.Event, error) {
	var record storage.DetectionEventRecord
	err := s.db.WithContext(ctx).Where("event_id = ?", id).First(&record).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return detection.Event{}, ErrNotFound
	}
	if err != nil {
		return detection.Event{}, errors.Wrap(errors.KindStorage, "events.sqlite.get", "query event", err)
	}
	return toEvent(record), nil
}

func (s *sqliteStore) Len(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&storage.DetectionEventRecord{}).Count(&n).Error; err != nil {
		return 0, errors.Wrap(errors.KindStorage, "events.sqlite.len", "count events", err)
	}
	return int(n), nil
}

// Close empties the table and closes the database when this store opened it.
func (s *sqliteStore) Close(ctx context.Context) error {
	err := s.truncate(ctx)
	if s.ownsDB {
		if closeErr := storage.Close(s.db); err == nil {
			err = closeErr
		}
	}
	return err
}

func (s *sqliteStore) truncate(ctx context.Context) error {
	err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&storage.DetectionEventRecord{}).Error
	if err != nil {
		return errors.Wrap(errors.KindStorage, "events.sqlite.truncate", "clear events", err)
	}
	return nil
}

func toEvent(r storage.DetectionEventRecord) detection.Event {
	return detection.Event{
		ID:           r.EventID,
		CreatedAt:    r.CreatedAt.UTC(),
		ObjectType:   detection.ObjectType(r.ObjectType),
		Explanation:  r.Explanation,
		FrameDataURI: r.FrameDataURI,
	}
}
