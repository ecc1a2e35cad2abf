package storage

import "gorm.io/gorm"

// Migrations returns the schema history in order.
func Migrations() []Migration {
	return []Migration{
		migration001DetectionEvents{},
	}
}

type migration001DetectionEvents struct{}

func (migration001DetectionEvents) Version() string { return "001_detection_events" }

func (migration001DetectionEvents) Description() string {
	return "Create the bounded detection event log"
}

func (migration001DetectionEvents) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS detection_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id VARCHAR(64) NOT NULL UNIQUE,
			created_at DATETIME NOT NULL,
			object_type VARCHAR(64) NOT NULL,
			explanation TEXT,
			frame_data_uri TEXT,
			result JSON
		)
	`).Error; err != nil {
		return err
	}
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_detection_events_object_type ON detection_events(object_type)`).Error
}
