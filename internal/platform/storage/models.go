package storage

import (
	"time"

	"gorm.io/datatypes"
)

// DetectionEventRecord 检测事件表
type DetectionEventRecord struct {
	ID           uint           `gorm:"primaryKey;autoIncrement"`
	EventID      string         `gorm:"column:event_id;uniqueIndex;not null"`
	CreatedAt    time.Time      `gorm:"not null"`
	ObjectType   string         `gorm:"column:object_type;index;not null"`
	Explanation  string         `gorm:"type:text"`
	FrameDataURI string         `gorm:"column:frame_data_uri;type:text"`
	Result       datatypes.JSON `gorm:"type:json"`
}

func (DetectionEventRecord) TableName() string {
	return "detection_events"
}
