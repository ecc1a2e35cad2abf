package eventbus

import (
	"time"

	"dronewatch-server-go/internal/domain/detection"
)

// 事件类型定义
const (
	// TopicEventRecorded carries a detection.Event for every appended event.
	TopicEventRecorded = "detection:recorded"
	// TopicAlert carries an AlertData for events that warrant an urgent alert.
	TopicAlert = "detection:alert"
	// TopicDebug carries a detection.DebugEntry for every classify round.
	TopicDebug = "detection:debug"
	// TopicMonitorState carries a MonitorStateData on start and stop.
	TopicMonitorState = "monitor:state"
)

// AlertData 告警事件
type AlertData struct {
	Title   string          `json:"title"`
	Message string          `json:"message"`
	Event   detection.Event `json:"event"`
}

// MonitorStateData 监控状态变更
type MonitorStateData struct {
	Active      bool          `json:"active"`
	Sensitivity int           `json:"sensitivity"`
	Interval    time.Duration `json:"interval"`
	Reason      string        `json:"reason,omitempty"`
	At          time.Time     `json:"at"`
}
