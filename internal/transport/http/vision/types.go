package vision

import (
	"dronewatch-server-go/internal/domain/detection"
)

// ClassifyData 表示单帧分类结果在 data 字段中的结构
type ClassifyData struct {
	Result  detection.ClassificationResult `json:"result"`
	Event   *detection.Event               `json:"event,omitempty"`
	Alerted bool                           `json:"alerted"`
	Width   int                            `json:"width"`
	Height  int                            `json:"height"`
	Format  string                         `json:"format"`
}

// StatusData Vision状态响应结构
type StatusData struct {
	Backend string `json:"backend"`
	Ready   bool   `json:"ready"`
}
