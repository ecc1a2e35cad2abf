package image

import "sync/atomic"

// ValidationResult captures the outcome of frame validation.
type ValidationResult struct {
	IsValid      bool
	Format       string
	Width        int
	Height       int
	FileSize     int64
	Error        error
	SecurityRisk string
}

// Stats counts frames seen by a pipeline.
type Stats struct {
	Processed atomic.Int64
	Rejected  atomic.Int64
	Flagged   atomic.Int64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Processed int64 `json:"processed"`
	Rejected  int64 `json:"rejected"`
	Flagged   int64 `json:"flagged"`
}

func (s *Stats) snapshot() Snapshot {
	return Snapshot{
		Processed: s.Processed.Load(),
		Rejected:  s.Rejected.Load(),
		Flagged:   s.Flagged.Load(),
	}
}
