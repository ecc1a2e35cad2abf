package diagnostics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronewatch-server-go/internal/domain/detection"
)

type countingBus struct{ n int }

func (c *countingBus) PublishAsync(string, ...interface{}) { c.n++ }

func TestLogKeepsNewestFirst(t *testing.T) {
	bus := &countingBus{}
	log := NewLog(3, bus, "detection:debug")

	for i := 0; i < 5; i++ {
		log.Record(detection.DebugEntry{Raw: fmt.Sprintf("reply %d", i)})
	}

	entries := log.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "reply 4", entries[0].Raw)
	assert.Equal(t, "reply 2", entries[2].Raw)
	assert.Equal(t, 5, bus.n)

	log.Clear()
	assert.Empty(t, log.Entries())
}

func TestLogDefaultCapacity(t *testing.T) {
	log := NewLog(0, nil, "")
	for i := 0; i < DefaultCapacity+10; i++ {
		log.Record(detection.DebugEntry{})
	}
	assert.Len(t, log.Entries(), DefaultCapacity)
}

var _ detection.DebugSink = (*Log)(nil)
