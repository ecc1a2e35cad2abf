package events

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/platform/config"
	"dronewatch-server-go/internal/platform/errors"
)

type storeFactory func(t *testing.T, capacity int) Store

func drivers(t *testing.T) map[string]storeFactory {
	t.Helper()
	return map[string]storeFactory{
		DriverMemory: func(t *testing.T, capacity int) Store {
			return NewMemory(capacity, nil)
		},
		DriverRedis: func(t *testing.T, capacity int) Store {
			mr, err := miniredis.Run()
			require.NoError(t, err)
			t.Cleanup(mr.Close)
			store, err := New(Config{Driver: DriverRedis, Capacity: capacity, Redis: &RedisConfig{Addr: mr.Addr()}}, Dependencies{})
			require.NoError(t, err)
			return store
		},
		DriverSQLite: func(t *testing.T, capacity int) Store {
			store, err := New(Config{Driver: DriverSQLite, Capacity: capacity}, Dependencies{})
			require.NoError(t, err)
			return store
		},
	}
}

func result(objectType string, explanation string) detection.ClassificationResult {
	return detection.ClassificationResult{ObjectType: detection.ObjectType(objectType), Explanation: explanation}
}

func TestStoreSkipsNoneAndError(t *testing.T) {
	for name, factory := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t, DefaultCapacity)
			defer store.Close(ctx)

			for _, label := range []string{"none", "error", "NONE", " Error "} {
				for _, explanation := range []string{"", "Error processing frame: timeout"} {
					event, err := store.Record(ctx, result(label, explanation), detection.Frame{})
					require.NoError(t, err)
					assert.Nil(t, event, "label %q", label)
				}
			}
			n, err := store.Len(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestStoreBoundAndOrder(t *testing.T) {
	for name, factory := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t, DefaultCapacity)
			defer store.Close(ctx)

			const total = 57
			ids := make([]string, 0, total)
			for i := 0; i < total; i++ {
				event, err := store.Record(ctx, result("bird", fmt.Sprintf("bird #%d", i)), detection.Frame{Data: []byte{byte(i)}, Format: "jpeg"})
				require.NoError(t, err)
				require.NotNil(t, event)
				ids = append(ids, event.ID)
			}

			list, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, DefaultCapacity)
			for i, event := range list {
				assert.Equal(t, ids[total-1-i], event.ID, "position %d", i)
			}
			assert.Equal(t, fmt.Sprintf("bird #%d", total-1), list[0].Explanation)

			again, err := store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, list, again, "listing does not consume events")

			n, err := store.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, DefaultCapacity, n)

			_, err = store.Get(ctx, ids[0])
			assert.ErrorIs(t, err, ErrNotFound, "evicted event")
			got, err := store.Get(ctx, ids[total-1])
			require.NoError(t, err)
			assert.Equal(t, list[0], got)
		})
	}
}

func TestStoreEventFields(t *testing.T) {
	for name, factory := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t, 5)
			defer store.Close(ctx)

			frame := detection.Frame{Data: []byte{0xFF, 0xD8}, Format: "jpeg"}
			event, err := store.Record(ctx, detection.ClassificationResult{DroneDetected: false, ObjectType: "Drone", Explanation: "quadcopter"}, frame)
			require.NoError(t, err)
			require.NotNil(t, event)

			assert.Equal(t, detection.ObjectDrone, event.ObjectType)
			assert.True(t, event.DroneDetected())
			assert.Equal(t, frame.DataURI(), event.FrameDataURI)

			got, err := store.Get(ctx, event.ID)
			require.NoError(t, err)
			assert.Equal(t, event.ID, got.ID)
			assert.Equal(t, event.ObjectType, got.ObjectType)
			assert.Equal(t, event.Explanation, got.Explanation)
			assert.Equal(t, event.FrameDataURI, got.FrameDataURI)
			assert.WithinDuration(t, event.CreatedAt, got.CreatedAt, time.Millisecond)
		})
	}
}

func TestStoreConcurrentRecord(t *testing.T) {
	for name, factory := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t, 20)
			defer store.Close(ctx)

			var wg sync.WaitGroup
			for i := 0; i < 40; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := store.Record(ctx, result("plane", ""), detection.Frame{})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			list, err := store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 20)
			seen := map[string]bool{}
			for _, e := range list {
				assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
				seen[e.ID] = true
			}
		})
	}
}

func TestRedisStoreResetsOnOpenAndClose(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	_, err = mr.Lpush("dronewatch:events", `{"id":"evt-stale"}`)
	require.NoError(t, err)

	store, err := NewRedis(Config{Capacity: 3, Redis: &RedisConfig{Addr: mr.Addr()}}, nil)
	require.NoError(t, err)
	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "events from an earlier process are dropped")

	_, err = store.Record(ctx, result("drone", ""), detection.Frame{})
	require.NoError(t, err)
	require.NoError(t, store.Close(ctx))
	assert.False(t, mr.Exists("dronewatch:events"))
}

func TestRedisStoreRequiresAddress(t *testing.T) {
	_, err := NewRedis(Config{Redis: &RedisConfig{}}, nil)
	assert.True(t, errors.IsKind(err, errors.KindConfig))

	_, err = NewRedis(Config{Redis: &RedisConfig{Addr: "127.0.0.1:1"}}, nil)
	assert.True(t, errors.IsKind(err, errors.KindStorage))
}

func TestFactory(t *testing.T) {
	store, err := New(FromConfig(config.DefaultConfig().Events), Dependencies{})
	require.NoError(t, err)
	_, ok := store.(*memoryStore)
	assert.True(t, ok)

	_, err = New(Config{Driver: "postgres"}, Dependencies{})
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}
