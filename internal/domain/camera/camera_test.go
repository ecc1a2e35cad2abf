package camera

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/domain/image"
	"dronewatch-server-go/internal/platform/config"
	"dronewatch-server-go/internal/platform/errors"
	platformtesting "dronewatch-server-go/internal/platform/testing"
)

func testPipeline(t *testing.T) *image.Pipeline {
	t.Helper()
	security := config.DefaultConfig().Camera.Security
	p, err := image.NewPipeline(image.Options{Security: &security})
	require.NoError(t, err)
	return p
}

func TestNewSelectsDriver(t *testing.T) {
	cfg := config.DefaultConfig().Camera
	cfg.SnapshotURL = "http://127.0.0.1:1/snapshot.jpg"
	cam, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", cam.Name())

	cfg.Type = "directory"
	cfg.Directory = t.TempDir()
	cam, err = New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "directory", cam.Name())

	cfg.Type = "v4l2"
	_, err = New(cfg, nil)
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}

func TestSnapshotCamera(t *testing.T) {
	payload := platformtesting.PNG(t, 4, 3)
	var status atomic.Int32
	status.Store(http.StatusOK)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := int(status.Load())
		if code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	cam, err := NewSnapshot(SnapshotOptions{URL: srv.URL, Pipeline: testPipeline(t), Client: srv.Client()})
	require.NoError(t, err)

	_, err = cam.ReadFrame(context.Background())
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, cam.Acquire(context.Background()))
	frame, err := cam.ReadFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "png", frame.Format)
	assert.Equal(t, 4, frame.Width)
	assert.Equal(t, 3, frame.Height)

	status.Store(http.StatusServiceUnavailable)
	_, err = cam.ReadFrame(context.Background())
	assert.ErrorIs(t, err, ErrFrameNotReady)
	assert.True(t, errors.IsKind(err, errors.KindCapture))

	require.NoError(t, cam.Release())
	require.NoError(t, cam.Release())
	_, err = cam.ReadFrame(context.Background())
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestSnapshotAcquireFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: ErrPermissionDenied},
		{name: "forbidden", status: http.StatusForbidden, want: ErrPermissionDenied},
		{name: "missing", status: http.StatusNotFound, want: ErrNoDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			cam, err := NewSnapshot(SnapshotOptions{URL: srv.URL, Pipeline: testPipeline(t), Client: srv.Client()})
			require.NoError(t, err)
			assert.ErrorIs(t, cam.Acquire(context.Background()), tt.want)
		})
	}

	cam, err := NewSnapshot(SnapshotOptions{URL: "http://127.0.0.1:1/none", Pipeline: testPipeline(t)})
	require.NoError(t, err)
	assert.ErrorIs(t, cam.Acquire(context.Background()), ErrNoDevice)
}

func TestDirectoryCamera(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), platformtesting.PNG(t, 2, 2), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), platformtesting.PNG(t, 3, 3), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	cam, err := NewDirectory(dir, testPipeline(t), nil)
	require.NoError(t, err)
	require.NoError(t, cam.Acquire(context.Background()))
	defer cam.Release()

	widths := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		frame, err := cam.ReadFrame(context.Background())
		require.NoError(t, err)
		widths = append(widths, frame.Width)
	}
	assert.Equal(t, []int{3, 2, 3}, widths, "frames replay in name order and loop")
}

func TestDirectoryAcquireFailures(t *testing.T) {
	cam, err := NewDirectory(filepath.Join(t.TempDir(), "missing"), testPipeline(t), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, cam.Acquire(context.Background()), ErrNoDevice)

	empty, err := NewDirectory(t.TempDir(), testPipeline(t), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, empty.Acquire(context.Background()), ErrNoDevice)
}

func TestStaticCamera(t *testing.T) {
	cam := NewStatic(detection.Frame{Data: []byte{1}}, detection.Frame{Data: []byte{2}})
	_, err := cam.ReadFrame(context.Background())
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, cam.Acquire(context.Background()))
	boom := stderrors.New("boom")
	cam.FailNext(boom)

	_, err = cam.ReadFrame(context.Background())
	assert.ErrorIs(t, err, boom)
	f, err := cam.ReadFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, f.Data)

	require.NoError(t, cam.Release())
	assert.False(t, cam.Acquired())
	assert.Equal(t, int32(1), cam.Releases.Load())
}
