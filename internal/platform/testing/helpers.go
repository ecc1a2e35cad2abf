// Package testing holds fixtures shared by package tests.
package testing

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dronewatch-server-go/internal/platform/config"
	"dronewatch-server-go/internal/platform/logging"
)

// SetupTestConfig returns the default config with log output under a temp dir
// and the directory camera pointed at an empty temp folder.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Log.Level = "DEBUG"
	cfg.Log.Dir = filepath.Join(root, "logs")
	cfg.Log.File = "test.log"
	cfg.Web.Enabled = false
	cfg.Camera.Type = "directory"
	cfg.Camera.Directory = filepath.Join(root, "frames")
	require.NoError(t, os.MkdirAll(cfg.Camera.Directory, 0o755))
	return cfg
}

// SetupTestLogger writes to a temp dir and is closed when the test ends.
func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
		Console:  io.Discard,
		NoColor:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

// PNG encodes a w x h frame with one lit pixel.
func PNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// WritePNG stores a PNG frame at path.
func WritePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, PNG(t, w, h), 0o644))
}
