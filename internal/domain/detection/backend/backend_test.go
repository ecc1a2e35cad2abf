package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/platform/config"
	"dronewatch-server-go/internal/platform/errors"
)

func testRequest() detection.Request {
	return detection.Request{
		Instruction: "classify this",
		Frame:       detection.Frame{Data: []byte("abc"), Format: "jpeg"},
		Temperature: 0.1,
		MaxTokens:   128,
		JSON:        true,
	}
}

func TestNewSelectsBackend(t *testing.T) {
	b, err := New(config.BackendConfig{Type: "ollama", ModelName: "llava"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ollama", b.Name())

	b, err = New(config.BackendConfig{Type: "OpenAI", APIKey: "sk-test"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", b.Name())

	_, err = New(config.BackendConfig{Type: "openai"}, nil)
	assert.True(t, errors.IsKind(err, errors.KindConfig))

	_, err = New(config.BackendConfig{Type: "genkit"}, nil)
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}

func TestOllamaComplete(t *testing.T) {
	var captured ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(body, &captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llava","message":{"role":"assistant","content":" {\"objectType\":\"bird\"} "},"done":true}`))
	}))
	defer srv.Close()

	o, err := NewOllama(config.BackendConfig{BaseURL: srv.URL + "/", ModelName: "llava"}, nil, srv.Client())
	require.NoError(t, err)

	text, err := o.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"objectType":"bird"}`, text)

	assert.Equal(t, "llava", captured.Model)
	assert.False(t, captured.Stream)
	assert.Equal(t, "json", captured.Format)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, []string{"YWJj"}, captured.Messages[0].Images)
	assert.Equal(t, "classify this", captured.Messages[0].Content)
	assert.EqualValues(t, 128, captured.Options["num_predict"])
}

func TestOllamaErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "non 2xx", status: http.StatusInternalServerError, body: "model not loaded", wantErr: "500"},
		{name: "error field", status: http.StatusOK, body: `{"error":"model 'llava' not found"}`, wantErr: "not found"},
		{name: "garbage", status: http.StatusOK, body: `<html>`, wantErr: "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			o, err := NewOllama(config.BackendConfig{BaseURL: srv.URL}, nil, srv.Client())
			require.NoError(t, err)
			_, err = o.Complete(context.Background(), testRequest())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOllamaHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	o, err := NewOllama(config.BackendConfig{BaseURL: srv.URL}, nil, srv.Client())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = o.Complete(ctx, testRequest())
	assert.Error(t, err)
}

func TestOpenAIComplete(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"objectType\":\"drone\"}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	o, err := NewOpenAI(config.BackendConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", ModelName: "gpt-4o-mini"}, nil)
	require.NoError(t, err)

	text, err := o.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"objectType":"drone"}`, text)

	assert.Contains(t, body, `"url":"data:image/jpeg;base64,YWJj"`)
	assert.Contains(t, body, `"json_object"`)
	assert.Contains(t, body, `"classify this"`)
}

func TestOpenAINoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	o, err := NewOpenAI(config.BackendConfig{APIKey: "k", BaseURL: srv.URL + "/v1"}, nil)
	require.NoError(t, err)
	_, err = o.Complete(context.Background(), testRequest())
	assert.Error(t, err)
}
