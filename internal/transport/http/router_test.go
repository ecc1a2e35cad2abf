package httptransport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronewatch-server-go/internal/domain/auth"
	"dronewatch-server-go/internal/platform/errors"
	"dronewatch-server-go/internal/platform/observability"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: errors.New(errors.KindConfig, "op", "bad"), want: http.StatusBadRequest},
		{err: errors.New(errors.KindDomain, "op", "busy"), want: http.StatusConflict},
		{err: errors.New(errors.KindCapture, "op", "no camera"), want: http.StatusServiceUnavailable},
		{err: errors.New(errors.KindBackend, "op", "down"), want: http.StatusBadGateway},
		{err: errors.New(errors.KindStorage, "op", "disk"), want: http.StatusInternalServerError},
		{err: http.ErrHandlerTimeout, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusForError(tt.err), tt.err.Error())
	}
}

func TestBearerAuth(t *testing.T) {
	tokens, err := auth.NewAuthToken("secret")
	require.NoError(t, err)
	valid, err := tokens.GenerateToken("operator")
	require.NoError(t, err)

	router := Build(Options{AuthMiddleware: BearerAuth(tokens, nil)})
	router.Secured.GET("/whoami", func(c *gin.Context) {
		RespondSuccess(c, http.StatusOK, c.GetString(ContextSubjectKey), "")
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid", header: "Bearer " + valid, want: http.StatusOK},
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Token " + valid, want: http.StatusUnauthorized},
		{name: "tampered", header: "Bearer " + valid + "x", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.Engine.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"data":"operator"`)
			}
		})
	}
}

func TestSecuredEqualsAPIWithoutAuth(t *testing.T) {
	router := Build(Options{})
	assert.Same(t, router.API, router.Secured)
}

func TestObservabilityMiddlewareRecordsMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	router := Build(Options{Metrics: metrics})
	router.API.GET("/ping", func(c *gin.Context) { RespondSuccess(c, http.StatusOK, nil, "pong") })

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "/api/ping", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))
}
