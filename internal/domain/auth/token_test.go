package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronewatch-server-go/internal/platform/errors"
)

func TestNewAuthTokenRequiresSecret(t *testing.T) {
	_, err := NewAuthToken("")
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestGenerateAndVerify(t *testing.T) {
	at, err := NewAuthToken("s3cret")
	require.NoError(t, err)

	token, err := at.GenerateToken("operator")
	require.NoError(t, err)

	subject, err := at.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", subject)
}

func TestVerifyRejects(t *testing.T) {
	at, err := NewAuthToken("s3cret")
	require.NoError(t, err)
	other, err := NewAuthToken("different")
	require.NoError(t, err)

	foreign, err := other.GenerateToken("operator")
	require.NoError(t, err)

	expiring, err := NewAuthToken("s3cret")
	require.NoError(t, err)
	expiring.WithTTL(time.Minute)
	expiring.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	expired, err := expiring.GenerateToken("operator")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: foreign},
		{name: "expired", token: expired},
		{name: "empty", token: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := at.VerifyToken(tt.token)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindTransport))
		})
	}
}
