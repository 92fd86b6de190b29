package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/voter-registration/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c, err := config.New()
	require.NoError(t, err)

	require.Equal(t, "Voter Registration", c.GetAppName())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, 100*time.Millisecond, c.GetReconcileDebounce())
	require.Equal(t, 3*time.Second, c.GetPasswordUpdateWindow())
	require.Equal(t, time.Minute, c.GetPasswordResetInterval())
	require.Empty(t, c.GetMetricsAddr())
}

func TestNew_FromEnv(t *testing.T) {
	t.Setenv("IDENTITY_URL", "https://auth.example.com/auth/v1")
	t.Setenv("IDENTITY_API_KEY", "anon-key")
	t.Setenv("RECONCILE_DEBOUNCE", "250ms")
	t.Setenv("PASSWORD_UPDATE_WINDOW", "5s")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/voters")

	c, err := config.New()
	require.NoError(t, err)

	require.Equal(t, "https://auth.example.com/auth/v1", c.GetIdentityURL())
	require.Equal(t, "anon-key", c.GetIdentityAPIKey())
	require.Equal(t, 250*time.Millisecond, c.GetReconcileDebounce())
	require.Equal(t, 5*time.Second, c.GetPasswordUpdateWindow())
	require.Equal(t, "postgres://u:p@db:5432/voters", c.GetDatabaseURL())
}

func TestNew_InvalidDuration(t *testing.T) {
	t.Setenv("RECONCILE_DEBOUNCE", "soon")

	_, err := config.New()
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse env")
}
