package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wasil/courierbridge/internal/config"
	"go.opentelemetry.io/otel/attribute"
)

func TestLoad(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SMSA_ENABLED", "true")
	t.Setenv("ARAMEX_ENABLED", "false")
	t.Setenv("REFRESH_INTERVAL", "30m")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.False(t, cfg.AramexEnabled)
	assert.True(t, cfg.SMSAEnabled)
	assert.Equal(t, 30*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 6*time.Hour, cfg.RefreshStaleness)
}

func TestAttributes(t *testing.T) {
	cfg := &config.Config{SMSAEnabled: true, AramexEnabled: false, RefreshEnabled: true}

	attrs := cfg.Attributes()

	assert.Contains(t, attrs, attribute.Bool("smsa.enabled", true))
	assert.Contains(t, attrs, attribute.Bool("aramex.enabled", false))
	assert.Contains(t, attrs, attribute.Bool("refresh.enabled", true))
}
