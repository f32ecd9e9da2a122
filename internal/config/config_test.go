package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	viper.Reset()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
matching:
  enable_ai_matcher: false
approval:
  fallback_approver: controller@example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/invoicerobot.db", cfg.Database.Path)
	assert.True(t, cfg.Netvisor.UseMock)
	assert.Equal(t, 0.9, cfg.Matching.ConfidenceThreshold)
	assert.Equal(t, 7*24*time.Hour, cfg.Approval.RequestTTL)
	assert.Equal(t, 5*time.Minute, cfg.Worker.AnalyzeInterval)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
matching:
  confidence_threshold: 0.8
  enable_ai_matcher: false
approval:
  fallback_approver: controller@example.com
  request_ttl: 48h
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 0.8, cfg.Matching.ConfidenceThreshold)
	assert.Equal(t, 48*time.Hour, cfg.Approval.RequestTTL)
}

func TestLoad_AIMatcherRequiresAPIKey(t *testing.T) {
	path := writeConfig(t, `
matching:
  enable_ai_matcher: true
approval:
  fallback_approver: controller@example.com
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai.api_key")
}

func TestLoad_ThresholdOutOfRange(t *testing.T) {
	path := writeConfig(t, `
matching:
  confidence_threshold: 1.5
  enable_ai_matcher: false
approval:
  fallback_approver: controller@example.com
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confidence_threshold")
}

func TestLoad_MissingFallbackApprover(t *testing.T) {
	path := writeConfig(t, `
matching:
  enable_ai_matcher: false
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback_approver")
}

func TestLoad_RealNetvisorRequiresCredentials(t *testing.T) {
	path := writeConfig(t, `
netvisor:
  use_mock: false
matching:
  enable_ai_matcher: false
approval:
  fallback_approver: controller@example.com
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "netvisor.customer_id")
}
