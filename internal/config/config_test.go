package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kisaansahayak/sahayak/internal/config"
	"github.com/kisaansahayak/sahayak/pkg/models"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, models.ModeHybridLite, cfg.Mode)
	assert.Equal(t, 18*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.Guest.Limit)
	assert.Equal(t, "https://api.dhenu.ai/v2/query", cfg.Dhenu.URL)
	assert.Equal(t, []string{"gemini-2.5-flash-lite", "gemini-2.5-flash"}, cfg.Gemini.Models())
}

func TestLoad_LegacyEnv(t *testing.T) {
	t.Setenv("GEMINI_MODEL", "gemini-pro-x")
	t.Setenv("GEMINI_MODEL_FALLBACK", " alt-1 , gemini-pro-x ,alt-2")
	t.Setenv("AI_MODE", "dhenu_only")
	t.Setenv("DHENU_API_KEY", "dk")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, models.ModeSpecialistOnly, cfg.Mode)
	assert.Equal(t, "dk", cfg.Dhenu.APIKey)
	assert.Equal(t,
		[]string{"gemini-pro-x", "alt-1", "alt-2", "gemini-2.5-flash", "gemini-2.5-flash-lite"},
		cfg.Gemini.Models())
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	t.Setenv("AI_MODE", "hybrid_lite")
	t.Setenv("SAHAYAK_MODE", "hybrid_full")
	t.Setenv("SAHAYAK_TIMEOUT", "5s")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, models.ModeHybridFull, cfg.Mode)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestLoad_GuardrailsSensitivity(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Guardrails.HighSensitivity)

	t.Setenv("SAHAYAK_GUARDRAILS_HIGH_SENSITIVITY", "true")
	cfg, err = config.Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Guardrails.HighSensitivity)
}

func TestLoad_UnknownModeFallsBack(t *testing.T) {
	t.Setenv("AI_MODE", "turbo")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, models.ModeHybridLite, cfg.Mode)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sahayak.yaml")
	body := "port: 9090\nguest:\n  limit: 2\ngemini:\n  model: file-model\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 2, cfg.Guest.Limit)
	assert.Equal(t, "file-model", cfg.Gemini.Models()[0])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	bad := *cfg
	bad.Port = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Timeout = 0
	assert.Error(t, bad.Validate())
}

func TestRedacted(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Gemini.APIKey = "secret-gemini-key"
	cfg.Auth.APIKeys = []string{"abc"}

	r := cfg.Redacted()
	assert.Equal(t, "se****ey", r.Gemini.APIKey)
	assert.Equal(t, []string{"****"}, r.Auth.APIKeys)
	assert.Equal(t, "secret-gemini-key", cfg.Gemini.APIKey, "original must be untouched")
}
