package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kisaansahayak/sahayak/pkg/models"
)

// LastResortModels are appended to every general-provider model chain.
var LastResortModels = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}

// Config holds all configuration for the advisory service. It is built
// once at startup and passed by value; nothing reads the environment
// after Load returns.
type Config struct {
	Port       int              `mapstructure:"port" yaml:"port"`
	Version    string           `mapstructure:"version" yaml:"version"`
	Mode       models.Mode      `mapstructure:"mode" yaml:"mode"`
	Timeout    time.Duration    `mapstructure:"timeout" yaml:"timeout"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Gemini     GeminiConfig     `mapstructure:"gemini" yaml:"gemini"`
	Dhenu      DhenuConfig      `mapstructure:"dhenu" yaml:"dhenu"`
	Guest      GuestConfig      `mapstructure:"guest" yaml:"guest"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Redis      RedisConfig      `mapstructure:"redis" yaml:"redis"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry" yaml:"telemetry"`
	Auth       AuthConfig       `mapstructure:"auth" yaml:"auth"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit" yaml:"rate_limit"`
	Guardrails GuardrailsConfig `mapstructure:"guardrails" yaml:"guardrails"`
	Geocode    GeocodeConfig    `mapstructure:"geocode" yaml:"geocode"`
	DataDir    string           `mapstructure:"data_dir" yaml:"data_dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "console" or "json"
}

type GeminiConfig struct {
	APIKey         string   `mapstructure:"api_key" yaml:"api_key"`
	Endpoint       string   `mapstructure:"endpoint" yaml:"endpoint"`
	Model          string   `mapstructure:"model" yaml:"model"`
	FallbackModels []string `mapstructure:"fallback_models" yaml:"fallback_models"`
}

type DhenuConfig struct {
	URL    string `mapstructure:"url" yaml:"url"`
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

type GuestConfig struct {
	Limit int `mapstructure:"limit" yaml:"limit"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url" yaml:"url"`
	MaxConnections int    `mapstructure:"max_connections" yaml:"max_connections"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" yaml:"service_name"`
}

type AuthConfig struct {
	// TokenSecret signs user tokens; empty disables token auth.
	TokenSecret string `mapstructure:"token_secret" yaml:"token_secret"`
	// APIKeys are static keys for trusted service clients.
	APIKeys []string `mapstructure:"api_keys" yaml:"api_keys"`
}

type RateLimitConfig struct {
	PerMinute float64 `mapstructure:"per_minute" yaml:"per_minute"`
	Burst     int     `mapstructure:"burst" yaml:"burst"`
}

type GuardrailsConfig struct {
	// HighSensitivity also rejects questions probing for the system prompt.
	HighSensitivity bool `mapstructure:"high_sensitivity" yaml:"high_sensitivity"`
}

type GeocodeConfig struct {
	URL       string `mapstructure:"url" yaml:"url"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
}

// legacyEnv binds keys to the unprefixed variable names older deployments
// already export. SAHAYAK_* names are checked first.
var legacyEnv = map[string][]string{
	"mode":                    {"AI_MODE"},
	"gemini.api_key":          {"GEMINI_API_KEY"},
	"gemini.model":            {"GEMINI_MODEL"},
	"gemini.fallback_models":  {"GEMINI_MODEL_FALLBACK"},
	"dhenu.url":               {"DHENU_BASE_URL"},
	"dhenu.api_key":           {"DHENU_API_KEY"},
	"guest.limit":             {"NEXT_PUBLIC_GUEST_QUERY_LIMIT"},
	"database.url":            {"DATABASE_URL"},
	"telemetry.otlp_endpoint": {"OTEL_EXPORTER_OTLP_ENDPOINT"},
	"telemetry.service_name":  {"OTEL_SERVICE_NAME"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("version", "0.1.0")
	v.SetDefault("mode", string(models.ModeHybridLite))
	v.SetDefault("timeout", 18*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.endpoint", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.model", "gemini-2.5-flash-lite")
	v.SetDefault("gemini.fallback_models", []string{})
	v.SetDefault("dhenu.url", "https://api.dhenu.ai/v2/query")
	v.SetDefault("dhenu.api_key", "")
	v.SetDefault("guest.limit", 5)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "kisaan-sahayak")
	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.api_keys", []string{})
	v.SetDefault("rate_limit.per_minute", 20.0)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("guardrails.high_sensitivity", false)
	v.SetDefault("geocode.url", "https://nominatim.openstreetmap.org/reverse")
	v.SetDefault("geocode.user_agent", "kisaan-sahayak/1.0")
	v.SetDefault("data_dir", "")
}

// Load builds the configuration from defaults, an optional YAML file at
// path, and environment overrides (SAHAYAK_GEMINI_MODEL and friends, plus
// the legacy names in legacyEnv).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SAHAYAK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		envKey := "SAHAYAK_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, envKey}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Mode = models.ParseMode(string(cfg.Mode))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with. Missing
// provider credentials are not fatal here; they surface per call.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Guest.Limit < 0 {
		return fmt.Errorf("guest limit must not be negative, got %d", c.Guest.Limit)
	}
	return nil
}

// Models returns the deduplicated, ordered model chain: the primary model,
// the configured fallbacks, then LastResortModels. Entries may be
// comma-separated lists.
func (g GeminiConfig) Models() []string {
	var raw []string
	raw = append(raw, g.Model)
	raw = append(raw, g.FallbackModels...)
	raw = append(raw, LastResortModels...)

	seen := make(map[string]bool)
	var out []string
	for _, entry := range raw {
		for _, m := range strings.Split(entry, ",") {
			m = strings.TrimSpace(m)
			if m == "" || seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// Redacted returns a copy safe to print: secrets are masked.
func (c Config) Redacted() Config {
	c.Gemini.APIKey = mask(c.Gemini.APIKey)
	c.Dhenu.APIKey = mask(c.Dhenu.APIKey)
	c.Redis.Password = mask(c.Redis.Password)
	c.Auth.TokenSecret = mask(c.Auth.TokenSecret)
	keys := make([]string, len(c.Auth.APIKeys))
	for i, k := range c.Auth.APIKeys {
		keys[i] = mask(k)
	}
	c.Auth.APIKeys = keys
	if c.Database.URL != "" {
		c.Database.URL = "(set)"
	}
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}
