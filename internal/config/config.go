package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DevSigningKey signs tokens when ENV=development and no key is configured.
const DevSigningKey = "medinexus-development-signing-key"

const (
	AuthModeDevelopment = "development"
	AuthModeJWT         = "jwt"

	PatientStoreMemory   = "memory"
	PatientStorePostgres = "postgres"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	AuthMode      string   `mapstructure:"AUTH_MODE"`
	DevUser       string   `mapstructure:"DEV_DEFAULT_USER"`
	DefaultTenant string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`

	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	AuthTokenTTL   time.Duration `mapstructure:"AUTH_TOKEN_TTL"`

	PatientStore string `mapstructure:"PATIENT_STORE"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DBMaxConns   int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns   int32  `mapstructure:"DB_MIN_CONNS"`

	RedisURL                   string  `mapstructure:"REDIS_URL"`
	RateLimitRPS               float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst             int     `mapstructure:"RATE_LIMIT_BURST"`
	AssistantMessagesPerMinute int     `mapstructure:"ASSISTANT_MESSAGES_PER_MINUTE"`

	GenAIAPIKey          string        `mapstructure:"GENAI_API_KEY"`
	GenAIBaseURL         string        `mapstructure:"GENAI_BASE_URL"`
	GenAIModel           string        `mapstructure:"GENAI_MODEL"`
	AssistantSendTimeout time.Duration `mapstructure:"ASSISTANT_SEND_TIMEOUT"`

	SpeechAPIKey   string `mapstructure:"SPEECH_API_KEY"`
	SpeechBaseURL  string `mapstructure:"SPEECH_BASE_URL"`
	SpeechLanguage string `mapstructure:"SPEECH_LANGUAGE"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
	AudioBodyLimit string        `mapstructure:"AUDIO_BODY_LIMIT"`

	TLSEnabled  bool   `mapstructure:"TLS_ENABLED"`
	TLSCertFile string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"TLS_KEY_FILE"`
}

var defaults = map[string]any{
	"PORT":                          "8000",
	"ENV":                           "development",
	"AUTH_MODE":                     "", // inferred from ENV
	"DEV_DEFAULT_USER":              "u1",
	"DEFAULT_TENANT":                "tenant-123",
	"CORS_ORIGINS":                  "http://localhost:3000",
	"AUTH_SIGNING_KEY":              "",
	"AUTH_ISSUER":                   "medinexus-hms",
	"AUTH_AUDIENCE":                 "medinexus-web",
	"AUTH_TOKEN_TTL":                "8h",
	"PATIENT_STORE":                 PatientStoreMemory,
	"DATABASE_URL":                  "",
	"DB_MAX_CONNS":                  20,
	"DB_MIN_CONNS":                  5,
	"REDIS_URL":                     "",
	"RATE_LIMIT_RPS":                100,
	"RATE_LIMIT_BURST":              200,
	"ASSISTANT_MESSAGES_PER_MINUTE": 20,
	"GENAI_API_KEY":                 "",
	"GENAI_BASE_URL":                "https://generativelanguage.googleapis.com",
	"GENAI_MODEL":                   "gemini-2.5-flash",
	"ASSISTANT_SEND_TIMEOUT":        "2m",
	"SPEECH_API_KEY":                "",
	"SPEECH_BASE_URL":               "https://speech.googleapis.com",
	"SPEECH_LANGUAGE":               "en-US",
	"REQUEST_TIMEOUT":               "30s",
	"BODY_LIMIT":                    "1M",
	"AUDIO_BODY_LIMIT":              "10M",
	"TLS_ENABLED":                   false,
	"TLS_CERT_FILE":                 "",
	"TLS_KEY_FILE":                  "",
}

// Load reads .env (if present) and the environment. Every key has a
// default, so Load only fails on malformed values.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
		// Explicit binding so Unmarshal sees environment-only keys.
		_ = v.BindEnv(key)
	}

	// A missing .env is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if cfg.AuthSigningKey == "" && cfg.IsDev() {
		cfg.AuthSigningKey = DevSigningKey
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns AUTH_MODE when set, otherwise "development" for
// ENV=development and "jwt" for everything else.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return AuthModeDevelopment
	}
	return AuthModeJWT
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	if mode != AuthModeDevelopment && mode != AuthModeJWT {
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeDevelopment, AuthModeJWT, mode)
	}
	if mode == AuthModeDevelopment && c.IsProduction() {
		return fmt.Errorf("AUTH_MODE=development is not allowed with ENV=production")
	}

	if c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required outside development")
	}
	if !c.IsDev() {
		if c.AuthSigningKey == DevSigningKey {
			return fmt.Errorf("AUTH_SIGNING_KEY must not be the development key outside development")
		}
		if len(c.AuthSigningKey) < 32 {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(c.AuthSigningKey))
		}
	}
	if c.AuthTokenTTL <= 0 {
		return fmt.Errorf("AUTH_TOKEN_TTL must be positive")
	}

	switch c.PatientStore {
	case PatientStoreMemory:
	case PatientStorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when PATIENT_STORE is %q", PatientStorePostgres)
		}
	default:
		return fmt.Errorf("PATIENT_STORE must be %q or %q, got %q", PatientStoreMemory, PatientStorePostgres, c.PatientStore)
	}

	if c.AssistantMessagesPerMinute < 0 {
		return fmt.Errorf("ASSISTANT_MESSAGES_PER_MINUTE must not be negative")
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}

// Warnings lists configuration that is valid but worth shouting about at
// startup.
func (c *Config) Warnings() []string {
	var out []string
	if c.ResolvedAuthMode() == AuthModeDevelopment {
		out = append(out, fmt.Sprintf("development auth is active: requests without a token act as %q", c.DevUser))
	}
	if c.GenAIAPIKey == "" {
		out = append(out, "GENAI_API_KEY is not set: assistant replies will fall back to the error notice")
	}
	if c.SpeechAPIKey == "" {
		out = append(out, "SPEECH_API_KEY is not set: dictation is unavailable")
	}
	return out
}
