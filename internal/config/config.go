package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/speechwriter/internal/jobs"
	"github.com/nikhilbhutani/speechwriter/internal/llm"
	"github.com/nikhilbhutani/speechwriter/internal/speech"
	"github.com/nikhilbhutani/speechwriter/pkg/logger"
)

type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Auth    AuthConfig
	LLM     LLMConfig
	Speech  speech.Config
	Jobs    JobsConfig
	Session SessionConfig
	Upload  UploadConfig
	Log     logger.Config
}

type ServerConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
	RateLimit   float64
	RateBurst   int
}

// RedisConfig is optional; an empty Addr keeps the session guard in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret     string
	SessionHeader string
}

type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type LLMConfig struct {
	OpenAI          ProviderConfig
	Anthropic       ProviderConfig
	Gemini          ProviderConfig
	OpenRouter      ProviderConfig
	DefaultProvider string
	Timeout         time.Duration
}

type JobsConfig struct {
	MaxConcurrent int
	Retention     time.Duration
	SweepInterval time.Duration
}

type SessionConfig struct {
	LockTTL time.Duration
}

type UploadConfig struct {
	MaxBytes int64
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present; real env vars win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var p parser
	defaults := speech.DefaultConfig()

	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        p.int("SERVER_PORT", 8080),
			CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
			RateLimit:   p.float("RATE_LIMIT_RPS", 5),
			RateBurst:   p.int("RATE_LIMIT_BURST", 20),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       p.int("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("AUTH_JWT_SECRET", ""),
			SessionHeader: getEnv("SESSION_HEADER", "X-Session-ID"),
		},
		LLM: LLMConfig{
			OpenAI: ProviderConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", ""),
				Model:   getEnv("OPENAI_MODEL", ""),
			},
			Anthropic: ProviderConfig{
				APIKey:  getEnv("ANTHROPIC_API_KEY", getEnv("CLAUDE_API_KEY", "")),
				BaseURL: getEnv("ANTHROPIC_BASE_URL", ""),
				Model:   getEnv("ANTHROPIC_MODEL", ""),
			},
			Gemini: ProviderConfig{
				APIKey:  getEnv("GEMINI_API_KEY", ""),
				BaseURL: getEnv("GEMINI_BASE_URL", ""),
				Model:   getEnv("GEMINI_MODEL", ""),
			},
			OpenRouter: ProviderConfig{
				APIKey:  getEnv("OPENROUTER_API_KEY", ""),
				BaseURL: getEnv("OPENROUTER_BASE_URL", ""),
				Model:   getEnv("OPENROUTER_MODEL", ""),
			},
			DefaultProvider: getEnv("LLM_DEFAULT_PROVIDER", ""),
			Timeout:         p.duration("LLM_TIMEOUT", 60*time.Second),
		},
		Speech: speech.Config{
			MaxRetries:         p.int("SPEECH_MAX_RETRIES", defaults.MaxRetries),
			BackoffBase:        p.duration("SPEECH_BACKOFF_BASE", defaults.BackoffBase),
			BackoffFactor:      p.float("SPEECH_BACKOFF_FACTOR", defaults.BackoffFactor),
			MaxTranscriptChars: p.int("SPEECH_MAX_TRANSCRIPT_CHARS", defaults.MaxTranscriptChars),
			MinContentChars:    p.int("SPEECH_MIN_CONTENT_CHARS", defaults.MinContentChars),
			MaxTokens:          p.int("LLM_MAX_TOKENS", defaults.MaxTokens),
			Temperature:        p.float("LLM_TEMPERATURE", defaults.Temperature),
		},
		Jobs: JobsConfig{
			MaxConcurrent: p.int("JOBS_MAX_CONCURRENT", 8),
			Retention:     p.duration("JOBS_RETENTION", 30*time.Minute),
			SweepInterval: p.duration("JOBS_SWEEP_INTERVAL", time.Minute),
		},
		Session: SessionConfig{
			LockTTL: p.duration("SESSION_LOCK_TTL", 15*time.Minute),
		},
		Upload: UploadConfig{
			MaxBytes: int64(p.int("UPLOAD_MAX_BYTES", 16<<20)),
		},
		Log: logger.Config{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      getEnv("LOG_FORMAT", "json"),
			OutputPaths: splitList(getEnv("LOG_OUTPUTS", "stdout")),
		},
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var problems []string
	if c.LLM.DefaultProvider != "" {
		if _, err := llm.ParseKind(c.LLM.DefaultProvider); err != nil {
			problems = append(problems, "LLM_DEFAULT_PROVIDER: "+err.Error())
		}
	}
	if c.Speech.MaxRetries < 0 {
		problems = append(problems, "SPEECH_MAX_RETRIES must not be negative")
	}
	if c.Speech.BackoffFactor < 1 {
		problems = append(problems, "SPEECH_BACKOFF_FACTOR must be at least 1")
	}
	if c.Jobs.MaxConcurrent < 1 {
		problems = append(problems, "JOBS_MAX_CONCURRENT must be at least 1")
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst < 1 {
		problems = append(problems, "RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.Upload.MaxBytes < 1 {
		problems = append(problems, "UPLOAD_MAX_BYTES must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Credentials exposes the provider keys to the LLM registry.
func (c *Config) Credentials() llm.StaticCredentials {
	return llm.StaticCredentials{
		llm.KindOpenAI:     {APIKey: c.LLM.OpenAI.APIKey, BaseURL: c.LLM.OpenAI.BaseURL},
		llm.KindAnthropic:  {APIKey: c.LLM.Anthropic.APIKey, BaseURL: c.LLM.Anthropic.BaseURL},
		llm.KindGemini:     {APIKey: c.LLM.Gemini.APIKey, BaseURL: c.LLM.Gemini.BaseURL},
		llm.KindOpenRouter: {APIKey: c.LLM.OpenRouter.APIKey, BaseURL: c.LLM.OpenRouter.BaseURL},
	}
}

// RegistryOptions maps model overrides and the preferred provider.
func (c *Config) RegistryOptions() llm.RegistryOptions {
	models := map[llm.Kind]string{}
	for kind, m := range map[llm.Kind]string{
		llm.KindOpenAI:     c.LLM.OpenAI.Model,
		llm.KindAnthropic:  c.LLM.Anthropic.Model,
		llm.KindGemini:     c.LLM.Gemini.Model,
		llm.KindOpenRouter: c.LLM.OpenRouter.Model,
	} {
		if m != "" {
			models[kind] = m
		}
	}
	preferred, _ := llm.ParseKind(c.LLM.DefaultProvider)
	return llm.RegistryOptions{
		Models:    models,
		Timeout:   c.LLM.Timeout,
		Preferred: preferred,
	}
}

func (c *Config) JobOptions() jobs.Options {
	return jobs.Options{
		MaxConcurrent: c.Jobs.MaxConcurrent,
		Retention:     c.Jobs.Retention,
		SweepInterval: c.Jobs.SweepInterval,
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return n
}

func (p *parser) float(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return f
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return d
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
