package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port          string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	AllowedOrigin string
	// Provider selects the assistant backend: "openai" or "memory".
	Provider string
	// Assistant configuration ids per selector tag
	AssistantIDAugment    string
	AssistantIDAutomation string
	// Optional YAML file overriding the assistant ids above
	AssistantsFile string
	// Run polling
	PollInterval    time.Duration
	PollMaxAttempts int
	CancelOnTimeout bool
	// Database (optional exchange log)
	DatabaseURL string
	// Logging
	LogLevel  string
	LogFormat string

	// warnings found while loading; see LogWarnings
	warnings []loadWarning
}

type loadWarning struct {
	key, value, msg string
}

// Load reads the given env files (or .env when none are given) and then the
// process environment. Missing env files are not an error.
func Load(envFiles ...string) Config {
	_ = godotenv.Load(envFiles...)
	var warns []loadWarning
	cfg := Config{
		Port:                  getEnvDefault("PORT", "4000"),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:         os.Getenv("OPENAI_BASE_URL"),
		AllowedOrigin:         getEnvDefault("ALLOWED_ORIGIN", "*"),
		Provider:              strings.ToLower(getEnvDefault("PROVIDER", "openai")),
		AssistantIDAugment:    os.Getenv("ASSISTANT_ID_AUGMENT"),
		AssistantIDAutomation: os.Getenv("ASSISTANT_ID_AUTOMATION"),
		AssistantsFile:        os.Getenv("ASSISTANTS_FILE"),
		PollInterval:          getEnvDurationDefault("POLL_INTERVAL", time.Second, &warns),
		PollMaxAttempts:       getEnvIntDefault("POLL_MAX_ATTEMPTS", 30, &warns),
		CancelOnTimeout:       getEnvBoolDefault("CANCEL_ON_TIMEOUT", false),
		DatabaseURL:           os.Getenv("DB_URL"),
		LogLevel:              getEnvDefault("LOG_LEVEL", "info"),
		LogFormat:             getEnvDefault("LOG_FORMAT", "json"),
	}
	if cfg.Provider == "openai" && cfg.OpenAIAPIKey == "" {
		warns = append(warns, loadWarning{key: "OPENAI_API_KEY", msg: "OPENAI_API_KEY is not set; API calls will fail until provided"})
	}
	cfg.warnings = warns
	return cfg
}

// LogWarnings reports problems found by Load. Call it once logging is set up.
func (c Config) LogWarnings() {
	for _, w := range c.warnings {
		ev := log.Warn().Str("key", w.key)
		if w.value != "" {
			ev = ev.Str("value", w.value)
		}
		ev.Msg(w.msg)
	}
}

// PollBudget is the longest a message waits on a run, with the gateway's
// defaults applied to unset values.
func (c Config) PollBudget() time.Duration {
	interval, attempts := c.PollInterval, c.PollMaxAttempts
	if interval <= 0 {
		interval = time.Second
	}
	if attempts <= 0 {
		attempts = 30
	}
	return interval * time.Duration(attempts)
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntDefault(key string, def int, warns *[]loadWarning) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n > 0 {
			return n
		}
		*warns = append(*warns, loadWarning{key: key, value: v, msg: "ignoring invalid integer setting"})
	}
	return def
}

func getEnvDurationDefault(key string, def time.Duration, warns *[]loadWarning) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			return d
		}
		*warns = append(*warns, loadWarning{key: key, value: v, msg: "ignoring invalid duration setting"})
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}
