package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for the garage assistant.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Business BusinessConfig `json:"business"`
	Storage  StorageConfig  `json:"storage"`
	Memory   MemoryConfig   `json:"memory"`
	Composer ComposerConfig `json:"composer"`
	Augment  AugmentConfig  `json:"augmentation"`
	Booking  BookingConfig  `json:"booking"`
	Relay    RelayConfig    `json:"relay"`
	Channels ChannelsConfig `json:"channels"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel              string `json:"logLevel"`
	LogFile               string `json:"logFile,omitempty"`
	PatternsDir           string `json:"patternsDir,omitempty"` // extra YAML pattern tables, checked before the built-in table
	MaxConcurrentMessages int    `json:"maxConcurrentMessages"`
	SessionIdleMinutes    int    `json:"sessionIdleMinutes"`
	JanitorIntervalMin    int    `json:"janitorIntervalMinutes"`
}

// BusinessConfig holds the garage details quoted in replies.
type BusinessConfig struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Hours   string `json:"hours"`
}

type StorageConfig struct {
	Backend       string `json:"backend"` // "sqlite" | "redis" | "memory"
	Path          string `json:"path,omitempty"`
	RedisAddr     string `json:"redisAddr,omitempty"`
	RedisPassword string `json:"redisPassword,omitempty"`
	RedisDB       int    `json:"redisDb,omitempty"`
	RedisPrefix   string `json:"redisPrefix,omitempty"`
}

type MemoryConfig struct {
	MaxEntries           int `json:"maxEntries"`
	RetentionDays        int `json:"retentionDays"`
	CleanupIntervalHours int `json:"cleanupIntervalHours"`
}

type ComposerConfig struct {
	ReuseThreshold float64 `json:"reuseThreshold"` // memory answers are reused above this similarity
	EmojiRate      float64 `json:"emojiRate"`
}

type AugmentConfig struct {
	Mode               string        `json:"mode"` // "auto" | "model" | "search" | "off"
	TimeoutSeconds     int           `json:"timeoutSeconds"`
	MaxRetries         int           `json:"maxRetries"`
	RetryBackoffMs     int           `json:"retryBackoffMs"`
	RateLimitPerMinute int           `json:"rateLimitPerMinute"`
	Search             SearchConfig  `json:"search"`
	Models             []ModelConfig `json:"models,omitempty"` // tried in order
	Cache              CacheConfig   `json:"cache"`
}

type SearchConfig struct {
	Provider       string   `json:"provider"` // "google" | "duckduckgo"
	GoogleAPIKey   string   `json:"googleApiKey,omitempty"`
	GoogleEngineID string   `json:"googleEngineId,omitempty"`
	TrustedSites   []string `json:"trustedSites,omitempty"`
	ForumFallback  bool     `json:"forumFallback"`
	ForumSites     []string `json:"forumSites,omitempty"`
	RenderPages    bool     `json:"renderPages"`          // load forum pages in headless Chrome first
	ChromePath     string   `json:"chromePath,omitempty"` // empty lets chromedp look for Chrome
	MinRelevance   float64  `json:"minRelevance"`
	MaxResults     int      `json:"maxResults"`
}

// ModelConfig describes one OpenAI-compatible chat completions endpoint.
type ModelConfig struct {
	Name        string  `json:"name"`
	APIBase     string  `json:"apiBase"`
	APIKey      string  `json:"apiKey,omitempty"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

type CacheConfig struct {
	MaxEntries int `json:"maxEntries"`
	EvictBatch int `json:"evictBatch"`
}

type BookingConfig struct {
	OpenHour  int `json:"openHour"`
	CloseHour int `json:"closeHour"`
}

// RelayConfig points the contact and booking forms at a form relay service.
type RelayConfig struct {
	ContactEndpoint string `json:"contactEndpoint,omitempty"`
	BookingEndpoint string `json:"bookingEndpoint,omitempty"`
	TimeoutSeconds  int    `json:"timeoutSeconds"`
}

type ChannelsConfig struct {
	CLI      CLIConfig      `json:"cli"`
	Web      WebConfig      `json:"web"`
	Telegram TelegramConfig `json:"telegram"`
}

type CLIConfig struct {
	Enabled bool `json:"enabled"`
}

type WebConfig struct {
	Enabled        bool     `json:"enabled"`
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token,omitempty"`
	AllowFrom []string `json:"allowFrom,omitempty"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns ~/.coolcar.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".coolcar"
	}
	return filepath.Join(home, ".coolcar")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads a config file, expanding ${VAR} references and filling unset
// credentials from the environment.
func Load(path string) (*Config, error) {
	path = ExpandHome(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return finish(cfg)
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return finish(Defaults())
	}
	return cfg, err
}

func finish(cfg *Config) (*Config, error) {
	ApplyEnv(cfg)
	cfg.Storage.Path = ExpandHome(cfg.Storage.Path)
	cfg.General.LogFile = ExpandHome(cfg.General.LogFile)
	cfg.General.PatternsDir = ExpandHome(cfg.General.PatternsDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with its value, or with "default" for
// ${VAR:-default} when VAR is unset or empty. Unresolved references are kept.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		hasDefault := strings.Contains(match, ":-")
		if val, ok := os.LookupEnv(groups[1]); ok && val != "" {
			return val
		}
		if hasDefault {
			return groups[2]
		}
		return match
	})
}

func Save(path string, cfg *Config) error {
	path = ExpandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate reports every invalid value at once.
func Validate(cfg *Config) error {
	var errs []string

	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	if cfg.General.MaxConcurrentMessages < 1 || cfg.General.MaxConcurrentMessages > 100 {
		errs = append(errs, "general.maxConcurrentMessages must be between 1 and 100")
	}
	if cfg.General.SessionIdleMinutes < 1 {
		errs = append(errs, "general.sessionIdleMinutes must be >= 1")
	}

	switch cfg.Storage.Backend {
	case "sqlite":
		if cfg.Storage.Path == "" {
			errs = append(errs, "storage.path is required for the sqlite backend")
		}
	case "redis":
		if cfg.Storage.RedisAddr == "" {
			errs = append(errs, "storage.redisAddr is required for the redis backend")
		}
	case "memory":
	default:
		errs = append(errs, "storage.backend must be one of: sqlite, redis, memory")
	}

	if cfg.Memory.MaxEntries < 1 {
		errs = append(errs, "memory.maxEntries must be >= 1")
	}
	if cfg.Memory.RetentionDays < 1 {
		errs = append(errs, "memory.retentionDays must be >= 1")
	}
	if cfg.Composer.ReuseThreshold < 0 || cfg.Composer.ReuseThreshold > 1 {
		errs = append(errs, "composer.reuseThreshold must be between 0 and 1")
	}
	if cfg.Composer.EmojiRate < 0 || cfg.Composer.EmojiRate > 1 {
		errs = append(errs, "composer.emojiRate must be between 0 and 1")
	}

	switch cfg.Augment.Mode {
	case "auto", "model", "search", "off":
	default:
		errs = append(errs, "augmentation.mode must be one of: auto, model, search, off")
	}
	if cfg.Augment.MaxRetries < 0 || cfg.Augment.MaxRetries > 5 {
		errs = append(errs, "augmentation.maxRetries must be between 0 and 5")
	}
	if cfg.Augment.TimeoutSeconds < 1 {
		errs = append(errs, "augmentation.timeoutSeconds must be >= 1")
	}
	if cfg.Augment.RateLimitPerMinute < 1 {
		errs = append(errs, "augmentation.rateLimitPerMinute must be >= 1")
	}
	switch cfg.Augment.Search.Provider {
	case "google", "duckduckgo":
	default:
		errs = append(errs, "augmentation.search.provider must be one of: google, duckduckgo")
	}
	for i, m := range cfg.Augment.Models {
		if m.APIBase == "" || m.Model == "" {
			errs = append(errs, fmt.Sprintf("augmentation.models[%d]: apiBase and model are required", i))
		}
	}

	if cfg.Booking.OpenHour < 0 || cfg.Booking.CloseHour > 24 || cfg.Booking.OpenHour >= cfg.Booking.CloseHour {
		errs = append(errs, "booking.openHour must be before booking.closeHour within 0..24")
	}
	if cfg.Channels.Web.Port < 0 || cfg.Channels.Web.Port > 65535 {
		errs = append(errs, "channels.web.port must be between 0 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandHome resolves a leading ~/ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
