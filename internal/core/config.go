package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config tunes the sync engine.
type Config struct {
	MessagePageSize   int
	ChannelPageSize   int
	ThreadPageSize    int
	SearchPageSize    int
	MaxFileSize       int64
	TypingIdle        time.Duration
	MaxThreadContexts int
}

// fileConfig is the on-disk shape; zero values fall back to defaults.
type fileConfig struct {
	MessagePageSize   int    `json:"messagePageSize" yaml:"messagePageSize"`
	ChannelPageSize   int    `json:"channelPageSize" yaml:"channelPageSize"`
	ThreadPageSize    int    `json:"threadPageSize" yaml:"threadPageSize"`
	SearchPageSize    int    `json:"searchPageSize" yaml:"searchPageSize"`
	MaxFileSize       string `json:"maxFileSize" yaml:"maxFileSize"`
	TypingIdleMs      int    `json:"typingIdleMs" yaml:"typingIdleMs"`
	MaxThreadContexts int    `json:"maxThreadContexts" yaml:"maxThreadContexts"`
}

const (
	envMessagePageSize = "PAIRCHAT_MESSAGE_PAGE_SIZE"
	envMaxFileSize     = "PAIRCHAT_MAX_FILE_SIZE"
	envTypingIdleMs    = "PAIRCHAT_TYPING_IDLE_MS"
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		MessagePageSize:   50,
		ChannelPageSize:   30,
		ThreadPageSize:    50,
		SearchPageSize:    25,
		MaxFileSize:       10 << 20,
		TypingIdle:        5 * time.Second,
		MaxThreadContexts: 1,
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if c.MessagePageSize <= 0 {
		return fmt.Errorf("messagePageSize must be positive")
	}
	if c.ChannelPageSize <= 0 {
		return fmt.Errorf("channelPageSize must be positive")
	}
	if c.ThreadPageSize <= 0 {
		return fmt.Errorf("threadPageSize must be positive")
	}
	if c.SearchPageSize <= 0 {
		return fmt.Errorf("searchPageSize must be positive")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("maxFileSize must be positive")
	}
	if c.TypingIdle <= 0 {
		return fmt.Errorf("typingIdleMs must be positive")
	}
	if c.MaxThreadContexts != 1 {
		return fmt.Errorf("maxThreadContexts must be 1 (got %d)", c.MaxThreadContexts)
	}
	return nil
}

// LoadConfig reads a JSON or YAML config file and applies environment overrides.
// A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := decodeConfig(path, data, &cfg); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeConfig(path string, data []byte, cfg *Config) error {
	var raw fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return err
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}

	if raw.MessagePageSize != 0 {
		cfg.MessagePageSize = raw.MessagePageSize
	}
	if raw.ChannelPageSize != 0 {
		cfg.ChannelPageSize = raw.ChannelPageSize
	}
	if raw.ThreadPageSize != 0 {
		cfg.ThreadPageSize = raw.ThreadPageSize
	}
	if raw.SearchPageSize != 0 {
		cfg.SearchPageSize = raw.SearchPageSize
	}
	if raw.MaxFileSize != "" {
		size, err := parseSize(raw.MaxFileSize)
		if err != nil {
			return fmt.Errorf("maxFileSize: %w", err)
		}
		cfg.MaxFileSize = size
	}
	if raw.TypingIdleMs != 0 {
		cfg.TypingIdle = time.Duration(raw.TypingIdleMs) * time.Millisecond
	}
	if raw.MaxThreadContexts != 0 {
		cfg.MaxThreadContexts = raw.MaxThreadContexts
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if value := strings.TrimSpace(os.Getenv(envMessagePageSize)); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", envMessagePageSize, err)
		}
		cfg.MessagePageSize = n
	}
	if value := strings.TrimSpace(os.Getenv(envMaxFileSize)); value != "" {
		size, err := parseSize(value)
		if err != nil {
			return fmt.Errorf("%s: %w", envMaxFileSize, err)
		}
		cfg.MaxFileSize = size
	}
	if value := strings.TrimSpace(os.Getenv(envTypingIdleMs)); value != "" {
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", envTypingIdleMs, err)
		}
		cfg.TypingIdle = time.Duration(ms) * time.Millisecond
	}
	return nil
}

// parseSize accepts plain byte counts ("1048576") and humanized sizes ("10MB", "4 MiB").
func parseSize(value string) (int64, error) {
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, err
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("size %q too large", value)
	}
	return int64(n), nil
}
