package command

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamavenir/pairchat/internal/cache"
	"github.com/adamavenir/pairchat/internal/chat"
	"github.com/adamavenir/pairchat/internal/core"
	"github.com/adamavenir/pairchat/internal/metrics"
	"github.com/adamavenir/pairchat/internal/profile"
	"github.com/adamavenir/pairchat/internal/remote"
)

// CommandContext provides shared command resources.
type CommandContext struct {
	Client     *remote.HTTPClient
	Sync       *chat.Coordinator
	Profiles   *profile.Cache
	Cache      cache.Cache
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Config     core.Config
	ConfigPath string
	Self       string
	JSONMode   bool
}

// GetContext resolves flags, environment and config into a ready coordinator.
func GetContext(cmd *cobra.Command) (*CommandContext, error) {
	jsonMode, _ := cmd.Flags().GetBool("json")

	logger, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}

	server := flagOrEnv(cmd, "server", envServer)
	token := flagOrEnv(cmd, "token", envToken)
	self := flagOrEnv(cmd, "as", envUser)
	if server == "" {
		return nil, fmt.Errorf("--server is required (or set %s)", envServer)
	}
	if self == "" {
		return nil, fmt.Errorf("--as is required (or set %s)", envUser)
	}

	configPath := flagOrEnv(cmd, "config", envConfig)
	cfg := core.DefaultConfig()
	if configPath != "" {
		cfg, err = core.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
	}

	client, err := remote.NewHTTPClient(server, token, remote.Options{Logger: logger})
	if err != nil {
		return nil, err
	}

	store, err := openCache(cmd)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	coordinator := chat.NewCoordinator(client, chat.Options{
		SelfID:  self,
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
		Cache:   store,
	})
	if err := coordinator.Warm(cmd.Context()); err != nil {
		logger.Warn("cache warm failed", "error", err)
	}

	return &CommandContext{
		Client:     client,
		Sync:       coordinator,
		Profiles:   profile.NewCache(client, profile.DefaultTTL),
		Cache:      store,
		Metrics:    m,
		Logger:     logger,
		Config:     cfg,
		ConfigPath: configPath,
		Self:       self,
		JSONMode:   jsonMode,
	}, nil
}

// Close releases the client stream, the coordinator and the cache.
func (c *CommandContext) Close() {
	c.Client.Close()
	c.Sync.Close()
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			c.Logger.Warn("cache close failed", "error", err)
		}
	}
}

// Open makes channelID the displayed channel with its latest page loaded.
func (c *CommandContext) Open(ctx context.Context, channelID string) error {
	return c.Sync.FetchMessages(ctx, channelID)
}

func flagOrEnv(cmd *cobra.Command, flag, env string) string {
	value, _ := cmd.Flags().GetString(flag)
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(os.Getenv(env))
}

func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	raw, _ := cmd.Flags().GetString("log-level")
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", raw)
	}
	opts := &slog.HandlerOptions{Level: level}
	format, _ := cmd.Flags().GetString("log-format")
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q", format)
	}
}

func openCache(cmd *cobra.Command) (cache.Cache, error) {
	if disabled, _ := cmd.Flags().GetBool("no-cache"); disabled {
		return nil, nil
	}
	path, _ := cmd.Flags().GetString("cache")
	if path == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, nil
		}
		path = filepath.Join(dir, AppName, "cache.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	store, err := cache.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return store, nil
}
