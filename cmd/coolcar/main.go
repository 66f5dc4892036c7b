package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"coolcar/internal/assistant"
	"coolcar/internal/channel"
	"coolcar/internal/config"
)

var (
	version    = "1.0.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
	logLevel   string // overrides general.logLevel when set
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "coolcar",
		Short: "Cool Car Auto: garage chat assistant",
		Long: `Cool Car Auto answers visitor questions about car trouble, services,
pricing and opening hours, and takes service bookings through chat.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.coolcar/config.json)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override general.logLevel (debug, info, warn, error)")

	root.AddCommand(initCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(slotsCmd())
	root.AddCommand(bookingsCmd())
	root.AddCommand(memoryCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig reads .env files, then the config file (defaults when it is
// missing), and reconfigures the logger from the result.
func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	loaded, err := config.LoadDotEnv(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.General.LogLevel = logLevel
	}
	if err := setupLogger(cfg.General); err != nil {
		return nil, err
	}
	logger.Debug("config loaded", "path", cfgPath, "dotenv", loaded)
	return cfg, nil
}

func setupLogger(g config.GeneralConfig) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	var out io.Writer = os.Stderr
	if g.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(g.LogFile), 0o755); err != nil {
			return fmt.Errorf("cannot create log directory: %w", err)
		}
		f, err := os.OpenFile(g.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("cannot open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
	}
	logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: `Writes ~/.coolcar/config.json (or --config) with the default settings
and a DeepSeek model entry whose key is read from DEEPSEEK_API_KEY.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
			}
			cfg := config.Defaults()
			cfg.Augment.Models = []config.ModelConfig{config.DeepSeekModel()}
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "storage", cfg.Storage.Path)
			fmt.Println("Put GOOGLE_API_KEY, GOOGLE_SEARCH_ENGINE_ID and DEEPSEEK_API_KEY in a .env file next to the config to enable augmentation.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	runCtx, stopRun := context.WithCancel(ctx)
	runDone := startAssistant(runCtx, a)
	// Stop the assistant and let in-flight replies finish before the store closes.
	defer func() {
		stopRun()
		<-runDone
	}()

	cli := channel.NewCLI(channel.CLIConfig{
		Greeting: a.assistant.Greeting(),
		Spinner:  true,
		Logger:   logger,
	})
	return cli.Start(ctx, a.bus)
}

// startAssistant runs the assistant loop; the returned channel closes once
// it has stopped and every message it started is done.
func startAssistant(ctx context.Context, a *app) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.assistant.Run(ctx)
	}()
	return done
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web gateway and Telegram bot",
		Long:  "Starts the assistant loop, the session janitor and every enabled channel (web, Telegram). Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	runDone := startAssistant(ctx, a)

	janitor := assistant.NewJanitor(assistant.JanitorConfig{
		Interval:    time.Duration(cfg.General.JanitorIntervalMin) * time.Minute,
		IdleTimeout: time.Duration(cfg.General.SessionIdleMinutes) * time.Minute,
		Sessions:    a.assistant.Sessions(),
		Memory:      a.memory,
		Cache:       a.augment.Cache(),
		Logger:      logger,
	})
	go janitor.Start(ctx)

	var webCh *channel.Web
	if cfg.Channels.Web.Enabled {
		metricsPath := ""
		if cfg.Metrics.Enabled {
			metricsPath = cfg.Metrics.Endpoint
		}
		webCh = channel.NewWeb(channel.WebConfig{
			Host:           cfg.Channels.Web.Host,
			Port:           cfg.Channels.Web.Port,
			AllowedOrigins: cfg.Channels.Web.AllowedOrigins,
			MetricsPath:    metricsPath,
			Assistant:      a.assistant,
			Book:           a.book,
			Reviews:        a.reviews,
			Relay:          a.relay,
			Memory:         a.memory,
			Logger:         logger,
		})
		go func() {
			if err := webCh.Start(ctx, a.bus); err != nil {
				logger.Error("web channel error", "err", err)
				stop()
			}
		}()
	} else {
		logger.Info("web channel disabled")
	}

	var telegramCh *channel.Telegram
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		telegramCh = channel.NewTelegram(channel.TelegramConfig{
			Token:     cfg.Channels.Telegram.Token,
			AllowFrom: cfg.Channels.Telegram.AllowFrom,
			Greeting:  a.assistant.Greeting(),
			Logger:    logger,
		})
		go func() {
			if err := telegramCh.Start(ctx, a.bus); err != nil {
				logger.Error("telegram channel error", "err", err)
			}
		}()
		logger.Info("telegram channel enabled")
	} else {
		logger.Info("telegram channel disabled")
	}

	logger.Info("coolcar serving. Press Ctrl+C to stop.", "version", version)

	<-ctx.Done()
	logger.Info("shutting down...")

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if telegramCh != nil {
			_ = telegramCh.Stop()
		}
		if webCh != nil {
			_ = webCh.Stop()
		}
		<-runDone
		a.bus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

// statusLine pads a label for the admin listings.
func statusLine(label, value string) string {
	return fmt.Sprintf("  %-22s %s", label+":", strings.TrimSpace(value))
}
