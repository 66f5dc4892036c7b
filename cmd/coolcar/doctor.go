package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"coolcar/internal/augment"
	"coolcar/internal/config"
	"coolcar/internal/domain"
	"coolcar/internal/pattern"
	"coolcar/internal/store"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your Cool Car Auto installation",
		Long: `Verifies the configuration, storage backend, pattern tables, augmentation
credentials and channel settings. Reports pass/warn/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("Cool Car Auto Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			var r report

			if _, err := os.Stat(cfgPath); err != nil {
				r.warn("Config file", fmt.Sprintf("not found at %s, using defaults (run 'coolcar init')", cfgPath))
			} else {
				r.pass("Config file", cfgPath)
			}

			cfg, err := loadConfig()
			if err != nil {
				r.fail("Config validation", err.Error())
				return r.summary()
			}
			r.pass("Config validation", "valid")

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			if detail, err := checkStorage(ctx, cfg.Storage); err != nil {
				r.fail("Storage", err.Error())
			} else {
				r.pass("Storage", detail)
			}

			if patterns, err := pattern.Load(cfg.General.PatternsDir, logger); err != nil {
				r.fail("Patterns", err.Error())
			} else {
				r.pass("Patterns", fmt.Sprintf("%d loaded", len(patterns)))
			}

			_, statuses := augment.Build(ctx, cfg.Augment, store.NewMemory(), logger)
			if cfg.Augment.Mode == "off" {
				r.warn("Augmentation", "mode is off, replies use patterns only")
			}
			for _, s := range statuses {
				if s.Configured {
					r.pass("Augment "+s.Name, s.Detail)
				} else {
					r.warn("Augment "+s.Name, s.Detail)
				}
			}

			if cfg.Relay.ContactEndpoint == "" || cfg.Relay.BookingEndpoint == "" {
				r.warn("Form relay", "contact or booking endpoint missing, those forms stay local")
			} else {
				r.pass("Form relay", "contact and booking endpoints set")
			}

			if cfg.Channels.Web.Enabled {
				addr := fmt.Sprintf("%s:%d", cfg.Channels.Web.Host, cfg.Channels.Web.Port)
				if err := checkPort(addr); err != nil {
					r.warn("Web port", fmt.Sprintf("%s may be in use: %v", addr, err))
				} else {
					r.pass("Web port", addr+" available")
				}
			}
			if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
				r.fail("Telegram", "enabled but TELEGRAM_BOT_TOKEN is not set")
			}

			return r.summary()
		},
	}
}

type report struct {
	passed, warned, failed int
}

func (r *report) pass(check, detail string) {
	r.passed++
	fmt.Printf("  [PASS] %-24s %s\n", check, detail)
}

func (r *report) warn(check, detail string) {
	r.warned++
	fmt.Printf("  [WARN] %-24s %s\n", check, detail)
}

func (r *report) fail(check, detail string) {
	r.failed++
	fmt.Printf("  [FAIL] %-24s %s\n", check, detail)
}

func (r *report) summary() error {
	fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
	if r.failed > 0 {
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	if r.warned > 0 {
		fmt.Printf("\nCool Car Auto will run, but consider fixing the warnings.\n")
	} else {
		fmt.Printf("\nAll checks passed!\n")
	}
	return nil
}

// checkStorage opens the backend and reads one namespace.
func checkStorage(ctx context.Context, cfg config.StorageConfig) (string, error) {
	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return "", err
	}
	defer st.Close()

	if _, err := st.Get(ctx, domain.NamespaceBookings); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("read: %w", err)
	}
	detail := cfg.Backend
	if sq, ok := st.(*store.SQLite); ok {
		sizes, err := sq.Namespaces(ctx)
		if err != nil {
			return "", fmt.Errorf("list namespaces: %w", err)
		}
		detail = fmt.Sprintf("sqlite %s (%d namespaces)", cfg.Path, len(sizes))
	}
	return detail, nil
}

func checkPort(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ln.Close()
}
