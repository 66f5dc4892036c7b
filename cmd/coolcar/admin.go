package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"coolcar/internal/booking"
	"coolcar/internal/config"
	"coolcar/internal/domain"
	"coolcar/internal/memory"
	"coolcar/internal/store"
)

func statsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show conversation memory, booking and review statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			mem := a.memory.Stats()
			counts := a.book.Counts()
			if asJSON {
				data, _ := json.MarshalIndent(map[string]any{
					"memory":   mem,
					"bookings": counts,
					"reviews":  map[string]any{"count": len(a.reviews.List()), "average": a.reviews.Average()},
				}, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			fmt.Println("Conversation memory")
			fmt.Println(statusLine("Entries", fmt.Sprint(mem.TotalCount)))
			fmt.Println(statusLine("Avg effectiveness", fmt.Sprintf("%.2f", mem.AverageEffectiveness)))
			fmt.Println(statusLine("Sentiment", formatCounts(mem.SentimentCounts)))
			fmt.Println(statusLine("Contexts", formatCounts(mem.ContextCounts)))
			var tokens []string
			for _, tc := range mem.TopTokens {
				tokens = append(tokens, fmt.Sprintf("%s (%d)", tc.Token, tc.Count))
			}
			fmt.Println(statusLine("Top words", strings.Join(tokens, ", ")))

			fmt.Println("\nBookings")
			for _, s := range []domain.BookingStatus{domain.StatusPending, domain.StatusConfirmed, domain.StatusCompleted, domain.StatusCancelled} {
				fmt.Println(statusLine(string(s), fmt.Sprint(counts[s])))
			}

			fmt.Println("\nReviews")
			fmt.Println(statusLine("Count", fmt.Sprint(len(a.reviews.List()))))
			fmt.Println(statusLine("Average rating", fmt.Sprintf("%.1f", a.reviews.Average())))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func formatCounts[K ~string](m map[K]int) string {
	var parts []string
	for k, n := range m {
		parts = append(parts, fmt.Sprintf("%s=%d", k, n))
	}
	if len(parts) == 0 {
		return "-"
	}
	slices.Sort(parts)
	return strings.Join(parts, " ")
}

func slotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slots [date]",
		Short: "Show bookable hours for a date (default today)",
		Long:  `Accepts YYYY-MM-DD, "today", "tomorrow" or a weekday name.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			input := "today"
			if len(args) == 1 {
				input = args[0]
			}
			date, err := booking.ParseDate(input, time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("Slots for %s:\n", date)
			for _, s := range a.book.AvailableSlots(date) {
				state := "free"
				if !s.IsAvailable {
					state = "taken"
				}
				fmt.Printf("  %s  %s\n", s.Time, state)
			}
			return nil
		},
	}
}

func bookingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "List bookings and update their status",
	}

	var date string
	list := &cobra.Command{
		Use:   "list",
		Short: "List bookings, or upcoming ones with --from",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			bookings := a.book.List()
			if date != "" {
				d, err := booking.ParseDate(date, time.Now())
				if err != nil {
					return err
				}
				bookings = a.book.Upcoming(d)
			}
			if len(bookings) == 0 {
				fmt.Println("No bookings.")
				return nil
			}
			for _, bk := range bookings {
				fmt.Printf("%s  %s %s  %-9s  %s  %s %s %s  (%s)\n",
					bk.ID, bk.PreferredDate, bk.PreferredTime, bk.Status,
					bk.CustomerName, bk.VehicleYear, bk.VehicleMake, bk.VehicleModel, bk.ServiceType)
			}
			return nil
		},
	}
	list.Flags().StringVar(&date, "from", "", "only upcoming bookings from this date, soonest first")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "status [id] [pending|confirmed|completed|cancelled]",
		Short: "Change a booking's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			bk, err := a.book.SetStatus(cmd.Context(), args[0], domain.BookingStatus(args[1]))
			if err != nil {
				return err
			}
			fmt.Println(booking.FormatDetails(bk))
			return nil
		},
	})
	return cmd
}

func memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Export, import and clean up conversation memory",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export [file]",
		Short: "Write the memory log and its stats as JSON (stdout by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mem, closeStore, err := openMemory(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeStore()

			data, err := mem.Export()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				fmt.Println(string(data))
				return nil
			}
			if err := os.WriteFile(args[0], data, 0o600); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Printf("Exported %d entries to %s\n", mem.Len(), args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import [file]",
		Short: "Merge a memory export into the stored log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import: %w", err)
			}
			mem, closeStore, err := openMemory(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeStore()

			n, err := mem.Import(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d new entries (%d total)\n", n, mem.Len())
			return nil
		},
	})

	var force bool
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Drop entries older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			mem, closeStore, err := openMemory(cmd.Context(), force)
			if err != nil {
				return err
			}
			defer closeStore()

			removed, ran := mem.Cleanup(cmd.Context())
			if !ran {
				fmt.Println("Cleanup already ran within the cleanup interval (use --force).")
				return nil
			}
			fmt.Printf("Removed %d entries, %d remain\n", removed, mem.Len())
			return nil
		},
	}
	cleanup.Flags().BoolVar(&force, "force", false, "ignore the cleanup interval")
	cmd.AddCommand(cleanup)
	return cmd
}

// openMemory opens just the memory log. force makes the next cleanup run
// regardless of when the last one did.
func openMemory(ctx context.Context, force bool) (*memory.Memory, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	st := openStore(ctx, cfg.Storage)
	interval := time.Duration(cfg.Memory.CleanupIntervalHours) * time.Hour
	if force {
		interval = time.Nanosecond
	}
	mem := memory.New(ctx, memory.Config{
		Store:           st,
		MaxEntries:      cfg.Memory.MaxEntries,
		RetentionDays:   cfg.Memory.RetentionDays,
		CleanupInterval: interval,
		Logger:          logger,
	})
	return mem, func() { _ = st.Close() }, nil
}

func backupCmd() *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive stored memory, bookings, reviews and search cache",
		Long: `Writes every stored namespace to a .tar.gz archive, whatever the storage
backend. The archive is timestamped by default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if outputPath == "" {
				dir := filepath.Join(config.DefaultConfigDir(), "backups")
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("cannot create backup directory: %w", err)
				}
				outputPath = filepath.Join(dir, fmt.Sprintf("coolcar-backup-%s.tar.gz", time.Now().Format("20060102-150405")))
			}

			st, err := store.Open(cmd.Context(), cfg.Storage, logger)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer st.Close()

			f, err := os.Create(outputPath)
			if err != nil {
				return err
			}
			saved, err := store.Backup(cmd.Context(), st, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}
			fmt.Printf("Backup created: %s\n", outputPath)
			for _, ns := range saved {
				fmt.Printf("  - %s\n", ns)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default: ~/.coolcar/backups/coolcar-backup-<timestamp>.tar.gz)")
	return cmd
}

func restoreCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "restore [file.tar.gz]",
		Short: "Restore stored data from a backup archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("restore overwrites stored memory, bookings and reviews (use --force to proceed)")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cmd.Context(), cfg.Storage, logger)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer st.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			restored, err := store.Restore(cmd.Context(), st, f)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			fmt.Printf("Restored from %s:\n", args[0])
			for _, ns := range restored {
				fmt.Printf("  - %s\n", ns)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite stored data")
	return cmd
}
