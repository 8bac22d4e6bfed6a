package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/cpabot/core/cmd"
	coredatabase "github.com/m3rciful/cpabot/core/database"
	"github.com/m3rciful/cpabot/core/logger"
	"github.com/m3rciful/cpabot/internal/app"
	"github.com/m3rciful/cpabot/internal/bot"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		RunE:  runServe,
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	return corecmd.Run(corecmd.Options{
		ConfigPath:        configFile,
		ConfigEnvVar:      configEnvVar,
		DefaultConfigPath: defaultConfigPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := app.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			appCfg, ok := cfg.(*app.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			a, err := app.Bootstrap(ctx, appCfg)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	})
}

func newMigrateCmd() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig(resolveConfigPath())
			if err != nil {
				return err
			}
			if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()

			if !status {
				return coredatabase.RunMigrations(cfg.Database)
			}
			v, dirty, err := coredatabase.MigrationVersion(cfg.Database)
			if err != nil {
				return err
			}
			state := color.GreenString("clean")
			if dirty {
				state = color.RedString("dirty")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema version %d (%s)\n", cfg.Database.Driver, v, state)
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "print the current schema version instead of migrating")
	return cmd
}

// openApp bootstraps storage and services without starting Telegram.
func openApp(ctx context.Context, seed bool) (*app.App, error) {
	cfg, err := app.LoadConfig(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	cfg.Content.SeedDefaults = cfg.Content.SeedDefaults && seed
	return app.Bootstrap(ctx, cfg)
}

func newImportCmd() *cobra.Command {
	var contentPath, statsPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import db.json and stats.json files from the previous bot version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if contentPath == "" && statsPath == "" {
				return errors.New("nothing to import: pass --db-json and/or --stats-json")
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer func() {
				_ = a.Close()
				_ = logger.Shutdown()
			}()

			green := color.New(color.FgGreen)
			if contentPath != "" {
				rep, err := a.ImportContentFile(ctx, contentPath)
				if err != nil {
					return err
				}
				green.Print("▶ ")
				fmt.Printf("content: %d sections (%d skipped), %d quizzes, legacy proxy: %t\n",
					rep.Sections, rep.SkippedSections, rep.Quizzes, rep.LegacyProxy)
			}
			if statsPath != "" {
				rep, err := a.ImportStatsFile(ctx, statsPath)
				if err != nil {
					return err
				}
				green.Print("▶ ")
				fmt.Printf("stats: %d users, %d interactions (%d skipped)\n",
					rep.Users, rep.Interactions, rep.Skipped)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&contentPath, "db-json", "", "legacy content file (sections, proxyText, quizzes)")
	cmd.Flags().StringVar(&statsPath, "stats-json", "", "legacy stats file (users, logins)")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var recent int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print usage statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer func() {
				_ = a.Close()
				_ = logger.Shutdown()
			}()

			snap, err := a.Snapshot(cmd.Context(), recent)
			if err != nil {
				return err
			}
			cyan := color.New(color.FgCyan, color.Bold)
			green := color.New(color.FgGreen)
			yellow := color.New(color.FgYellow)

			cyan.Println("Bot statistics")
			green.Print("    ▶ ")
			fmt.Printf("Total users:   %d\n", snap.Stats.TotalUsers)
			green.Print("    ▶ ")
			fmt.Printf("Interactions:  %d\n", snap.Stats.TotalInteractions)
			green.Print("    ▶ ")
			fmt.Printf("Active today:  %d\n", snap.Stats.ActiveToday)
			fmt.Println()
			cyan.Printf("Last %d joins\n", recent)
			for _, u := range snap.Recent {
				username := u.Username
				if username == "" {
					username = "NoUser"
				}
				yellow.Print("    - ")
				fmt.Printf("%s (@%s) %s\n", u.FirstName, username, u.JoinedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&recent, "recent", "n", bot.RecentUsersShown, "number of latest joins to list")
	return cmd
}
