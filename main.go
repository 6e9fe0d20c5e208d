// Command clap4me reads, claps for and follows Medium articles by tag.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/clap4me/internal/app"
	"github.com/ibeckermayer/clap4me/internal/auth"
	"github.com/ibeckermayer/clap4me/internal/config"
	"github.com/ibeckermayer/clap4me/internal/logging"
	"github.com/ibeckermayer/clap4me/internal/scheduler"
	"github.com/ibeckermayer/clap4me/internal/store"
)

var (
	configPath string
	envFile    string
	verbose    bool
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "clap4me",
		Short: "Engage with Medium articles by tag",
		Long: `clap4me fetches the latest articles for your configured Medium tags,
reads each one in Chrome, claps for it, follows the author and optionally
leaves an LLM-written comment. Processed articles are remembered so nothing
is visited twice.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file with API keys and credentials")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		createRunCmd(),
		createScheduleCmd(),
		createLoginCmd(),
		createLogoutCmd(),
		createReportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration, creating a default one on first run, and builds the App.
func setup() (*app.App, *zap.Logger, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		// First run - create default config
		cfg = config.Default()
		if err := cfg.Save(configPath); err != nil {
			log.Printf("Warning: could not save default config: %v", err)
		} else {
			path := configPath
			if path == "" {
				path, _ = config.ConfigPath()
			}
			log.Printf("Created default config at: %s", path)
		}
	}
	cfg.ApplyEnv()

	logger, err := logging.New(verbose || cfg.Verbose)
	if err != nil {
		return nil, nil, err
	}

	cookieStorePath, err := auth.DefaultCookieStorePath()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get cookie store path: %w", err)
	}
	authManager := auth.NewManager(auth.NewCookieStore(cookieStorePath), cfg.Account, logger)

	cache, err := store.DefaultCache()
	if err != nil {
		return nil, nil, err
	}

	a, err := app.New(cfg, configPath, authManager, cache, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func createRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one engagement session now",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := signalContext()
			defer cancel()

			stats, err := a.RunSession(ctx)
			if err != nil && !app.IsCancelled(err) {
				return err
			}
			fmt.Printf("Processed %d articles: %d clapped, %d followed, %d commented, %d failed\n",
				stats.Processed, stats.Clapped, stats.Followed, stats.Commented, stats.Failed)
			return nil
		},
	}
}

func createScheduleCmd() *cobra.Command {
	var (
		now     bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run sessions on the configured cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg := a.Config()
			sched, err := scheduler.New(cfg.Schedule.Timezone, logger)
			if err != nil {
				return err
			}
			sched.SetJobTimeout(timeout)

			job := func(ctx context.Context) error {
				_, err := a.RunSession(ctx)
				return err
			}
			cronSpec := cfg.Schedule.Cron
			if err := sched.AddSessionJob(cronSpec, job); err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			sched.Start()
			for _, j := range sched.ListJobs() {
				logger.Info("Next run", zap.String("job", j.Name), zap.Time("at", j.NextRun))
			}
			if now {
				go sched.RunNow("session", job)
			}

			// SIGHUP reloads the config file without restarting.
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)

			for {
				select {
				case <-ctx.Done():
					<-sched.Stop().Done()
					return nil
				case <-hup:
					if err := a.ReloadConfig(); err != nil {
						logger.Error("Config reload failed, keeping previous config", zap.Error(err))
						continue
					}
					if next := a.Config().Schedule.Cron; next != cronSpec {
						sched.RemoveJob("session")
						if err := sched.AddSessionJob(next, job); err != nil {
							logger.Error("Invalid schedule, restoring previous", zap.String("cron", next), zap.Error(err))
							if err := sched.AddSessionJob(cronSpec, job); err != nil {
								return err
							}
							continue
						}
						cronSpec = next
					}
				}
			}
		},
	}

	cmd.Flags().BoolVar(&now, "now", false, "Also run a session immediately")
	cmd.Flags().DurationVar(&timeout, "timeout", scheduler.DefaultJobTimeout, "Maximum duration of one session")

	return cmd
}

func createLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in to Medium and store the session cookies",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := signalContext()
			defer cancel()
			return a.TriggerLogin(ctx)
		},
	}
}

func createLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored Medium session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return a.TriggerLogout()
		},
	}
}

func printRecent(a *app.App, limit int) error {
	engagements, err := a.RecentEngagements(limit)
	if err != nil {
		return err
	}
	if len(engagements) == 0 {
		fmt.Println("No engagements recorded yet.")
		return nil
	}
	for _, e := range engagements {
		fmt.Printf("%s  %-7s  %-12s claps=%-2d followed=%-5t commented=%-5t %s\n",
			e.At.Local().Format("2006-01-02 15:04"), e.Outcome, e.Tag, e.Claps, e.Followed, e.Commented, e.URL)
		if e.Error != "" {
			fmt.Printf("    %s\n", e.Error)
		}
	}
	return nil
}

func createReportCmd() *cobra.Command {
	var (
		open, email bool
		recent      int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise the most recent session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if email {
				if err := a.EmailLastReport(); err != nil {
					return err
				}
				fmt.Println("Report sent.")
				return nil
			}
			if recent > 0 {
				return printRecent(a, recent)
			}
			if open {
				return a.ViewLastReport()
			}
			r, path, err := a.BuildLastReport()
			if err != nil {
				return err
			}
			fmt.Print(r.PlainBody)
			fmt.Printf("\nHTML report: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&open, "open", false, "Open the HTML report in the default browser")
	cmd.Flags().BoolVar(&email, "email", false, "Mail the report using the [email] settings")
	cmd.Flags().IntVar(&recent, "recent", 0, "List the last N engagements across all sessions instead")

	return cmd
}
