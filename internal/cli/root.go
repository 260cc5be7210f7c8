package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mentor-desk/internal/config"
	"mentor-desk/internal/journal"
	"mentor-desk/internal/logging"
	"mentor-desk/internal/rules"
	"mentor-desk/internal/security"
	"mentor-desk/internal/store"
	"mentor-desk/internal/stream"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// commandTimeout bounds a single CLI command.
const commandTimeout = 30 * time.Second

// App holds the application dependencies. The store, change hub and audit
// log are opened on first use so that version and config commands work
// without a database.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	Store   store.DataStore
	Hub     *stream.Hub
	Audit   *security.AuditLogger
	Access  *security.AccessController
	Journal *journal.Journal

	cancel context.CancelFunc
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "mentor",
		Short: "Mentor Desk - trading checklists and journal",
		Long: `Mentor Desk keeps a trader's buy and sell checklists, journals their trades
and summarizes performance for review with a mentor.

Scenarios and trade notes are checked against the checklist rules with a
keyword heuristic: a rule is met when one of its longer words appears in the
text.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if dir, _ := cmd.Flags().GetString("config"); dir != "" {
				loaded, err := config.Load(dir)
				if err != nil {
					return reportError(NewOutput(cmd), err)
				}
				app.Config = loaded
				app.Logger = NewLogger(loaded)
			}
			if app.Config == nil {
				loaded, err := config.Load("")
				if err != nil {
					return reportError(NewOutput(cmd), err)
				}
				app.Config = loaded
				app.Logger = NewLogger(loaded)
			}

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/mentor-desk)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addRulesCommands(rootCmd, app)
	addTradesCommands(rootCmd, app)
	addStatsCommands(rootCmd, app)
	addHelpCommands(rootCmd, app)

	return rootCmd
}

// NewLogger builds the application logger from configuration.
func NewLogger(cfg *config.Config) zerolog.Logger {
	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.File = cfg.Log.File
	logCfg.FilePath = filepath.Join(filepath.Dir(cfg.Path), "logs", "mentor.log")
	logCfg.MaxSize = cfg.Log.MaxSize
	logCfg.MaxBackups = cfg.Log.MaxBackups
	logCfg.MaxAge = cfg.Log.MaxAge
	return logging.NewLoggerWithConfig(logCfg)
}

// open wires the store, change hub, audit log and journal services.
func (a *App) open() error {
	if a.Journal != nil {
		return nil
	}
	cfg := a.Config

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	ds, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	a.Store = ds
	a.Logger.Debug().Str("path", cfg.Storage.Path).Msg("SQLite store initialized")

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.Hub = stream.NewHub()
	if err := a.Hub.Start(ctx); err != nil {
		return err
	}

	if cfg.Audit.Enabled {
		auditCfg := security.DefaultAuditConfig()
		auditCfg.LogDir = cfg.Audit.LogDir
		audit, err := security.NewAuditLogger(auditCfg)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Audit log unavailable")
		} else {
			audit.SetMentorID(cfg.Journal.DefaultMentorID)
			audit.Attach(a.Hub)
			a.Audit = audit
		}
	}

	a.Access = security.NewAccessController(cfg.Security.ReadOnlyMode, a.Audit)
	a.Access.SetLogger(a.Logger)
	a.Journal = journal.New(ds,
		journal.WithFeed(a.Hub),
		journal.WithAccessController(a.Access),
		journal.WithValidator(security.NewTradeValidator(cfg.Security.StrictValidation)),
		journal.WithMatcher(rules.NewTokenOverlapMatcher(cfg.Rules.MinTokenLength)),
		journal.WithLogger(a.Logger),
		journal.WithStatusDerivation(cfg.Journal.DeriveStatusFromPnL),
		journal.WithDefaultSource(cfg.DefaultTradeSource()),
		journal.WithDefaultMentorID(cfg.Journal.DefaultMentorID),
	)
	return nil
}

// Close stops the hub, letting queued changes reach the audit log, and
// releases the store.
func (a *App) Close() {
	if a.Hub != nil {
		a.Hub.Stop()
		a.Hub = nil
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Audit != nil {
		a.Audit.Close()
		a.Audit = nil
	}
	if a.Store != nil {
		a.Store.Close()
		a.Store = nil
	}
	a.Journal = nil
}

// run opens the app for the duration of one command.
func (a *App) run(fn func(ctx context.Context, j *journal.Journal, output *Output, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		output := a.output(cmd)
		if err := a.open(); err != nil {
			a.Close()
			return reportError(output, fmt.Errorf("failed to open journal: %w", err))
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()
		ctx = logging.WithLogger(ctx, a.Logger)

		if err := fn(ctx, a.Journal, output, args); err != nil {
			return reportError(output, err)
		}
		return nil
	}
}

func (a *App) output(cmd *cobra.Command) *Output {
	output := NewOutput(cmd)
	if a.Config != nil {
		output.WithFormatter(Formatter{
			CurrencySymbol: a.Config.UI.CurrencySymbol,
			DateFormat:     a.Config.UI.DateFormat,
		}).WithColor(a.Config.UI.ColorEnabled)
	}
	return output
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("Mentor Desk v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": app.Config.Path})
			}
			output.Println(app.Config.Path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Storage")
	output.Printf("  Database:          %s\n", cfg.Storage.Path)
	output.Println()

	output.Bold("Journal")
	output.Printf("  Derive status:     %v\n", cfg.Journal.DeriveStatusFromPnL)
	output.Printf("  Default source:    %s\n", cfg.Journal.DefaultSource)
	output.Printf("  Default mentor:    %s\n", cfg.Journal.DefaultMentorID)
	output.Println()

	output.Bold("Rules")
	output.Printf("  Min token length:  %d\n", cfg.Rules.MinTokenLength)
	output.Println()

	output.Bold("Security")
	output.Printf("  Read-only:         %v\n", cfg.Security.ReadOnlyMode)
	output.Printf("  Strict validation: %v\n", cfg.Security.StrictValidation)
	output.Printf("  Audit log:         %v (%s)\n", cfg.Audit.Enabled, cfg.Audit.LogDir)
	output.Println()

	output.Bold("Display")
	output.Printf("  Currency:          %s\n", cfg.UI.CurrencySymbol)
	output.Printf("  Date format:       %s\n", cfg.UI.DateFormat)
	output.Printf("  Log level:         %s\n", cfg.Log.Level)
}
