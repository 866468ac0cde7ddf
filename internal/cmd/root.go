// Package cmd implements the nimbusview command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/3leaps/nimbusview/internal/appid"
	"github.com/3leaps/nimbusview/internal/config"
	"github.com/3leaps/nimbusview/internal/observability"
	"github.com/3leaps/nimbusview/internal/server/handlers"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "unknown",
	BuildDate: "unknown",
}

var appIdentity *appid.Identity

// configFlags maps command-line flags onto configuration keys. A flag only
// overrides configuration when the user set it explicitly.
var configFlags = map[string]string{
	"log-level":        "logging.level",
	"log-profile":      "logging.profile",
	"page-size":        "browse.page_size",
	"region":           "source.region",
	"endpoint":         "source.endpoint",
	"profile":          "source.profile",
	"anonymous":        "source.anonymous",
	"force-path-style": "source.force_path_style",
	"sas-token":        "source.sas_token",
	"host":             "server.host",
	"port":             "server.port",
	"max-sessions":     "browse.max_sessions",
	"no-prefetch":      "",
}

var rootCmd = &cobra.Command{
	Use:   "nimbusview",
	Short: "Browse object storage containers by prefix",
	Long: `nimbusview browses S3 buckets, Azure blob containers (including static
website $web containers) and local directories one prefix level at a time.

Listings are cached per page, paginated with provider cursors and warmed in
the background so moving up and down the hierarchy stays fast.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-profile", "structured", "Log encoding (structured, console)")
}

// SetVersionInfo records build metadata for the version command and endpoint.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	handlers.SetVersionInfo(version, commit, buildDate)
}

// GetAppIdentity returns the identity loaded by the root command, or nil
// before any command ran.
func GetAppIdentity() *appid.Identity {
	return appIdentity
}

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.Message, e.Err, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	if err == nil {
		err = errors.New(message)
	}
	return &ExitError{Code: code, Message: message, Err: err}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	if errors.Is(err, context.Canceled) {
		return foundry.ExitSignalInt
	}
	return 1
}

func initConfig(cmd *cobra.Command, _ []string) error {
	setDefaults()
	appIdentity = appid.Get()

	cfg, err := config.Load(cmd.Context(), flagOverrides(cmd.Flags()))
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	if err := observability.InitCLILogger(appIdentity.BinaryName, cfg.Logging.Level, cfg.Logging.Profile); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to initialize logging", err)
	}
	observability.CLILogger.Debug("Configuration loaded",
		zap.String("config_file", config.ConfigFileUsed()),
		zap.String("command", cmd.Name()),
	)
	return nil
}

// setDefaults registers the embedded defaults on the global viper instance
// so commands can read them before a full load.
func setDefaults() {
	if err := config.ApplyDefaults(viper.GetViper()); err != nil {
		observability.CLILogger.Warn("Failed to apply embedded defaults", zap.Error(err))
	}
}

// flagOverrides collects explicitly set flags that map to config keys.
func flagOverrides(flags *pflag.FlagSet) map[string]any {
	overrides := make(map[string]any)
	flags.Visit(func(f *pflag.Flag) {
		key, ok := configFlags[f.Name]
		if !ok {
			return
		}
		if f.Name == "no-prefetch" {
			if f.Value.String() == "true" {
				overrides["browse.prefetch_ancestors"] = false
				overrides["browse.prefetch_children"] = false
			}
			return
		}
		overrides[key] = f.Value.String()
	})
	return overrides
}
