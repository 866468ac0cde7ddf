package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/nimbusview/internal/config"
	"github.com/3leaps/nimbusview/internal/observability"
	"github.com/3leaps/nimbusview/pkg/provider"
)

var doctorTimeout time.Duration

var doctorCmd = &cobra.Command{
	Use:   "doctor [uri]",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the environment and, when a container URI is given
or configured, on access to that container.

Examples:
  nimbusview doctor
  nimbusview doctor az://myaccount/\$web/
  nimbusview doctor s3://bucket/ --profile prod`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	addSourceFlags(doctorCmd)
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 15*time.Second, "Timeout for the container probe")
}

// doctorCheck is one diagnostic. A non-empty detail is shown on success.
type doctorCheck struct {
	name string
	run  func(ctx context.Context) (detail string, err error)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	logger := observability.CLILogger
	cfg := config.GetConfig()

	bannerName := "doctor"
	if id := GetAppIdentity(); id != nil && id.BinaryName != "" {
		bannerName = id.BinaryName + " doctor"
	}
	logger.Info("=== " + bannerName + " ===")

	checks := environmentChecks()
	if len(args) > 0 || cfg.Source.URI != "" {
		checks = append(checks, sourceChecks(cmd, args, cfg)...)
	}

	failed := runDoctorChecks(cmd.Context(), logger, checks)
	if failed > 0 {
		logger.Warn("Some checks failed. Review the output above for details.", zap.Int("failed", failed))
		return exitError(foundry.ExitExternalServiceUnavailable, "Diagnostics failed", fmt.Errorf("%d of %d checks failed", failed, len(checks)))
	}
	logger.Info("All checks passed.")
	return nil
}

func runDoctorChecks(ctx context.Context, logger *zap.Logger, checks []doctorCheck) int {
	failed := 0
	for i, c := range checks {
		label := fmt.Sprintf("[%d/%d] %s", i+1, len(checks), c.name)
		detail, err := c.run(ctx)
		if err != nil {
			failed++
			logger.Error(label+": failed", zap.Error(err))
			continue
		}
		logger.Info(label+": ok", zap.String("detail", detail))
	}
	return failed
}

func environmentChecks() []doctorCheck {
	return []doctorCheck{
		{name: "Go runtime", run: func(context.Context) (string, error) {
			return fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH), nil
		}},
		{name: "Gofulmen", run: func(context.Context) (string, error) {
			v := crucible.GetVersion()
			if v.Gofulmen == "" {
				return "", fmt.Errorf("gofulmen version unavailable")
			}
			return "v" + v.Gofulmen, nil
		}},
		{name: "Config directory", run: func(context.Context) (string, error) {
			return os.UserConfigDir()
		}},
		{name: "Configuration", run: func(context.Context) (string, error) {
			cfg := config.GetConfig()
			if cfg == nil {
				return "", fmt.Errorf("configuration not loaded")
			}
			if err := cfg.Validate(); err != nil {
				return "", err
			}
			if file := config.ConfigFileUsed(); file != "" {
				return file, nil
			}
			return "defaults and environment", nil
		}},
	}
}

func sourceChecks(cmd *cobra.Command, args []string, cfg *config.Config) []doctorCheck {
	var uri *ContainerURI
	checks := []doctorCheck{
		{name: "Container URI", run: func(context.Context) (string, error) {
			u, err := resolveSource(args, cfg)
			if err != nil {
				return "", err
			}
			uri = u
			return u.String(), nil
		}},
	}

	checks = append(checks, doctorCheck{name: "AWS credentials", run: func(ctx context.Context) (string, error) {
		if uri == nil || uri.Provider != provider.ProviderS3 {
			return "not applicable", nil
		}
		if cfg.Source.Anonymous {
			return "anonymous", nil
		}
		return checkAWSCredentials(ctx, cfg.Source.Profile)
	}})

	checks = append(checks, doctorCheck{name: "Container listing", run: func(ctx context.Context) (string, error) {
		if uri == nil {
			return "", fmt.Errorf("no valid URI")
		}
		ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
		defer cancel()

		p, err := openSource(ctx, uri, cfg.Source, 1)
		if err != nil {
			return "", err
		}
		defer func() { _ = p.Close() }()

		start := time.Now()
		prefix := startPrefix(cmd, uri)
		if err := (sourceHealthChecker{lister: p, prefix: prefix}).CheckHealth(ctx); err != nil {
			return "", fmt.Errorf("%w%s", err, accessHint(err))
		}
		return fmt.Sprintf("listed /%s in %s", prefix, time.Since(start).Round(time.Millisecond)), nil
	}})
	return checks
}

func checkAWSCredentials(ctx context.Context, profile string) (string, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("load AWS config: %w", err)
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		return "", fmt.Errorf("retrieve credentials (set AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY, use --profile, or pass --anonymous for public buckets): %w", err)
	}
	source := creds.Source
	if source == "" {
		source = "unknown"
	}
	return fmt.Sprintf("%s via %s", maskAccessKey(creds.AccessKeyID), source), nil
}

// maskAccessKey masks all but the last 4 characters of an access key.
func maskAccessKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func accessHint(err error) string {
	switch {
	case provider.IsAccessDenied(err), provider.IsInvalidCredentials(err):
		return " (public containers need anonymous read access; private ones a SAS token or credentials)"
	case provider.IsBucketNotFound(err):
		return " (check the account and container names)"
	case provider.IsThrottled(err):
		return " (the service is throttling; retry later)"
	default:
		return ""
	}
}
