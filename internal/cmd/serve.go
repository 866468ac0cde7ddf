package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/nimbusview/internal/config"
	"github.com/3leaps/nimbusview/internal/observability"
	"github.com/3leaps/nimbusview/internal/server"
	"github.com/3leaps/nimbusview/internal/server/handlers"
	"github.com/3leaps/nimbusview/pkg/listing"
	"github.com/3leaps/nimbusview/pkg/navigator"
	"github.com/3leaps/nimbusview/pkg/navpath"
	"github.com/3leaps/nimbusview/pkg/provider"
)

var serveCmd = &cobra.Command{
	Use:   "serve [uri]",
	Short: "Serve the listing API over HTTP",
	Long: `Start an HTTP server exposing the listing API for one container.

Every browser session (cookie) gets its own navigation history and paging
state; all sessions share one page cache.

Endpoints:
  GET  /api/v1/listing?prefix=&page=&sort=   current view (page is 0-based)
  POST /api/v1/back, /api/v1/forward         history navigation
  GET  /browse/<prefix>                      path-form entry point
  GET  /health, /health/live, /health/ready, /health/startup
  GET  /version, /metrics

Examples:
  nimbusview serve az://myaccount/\$web/
  nimbusview serve s3://bucket/ --anonymous --port 9000`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addSourceFlags(serveCmd)
	serveCmd.Flags().String("host", "localhost", "Listen host")
	serveCmd.Flags().Int("port", 8080, "Listen port")
	serveCmd.Flags().Int("max-sessions", 256, "Maximum concurrent browsing sessions")
	serveCmd.Flags().Bool("no-prefetch", false, "Disable background prefetching")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.GetConfig()
	logger := observability.CLILogger

	uri, err := resolveSource(args, cfg)
	if err != nil {
		return err
	}
	prefix := startPrefix(cmd, uri)

	p, err := openSource(ctx, uri, cfg.Source, cfg.Browse.PageSize)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	var (
		metrics   *observability.Metrics
		navMetric navigator.Metrics
		cacheOpts []listing.CacheOption
	)
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
		navMetric = metrics
		cacheOpts = append(cacheOpts, listing.WithObserver(metrics))
	}

	navCfg, err := cfg.Navigator(logger, navMetric)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	cache := newCache(p, cacheOpts...)

	browserCfg := handlers.BrowserConfig{
		NewNavigator: func(location string) *navigator.Navigator {
			if location == "/" && prefix != "" {
				location = navpath.LocationFor(prefix)
			}
			return navigator.New(cache, navigator.NewMemoryHistory(location), navCfg)
		},
		MaxSessions: cfg.Browse.MaxSessions,
		Logger:      logger,
	}
	if metrics != nil {
		browserCfg.OnSessions = metrics.SessionsActive
	}
	browser := handlers.NewBrowser(browserCfg)

	opts := []server.Option{
		server.WithBrowser(browser),
		server.WithLogger(logger),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
	}
	if metrics != nil {
		opts = append(opts, server.WithMetrics(metrics.Handler(), metrics))
	}
	if cfg.Health.Enabled {
		hm := handlers.InitHealthManager(versionInfo.Version)
		hm.RegisterChecker("source", sourceHealthChecker{lister: p, prefix: prefix})
		hm.RegisterChecker("identity", identityHealthChecker{
			binaryName: appIdentity.BinaryName,
			envPrefix:  appIdentity.EnvPrefix,
			configName: appIdentity.ConfigName,
		})
	} else {
		opts = append(opts, server.WithoutHealth())
	}

	srv := server.New(cfg.Server.Host, cfg.Server.Port, opts...)
	logger.Info("Serving container",
		zap.String("uri", uri.String()),
		zap.String("prefix", prefix),
		zap.String("addr", srv.Addr()),
		zap.Bool("metrics", metrics != nil),
	)

	if err := srv.Start(ctx, cfg.Server.ShutdownTimeout); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
	}
	return nil
}

// sourceHealthChecker probes the container with a one-key listing of prefix.
type sourceHealthChecker struct {
	lister provider.DelimiterLister
	prefix string
}

func (c sourceHealthChecker) CheckHealth(ctx context.Context) error {
	if c.lister == nil {
		return errors.New("source not configured")
	}
	_, err := c.lister.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{
		Prefix:    c.prefix,
		Delimiter: listing.Delimiter,
		MaxKeys:   1,
	})
	if err != nil {
		return fmt.Errorf("source listing failed: %w", err)
	}
	return nil
}

type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (c identityHealthChecker) CheckHealth(context.Context) error {
	switch {
	case c.binaryName == "":
		return errors.New("missing binary name")
	case c.envPrefix == "":
		return errors.New("missing env prefix")
	case c.configName == "":
		return errors.New("missing config name")
	}
	return nil
}
