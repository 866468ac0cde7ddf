package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/nimbusview/internal/config"
	"github.com/3leaps/nimbusview/internal/observability"
	"github.com/3leaps/nimbusview/pkg/listing"
	"github.com/3leaps/nimbusview/pkg/navpath"
	"github.com/3leaps/nimbusview/pkg/provider"
	"github.com/3leaps/nimbusview/pkg/provider/azure"
	"github.com/3leaps/nimbusview/pkg/provider/file"
	"github.com/3leaps/nimbusview/pkg/provider/s3"
)

// resolveSource picks the URI from the first argument or source.uri.
func resolveSource(args []string, cfg *config.Config) (*ContainerURI, error) {
	raw := ""
	if len(args) > 0 {
		raw = args[0]
	} else if cfg != nil {
		raw = cfg.Source.URI
	}
	if raw == "" {
		return nil, exitError(foundry.ExitInvalidArgument, "No container URI", config.ErrNoSource)
	}
	uri, err := ParseURI(raw)
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}
	return uri, nil
}

// openSource connects to the provider named by uri.
func openSource(ctx context.Context, uri *ContainerURI, src config.SourceConfig, pageSize int) (provider.Provider, error) {
	var (
		p   provider.Provider
		err error
	)
	switch uri.Provider {
	case provider.ProviderS3:
		p, err = s3.New(ctx, s3.Config{
			Bucket:         uri.Container,
			Region:         src.Region,
			Endpoint:       src.Endpoint,
			Profile:        src.Profile,
			Anonymous:      src.Anonymous,
			ForcePathStyle: src.ForcePathStyle,
			MaxKeys:        pageSize,
		})
	case provider.ProviderAzureBlob:
		endpoint := uri.Endpoint
		if endpoint == "" {
			endpoint = src.Endpoint
		}
		sas := uri.SASToken
		if sas == "" {
			sas = src.SASToken
		}
		p, err = azure.New(azure.Config{
			Account:    uri.Account,
			Container:  uri.Container,
			Endpoint:   endpoint,
			SASToken:   sas,
			MaxResults: pageSize,
		})
	case provider.ProviderFile:
		p, err = file.New(file.Config{BaseDir: uri.Container})
	default:
		return nil, exitError(foundry.ExitInvalidArgument, "Unsupported provider", fmt.Errorf("%w: %s", ErrUnsupportedProvider, uri.Provider))
	}
	if err != nil {
		observability.CLILogger.Error("Failed to create provider",
			zap.String("provider", string(uri.Provider)),
			zap.String("container", uri.Container),
			zap.Error(err),
		)
		return nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	observability.CLILogger.Debug("Provider ready",
		zap.String("provider", string(uri.Provider)),
		zap.String("container", uri.Container),
		zap.String("prefix", uri.Prefix),
	)
	return p, nil
}

// addSourceFlags registers the connection flags shared by ls, browse and serve.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("region", "r", "", "AWS region")
	cmd.Flags().StringP("profile", "p", "", "AWS profile")
	cmd.Flags().String("endpoint", "", "Custom S3 endpoint or Azure service URL")
	cmd.Flags().Bool("anonymous", false, "Send unsigned S3 requests (public buckets)")
	cmd.Flags().Bool("force-path-style", false, "Use path-style S3 addressing")
	cmd.Flags().String("sas-token", "", "Azure shared access signature")
	cmd.Flags().Int("page-size", listing.DefaultPageSize, "Entries per listing page")
	cmd.Flags().String("prefix", "", "Starting prefix (overrides the URI's prefix)")
}

// startPrefix returns --prefix when given, else the URI's prefix.
func startPrefix(cmd *cobra.Command, uri *ContainerURI) string {
	if f := cmd.Flags().Lookup("prefix"); f != nil && f.Changed {
		return navpath.Normalize(f.Value.String())
	}
	return uri.Prefix
}

// newCache builds the shared page cache over p.
func newCache(p provider.DelimiterLister, opts ...listing.CacheOption) *listing.Cache {
	return listing.NewCache(listing.NewFetcher(p, observability.CLILogger), opts...)
}
