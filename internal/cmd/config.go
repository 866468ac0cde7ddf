package cmd

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/nimbusview/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after merging embedded defaults, the config file,
NIMBUSVIEW_* environment variables and flags.

Secrets (source.sas_token) are redacted.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configuration keys and their environment variables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		prefix := appIdentity.EnvPrefix
		for _, key := range config.DefaultKeys() {
			if _, err := fmt.Fprintf(out, "%s\t%s\n", key, envName(prefix, key)); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configKeysCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg := *config.GetConfig()
	if cfg.Source.SASToken != "" {
		cfg.Source.SASToken = "<redacted>"
	}
	data, err := config.Dump(&cfg)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to render configuration", err)
	}

	out := cmd.OutOrStdout()
	if file := config.ConfigFileUsed(); file != "" {
		if _, err := fmt.Fprintf(out, "# config file: %s\n", file); err != nil {
			return err
		}
	}
	_, err = out.Write(data)
	return err
}

func envName(prefix, key string) string {
	return prefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
