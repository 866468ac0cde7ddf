// Package azure implements delimiter listing for Azure Blob Storage containers.
//
// Public containers (such as a static website's "$web" container) are read
// without credentials. A SAS token may be supplied for private containers.
package azure

import (
	"fmt"
	"strings"
)

// DefaultMaxResults is the default page size for listing.
const DefaultMaxResults = 5000

// MaxAllowedResults is the maximum page size accepted by the Blob service.
const MaxAllowedResults = 5000

// Config configures an Azure Blob provider.
type Config struct {
	// Account is the storage account name. Required unless Endpoint is set.
	Account string

	// Container is the blob container name (required).
	Container string

	// Endpoint overrides the service URL, e.g. an Azurite emulator
	// ("http://127.0.0.1:10000/devstoreaccount1").
	Endpoint string

	// SASToken is an optional shared access signature, without leading "?".
	SASToken string

	// MaxResults is the default page size. Zero uses DefaultMaxResults.
	MaxResults int
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Container) == "" {
		return &ConfigError{Field: "Container", Message: "container name is required"}
	}
	if strings.TrimSpace(c.Account) == "" && strings.TrimSpace(c.Endpoint) == "" {
		return &ConfigError{Field: "Account", Message: "account name or endpoint is required"}
	}
	return nil
}

// ServiceURL returns the blob service URL including any SAS token.
func (c *Config) ServiceURL() string {
	base := strings.TrimRight(c.Endpoint, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.blob.core.windows.net", c.Account)
	}
	base += "/"
	if sas := strings.TrimPrefix(c.SASToken, "?"); sas != "" {
		base += "?" + sas
	}
	return base
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "azure config: " + e.Field + ": " + e.Message
}
