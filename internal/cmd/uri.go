package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/3leaps/nimbusview/pkg/navpath"
	"github.com/3leaps/nimbusview/pkg/provider"
)

// URI parsing errors
var (
	// ErrInvalidURI indicates the URI could not be parsed.
	ErrInvalidURI = errors.New("invalid URI")

	// ErrUnsupportedProvider indicates the URI scheme is not supported.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrMissingContainer indicates the URI is missing a bucket or container name.
	ErrMissingContainer = errors.New("missing bucket or container name")
)

const azureBlobHostSuffix = ".blob.core.windows.net"

// ContainerURI identifies a container and a starting prefix.
//
// Example URIs:
//   - s3://bucket/prefix/
//   - az://account/$web/docs/
//   - https://account.blob.core.windows.net/$web/docs/
//   - http://127.0.0.1:10000/devstoreaccount1/$web/ (emulator, path-style account)
//   - file:///srv/site
type ContainerURI struct {
	// Provider is the storage provider.
	Provider provider.ProviderType

	// Account is the Azure storage account, if any.
	Account string

	// Endpoint is an explicit Azure service endpoint for non-default hosts.
	Endpoint string

	// Container is the bucket, container, or base directory.
	Container string

	// Prefix is the normalized starting prefix ("" for root).
	Prefix string

	// SASToken is the query string of an https blob URL, if any.
	SASToken string
}

// String returns the URI in canonical form.
func (u *ContainerURI) String() string {
	switch u.Provider {
	case provider.ProviderAzureBlob:
		if u.Endpoint != "" {
			return strings.TrimSuffix(u.Endpoint, "/") + "/" + u.Container + "/" + u.Prefix
		}
		return fmt.Sprintf("az://%s/%s/%s", u.Account, u.Container, u.Prefix)
	case provider.ProviderFile:
		return "file://" + filepath.ToSlash(u.Container)
	default:
		return fmt.Sprintf("%s://%s/%s", u.Provider, u.Container, u.Prefix)
	}
}

// ParseURI parses a container URI.
//
// Supported formats:
//   - s3://bucket[/prefix/]
//   - az://account/container[/prefix/]
//   - https://account.blob.core.windows.net/container[/prefix/]
//   - http(s)://host[:port]/account/container[/prefix/]
//   - file:///path/to/dir
//
// The prefix is normalized to end with "/"; listing always browses a level.
func ParseURI(uri string) (*ContainerURI, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("%w: empty URI", ErrInvalidURI)
	}

	schemeEnd := strings.Index(uri, "://")
	if schemeEnd == -1 {
		return nil, fmt.Errorf("%w: missing scheme (expected s3://, az://, https:// or file://)", ErrInvalidURI)
	}
	scheme := strings.ToLower(uri[:schemeEnd])
	remainder := uri[schemeEnd+3:]

	switch scheme {
	case "s3":
		bucket, key := splitFirst(remainder)
		if bucket == "" {
			return nil, fmt.Errorf("%w: in %s", ErrMissingContainer, uri)
		}
		if _, err := url.Parse("s3://" + bucket + "/"); err != nil {
			return nil, fmt.Errorf("%w: invalid bucket name %q", ErrInvalidURI, bucket)
		}
		return &ContainerURI{Provider: provider.ProviderS3, Container: bucket, Prefix: navpath.Normalize(key)}, nil

	case "az", "azblob":
		account, rest := splitFirst(remainder)
		container, key := splitFirst(rest)
		if account == "" {
			return nil, fmt.Errorf("%w: missing account in %s", ErrInvalidURI, uri)
		}
		if container == "" {
			return nil, fmt.Errorf("%w: in %s", ErrMissingContainer, uri)
		}
		return &ContainerURI{Provider: provider.ProviderAzureBlob, Account: account, Container: container, Prefix: navpath.Normalize(key)}, nil

	case "http", "https":
		return parseBlobURL(scheme, remainder, uri)

	case "file":
		path := remainder
		if path == "" {
			return nil, fmt.Errorf("%w: in %s", ErrMissingContainer, uri)
		}
		return &ContainerURI{Provider: provider.ProviderFile, Container: filepath.Clean(filepath.FromSlash(path))}, nil

	default:
		return nil, fmt.Errorf("%w: %s (supported: s3, az, https, file)", ErrUnsupportedProvider, scheme)
	}
}

func parseBlobURL(scheme, remainder, uri string) (*ContainerURI, error) {
	if i := strings.Index(remainder, "#"); i >= 0 {
		remainder = remainder[:i]
	}
	remainder, sas, _ := strings.Cut(remainder, "?")
	host, path := splitFirst(remainder)
	if host == "" {
		return nil, fmt.Errorf("%w: missing host in %s", ErrInvalidURI, uri)
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}

	hostname := strings.ToLower(host)
	if i := strings.LastIndex(hostname, ":"); i >= 0 {
		hostname = hostname[:i]
	}

	if strings.HasSuffix(hostname, azureBlobHostSuffix) {
		account := strings.TrimSuffix(hostname, azureBlobHostSuffix)
		container, key := splitFirst(path)
		if container == "" {
			return nil, fmt.Errorf("%w: in %s", ErrMissingContainer, uri)
		}
		return &ContainerURI{Provider: provider.ProviderAzureBlob, Account: account, Container: container, Prefix: navpath.Normalize(key), SASToken: sas}, nil
	}

	account, rest := splitFirst(path)
	container, key := splitFirst(rest)
	if account == "" || container == "" {
		return nil, fmt.Errorf("%w: expected %s://host/account/container/ in %s", ErrMissingContainer, scheme, uri)
	}
	return &ContainerURI{
		Provider:  provider.ProviderAzureBlob,
		Account:   account,
		Endpoint:  scheme + "://" + host + "/" + account + "/",
		Container: container,
		Prefix:    navpath.Normalize(key),
		SASToken:  sas,
	}, nil
}

func splitFirst(s string) (string, string) {
	head, tail, _ := strings.Cut(s, "/")
	return head, tail
}
