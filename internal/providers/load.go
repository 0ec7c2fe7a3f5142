package providers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/afero"
)

// Registry maps URL protocols to providers.
type Registry map[string]Provider

// NewRegistry returns the default providers: http and https through client, and
// file:// URLs served from localPath when it is set.
func NewRegistry(client *http.Client, localPath string) Registry {
	httpProvider := NewHTTP(client).WithRetries(3)

	registry := Registry{
		"http":  httpProvider,
		"https": httpProvider,
	}

	if localPath != "" {
		registry["file"] = NewLocal(afero.NewOsFs(), localPath)
	}

	return registry
}

// Load gets the provider for a protocol.
func (r Registry) Load(protocol string) (Provider, error) {
	provider, ok := r[strings.ToLower(protocol)]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedProtocol, protocol)
	}

	return provider, nil
}
