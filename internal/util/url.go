package util

import (
	"errors"
	"strings"
)

const (
	maxProtocolLength = 16
	maxHostLength     = 128
	maxURILength      = 256
)

// ErrInvalidURL is returned when a URL can't be split into its components.
var ErrInvalidURL = errors.New("invalid URL")

// URLComponents holds the parts of a download URL.
type URLComponents struct {
	Protocol string
	Host     string
	URI      string
}

// String rebuilds the URL from its components.
func (u URLComponents) String() string {
	return u.Protocol + "://" + u.Host + u.URI
}

// ParseURL splits a URL of the form "<protocol>://<host><uri>" into its components.
// The URI starts at the first slash following the host and may be empty.
func ParseURL(raw string) (URLComponents, error) {
	protocol, rest, ok := strings.Cut(raw, "://")
	if !ok || protocol == "" {
		return URLComponents{}, ErrInvalidURL
	}

	if len(protocol) >= maxProtocolLength {
		return URLComponents{}, ErrInvalidURL
	}

	host := rest
	uri := ""

	idx := strings.Index(rest, "/")
	if idx >= 0 {
		host = rest[:idx]
		uri = rest[idx:]
	}

	if host == "" || len(host) >= maxHostLength {
		return URLComponents{}, ErrInvalidURL
	}

	if len(uri) >= maxURILength {
		uri = uri[:maxURILength-1]
	}

	return URLComponents{
		Protocol: protocol,
		Host:     host,
		URI:      uri,
	}, nil
}
