package providers

import (
	"errors"
)

var (
	// ErrProviderUnavailable is returned when a provider isn't ready for use yet.
	ErrProviderUnavailable = errors.New("provider isn't currently available")

	// ErrUnsupportedProtocol is returned when no provider handles a URL scheme.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")

	// ErrHTTPStatus is returned when the server answers with anything but 200.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrRequestCancelled is reported when a request is cancelled by its owner.
	ErrRequestCancelled = errors.New("request cancelled")
)
