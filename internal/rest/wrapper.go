package rest

import (
	"errors"
	"io"
	"net/http"

	"github.com/sidecartridge/booster/boosterd/internal/install"
	"github.com/sidecartridge/booster/boosterd/internal/launch"
	"github.com/sidecartridge/booster/boosterd/internal/lookup"
	"github.com/sidecartridge/booster/boosterd/internal/manager"
	"github.com/sidecartridge/booster/boosterd/internal/rest/response"
)

type countWrapper struct {
	io.ReadCloser

	n int
}

func (w *countWrapper) Read(p []byte) (int, error) {
	n, err := w.ReadCloser.Read(p)
	w.n += n

	return n, err
}

func getAPIRoot(_ *http.Request) string {
	return "/1.0"
}

// smartError maps application manager errors to API responses.
func smartError(err error) response.Response {
	switch {
	case errors.Is(err, install.ErrNotUUID), errors.Is(err, launch.ErrNotUUID),
		errors.Is(err, install.ErrBase64), errors.Is(err, install.ErrParseJSON),
		errors.Is(err, install.ErrParseMD5), errors.Is(err, install.ErrCannotStartDownload):
		return response.BadRequest(err)
	case errors.Is(err, lookup.ErrNotFound), errors.Is(err, manager.ErrNotFound):
		return response.NotFound(err)
	case errors.Is(err, install.ErrDownloadInProgress), errors.Is(err, manager.ErrLaunchInProgress):
		return response.Conflict(err)
	case errors.Is(err, install.ErrStorageNotReady), errors.Is(err, launch.ErrStorageNotReady):
		return response.Unavailable(err)
	}

	return response.InternalError(err)
}
