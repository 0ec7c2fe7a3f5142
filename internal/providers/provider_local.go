package providers

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sidecartridge/booster/boosterd/internal/util"
)

// Local serves file:// URLs from a folder, for development installs.
//
// The URL host is ignored and the URI is resolved relative to the folder.
type Local struct {
	fs        afero.Fs
	path      string
	chunkSize int
}

// NewLocal returns a Local provider rooted at path.
func NewLocal(fsys afero.Fs, path string) *Local {
	return &Local{
		fs:        fsys,
		path:      path,
		chunkSize: DefaultChunkSize,
	}
}

// Start opens the file and streams it through the callbacks.
func (p *Local) Start(ctx context.Context, u util.URLComponents, cb Callbacks) (*Request, error) {
	// Deal with missing path.
	_, err := p.fs.Stat(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrProviderUnavailable
		}

		return nil, err
	}

	target := filepath.Join(p.path, filepath.Clean("/"+u.URI))

	return startRequest(ctx, cb, p.chunkSize, func(_ context.Context) (int, int64, io.ReadCloser, error) {
		f, err := p.fs.Open(target)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return http.StatusNotFound, 0, nil, nil
			}

			return 0, 0, nil, err
		}

		info, err := f.Stat()
		if err != nil {
			_ = f.Close()

			return 0, 0, nil, err
		}

		return http.StatusOK, info.Size(), f, nil
	}), nil
}
