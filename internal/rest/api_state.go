package rest

import (
	"net/http"
	"strings"

	"github.com/sidecartridge/booster/boosterd/internal/rest/response"
)

func (s *Server) apiDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = response.NotImplemented(nil).Render(w)

		return
	}

	_ = response.SyncResponse(true, s.mgr.DownloadState()).Render(w)
}

func (s *Server) apiLaunch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = response.NotImplemented(nil).Render(w)

		return
	}

	_ = response.SyncResponse(true, s.mgr.LaunchState()).Render(w)
}

// swagger:operation GET /1.0/lookup lookup lookup_get
//
//	Get the flash lookup table
//
//	Returns the application to configuration slot assignments. With format=text a
//	plain text dump is returned instead, gzip compressed when the client accepts it.
//
//	---
//	produces:
//	  - application/json
//	  - text/plain
//	responses:
//	  "200":
//	    description: Lookup table
func (s *Server) apiLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = response.NotImplemented(nil).Render(w)

		return
	}

	if r.URL.Query().Get("format") == "text" {
		var out strings.Builder

		err := s.mgr.PrintLookup(&out)
		if err != nil {
			_ = response.InternalError(err).Render(w)

			return
		}

		compress := strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")

		_ = response.SyncResponsePlain(true, compress, out.String()).Render(w)

		return
	}

	table, err := s.mgr.LookupEntries()
	if err != nil {
		_ = response.InternalError(err).Render(w)

		return
	}

	_ = response.SyncResponseETag(true, table, table).Render(w)
}

func (s *Server) apiLookupErase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		_ = response.NotImplemented(nil).Render(w)

		return
	}

	err := s.mgr.EraseLookup()
	if err != nil {
		_ = response.InternalError(err).Render(w)

		return
	}

	_ = response.EmptySyncResponse.Render(w)
}

func (s *Server) apiStorage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = response.NotImplemented(nil).Render(w)

		return
	}

	_ = response.SyncResponse(true, s.mgr.RefreshStorage().API()).Render(w)
}
