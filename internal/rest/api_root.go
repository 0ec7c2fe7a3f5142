package rest

import (
	"net/http"

	"github.com/sidecartridge/booster/boosterd/internal/rest/response"
)

func (*Server) apiRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		_ = response.NotFound(nil).Render(w)

		return
	}

	_ = response.SyncResponse(true, []string{"/1.0"}).Render(w)
}

func (s *Server) apiRoot10(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = response.NotImplemented(nil).Render(w)

		return
	}

	info := s.mgr.Storage()

	resp := map[string]any{
		"environment": map[string]any{
			"storage_ready": info.Ready,
			"apps_folder":   info.AppsFolder,
		},
		"download": s.mgr.DownloadState(),
		"launch":   s.mgr.LaunchState(),
	}

	_ = response.SyncResponse(true, resp).Render(w)
}
