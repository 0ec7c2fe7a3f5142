package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sidecartridge/booster/boosterd/api"
	"github.com/sidecartridge/booster/boosterd/internal/install"
	"github.com/sidecartridge/booster/boosterd/internal/rest/response"
)

// swagger:operation GET /1.0/applications applications applications_get
//
//	Get the applications of the apps folder
//
//	Returns a list of application URLs, or the full applications with recursion=1.
//
//	---
//	produces:
//	  - application/json
//	responses:
//	  "200":
//	    description: List of applications
//	  "500":
//	    $ref: "#/responses/InternalServerError"

// swagger:operation POST /1.0/applications applications applications_post
//
//	Download an application
//
//	Stages an application descriptor and requests its download. The descriptor is
//	either the request body or a base64 encoded "json" query parameter.
//
//	---
//	consumes:
//	  - application/json
//	produces:
//	  - application/json
//	responses:
//	  "201":
//	    description: Download requested
//	  "400":
//	    $ref: "#/responses/BadRequest"
//	  "409":
//	    $ref: "#/responses/Conflict"
func (s *Server) apiApplications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		apps, err := s.mgr.ListApps()
		if err != nil {
			_ = response.InternalError(err).Render(w)

			return
		}

		if r.URL.Query().Get("recursion") == "1" {
			_ = response.SyncResponse(true, apps).Render(w)

			return
		}

		endpoint, _ := url.JoinPath(getAPIRoot(r), "applications")

		urls := []string{}

		for _, app := range apps {
			appURL, _ := url.JoinPath(endpoint, app.UUID)
			urls = append(urls, appURL)
		}

		_ = response.SyncResponse(true, urls).Render(w)

	case http.MethodPost:
		app, err := s.stageApplication(r)
		if err != nil {
			_ = smartError(err).Render(w)

			return
		}

		err = s.mgr.RequestDownload()
		if err != nil {
			_ = smartError(err).Render(w)

			return
		}

		location, _ := url.JoinPath(getAPIRoot(r), "download")

		_ = response.SyncResponseLocation(true, app, location).Render(w)

	default:
		_ = response.NotImplemented(nil).Render(w)
	}
}

func (s *Server) stageApplication(r *http.Request) (api.Application, error) {
	encoded := r.URL.Query().Get("json")
	if encoded != "" {
		return s.mgr.SaveAppBase64(encoded)
	}

	counter := &countWrapper{ReadCloser: r.Body}

	body, err := io.ReadAll(io.LimitReader(counter, 64*1024))
	if err != nil {
		return api.Application{}, err
	}

	if counter.n == 0 {
		return api.Application{}, fmt.Errorf("%w: missing application descriptor", install.ErrParseJSON)
	}

	// Either a wrapped descriptor or the descriptor itself.
	post := api.ApplicationPost{}

	err = json.Unmarshal(body, &post)
	if err == nil && post.Encoded != "" {
		return s.mgr.SaveAppBase64(post.Encoded)
	}

	if err == nil && post.Descriptor != nil {
		body, err = json.Marshal(post.Descriptor)
		if err != nil {
			return api.Application{}, err
		}
	}

	return s.mgr.SaveApp(body)
}

// swagger:operation GET /1.0/applications/{uuid} applications application_get
//
//	Get an application
//
//	---
//	produces:
//	  - application/json
//	responses:
//	  "200":
//	    description: Application
//	  "404":
//	    $ref: "#/responses/NotFound"

// swagger:operation DELETE /1.0/applications/{uuid} applications application_delete
//
//	Delete an application
//
//	Removes the application files and frees its configuration slot. When the lookup
//	table can't be saved the application is still removed and the response metadata
//	carries a warning.
//
//	---
//	produces:
//	  - application/json
//	responses:
//	  "200":
//	    $ref: "#/responses/EmptySyncResponse"
//	  "404":
//	    $ref: "#/responses/NotFound"
//	  "503":
//	    $ref: "#/responses/Unavailable"
func (s *Server) apiApplicationsEndpoint(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("uuid")

	switch r.Method {
	case http.MethodGet:
		app, err := s.mgr.GetApp(id)
		if err != nil {
			_ = smartError(err).Render(w)

			return
		}

		_ = response.SyncResponse(true, app).Render(w)

	case http.MethodDelete:
		err := s.mgr.DeleteApp(id)

		// The application is gone even when its lookup table entry couldn't be saved.
		var persistErr *install.PersistError
		if errors.As(err, &persistErr) {
			_ = response.SyncResponse(true, map[string]string{"warning": install.ErrorString(err)}).Render(w)

			return
		}

		if err != nil {
			_ = smartError(err).Render(w)

			return
		}

		_ = response.EmptySyncResponse.Render(w)

	default:
		_ = response.NotImplemented(nil).Render(w)
	}
}

func (s *Server) apiApplicationsLaunch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		_ = response.NotImplemented(nil).Render(w)

		return
	}

	err := s.mgr.ScheduleLaunch(r.PathValue("uuid"))
	if err != nil {
		_ = smartError(err).Render(w)

		return
	}

	location, _ := url.JoinPath(getAPIRoot(r), "launch")

	_ = response.SyncResponseLocation(true, s.mgr.LaunchState(), location).Render(w)
}
