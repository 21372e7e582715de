package lookup

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (a *API) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(a.index)
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	a.search(w, r, r.URL.Query().Get("mac"))
}

func (a *API) handleSearchPath(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "mac"))
	if err != nil {
		raw = chi.URLParam(r, "mac")
	}
	a.search(w, r, raw)
}

func (a *API) search(w http.ResponseWriter, r *http.Request, raw string) {
	records, err := a.service.Search(r.Context(), raw)
	status, body := NewResponse(records, err)
	if status >= http.StatusInternalServerError {
		a.logger.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("lookup failed")
	}
	respondJSON(w, status, body)
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondText(w, http.StatusOK, "ok")
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.service.Ping(r.Context()); err != nil {
		a.logger.Warn().Err(err).Msg("readiness check failed")
		respondText(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respondText(w, http.StatusOK, "ready")
}
