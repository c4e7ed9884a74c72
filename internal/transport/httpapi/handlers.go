package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"disasterwatch/internal/domain/disaster"
	"disasterwatch/internal/errs"
	"disasterwatch/internal/usecase/disasters"
)

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	now := a.clock.Now()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": now.UTC().Format(time.RFC3339),
		"uptime":    now.Sub(a.started).Seconds(),
	})
}

type disasterRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Tags         tagList `json:"tags"`
	LocationName string  `json:"location_name"`
	UserID       *string `json:"user_id"`
}

func (req disasterRequest) input() disasters.RecordInput {
	return disasters.RecordInput{
		Title:        req.Title,
		Description:  req.Description,
		Tags:         req.Tags,
		LocationName: req.LocationName,
		UserID:       req.UserID,
	}
}

// positiveInt returns the query value or 0 when missing or malformed.
func positiveInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func (a *API) listDisasters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := a.svc.List(r.Context(), disasters.ListInput{
		Tags:    disaster.SplitTags(q.Get("tags")),
		Mode:    q.Get("tagsMatchMode"),
		Page:    positiveInt(q.Get("page")),
		PerPage: positiveInt(q.Get("perPage")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) getDisaster(w http.ResponseWriter, r *http.Request) {
	d, err := a.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) createDisaster(w http.ResponseWriter, r *http.Request) {
	var req disasterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := a.svc.Create(r.Context(), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (a *API) updateDisaster(w http.ResponseWriter, r *http.Request) {
	var req disasterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := a.svc.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) deleteDisaster(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) socialMedia(w http.ResponseWriter, r *http.Request) {
	posts, err := a.svc.SocialMedia(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// coordinate parses an optional query coordinate; empty means absent.
func coordinate(raw string, name string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errs.Mark(errs.ErrValidation, nil, name+" must be a number")
	}
	return &v, nil
}

func (a *API) listResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := coordinate(q.Get("lat"), "lat")
	if err != nil {
		writeError(w, r, err)
		return
	}
	lon, err := coordinate(q.Get("lon"), "lon")
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := a.svc.Resources(r.Context(), chi.URLParam(r, "id"), disasters.NearbyInput{Lat: lat, Lon: lon})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type resourceRequest struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	LocationName string `json:"location_name"`
}

func (a *API) createResource(w http.ResponseWriter, r *http.Request) {
	var req resourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.svc.CreateResource(r.Context(), chi.URLParam(r, "id"), disasters.ResourceInput{
		Name:         req.Name,
		Type:         req.Type,
		LocationName: req.LocationName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
