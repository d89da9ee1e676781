package handlers

import (
	"net/http"

	"github.com/Dias221467/TimeCapsule/internal/services"
)

// TagHandler serves tag listings over public capsules.
type TagHandler struct {
	Service *services.TagService
}

func NewTagHandler(service *services.TagService) *TagHandler {
	return &TagHandler{Service: service}
}

// GET /tags
func (h *TagHandler) AllTagsHandler(w http.ResponseWriter, r *http.Request) {
	tags, err := h.Service.AllTags(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// GET /tags/popular
func (h *TagHandler) PopularTagsHandler(w http.ResponseWriter, r *http.Request) {
	tags, err := h.Service.PopularTags(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// GET /tags/suggestions?q=
func (h *TagHandler) SuggestionsHandler(w http.ResponseWriter, r *http.Request) {
	tags, err := h.Service.Suggestions(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// HealthHandler reports liveness.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
