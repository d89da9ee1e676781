package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Dias221467/TimeCapsule/internal/services"
	"github.com/Dias221467/TimeCapsule/pkg/middleware"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// UserHandler handles HTTP requests related to user profiles and follows.
type UserHandler struct {
	Service *services.UserService
}

// NewUserHandler creates a new instance of UserHandler.
func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{Service: service}
}

// RegisterUserHandler stores the profile of the authenticated caller. The id
// comes from the token, never from the body.
// POST /users
func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		log.WithError(err).Warn("Failed to decode user registration request")
		badRequest(w, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	user, err := h.Service.RegisterUser(r.Context(), userID, body.Name, body.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.WithField("userID", user.ID).Info("User registered successfully")
	writeJSON(w, http.StatusCreated, user)
}

// GET /users/{id}
func (h *UserHandler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.UserIDFromContext(r.Context())
	profile, err := h.Service.GetProfile(r.Context(), mux.Vars(r)["id"], viewerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// POST /users/{id}/follow
func (h *UserHandler) ToggleFollowHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	following, err := h.Service.ToggleFollow(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isFollowing": following})
}

// PUT /users/me/preferredTags
func (h *UserHandler) SavePreferredTagsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	tags, err := h.Service.SavePreferredTags(r.Context(), userID, body.Tags)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"preferredTags": tags})
}
