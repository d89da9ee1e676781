package handlers

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/services"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	"github.com/Dias221467/TimeCapsule/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const maxMultipartMemory = 32 << 20

// CapsuleHandler serves capsule lifecycle, feed and ledger routes.
type CapsuleHandler struct {
	Capsules *services.CapsuleService
	Feed     *services.FeedService
	Ledger   *services.LedgerService
}

// NewCapsuleHandler creates a new instance of CapsuleHandler.
func NewCapsuleHandler(capsules *services.CapsuleService, feed *services.FeedService, ledger *services.LedgerService) *CapsuleHandler {
	return &CapsuleHandler{Capsules: capsules, Feed: feed, Ledger: ledger}
}

// CreateCapsuleHandler expects a multipart form: the capsule as JSON in the
// "data" field and its contents as "files".
// POST /capsules
func (h *CapsuleHandler) CreateCapsuleHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		logrus.WithError(err).Warn("Invalid multipart form during capsule creation")
		badRequest(w, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	var in services.CreateCapsuleInput
	if err := json.Unmarshal([]byte(r.FormValue("data")), &in); err != nil {
		badRequest(w, "Invalid capsule data")
		return
	}

	files, closeFiles, err := openUploads(r.MultipartForm.File["files"])
	defer closeFiles()
	if err != nil {
		logrus.WithError(err).Warn("Failed to open uploaded file")
		badRequest(w, "Invalid uploaded file")
		return
	}
	in.Files = files

	view, err := h.Capsules.CreateCapsule(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"userID":    userID,
		"capsuleID": view.ID.Hex(),
	}).Info("Capsule created")
	writeJSON(w, http.StatusCreated, view)
}

func openUploads(headers []*multipart.FileHeader) ([]services.Upload, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	uploads := make([]services.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		opened = append(opened, f)
		uploads = append(uploads, services.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}

// PUT /capsules/{id}
func (h *CapsuleHandler) UpdateCapsuleHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var in services.UpdateCapsuleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	view, err := h.Capsules.UpdateCapsule(r.Context(), userID, mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DELETE /capsules/{id}
func (h *CapsuleHandler) DeleteCapsuleHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.Capsules.DeleteCapsule(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Capsule deleted")
}

// DELETE /capsules/{id}/allowedUsers/me
func (h *CapsuleHandler) LeaveAllowedUsersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.Capsules.LeaveAllowedUsers(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Removed from allowed users")
}

// GET /capsules/{id}
func (h *CapsuleHandler) GetCapsuleHandler(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.UserIDFromContext(r.Context())
	view, err := h.Feed.GetCapsule(r.Context(), mux.Vars(r)["id"], viewerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GET /capsules/my
func (h *CapsuleHandler) MyCapsulesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	views, err := h.Feed.MyCapsules(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// GET /capsules/user/{id}
func (h *CapsuleHandler) UserCapsulesHandler(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.UserIDFromContext(r.Context())
	views, err := h.Feed.UserCapsules(r.Context(), mux.Vars(r)["id"], viewerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// GET /capsules/feed?page=&status=
func (h *CapsuleHandler) PersonalFeedHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	status := models.ParseStatus(r.URL.Query().Get("status"))
	views, err := h.Feed.PersonalFeed(r.Context(), userID, parsePage(r), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// GET /capsules/public?page=&status=
func (h *CapsuleHandler) PublicFeedHandler(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.UserIDFromContext(r.Context())
	status := models.ParseStatus(r.URL.Query().Get("status"))
	views, err := h.Feed.PublicFeed(r.Context(), viewerID, parsePage(r), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// GET /capsules/subscribed
func (h *CapsuleHandler) SubscribedCapsulesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	views, err := h.Feed.SubscribedCapsules(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// GET /capsules/search
func (h *CapsuleHandler) SearchCapsulesHandler(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.UserIDFromContext(r.Context())

	params, err := parseSearchParams(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	views, err := h.Feed.Search(r.Context(), viewerID, params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func parseSearchParams(r *http.Request) (services.SearchParams, error) {
	q := r.URL.Query()
	params := services.SearchParams{
		Keyword:       q.Get("keyword"),
		InTags:        parseBool(q.Get("searchInTags")),
		InName:        parseBool(q.Get("searchInName")),
		InDescription: parseBool(q.Get("searchInDescription")),
		MimeType:      q.Get("mimeType"),
		Status:        models.ParseStatus(q.Get("status")),
		Page:          parsePage(r),
	}

	var err error
	if params.OpenFrom, err = parseDate(q.Get("openFrom")); err != nil {
		return params, err
	}
	if params.OpenTo, err = parseDate(q.Get("openTo")); err != nil {
		return params, err
	}
	return params, nil
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

// parseDate accepts RFC 3339 timestamps and plain dates. An empty value means
// no bound.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, services.ErrValidation.New("invalid date %q", s)
	}
	return &t, nil
}

// POST /capsules/{id}/subscription
func (h *CapsuleHandler) ToggleSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	subscribed, err := h.Ledger.ToggleSubscription(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isSubscribed": subscribed})
}

// POST /capsules/{id}/reaction
func (h *CapsuleHandler) SetReactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body struct {
		Reaction string `json:"reaction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := h.Ledger.SetReaction(r.Context(), mux.Vars(r)["id"], userID, body.Reaction); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Reaction saved")
}
