package handlers

import (
	"net/http"
	"strings"

	"github.com/stayreal/companion/internal/logging"
	"github.com/stayreal/companion/internal/models"
)

// LoggerHandler exposes the logger commands.
type LoggerHandler struct {
	Commands LoggerCommands
	Feeds    FeedQueue
}

func (h LoggerHandler) available(w http.ResponseWriter, r *http.Request) bool {
	if h.Commands != nil {
		return true
	}
	logging.FromContext(r.Context()).Error("logger commands unavailable")
	respondError(r.Context(), w, http.StatusServiceUnavailable, "logger service unavailable")
	return false
}

// GetSettings handles GET /api/v1/logger/settings.
func (h LoggerHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	ctx := r.Context()

	settings, err := h.Commands.GetSettings(ctx)
	if err != nil {
		respondCommandError(ctx, w, "get settings", err)
		return
	}
	if settings.SelectedFriends == nil {
		settings.SelectedFriends = []string{}
	}
	respondJSON(ctx, w, http.StatusOK, settings)
}

// SaveSettings handles PUT /api/v1/logger/settings.
func (h LoggerHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	ctx := r.Context()

	var settings models.LoggerSettings
	if err := decodeJSON(r, &settings); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Commands.SaveSettings(ctx, settings); err != nil {
		respondCommandError(ctx, w, "save settings", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectDirectory handles POST /api/v1/logger/directory.
func (h LoggerHandler) SelectDirectory(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	ctx := r.Context()

	dir, err := h.Commands.SelectSaveDirectory(ctx)
	if err != nil {
		respondCommandError(ctx, w, "select save directory", err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]*string{"directory": dir})
}

// SavePost handles POST /api/v1/logger/posts.
func (h LoggerHandler) SavePost(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	ctx := r.Context()

	var req models.SavePostRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.Commands.SavePost(ctx, req)
	if err != nil {
		respondCommandError(ctx, w, "save post", err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, map[string]string{"id": id})
}

// ListPosts handles GET /api/v1/logger/posts, optionally filtered by ?user_id.
func (h LoggerHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	ctx := r.Context()

	var (
		posts []models.SavedPost
		err   error
	)
	if userID := strings.TrimSpace(r.URL.Query().Get("user_id")); userID != "" {
		posts, err = h.Commands.ListSavedPostsByUser(ctx, userID)
	} else {
		posts, err = h.Commands.ListSavedPosts(ctx)
	}
	if err != nil {
		respondCommandError(ctx, w, "list saved posts", err)
		return
	}
	if posts == nil {
		posts = []models.SavedPost{}
	}
	respondJSON(ctx, w, http.StatusOK, posts)
}

// DeletePost handles DELETE /api/v1/logger/posts/{id}.
func (h LoggerHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	ctx := r.Context()

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		respondError(ctx, w, http.StatusBadRequest, "post id is required")
		return
	}
	if err := h.Commands.DeleteSavedPost(ctx, id); err != nil {
		respondCommandError(ctx, w, "delete post", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/v1/logger/stats.
func (h LoggerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	ctx := r.Context()

	stats, err := h.Commands.Stats(ctx)
	if err != nil {
		respondCommandError(ctx, w, "get stats", err)
		return
	}
	if stats == nil {
		stats = map[string]int{}
	}
	respondJSON(ctx, w, http.StatusOK, stats)
}

// SubmitFeed handles POST /api/v1/logger/feed.
func (h LoggerHandler) SubmitFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Feeds == nil {
		logging.FromContext(ctx).Error("feed queue unavailable")
		respondError(ctx, w, http.StatusServiceUnavailable, "feed ingestion unavailable")
		return
	}

	var feed models.Feed
	if err := decodeJSON(r, &feed); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Feeds.Enqueue(ctx, feed); err != nil {
		respondCommandError(ctx, w, "queue feed", err)
		return
	}
	respondJSON(ctx, w, http.StatusAccepted, map[string]string{"status": "queued"})
}
