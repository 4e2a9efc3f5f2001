package admin

import (
	"net/http"

	"github.com/SoleStyle/solestyle/internal/domain/user"
)

// publicUsers strips password hashes before users leave the process.
func publicUsers(users []user.User) []user.User {
	out := make([]user.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}

// handleListUsers lists users, newest registration first. ?q= searches
// name and email.
func (h *AdminAPIHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.users == nil, "user directory") {
		return
	}
	var users []user.User
	if q := r.URL.Query().Get("q"); q != "" {
		users = h.users.SearchUsers(r.Context(), q)
	} else {
		users = h.users.GetAllUsers(r.Context())
	}
	h.respondJSON(w, http.StatusOK, publicUsers(users))
}

func (h *AdminAPIHandler) handleUserStats(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.users == nil, "user directory") {
		return
	}
	h.respondJSON(w, http.StatusOK, h.users.GetUserStats(r.Context()))
}

func (h *AdminAPIHandler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.users == nil, "user directory") {
		return
	}
	removed, err := h.users.DeleteUser(r.Context(), h.pathParam(r, "email"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !removed {
		h.respondError(w, http.StatusNotFound, user.ErrUserNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminAPIHandler) handleClearUsers(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.users == nil, "user directory") {
		return
	}
	if err := h.users.ClearAllUsers(r.Context()); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetPassword sets a password, typically for imported records that
// carry no hash.
func (h *AdminAPIHandler) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.users == nil, "user directory") {
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := h.readJSON(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.users.SetPassword(r.Context(), h.pathParam(r, "email"), req.Password); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExportUsers returns the directory without password hashes.
func (h *AdminAPIHandler) handleExportUsers(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.users == nil, "user directory") {
		return
	}
	export := h.users.ExportUserData(r.Context())
	export.Users = publicUsers(export.Users)
	w.Header().Set("Content-Disposition", `attachment; filename="solestyle-users.json"`)
	h.respondJSON(w, http.StatusOK, export)
}

func (h *AdminAPIHandler) handleImportUsers(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.users == nil, "user directory") {
		return
	}
	var data user.Export
	if err := h.readJSON(w, r, &data); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.users.ImportUserData(r.Context(), data); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int{"users": h.users.UserCount()})
}

func (h *AdminAPIHandler) handleReloadUsers(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.users == nil, "user directory") {
		return
	}
	if err := h.users.Reload(r.Context()); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int{"users": h.users.UserCount()})
}
