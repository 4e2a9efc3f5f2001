package admin

import (
	"net/http"
	"time"

	"github.com/SoleStyle/solestyle/internal/domain/backup"
)

// CloudSummary describes a snapshot without its payload.
type CloudSummary struct {
	UploadedAt   time.Time `json:"uploadedAt"`
	Version      string    `json:"version"`
	Products     int       `json:"products"`
	HeroProducts int       `json:"heroProducts"`
	Users        int       `json:"users"`
	Contacts     int       `json:"contacts"`
}

func summarize(s *backup.Snapshot) CloudSummary {
	return CloudSummary{
		UploadedAt:   s.UploadedAt,
		Version:      s.Version,
		Products:     len(s.Products),
		HeroProducts: len(s.HeroProducts),
		Users:        len(s.Users),
		Contacts:     len(s.Contacts),
	}
}

// handleCloudInfo reports the stored backup's age and size. 404 when no
// backup exists.
func (h *AdminAPIHandler) handleCloudInfo(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.backups == nil, "cloud backup") {
		return
	}
	info, err := h.backups.Info(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, info)
}

func (h *AdminAPIHandler) handleCloudUpload(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.backups == nil, "cloud backup") {
		return
	}
	snap, err := h.backups.Upload(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, summarize(snap))
}

// handleCloudRestore downloads the backup and overwrites local state.
func (h *AdminAPIHandler) handleCloudRestore(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.backups == nil, "cloud backup") {
		return
	}
	snap, err := h.backups.Restore(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, summarize(snap))
}

func (h *AdminAPIHandler) handleCloudDelete(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.backups == nil, "cloud backup") {
		return
	}
	if err := h.backups.Delete(r.Context()); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
