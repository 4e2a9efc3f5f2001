package admin

import "net/http"

func (h *AdminAPIHandler) handleListContacts(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.contacts == nil, "contacts") {
		return
	}
	msgs, err := h.contacts.List(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, msgs)
}

func (h *AdminAPIHandler) handleExportContacts(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.contacts == nil, "contacts") {
		return
	}
	msgs, err := h.contacts.Export(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="solestyle-contacts.json"`)
	h.respondJSON(w, http.StatusOK, msgs)
}

func (h *AdminAPIHandler) handleMarkContactRead(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.contacts == nil, "contacts") {
		return
	}
	if err := h.contacts.MarkRead(r.Context(), h.pathParam(r, "id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminAPIHandler) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.contacts == nil, "contacts") {
		return
	}
	if err := h.contacts.Delete(r.Context(), h.pathParam(r, "id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
