package admin

import (
	"io"
	"net/http"
	"strings"

	"github.com/SoleStyle/solestyle/internal/domain/catalog"
)

// handleListProducts lists the catalog. ?filter= applies a CEL expression,
// ?q= a substring search.
func (h *AdminAPIHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.catalog == nil, "catalog") {
		return
	}
	ctx := r.Context()
	q := r.URL.Query()
	switch {
	case q.Get("filter") != "":
		products, err := h.catalog.FilterProducts(ctx, q.Get("filter"))
		if err != nil {
			h.respondServiceError(w, r, err)
			return
		}
		h.respondJSON(w, http.StatusOK, products)
	case q.Get("q") != "":
		h.respondJSON(w, http.StatusOK, h.catalog.SearchProducts(ctx, q.Get("q")))
	default:
		h.respondJSON(w, http.StatusOK, h.catalog.GetAllProducts(ctx))
	}
}

func (h *AdminAPIHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.catalog == nil, "catalog") {
		return
	}
	var in catalog.NewProduct
	if err := h.readJSON(w, r, &in); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.catalog.AddProduct(r.Context(), in)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, p)
}

func (h *AdminAPIHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.catalog == nil, "catalog") {
		return
	}
	var patch catalog.ProductPatch
	if err := h.readJSON(w, r, &patch); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.catalog.UpdateProduct(r.Context(), h.pathParam(r, "id"), patch)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, p)
}

func (h *AdminAPIHandler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.catalog == nil, "catalog") {
		return
	}
	removed, err := h.catalog.DeleteProduct(r.Context(), h.pathParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !removed {
		h.respondError(w, http.StatusNotFound, catalog.ErrProductNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type heroRequest struct {
	IDs []string `json:"ids"`
}

func (h *AdminAPIHandler) handleGetHero(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.catalog == nil, "catalog") {
		return
	}
	h.respondJSON(w, http.StatusOK, heroRequest{IDs: h.catalog.GetHeroProducts(r.Context())})
}

// handleUpdateHero replaces the hero list. Unknown ids are dropped and the
// stored list is returned.
func (h *AdminAPIHandler) handleUpdateHero(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.catalog == nil, "catalog") {
		return
	}
	var req heroRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ids, err := h.catalog.UpdateHeroProducts(r.Context(), req.IDs)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, heroRequest{IDs: ids})
}

func (h *AdminAPIHandler) handleReloadCatalog(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.catalog == nil, "catalog") {
		return
	}
	if err := h.catalog.ReloadFromStorage(r.Context()); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int{"products": h.catalog.ProductCount()})
}

// handleExportCatalog returns the snapshot as JSON, or YAML with ?format=yaml.
func (h *AdminAPIHandler) handleExportCatalog(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.catalog == nil, "catalog") {
		return
	}
	snap := h.catalog.ExportDatabase(r.Context())
	if r.URL.Query().Get("format") != "yaml" {
		w.Header().Set("Content-Disposition", `attachment; filename="solestyle-catalog.json"`)
		h.respondJSON(w, http.StatusOK, snap)
		return
	}
	data, err := catalog.MarshalYAML(snap)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="solestyle-catalog.yaml"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleImportCatalog replaces the catalog. YAML bodies are accepted when
// the Content-Type says so.
func (h *AdminAPIHandler) handleImportCatalog(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, h.catalog == nil, "catalog") {
		return
	}
	var snap catalog.Snapshot
	if isYAML(r.Header.Get("Content-Type")) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if snap, err = catalog.ParseYAML(data); err != nil {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else if err := h.readJSON(w, r, &snap); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.catalog.ImportDatabase(r.Context(), snap); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int{
		"products":     h.catalog.ProductCount(),
		"heroProducts": len(h.catalog.GetHeroProducts(r.Context())),
	})
}

func isYAML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "yaml")
}
