package admin

import (
	"net/http"

	"github.com/SoleStyle/solestyle/internal/domain/backup"
	"github.com/SoleStyle/solestyle/internal/domain/user"
)

// StatsResponse is the JSON response for GET /admin/api/stats.
type StatsResponse struct {
	Products       int            `json:"products"`
	HeroProducts   int            `json:"hero_products"`
	OutOfStock     int            `json:"out_of_stock"`
	Categories     map[string]int `json:"categories"`
	Users          user.Stats     `json:"users"`
	Contacts       int            `json:"contacts"`
	UnreadContacts int            `json:"unread_contacts"`
	Backup         *backup.Info   `json:"backup,omitempty"`
}

// handleGetStats returns dashboard statistics. Components that are not
// configured contribute zero values.
func (h *AdminAPIHandler) handleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatsResponse{Categories: make(map[string]int)}

	if h.catalog != nil {
		products := h.catalog.GetAllProducts(ctx)
		resp.Products = len(products)
		resp.HeroProducts = len(h.catalog.GetHeroProducts(ctx))
		for _, p := range products {
			resp.Categories[p.Category]++
			if !p.InStock {
				resp.OutOfStock++
			}
		}
	}

	if h.users != nil {
		resp.Users = h.users.GetUserStats(ctx)
	}

	if h.contacts != nil {
		if msgs, err := h.contacts.List(ctx); err == nil {
			resp.Contacts = len(msgs)
			for _, m := range msgs {
				if !m.Read {
					resp.UnreadContacts++
				}
			}
		}
	}

	if h.backups != nil {
		if info, err := h.backups.Info(ctx); err == nil {
			resp.Backup = info
		}
	}

	h.respondJSON(w, http.StatusOK, resp)
}
