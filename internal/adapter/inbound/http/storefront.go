package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/SoleStyle/solestyle/internal/adapter/outbound/kv"
	"github.com/SoleStyle/solestyle/internal/domain/cart"
	"github.com/SoleStyle/solestyle/internal/domain/catalog"
	"github.com/SoleStyle/solestyle/internal/domain/contact"
	"github.com/SoleStyle/solestyle/internal/domain/user"
	"github.com/SoleStyle/solestyle/internal/service"
)

// maxBodyBytes is the request body limit for the storefront API.
const maxBodyBytes = 1 << 20

// StoreAPI serves the public storefront endpoints.
type StoreAPI struct {
	catalog   *service.CatalogService
	users     *service.UserDirectory
	contacts  *service.ContactService
	wishlists *service.WishlistService
	carts     *service.CartService
	logger    *slog.Logger
	metrics   *Metrics
	limiter   *rateLimiter
}

// StoreOption configures a StoreAPI.
type StoreOption func(*StoreAPI)

// WithStoreMetrics records login outcomes.
func WithStoreMetrics(m *Metrics) StoreOption {
	return func(a *StoreAPI) {
		a.metrics = m
	}
}

// WithAuthRateLimit limits register and login requests per client IP.
// A non-positive maxRequests disables limiting.
func WithAuthRateLimit(maxRequests int, window time.Duration) StoreOption {
	return func(a *StoreAPI) {
		if maxRequests <= 0 {
			a.limiter = nil
			return
		}
		a.limiter = newRateLimiter(maxRequests, window)
	}
}

// NewStoreAPI creates the storefront API.
func NewStoreAPI(
	products *service.CatalogService,
	users *service.UserDirectory,
	contacts *service.ContactService,
	wishlists *service.WishlistService,
	carts *service.CartService,
	logger *slog.Logger,
	opts ...StoreOption,
) *StoreAPI {
	a := &StoreAPI{
		catalog:   products,
		users:     users,
		contacts:  contacts,
		wishlists: wishlists,
		carts:     carts,
		logger:    logger,
		limiter:   newRateLimiter(20, time.Minute),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Routes returns the storefront mux. Patterns use Go 1.22 method routing.
func (a *StoreAPI) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products", a.handleListProducts)
	mux.HandleFunc("GET /api/products/{id}", a.handleGetProduct)
	mux.HandleFunc("GET /api/hero", a.handleHero)
	mux.HandleFunc("GET /api/categories", a.handleCategories)

	mux.Handle("POST /api/auth/register", rateLimitMiddleware(a.limiter, http.HandlerFunc(a.handleRegister)))
	mux.Handle("POST /api/auth/login", rateLimitMiddleware(a.limiter, http.HandlerFunc(a.handleLogin)))
	mux.HandleFunc("POST /api/auth/logout", a.handleLogout)
	mux.HandleFunc("GET /api/session", a.handleSession)
	mux.HandleFunc("PUT /api/users/{email}/style", a.requireSessionEmail(a.handleStyle))

	mux.HandleFunc("POST /api/contact", a.handleContact)

	mux.HandleFunc("GET /api/users/{id}/wishlist", a.requireSessionID(a.handleWishlist))
	mux.HandleFunc("POST /api/users/{id}/wishlist", a.requireSessionID(a.handleWishlistAdd))
	mux.HandleFunc("DELETE /api/users/{id}/wishlist", a.requireSessionID(a.handleWishlistClear))
	mux.HandleFunc("GET /api/users/{id}/wishlist/{productId}", a.requireSessionID(a.handleWishlistContains))
	mux.HandleFunc("DELETE /api/users/{id}/wishlist/{productId}", a.requireSessionID(a.handleWishlistRemove))
	mux.HandleFunc("GET /api/users/{id}/wishlist/price-drops", a.requireSessionID(a.handlePriceDrops))
	mux.HandleFunc("POST /api/users/{id}/wishlist/{productId}/notified", a.requireSessionID(a.handlePriceDropNotified))

	mux.HandleFunc("GET /api/users/{id}/cart", a.requireSessionID(a.handleCart))
	mux.HandleFunc("POST /api/users/{id}/cart", a.requireSessionID(a.handleCartAdd))
	mux.HandleFunc("PUT /api/users/{id}/cart", a.requireSessionID(a.handleCartUpdate))
	mux.HandleFunc("DELETE /api/users/{id}/cart", a.requireSessionID(a.handleCartDelete))

	return mux
}

// --- JSON helpers ---

func (a *StoreAPI) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (a *StoreAPI) respondError(w http.ResponseWriter, status int, message string) {
	a.respondJSON(w, status, map[string]string{"error": message})
}

func (a *StoreAPI) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// respondServiceError maps domain errors to HTTP status codes.
func (a *StoreAPI) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		a.respondJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, user.ErrNewUser):
		a.respondError(w, http.StatusNotFound, "new_user")
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, contact.ErrContactNotFound):
		a.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, user.ErrUserExists),
		errors.Is(err, catalog.ErrStaleSnapshot),
		errors.Is(err, user.ErrStaleDirectory):
		a.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, user.ErrInvalidCredentials):
		a.respondError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, kv.ErrInvalidKey),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, user.ErrEmptyPassword),
		errors.Is(err, user.ErrInvalidUser),
		errors.Is(err, catalog.ErrInvalidProduct):
		a.respondError(w, http.StatusBadRequest, err.Error())
	default:
		LoggerFromContext(r.Context()).Error("storefront request failed", "path", r.URL.Path, "error", err)
		a.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// --- Catalog ---

func (a *StoreAPI) handleListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	var products []catalog.Product
	switch {
	case q.Get("q") != "":
		products = a.catalog.SearchProducts(ctx, q.Get("q"))
	case q.Get("category") != "":
		products = a.catalog.GetProductsByCategory(ctx, q.Get("category"))
	default:
		products = a.catalog.GetAllProducts(ctx)
	}
	a.respondJSON(w, http.StatusOK, products)
}

func (a *StoreAPI) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := a.catalog.GetProductByID(r.Context(), r.PathValue("id"))
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, p)
}

// handleHero resolves the hero ids to products in display order.
func (a *StoreAPI) handleHero(w http.ResponseWriter, r *http.Request) {
	ids := a.catalog.GetHeroProducts(r.Context())
	products := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := a.catalog.Lookup(id); ok {
			products = append(products, p)
		}
	}
	a.respondJSON(w, http.StatusOK, products)
}

func (a *StoreAPI) handleCategories(w http.ResponseWriter, _ *http.Request) {
	a.respondJSON(w, http.StatusOK, a.catalog.Categories())
}

// --- Auth ---

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *StoreAPI) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := a.readJSON(w, r, &req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := a.users.RegisterUser(r.Context(), req.Email, req.Name, req.Password, req.Phone)
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusCreated, u.Public())
}

func (a *StoreAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := a.readJSON(w, r, &req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := a.users.LoginUser(r.Context(), req.Email, req.Password)
	a.recordLogin(err)
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, u.Public())
}

func (a *StoreAPI) recordLogin(err error) {
	if a.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, user.ErrNewUser):
		result = "new_user"
	case errors.Is(err, user.ErrInvalidCredentials):
		result = "invalid"
	default:
		result = "error"
	}
	a.metrics.LoginAttempts.WithLabelValues(result).Inc()
}

func (a *StoreAPI) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.users.LogoutUser(r.Context()); err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *StoreAPI) handleSession(w http.ResponseWriter, r *http.Request) {
	u, _ := a.users.GetCurrentUser(r.Context())
	if u != nil {
		pub := u.Public()
		u = &pub
	}
	a.respondJSON(w, http.StatusOK, map[string]*user.User{"user": u})
}

// requireSession rejects the request unless a user is logged in and
// owns reports true for that user.
func (a *StoreAPI) requireSession(owns func(u *user.User, r *http.Request) bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := a.users.GetCurrentUser(r.Context())
		if u == nil {
			a.respondError(w, http.StatusUnauthorized, "login required")
			return
		}
		if !owns(u, r) {
			a.respondError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r)
	}
}

// requireSessionEmail guards routes keyed by {email}.
func (a *StoreAPI) requireSessionEmail(next http.HandlerFunc) http.HandlerFunc {
	return a.requireSession(func(u *user.User, r *http.Request) bool {
		return u.Email == user.NormalizeEmail(r.PathValue("email"))
	}, next)
}

// requireSessionID guards routes keyed by {id}.
func (a *StoreAPI) requireSessionID(next http.HandlerFunc) http.HandlerFunc {
	return a.requireSession(func(u *user.User, r *http.Request) bool {
		return u.ID == r.PathValue("id")
	}, next)
}

func (a *StoreAPI) handleStyle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Style string `json:"style"`
	}
	if err := a.readJSON(w, r, &req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := a.users.UpdateStylePreference(r.Context(), r.PathValue("email"), strings.TrimSpace(req.Style))
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, u.Public())
}

// --- Contact ---

func (a *StoreAPI) handleContact(w http.ResponseWriter, r *http.Request) {
	var in contact.Input
	if err := a.readJSON(w, r, &in); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg, err := a.contacts.Submit(r.Context(), in)
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusCreated, msg)
}

// --- Wishlist ---

func (a *StoreAPI) handleWishlist(w http.ResponseWriter, r *http.Request) {
	items, err := a.wishlists.List(r.Context(), r.PathValue("id"))
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, items)
}

func (a *StoreAPI) handleWishlistAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
	}
	if err := a.readJSON(w, r, &req); err != nil || req.ProductID == "" {
		a.respondError(w, http.StatusBadRequest, "productId is required")
		return
	}
	added, err := a.wishlists.Add(r.Context(), r.PathValue("id"), req.ProductID)
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	a.respondJSON(w, status, map[string]bool{"added": added})
}

func (a *StoreAPI) handleWishlistRemove(w http.ResponseWriter, r *http.Request) {
	if err := a.wishlists.Remove(r.Context(), r.PathValue("id"), r.PathValue("productId")); err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *StoreAPI) handleWishlistContains(w http.ResponseWriter, r *http.Request) {
	ok, err := a.wishlists.Contains(r.Context(), r.PathValue("id"), r.PathValue("productId"))
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, map[string]bool{"contains": ok})
}

func (a *StoreAPI) handleWishlistClear(w http.ResponseWriter, r *http.Request) {
	if err := a.wishlists.Clear(r.Context(), r.PathValue("id")); err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *StoreAPI) handlePriceDrops(w http.ResponseWriter, r *http.Request) {
	drops, err := a.wishlists.PriceDrops(r.Context(), r.PathValue("id"))
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, drops)
}

func (a *StoreAPI) handlePriceDropNotified(w http.ResponseWriter, r *http.Request) {
	if err := a.wishlists.MarkPriceDropNotified(r.Context(), r.PathValue("id"), r.PathValue("productId")); err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Cart ---

type cartLineRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

func (c cartLineRequest) key() cart.Key {
	return cart.Key{ProductID: c.ProductID, Size: c.Size, Color: c.Color}
}

type cartResponse struct {
	Items  []cart.Item `json:"items"`
	Totals cart.Totals `json:"totals"`
}

func (a *StoreAPI) respondCart(w http.ResponseWriter, r *http.Request, userID string, status int) {
	ctx := r.Context()
	items, err := a.carts.List(ctx, userID)
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	totals, err := a.carts.Total(ctx, userID)
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	a.respondJSON(w, status, cartResponse{Items: items, Totals: totals})
}

func (a *StoreAPI) handleCart(w http.ResponseWriter, r *http.Request) {
	a.respondCart(w, r, r.PathValue("id"), http.StatusOK)
}

func (a *StoreAPI) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	var req cartLineRequest
	if err := a.readJSON(w, r, &req); err != nil || req.ProductID == "" {
		a.respondError(w, http.StatusBadRequest, "productId is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	userID := r.PathValue("id")
	if _, err := a.carts.Add(r.Context(), userID, req.key(), req.Quantity); err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	a.respondCart(w, r, userID, http.StatusCreated)
}

func (a *StoreAPI) handleCartUpdate(w http.ResponseWriter, r *http.Request) {
	var req cartLineRequest
	if err := a.readJSON(w, r, &req); err != nil || req.ProductID == "" {
		a.respondError(w, http.StatusBadRequest, "productId is required")
		return
	}
	userID := r.PathValue("id")
	if _, err := a.carts.UpdateQuantity(r.Context(), userID, req.key(), req.Quantity); err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	a.respondCart(w, r, userID, http.StatusOK)
}

// handleCartDelete removes one line when productId is given in the query,
// otherwise it empties the cart.
func (a *StoreAPI) handleCartDelete(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	q := r.URL.Query()
	if q.Get("productId") == "" {
		if err := a.carts.Clear(r.Context(), userID); err != nil {
			a.respondServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	key := cart.Key{ProductID: q.Get("productId"), Size: q.Get("size"), Color: q.Get("color")}
	if _, err := a.carts.Remove(r.Context(), userID, key); err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	a.respondCart(w, r, userID, http.StatusOK)
}
