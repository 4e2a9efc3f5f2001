package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/SoleStyle/solestyle/internal/adapter/outbound/kv"
	"github.com/SoleStyle/solestyle/internal/adapter/outbound/repository"
	"github.com/SoleStyle/solestyle/internal/domain/catalog"
	"github.com/SoleStyle/solestyle/internal/domain/event"
	"github.com/SoleStyle/solestyle/internal/domain/user"
	"github.com/SoleStyle/solestyle/internal/service"
)

type storeEnv struct {
	api     *StoreAPI
	handler http.Handler
	bus     *event.Bus
	catalog *service.CatalogService
	users   *service.UserDirectory
}

func newStoreEnv(t *testing.T, opts ...StoreOption) *storeEnv {
	t.Helper()
	ctx := context.Background()
	store := kv.NewMemoryStore()
	bus := event.NewBus(discardLogger())

	products := service.NewCatalogService(repository.NewCatalogRepository(store), bus, discardLogger())
	if err := products.Init(ctx); err != nil {
		t.Fatalf("catalog Init() error: %v", err)
	}
	hasher := user.NewPasswordHasher(user.PasswordParams{MemoryKiB: 64, Iterations: 1, Parallelism: 1})
	users := service.NewUserDirectory(repository.NewUserRepository(store), repository.NewSessionRepository(store), hasher, bus, discardLogger())
	if err := users.Init(ctx); err != nil {
		t.Fatalf("users Init() error: %v", err)
	}
	contacts := service.NewContactService(repository.NewContactRepository(store), bus, discardLogger())
	wishlists := service.NewWishlistService(repository.NewWishlistRepository(store), products, discardLogger())
	carts := service.NewCartService(repository.NewCartRepository(store), products, discardLogger())

	opts = append([]StoreOption{WithAuthRateLimit(0, 0)}, opts...)
	api := NewStoreAPI(products, users, contacts, wishlists, carts, discardLogger(), opts...)
	return &storeEnv{api: api, handler: api.Routes(), bus: bus, catalog: products, users: users}
}

// do sends a request with an optional JSON body and returns the recorder.
func (e *storeEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// login registers ana and opens her session.
func (e *storeEnv) login(t *testing.T) user.User {
	t.Helper()
	if rec := e.do(t, http.MethodPost, "/api/auth/register", registerRequest{Email: "ana@example.com", Name: "Ana", Password: "s3cret"}); rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}
	rec := e.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: "ana@example.com", Password: "s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	return decode[user.User](t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %T: %v (body %q)", v, err, rec.Body.String())
	}
	return v
}

func TestStoreAPI_Products(t *testing.T) {
	t.Parallel()
	env := newStoreEnv(t)

	rec := env.do(t, http.MethodGet, "/api/products", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	all := decode[[]catalog.Product](t, rec)
	if len(all) != env.catalog.ProductCount() {
		t.Errorf("listed %d products, want %d", len(all), env.catalog.ProductCount())
	}

	lux := decode[[]catalog.Product](t, env.do(t, http.MethodGet, "/api/products?category=luxurious", nil))
	if len(lux) == 0 {
		t.Fatal("no luxurious products")
	}
	for _, p := range lux {
		if p.Category != "luxurious" {
			t.Errorf("category filter returned %s (%s)", p.ID, p.Category)
		}
	}

	found := decode[[]catalog.Product](t, env.do(t, http.MethodGet, "/api/products?q=oxford", nil))
	if len(found) == 0 || found[0].ID != "1" {
		t.Errorf("search oxford = %+v", found)
	}

	if rec := env.do(t, http.MethodGet, "/api/products/1", nil); rec.Code != http.StatusOK {
		t.Errorf("get product status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/products/ghost", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get unknown product status = %d, want 404", rec.Code)
	}
}

func TestStoreAPI_HeroInDisplayOrder(t *testing.T) {
	t.Parallel()
	env := newStoreEnv(t)

	hero := decode[[]catalog.Product](t, env.do(t, http.MethodGet, "/api/hero", nil))
	ids := make([]string, 0, len(hero))
	for _, p := range hero {
		ids = append(ids, p.ID)
	}
	if diff := cmp.Diff(env.catalog.GetHeroProducts(context.Background()), ids); diff != "" {
		t.Errorf("hero order mismatch (-ids +resolved):\n%s", diff)
	}
}

func TestStoreAPI_Categories(t *testing.T) {
	t.Parallel()
	env := newStoreEnv(t)
	cats := decode[[]catalog.Category](t, env.do(t, http.MethodGet, "/api/categories", nil))
	if diff := cmp.Diff(catalog.Categories(), cats); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreAPI_AuthFlow(t *testing.T) {
	t.Parallel()
	env := newStoreEnv(t)

	reg := registerRequest{Email: "ana@example.com", Name: "Ana", Password: "s3cret"}
	rec := env.do(t, http.MethodPost, "/api/auth/register", reg)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("passwordHash")) {
		t.Error("register response leaks the password hash")
	}
	if rec := env.do(t, http.MethodPost, "/api/auth/register", reg); rec.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: "ana@example.com", Password: "s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	if u := decode[user.User](t, rec); u.LoginCount != 2 {
		t.Errorf("loginCount = %d, want 2", u.LoginCount)
	}

	if rec := env.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: "ana@example.com", Password: "nope"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: "bo@example.com", Password: "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown email status = %d, want 404", rec.Code)
	}
	if body := decode[map[string]string](t, rec); body["error"] != "new_user" {
		t.Errorf("unknown email body = %v", body)
	}

	session := decode[map[string]*user.User](t, env.do(t, http.MethodGet, "/api/session", nil))
	if session["user"] == nil || session["user"].Email != "ana@example.com" {
		t.Errorf("session = %+v", session["user"])
	}
	if session["user"] != nil && session["user"].PasswordHash != "" {
		t.Error("session response leaks the password hash")
	}

	rec = env.do(t, http.MethodPut, "/api/users/ana@example.com/style", map[string]string{"style": "  street "})
	if rec.Code != http.StatusOK {
		t.Fatalf("style status = %d", rec.Code)
	}
	if u := decode[user.User](t, rec); u.StylePreference != "street" {
		t.Errorf("style = %q", u.StylePreference)
	}
	if rec := env.do(t, http.MethodPut, "/api/users/ghost@example.com/style", map[string]string{"style": "x"}); rec.Code != http.StatusForbidden {
		t.Errorf("style for another user status = %d, want 403", rec.Code)
	}

	if rec := env.do(t, http.MethodPost, "/api/auth/logout", nil); rec.Code != http.StatusNoContent {
		t.Errorf("logout status = %d", rec.Code)
	}
	session = decode[map[string]*user.User](t, env.do(t, http.MethodGet, "/api/session", nil))
	if session["user"] != nil {
		t.Errorf("session after logout = %+v", session["user"])
	}
}

func TestStoreAPI_BadBody(t *testing.T) {
	t.Parallel()
	env := newStoreEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestStoreAPI_Contact(t *testing.T) {
	t.Parallel()
	env := newStoreEnv(t)

	rec := env.do(t, http.MethodPost, "/api/contact", map[string]string{
		"name": "Ana", "email": "ana@example.com", "subject": "Sizing", "message": "Do the oxfords run small?",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/contact", map[string]string{"email": "not-an-email"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid submit status = %d, want 400", rec.Code)
	}
	body := decode[struct {
		Fields []string `json:"fields"`
	}](t, rec)
	if len(body.Fields) != 3 {
		t.Errorf("fields = %v, want name, email and message", body.Fields)
	}
}

func TestStoreAPI_Wishlist(t *testing.T) {
	t.Parallel()
	env := newStoreEnv(t)
	base := "/api/users/" + env.login(t).ID + "/wishlist"

	if rec := env.do(t, http.MethodPost, base, map[string]string{"productId": "1"}); rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, base, map[string]string{"productId": "1"}); rec.Code != http.StatusOK {
		t.Errorf("re-add status = %d, want 200", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, base, map[string]string{"productId": "ghost"}); rec.Code != http.StatusNotFound {
		t.Errorf("add unknown status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, base, map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Errorf("add without productId status = %d, want 400", rec.Code)
	}

	items := decode[[]json.RawMessage](t, env.do(t, http.MethodGet, base, nil))
	if len(items) != 1 {
		t.Errorf("wishlist has %d items, want 1", len(items))
	}

	price := 199.99
	if _, err := env.catalog.UpdateProduct(context.Background(), "1", catalog.ProductPatch{Price: &price}); err != nil {
		t.Fatal(err)
	}
	drops := decode[[]json.RawMessage](t, env.do(t, http.MethodGet, base+"/price-drops", nil))
	if len(drops) != 1 {
		t.Fatalf("price drops = %d, want 1", len(drops))
	}
	if rec := env.do(t, http.MethodPost, base+"/1/notified", nil); rec.Code != http.StatusNoContent {
		t.Errorf("notified status = %d", rec.Code)
	}
	drops = decode[[]json.RawMessage](t, env.do(t, http.MethodGet, base+"/price-drops", nil))
	if len(drops) != 0 {
		t.Errorf("price drops after notify = %d, want 0", len(drops))
	}

	if got := decode[map[string]bool](t, env.do(t, http.MethodGet, base+"/1", nil)); !got["contains"] {
		t.Errorf("contains 1 = %v, want true", got)
	}
	if rec := env.do(t, http.MethodDelete, base+"/1", nil); rec.Code != http.StatusNoContent {
		t.Errorf("remove status = %d", rec.Code)
	}
	items = decode[[]json.RawMessage](t, env.do(t, http.MethodGet, base, nil))
	if len(items) != 0 {
		t.Errorf("wishlist has %d items after remove", len(items))
	}
	if got := decode[map[string]bool](t, env.do(t, http.MethodGet, base+"/1", nil)); got["contains"] {
		t.Errorf("contains 1 after remove = %v, want false", got)
	}

	env.do(t, http.MethodPost, base, map[string]string{"productId": "1"})
	env.do(t, http.MethodPost, base, map[string]string{"productId": "2"})
	if rec := env.do(t, http.MethodDelete, base, nil); rec.Code != http.StatusNoContent {
		t.Errorf("clear status = %d", rec.Code)
	}
	items = decode[[]json.RawMessage](t, env.do(t, http.MethodGet, base, nil))
	if len(items) != 0 {
		t.Errorf("wishlist has %d items after clear", len(items))
	}
}

func TestStoreAPI_Cart(t *testing.T) {
	t.Parallel()
	env := newStoreEnv(t)
	base := "/api/users/" + env.login(t).ID + "/cart"
	line := cartLineRequest{ProductID: "1", Size: "9", Color: "Black", Quantity: 1}

	if rec := env.do(t, http.MethodPost, base, line); rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body.String())
	}
	rec := env.do(t, http.MethodPost, base, line)
	got := decode[cartResponse](t, rec)
	if len(got.Items) != 1 || got.Items[0].Quantity != 2 {
		t.Fatalf("merged cart = %+v", got.Items)
	}
	if !got.Totals.Subtotal.Equal(decimal.RequireFromString("579.98")) {
		t.Errorf("subtotal = %s, want 579.98", got.Totals.Subtotal)
	}
	if !got.Totals.Savings.Equal(decimal.RequireFromString("120")) {
		t.Errorf("savings = %s, want 120", got.Totals.Savings)
	}

	line.Quantity = 5
	got = decode[cartResponse](t, env.do(t, http.MethodPut, base, line))
	if got.Totals.ItemCount != 5 {
		t.Errorf("item count after update = %d, want 5", got.Totals.ItemCount)
	}

	if rec := env.do(t, http.MethodPost, base, cartLineRequest{ProductID: "1", Quantity: -1}); rec.Code != http.StatusBadRequest {
		t.Errorf("negative quantity status = %d, want 400", rec.Code)
	}

	got = decode[cartResponse](t, env.do(t, http.MethodDelete, base+"?productId=1&size=9&color=Black", nil))
	if len(got.Items) != 0 {
		t.Errorf("cart after line delete = %+v", got.Items)
	}

	env.do(t, http.MethodPost, base, line)
	if rec := env.do(t, http.MethodDelete, base, nil); rec.Code != http.StatusNoContent {
		t.Errorf("clear status = %d", rec.Code)
	}
	got = decode[cartResponse](t, env.do(t, http.MethodGet, base, nil))
	if len(got.Items) != 0 || !got.Totals.Subtotal.IsZero() {
		t.Errorf("cart after clear = %+v", got)
	}
}

func TestStoreAPI_PerUserRoutesRequireSession(t *testing.T) {
	t.Parallel()
	env := newStoreEnv(t)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/users/u1/cart"},
		{http.MethodGet, "/api/users/u1/wishlist"},
		{http.MethodGet, "/api/users/u1/wishlist/price-drops"},
		{http.MethodDelete, "/api/users/u1/wishlist"},
		{http.MethodPut, "/api/users/ana@example.com/style"},
	}
	for _, p := range paths {
		if rec := env.do(t, p.method, p.path, map[string]string{}); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without session = %d, want 401", p.method, p.path, rec.Code)
		}
	}

	ana := env.login(t)
	for _, p := range paths[:4] {
		if rec := env.do(t, p.method, p.path, map[string]string{}); rec.Code != http.StatusForbidden {
			t.Errorf("%s %s for another user = %d, want 403", p.method, p.path, rec.Code)
		}
	}
	if rec := env.do(t, http.MethodGet, "/api/users/"+ana.ID+"/cart", nil); rec.Code != http.StatusOK {
		t.Errorf("own cart status = %d, want 200", rec.Code)
	}

	env.do(t, http.MethodPost, "/api/auth/logout", nil)
	if rec := env.do(t, http.MethodGet, "/api/users/"+ana.ID+"/cart", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("cart after logout = %d, want 401", rec.Code)
	}
}

func TestStoreAPI_AuthRateLimit(t *testing.T) {
	t.Parallel()
	env := newStoreEnv(t, WithAuthRateLimit(2, time.Minute))
	body := loginRequest{Email: "bo@example.com", Password: "x"}

	for i := range 2 {
		if rec := env.do(t, http.MethodPost, "/api/auth/login", body); rec.Code != http.StatusNotFound {
			t.Fatalf("attempt %d status = %d, want 404", i+1, rec.Code)
		}
	}
	rec := env.do(t, http.MethodPost, "/api/auth/login", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third attempt status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestStoreAPI_LoginMetrics(t *testing.T) {
	t.Parallel()
	m := NewMetrics(prometheus.NewRegistry())
	env := newStoreEnv(t, WithStoreMetrics(m))

	env.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: "bo@example.com", Password: "x"})

	if got := testutil.ToFloat64(m.LoginAttempts.WithLabelValues("new_user")); got != 1 {
		t.Errorf("login_attempts_total{new_user} = %v, want 1", got)
	}
}
