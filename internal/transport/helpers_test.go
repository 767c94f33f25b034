package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"textile-store/internal/currency"
	"textile-store/internal/domain"
	"textile-store/internal/middleware"
	"textile-store/internal/pricing"
	"textile-store/internal/repository"
	"textile-store/internal/service"
	"textile-store/internal/token"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testTokens = token.NewManager("test-secret", time.Minute)

// fixedResolver prices Nigerian visitors in naira and everyone else in
// dollars at a constant rate, honouring explicit overrides.
type fixedResolver struct {
	country string

	mu           sync.Mutex
	lastOverride string
}

func (f *fixedResolver) Resolve(_ context.Context, _ string, override string) (currency.Resolution, error) {
	f.mu.Lock()
	f.lastOverride = override
	f.mu.Unlock()

	res := currency.Resolution{Currency: pricing.USD, Rate: decimal.NewFromInt(1500), Country: f.country}
	if f.country == "NG" {
		res.Currency = pricing.NGN
	}
	if override != "" {
		c, err := pricing.ParseCurrency(override)
		if err != nil {
			return currency.Resolution{}, err
		}
		res.Currency = c
	}
	return res, nil
}

func (f *fixedResolver) override() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOverride
}

// bearer issues an access token for a fresh user with role.
func bearer(t *testing.T, role string) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	signed, err := testTokens.Issue(&domain.User{ID: id, Role: role})
	require.NoError(t, err)
	return id, "Bearer " + signed
}

func authMW() func(http.Handler) http.Handler {
	return middleware.AuthMiddleware(testTokens, zap.NewNop())
}

func optionalAuthMW() func(http.Handler) http.Handler {
	return middleware.OptionalAuth(testTokens, zap.NewNop())
}

func passThrough(next http.Handler) http.Handler { return next }

// do sends a request through router. body is JSON encoded unless it is nil.
func do(t *testing.T, router http.Handler, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	headers := map[string]string{}
	if auth != "" {
		headers["Authorization"] = auth
	}
	return send(t, router, method, path, headers, body)
}

func doWithHeader(t *testing.T, router http.Handler, method, path, key, value string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return send(t, router, method, path, map[string]string{key: value}, body)
}

func send(t *testing.T, router http.Handler, method, path string, headers map[string]string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorDetail {
	t.Helper()
	var body middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

// The fakes below embed the service interface so a test only implements
// the methods it exercises; anything else panics.

type fakeUsers struct {
	service.UserService
	register    func(email, password, first, last string) (*domain.User, error)
	login       func(email, password string) (string, string, *domain.User, error)
	requestLink func(email string) error
	update      func(id uuid.UUID, u service.ProfileUpdate) (*domain.User, error)
	list        func(role string, page, size int) ([]*domain.User, int, error)
}

func (f *fakeUsers) Register(_ context.Context, email, password, first, last string) (*domain.User, error) {
	return f.register(email, password, first, last)
}

func (f *fakeUsers) Login(_ context.Context, email, password string) (string, string, *domain.User, error) {
	return f.login(email, password)
}

func (f *fakeUsers) RequestLoginLink(_ context.Context, email string) error {
	return f.requestLink(email)
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id uuid.UUID, u service.ProfileUpdate) (*domain.User, error) {
	return f.update(id, u)
}

func (f *fakeUsers) ListUsers(_ context.Context, role string, page, size int) ([]*domain.User, int, error) {
	return f.list(role, page, size)
}

type fakeCatalog struct {
	service.CatalogService
	fabrics map[uuid.UUID]*domain.Fabric
	upload  func(id uuid.UUID, size int64, contentType string) (*domain.Fabric, error)
}

func (f *fakeCatalog) ListFabrics(_ context.Context, filter repository.FabricFilter) ([]*domain.Fabric, int, error) {
	var out []*domain.Fabric
	for _, fab := range f.fabrics {
		if filter.ActiveOnly && !fab.IsActive {
			continue
		}
		out = append(out, fab)
	}
	return out, len(out), nil
}

func (f *fakeCatalog) GetFabric(_ context.Context, id uuid.UUID) (*domain.Fabric, error) {
	if fab, ok := f.fabrics[id]; ok {
		return fab, nil
	}
	return nil, repository.ErrFabricNotFound
}

func (f *fakeCatalog) UploadImage(_ context.Context, id uuid.UUID, _ io.Reader, size int64, contentType string) (*domain.Fabric, error) {
	return f.upload(id, size, contentType)
}

type fakeCheckout struct {
	service.CheckoutService
	placed []service.CheckoutRequest
}

func (f *fakeCheckout) PlaceOrder(_ context.Context, req service.CheckoutRequest) (*service.Receipt, error) {
	if len(req.Items) == 0 && req.UserID == nil {
		return nil, service.ErrEmptyCart
	}
	f.placed = append(f.placed, req)
	order := &domain.Order{ID: uuid.New(), Reference: "TX-TEST", Currency: string(req.Currency)}
	return &service.Receipt{Order: order, Message: "hi", WhatsAppURL: "https://wa.me/2348000000000?text=hi"}, nil
}

type fakeAdmin struct {
	service.AdminService
	bulkUpdate func(ids []uuid.UUID, patch repository.FabricPatch) (int64, error)
}

func (f *fakeAdmin) BulkUpdateFabrics(_ context.Context, ids []uuid.UUID, patch repository.FabricPatch) (int64, error) {
	return f.bulkUpdate(ids, patch)
}
