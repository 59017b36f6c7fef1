package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// router mini dengan layout auth yang sama seperti server beneran
func tenantRouter(keys map[string]string) http.Handler {
	r := chi.NewRouter()
	r.Use(APIKeyAuth(keys))
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(RequireValidTenant)
		rt.Get("/ping", func(w http.ResponseWriter, req *http.Request) {
			w.Write([]byte("pong:" + GetTenantFromContext(req.Context())))
		})
	})
	return r
}

func doReq(t *testing.T, h http.Handler, path, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPIKeyAuth_RejectsMissingAndInvalidKeys(t *testing.T) {
	h := tenantRouter(map[string]string{"acme": "secret-key"})

	rec := doReq(t, h, "/v1/acme/ping", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing Authorization")

	rec = doReq(t, h, "/v1/acme/ping", "Bearer wrong-key")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid API key")

	rec = doReq(t, h, "/v1/acme/ping", "Bearer ")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyAuth_AcceptsBearerAndRawFormats(t *testing.T) {
	h := tenantRouter(map[string]string{"acme": "secret-key"})

	rec := doReq(t, h, "/v1/acme/ping", "Bearer secret-key")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong:acme", rec.Body.String())

	rec = doReq(t, h, "/v1/acme/ping", "secret-key")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_OpsPathsSkipAuth(t *testing.T) {
	h := tenantRouter(map[string]string{"acme": "secret-key"})

	rec := doReq(t, h, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRequireValidTenant_CrossTenantForbidden(t *testing.T) {
	h := tenantRouter(map[string]string{"acme": "secret-key", "beta": "beta-key"})

	// key milik acme dipakai buka path tenant beta
	rec := doReq(t, h, "/v1/beta/ping", "Bearer secret-key")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "tenant mismatch")

	rec = doReq(t, h, "/v1/beta/ping", "Bearer beta-key")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong:beta", rec.Body.String())
}

func TestRequireValidTenant_BadSlug(t *testing.T) {
	h := tenantRouter(map[string]string{"acme": "secret-key"})

	rec := doReq(t, h, "/v1/bad!slug/ping", "Bearer secret-key")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid tenant ID")
}

func TestRequireValidTenant_NoAuthLayerStillValidatesSlug(t *testing.T) {
	// tanpa APIKeyAuth (deploy di belakang gateway) slug tetap dicek
	r := chi.NewRouter()
	r.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(RequireValidTenant)
		rt.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("pong")) })
	})

	rec := doReq(t, r, "/v1/acme/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doReq(t, r, "/v1/bad!slug/ping", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
