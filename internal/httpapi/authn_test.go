package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"assetflow.org/internal/auth"
	"assetflow.org/internal/rbac"
)

func withTestSecret(t *testing.T) {
	t.Helper()
	t.Setenv("ASSETFLOW_AUTH_SECRET", "httpapi-test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)
}

func TestWithAuthValidBearerSetsActor(t *testing.T) {
	withTestSecret(t)
	api := newTestAPI(t)

	token, err := auth.GenerateToken("user-7", rbac.RoleFinance, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	var gotRole rbac.Role
	h := api.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole, _ = auth.RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/assets", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rr.Code, rr.Body.String())
	}
	if gotRole != rbac.RoleFinance {
		t.Fatalf("role = %q", gotRole)
	}
}

func TestWithAuthRejectsGarbageToken(t *testing.T) {
	withTestSecret(t)
	api := newTestAPI(t)

	h := api.withAuth(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/v1/assets", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestWithAuthRejectsBadScheme(t *testing.T) {
	api := newTestAPI(t)

	h := api.withAuth(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/v1/assets", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestWithAuthPassesMissingHeaderThrough(t *testing.T) {
	api := newTestAPI(t)

	called := false
	h := api.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/assets", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if !called {
		t.Fatal("handler not reached")
	}
}

func TestWithAuthSkipsPublicPaths(t *testing.T) {
	api := newTestAPI(t)

	called := false
	h := api.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if !called {
		t.Fatal("public path should bypass token validation")
	}
}

func TestTokenRoleFlowsToEngine(t *testing.T) {
	withTestSecret(t)
	api := newTestAPI(t)

	token, err := auth.GenerateToken("mgr-1", rbac.RoleAssetManager, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(createAssetPayload()); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/assets", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	api.withAuth(api.mux).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("create via token: %d %s", rr.Code, rr.Body.String())
	}
}
