package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/lazyauth/internal/config"
	"github.com/dropDatabas3/lazyauth/internal/domain/types"
)

const testSecret = "0123456789abcdef0123456789abcdef-test"

type fakeIDP struct {
	srv          *httptest.Server
	tokenHits    atomic.Int32
	userinfoHits atomic.Int32
}

func newFakeIDP(t *testing.T) *fakeIDP {
	t.Helper()
	f := &fakeIDP{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenHits.Add(1)
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code was already redeemed"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"idp-access-token","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		f.userinfoHits.Add(1)
		if r.Header.Get("Authorization") != "Bearer idp-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"u-42","email":"ada@example.com","name":"Ada"}`))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func setupApp(t *testing.T, extraEnv map[string]string) (*App, *fakeIDP) {
	t.Helper()
	idp := newFakeIDP(t)

	env := map[string]string{
		"OAUTH2_CLIENT_ID":         "client-123",
		"OAUTH2_CLIENT_SECRET":     "super-secret-value",
		"OAUTH2_AUTHORIZATION_URL": idp.srv.URL + "/authorize",
		"OAUTH2_TOKEN_URL":         idp.srv.URL + "/token",
		"OAUTH2_USER_INFO_URL":     idp.srv.URL + "/userinfo",
		"OAUTH2_REDIRECT_URI":      "http://app.local/auth/callback",
		"JWT_SECRET_KEY":           testSecret,
		"RATE_ENABLED":             "false",
	}
	for k, v := range extraEnv {
		env[k] = v
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := config.Load("")
	require.NoError(t, err)

	app, err := Build(context.Background(), cfg, Options{Version: "test", HTTPClient: idp.srv.Client()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app, idp
}

func do(t *testing.T, h http.Handler, method, target string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "198.51.100.7:40000"
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodGet, "/auth/login", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	state, _ := decode(t, rec)["state"].(string)
	require.NotEmpty(t, state)
	return state
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "access_token" {
			return c
		}
	}
	return nil
}

func TestFlow_EndToEnd(t *testing.T) {
	app, idp := setupApp(t, nil)
	h := app.Handler

	// login
	rec := do(t, h, http.MethodGet, "/auth/login", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	body := decode(t, rec)
	state := body["state"].(string)
	require.Equal(t, "oauth2", body["provider"])
	require.EqualValues(t, 600, body["expires_in"])

	u, err := url.Parse(body["authorization_url"].(string))
	require.NoError(t, err)
	require.Equal(t, idp.srv.URL+"/authorize", u.Scheme+"://"+u.Host+u.Path)
	require.Equal(t, state, u.Query().Get("state"))
	require.Equal(t, "client-123", u.Query().Get("client_id"))
	require.Equal(t, "code", u.Query().Get("response_type"))
	require.Empty(t, u.Query().Get("client_secret"))

	// callback
	rec = do(t, h, http.MethodGet, "/auth/callback?code=good-code&state="+url.QueryEscape(state), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decode(t, rec)
	require.Equal(t, "Authentication successful", body["message"])
	user := body["user"].(map[string]any)
	require.Equal(t, "u-42", user["provider_id"])
	require.Equal(t, "oauth2", user["provider_name"])
	require.Equal(t, "ada@example.com", user["email"])
	tok := body["token"].(map[string]any)
	require.Equal(t, "bearer", tok["token_type"])
	require.EqualValues(t, 1800, tok["expires_in"])
	access := tok["access_token"].(string)

	ck := sessionCookie(rec)
	require.NotNil(t, ck)
	require.Equal(t, access, ck.Value)
	require.True(t, ck.HttpOnly)
	require.True(t, ck.Secure)
	require.Equal(t, http.SameSiteLaxMode, ck.SameSite)
	require.Equal(t, 1800, ck.MaxAge)
	require.Equal(t, "/", ck.Path)

	// me (cookie y bearer)
	rec = do(t, h, http.MethodGet, "/auth/me", func(r *http.Request) { r.AddCookie(ck) })
	require.Equal(t, http.StatusOK, rec.Code)
	var id types.Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &id))
	require.Equal(t, types.Identity{ProviderID: "u-42", ProviderName: "oauth2", Email: "ada@example.com", DisplayName: "Ada"}, id)

	rec = do(t, h, http.MethodGet, "/auth/me", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+access) })
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/protected", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+access) })
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "u-42")

	// status
	rec = do(t, h, http.MethodGet, "/auth/status", func(r *http.Request) { r.AddCookie(ck) })
	require.Equal(t, true, decode(t, rec)["authenticated"])

	// replay del mismo state: rechazado sin tocar el provider
	hits := idp.tokenHits.Load()
	rec = do(t, h, http.MethodGet, "/auth/callback?code=good-code&state="+url.QueryEscape(state), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_STATE", decode(t, rec)["code"])
	require.Nil(t, sessionCookie(rec))
	require.Equal(t, hits, idp.tokenHits.Load())

	// logout
	rec = do(t, h, http.MethodPost, "/auth/logout", func(r *http.Request) { r.AddCookie(ck) })
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Logged out successfully", decode(t, rec)["message"])
	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)
	require.Less(t, cleared.MaxAge, 0)
}

func TestStatus_Anonymous(t *testing.T) {
	app, _ := setupApp(t, nil)

	rec := do(t, app.Handler, http.MethodGet, "/auth/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"authenticated":false,"user":null}`, rec.Body.String())

	rec = do(t, app.Handler, http.MethodGet, "/auth/status", func(r *http.Request) { r.Header.Set("Authorization", "Bearer forged.token.value") })
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"authenticated":false,"user":null}`, rec.Body.String())
}

func TestMe_Unauthenticated(t *testing.T) {
	app, _ := setupApp(t, nil)

	rec := do(t, app.Handler, http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOKEN_MISSING", decode(t, rec)["code"])

	rec = do(t, app.Handler, http.MethodGet, "/auth/me", func(r *http.Request) { r.Header.Set("Authorization", "Bearer a.b.c") })
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOKEN_INVALID", decode(t, rec)["code"])
}

func TestCallback_ProviderRejectsCode(t *testing.T) {
	app, idp := setupApp(t, nil)
	state := login(t, app.Handler)

	rec := do(t, app.Handler, http.MethodGet, "/auth/callback?code=stale&state="+url.QueryEscape(state), nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Nil(t, sessionCookie(rec))
	require.Equal(t, int32(1), idp.tokenHits.Load())
	require.Equal(t, int32(0), idp.userinfoHits.Load())

	raw := rec.Body.String()
	require.Contains(t, raw, "AUTHENTICATION_FAILED")
	require.NotContains(t, raw, "redeemed")
	require.NotContains(t, raw, "super-secret-value")
}

func TestCallback_ProviderDenied_KeepsState(t *testing.T) {
	app, _ := setupApp(t, nil)
	state := login(t, app.Handler)

	rec := do(t, app.Handler, http.MethodGet, "/auth/callback?error=access_denied&error_description=nope&state="+url.QueryEscape(state), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "PROVIDER_DENIED", body["code"])
	require.Equal(t, "access_denied", body["detail"])
	require.NotContains(t, rec.Body.String(), "nope")

	// el state sigue siendo válido
	rec = do(t, app.Handler, http.MethodGet, "/auth/callback?code=good-code&state="+url.QueryEscape(state), nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCallback_MissingParams(t *testing.T) {
	app, _ := setupApp(t, nil)

	rec := do(t, app.Handler, http.MethodGet, "/auth/callback?code=good-code", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_STATE", decode(t, rec)["code"])

	state := login(t, app.Handler)
	rec = do(t, app.Handler, http.MethodGet, "/auth/callback?state="+url.QueryEscape(state), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "MISSING_CODE", decode(t, rec)["code"])
}

func TestLogin_RedirectAndUnknownProvider(t *testing.T) {
	app, idp := setupApp(t, nil)

	rec := do(t, app.Handler, http.MethodGet, "/auth/login?redirect=true", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Location"), idp.srv.URL+"/authorize?"))

	rec = do(t, app.Handler, http.MethodGet, "/auth/login?provider=nope", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "UNKNOWN_PROVIDER", decode(t, rec)["code"])

	rec = do(t, app.Handler, http.MethodDelete, "/auth/login", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	app, _ := setupApp(t, nil)
	login(t, app.Handler)
	do(t, app.Handler, http.MethodGet, "/random-scan-path", nil)

	rec := do(t, app.Handler, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "healthy", decode(t, rec)["status"])

	rec = do(t, app.Handler, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `lazyauth_logins_total{provider="oauth2"} 1`)
	require.Contains(t, rec.Body.String(), "lazyauth_state_store_entries 1")
	require.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/auth/login",status="200"} 1`)
	require.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="unmatched",status="404"} 1`)
	require.NotContains(t, rec.Body.String(), "random-scan-path")
}

func TestMetricsDisabled(t *testing.T) {
	app, _ := setupApp(t, map[string]string{"METRICS_ENABLED": "false"})
	require.Nil(t, app.Metrics)

	rec := do(t, app.Handler, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit_Login(t *testing.T) {
	app, _ := setupApp(t, map[string]string{
		"RATE_ENABLED":      "true",
		"RATE_LOGIN_LIMIT":  "2",
		"RATE_LOGIN_WINDOW": "1h",
	})

	for i := 0; i < 2; i++ {
		rec := do(t, app.Handler, http.MethodGet, "/auth/login", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, app.Handler, http.MethodGet, "/auth/login", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	// el callback tiene su propio contador
	rec = do(t, app.Handler, http.MethodGet, "/auth/callback", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// X-Forwarded-For no abre un contador nuevo si no se confía en el proxy
	rec = do(t, app.Handler, http.MethodGet, "/auth/login", func(r *http.Request) {
		r.Header.Set("X-Forwarded-For", "203.0.113.50")
	})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimit_TrustedForwardedFor(t *testing.T) {
	app, _ := setupApp(t, map[string]string{
		"RATE_ENABLED":      "true",
		"RATE_LOGIN_LIMIT":  "1",
		"RATE_LOGIN_WINDOW": "1h",
		"RATE_TRUST_XFF":    "true",
	})

	from := func(ip string) func(*http.Request) {
		return func(r *http.Request) { r.Header.Set("X-Forwarded-For", ip) }
	}
	require.Equal(t, http.StatusOK, do(t, app.Handler, http.MethodGet, "/auth/login", from("203.0.113.1")).Code)
	require.Equal(t, http.StatusTooManyRequests, do(t, app.Handler, http.MethodGet, "/auth/login", from("203.0.113.1")).Code)
	require.Equal(t, http.StatusOK, do(t, app.Handler, http.MethodGet, "/auth/login", from("203.0.113.2")).Code)
}
