package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMux(t *testing.T) (*http.ServeMux, *Service) {
	t.Helper()

	service, _ := newTestService(t)
	handler := NewHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", handler.Register)
	mux.HandleFunc("POST /login", handler.Login)
	mux.Handle("POST /logout", RequireAuth(service, http.HandlerFunc(handler.Logout)))
	mux.Handle("GET /me", RequireAuth(service, http.HandlerFunc(handler.Me)))
	return mux, service
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Register_ShortPassword(t *testing.T) {
	t.Parallel()

	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/register", "", `{
		"name": "Jonathan Example",
		"role": "user",
		"email": "jonathan@example.com",
		"password": "short",
		"password_confirmation": "short"
	}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["errors"], "password")
}

func TestHandler_Register_ConfirmationMismatch(t *testing.T) {
	t.Parallel()

	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/register", "", `{
		"name": "Jonathan Example",
		"role": "user",
		"email": "jonathan@example.com",
		"password": "goodpassword1",
		"password_confirmation": "different"
	}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandler_Register_BadJSON(t *testing.T) {
	t.Parallel()

	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/register", "", `{"name": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/register", "", `{"unexpected": true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_FullSessionFlow(t *testing.T) {
	t.Parallel()

	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/register", "", `{
		"name": "Administrator One",
		"role": "admin",
		"email": "admin-one@example.com",
		"password": "goodpassword1",
		"password_confirmation": "goodpassword1"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = doJSON(t, mux, http.MethodPost, "/login", "", `{
		"email": "admin-one@example.com",
		"password": "goodpassword1"
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var loginBody map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginBody))
	token := loginBody["token"]
	require.NotEmpty(t, token)

	rec = doJSON(t, mux, http.MethodGet, "/me", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var me map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "Administrator One", me["name"])
	assert.Equal(t, "admin-one@example.com", me["email"])
	assert.Equal(t, "admin", me["role"])
	assert.NotContains(t, me, "password")
	assert.NotContains(t, me, "password_hash")

	rec = doJSON(t, mux, http.MethodPost, "/logout", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/me", token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_Login_PayloadValidation(t *testing.T) {
	t.Parallel()

	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/login", "", `{
		"email": "a@b",
		"password": "x"
	}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["errors"], "email")
	assert.Contains(t, body["errors"], "password")
}

func TestHandler_Login_InvalidCredentials(t *testing.T) {
	t.Parallel()

	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/register", "", `{
		"name": "Jonathan Example",
		"role": "user",
		"email": "jonathan@example.com",
		"password": "goodpassword1",
		"password_confirmation": "goodpassword1"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Same 401 body whether the email or the password is wrong.
	wrongPassword := doJSON(t, mux, http.MethodPost, "/login", "", `{
		"email": "jonathan@example.com",
		"password": "wrongpassword"
	}`)
	unknownEmail := doJSON(t, mux, http.MethodPost, "/login", "", `{
		"email": "missing-user@example.com",
		"password": "goodpassword1"
	}`)

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestHandler_Me_RequiresToken(t *testing.T) {
	t.Parallel()

	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRateLimiter_Middleware(t *testing.T) {
	t.Parallel()

	limiter := NewLoginRateLimiter(2, time.Minute)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// A different client is unaffected.
	req = httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
