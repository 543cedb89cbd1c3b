package server

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/awadmin/awadmin-api-go/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRegisterAndLogin(t *testing.T) {
	is := assert.New(t)
	f := newFixture(t)

	rr := f.do("POST", "/api/register/", "", map[string]any{
		"username": "bob",
		"email":    "bob@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	out := decode(t, rr)
	is.Equal("bob", out["username"])
	is.Equal("bob@example.com", out["email"])
	is.NotContains(out, "password")

	rr = f.do("POST", "/api/register", "", map[string]any{
		"username": "bob",
		"email":    "other@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	e := decode(t, rr)["error"].(map[string]any)
	is.Equal("API_VALIDATION", e["code"])
	is.Equal("username", e["details"].([]any)[0].(map[string]any)["field"])

	rr = f.do("POST", "/api/login/", "", map[string]any{"username": "bob", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	access, _ := decode(t, rr)["token"].(string)
	require.NotEmpty(t, access)

	rr = f.do("GET", "/api/address-types", access, nil)
	is.Equal(http.StatusOK, rr.Code, "login token authenticates resource requests")

	rr = f.do("GET", "/api/api-errors", access, nil)
	is.Equal(http.StatusForbidden, rr.Code, "registered users are not staff")
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	rr := f.do("POST", "/api/register/", "", map[string]any{
		"username": "with space",
		"email":    "not-an-email",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	e := decode(t, rr)["error"].(map[string]any)
	var fields []string
	for _, d := range e["details"].([]any) {
		fields = append(fields, d.(map[string]any)["field"].(string))
	}
	assert.ElementsMatch(t, []string{"username", "email", "password"}, fields)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	svc := auth.NewService(f.store).WithCost(bcrypt.MinCost)
	_, err := svc.Register(context.Background(), auth.RegisterRequest{
		Username: "carol", Email: "carol@example.com", Password: "s3cret-pass",
	})
	require.NoError(t, err)

	for _, body := range []map[string]any{
		{"username": "carol", "password": "nope-nope"},
		{"username": "dave", "password": "s3cret-pass"},
	} {
		rr := f.do("POST", "/api/login/", "", body)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, rr.Body.String())
		assert.Equal(t, map[string]any{"error": "Invalid credentials"}, decode(t, rr))
	}

	rr := f.do("POST", "/api/login/", "", map[string]any{"username": "carol"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "API_VALIDATION", errorCode(t, rr))

	// the token endpoint keeps the taxonomy envelope
	rr = f.do("POST", "/api/token/", "", map[string]any{"username": "carol", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "API_AUTHN", errorCode(t, rr))

	admin := f.do("GET", "/api/api-errors?page_size=100", f.staff, nil)
	require.Equal(t, http.StatusOK, admin.Code)
	var logged int
	for _, row := range decode(t, admin)["results"].([]any) {
		row := row.(map[string]any)
		if row["code"] == "API_AUTHN" && row["path"] == "/api/login/" {
			logged++
		}
	}
	assert.Equal(t, 2, logged, "failed logins are recorded")
}

func TestRegisterPasswordTooLong(t *testing.T) {
	f := newFixture(t)

	rr := f.do("POST", "/api/register/", "", map[string]any{
		"username": "long",
		"email":    "long@example.com",
		"password": strings.Repeat("a", 100),
	})
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	assert.Equal(t, "API_VALIDATION", errorCode(t, rr))
	e := decode(t, rr)["error"].(map[string]any)
	assert.Equal(t, "password", e["details"].([]any)[0].(map[string]any)["field"])
}

func TestTokenPairAndRefresh(t *testing.T) {
	is := assert.New(t)
	f := newFixture(t)
	svc := auth.NewService(f.store).WithCost(bcrypt.MinCost)
	_, err := svc.EnsureSuperuser(context.Background(), "root", "root-password")
	require.NoError(t, err)

	rr := f.do("POST", "/api/token/", "", map[string]any{"username": "root", "password": "root-password"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	out := decode(t, rr)
	access, _ := out["access"].(string)
	refresh, _ := out["refresh"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	rr = f.do("GET", "/api/api-errors", access, nil)
	is.Equal(http.StatusOK, rr.Code, "superusers are staff")

	rr = f.do("POST", "/api/token/refresh/", "", map[string]any{"refresh": refresh})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	renewed, _ := decode(t, rr)["access"].(string)
	require.NotEmpty(t, renewed)

	rr = f.do("GET", "/api/api-errors", renewed, nil)
	is.Equal(http.StatusOK, rr.Code, "refreshed token keeps the staff flag")

	rr = f.do("POST", "/api/token/refresh/", "", map[string]any{"refresh": access})
	is.Equal(http.StatusUnauthorized, rr.Code, "an access token cannot refresh")
	is.Equal("API_TOKEN_INVALID", errorCode(t, rr))

	rr = f.do("POST", "/api/token/refresh", "", map[string]any{})
	is.Equal(http.StatusBadRequest, rr.Code)
	is.Equal("API_VALIDATION", errorCode(t, rr))
}

func TestAuthEndpointsRejectMalformedBodies(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/register/", "/api/login/", "/api/token/", "/api/token/refresh/"} {
		rr := f.do("POST", path, "", "not an object")
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
		assert.Equal(t, "API_BAD_REQUEST", errorCode(t, rr), path)
	}
}
