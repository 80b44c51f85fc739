package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LukaszDygon/sbcw-kiro-sub000/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL, WithTimeout(2*time.Second))
	require.NoError(t, err)
	return client
}

func TestClient_Refresh(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/refresh", r.URL.Path)
		assert.Equal(t, "Bearer refresh-token-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		json.NewEncoder(w).Encode(domain.RefreshResult{AccessToken: "new-access", ExpiresIn: 3600})
	})

	res, err := client.Refresh(context.Background(), "refresh-token-1")
	require.NoError(t, err)
	assert.Equal(t, "new-access", res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
}

func TestClient_Refresh_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "refresh token revoked", http.StatusUnauthorized)
	})

	_, err := client.Refresh(context.Background(), "stale")
	require.Error(t, err)

	var backendErr *domain.BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.Equal(t, http.StatusUnauthorized, backendErr.Status)
	assert.True(t, backendErr.IsAuthRejection())
	assert.Contains(t, backendErr.Body, "revoked")
}

func TestClient_LoginURL(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login-url", r.URL.Path)
		assert.Equal(t, "https://app.example.com/callback", r.URL.Query().Get("redirect_uri"))
		json.NewEncoder(w).Encode(domain.LoginTarget{
			LoginURL:    "https://idp.example.com/authorize?state=abc",
			State:       "abc",
			RedirectURI: "https://app.example.com/callback",
		})
	})

	target, err := client.LoginURL(context.Background(), "https://app.example.com/callback")
	require.NoError(t, err)
	assert.Equal(t, "abc", target.State)
}

func TestClient_ExchangeToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/token", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "idp-token", body["access_token"])
		json.NewEncoder(w).Encode(domain.AuthResponse{
			User:         &domain.User{ID: "u-1", Role: domain.RoleEmployee},
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresIn:    3600,
			Permissions:  []string{"transfers.read"},
			SessionID:    "sess-1",
		})
	})

	res, err := client.ExchangeToken(context.Background(), "idp-token")
	require.NoError(t, err)
	assert.Equal(t, "u-1", res.User.ID)
	assert.Equal(t, "sess-1", res.SessionID)
}

func TestClient_ExchangeCallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/callback", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "code-1", body["code"])
		assert.Equal(t, "state-1", body["state"])
		json.NewEncoder(w).Encode(domain.AuthResponse{
			User: &domain.User{ID: "u-2"}, AccessToken: "a", RefreshToken: "r", ExpiresIn: 900,
		})
	})

	res, err := client.ExchangeCallback(context.Background(), "code-1", "https://app/cb", "state-1")
	require.NoError(t, err)
	assert.Equal(t, "u-2", res.User.ID)
}

func TestClient_Permissions_FlattensGrantMap(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/permissions", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"permissions": map[string]bool{
				"transfers.write": true,
				"reports.read":    true,
				"admin.users":     false,
			},
		})
	})

	perms, err := client.Permissions(context.Background(), "access")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports.read", "transfers.write"}, perms)
}

func TestClient_CheckSession(t *testing.T) {
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/session", r.URL.Path)
		json.NewEncoder(w).Encode(domain.SessionCheck{
			Valid:   true,
			Session: &domain.SessionInfo{SessionID: "sess-7", ExpiresAt: expires},
		})
	})

	check, err := client.CheckSession(context.Background(), "access")
	require.NoError(t, err)
	assert.True(t, check.Valid)
	assert.Equal(t, "sess-7", check.Session.SessionID)
}

func TestClient_Logout_IgnoresBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/logout", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.Logout(context.Background(), "access"))
}

func TestClient_SearchUsers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/users/search", r.URL.Path)
		assert.Equal(t, "dan", r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "true", r.URL.Query().Get("exclude_self"))
		json.NewEncoder(w).Encode(domain.UserSearchResult{
			Users:      []domain.User{{ID: "u-3", Name: "Dana"}},
			SearchTerm: "dan",
			Count:      1,
		})
	})

	res, err := client.SearchUsers(context.Background(), "access", "dan", 10, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "Dana", res.Users[0].Name)
}

func TestClient_CurrentUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/me", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"user":        domain.User{ID: "u-9", Role: domain.RoleAdmin},
			"permissions": []string{"admin.users"},
		})
	})

	user, perms, err := client.CurrentUser(context.Background(), "access")
	require.NoError(t, err)
	assert.Equal(t, "u-9", user.ID)
	assert.Equal(t, []string{"admin.users"}, perms)
}

func TestClient_NetworkFailure(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:1", WithTimeout(200*time.Millisecond))
	require.NoError(t, err)

	_, err = client.Validate(context.Background(), "access")
	require.Error(t, err)

	var backendErr *domain.BackendError
	assert.False(t, errors.As(err, &backendErr), "transport failure must not masquerade as a backend answer")
}
