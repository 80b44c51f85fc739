package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LukaszDygon/sbcw-kiro-sub000/domain"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/events"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/mocks"
)

type activitySpy struct{ calls int }

func (a *activitySpy) RecordActivity() { a.calls++ }

func guardFixture() (*Guard, *mocks.MockAuthService, *activitySpy, domain.EventBus) {
	gin.SetMode(gin.TestMode)
	auth := mocks.NewMockAuthService()
	spy := &activitySpy{}
	bus := events.NewBus(nil)
	return NewGuard(auth, spy, bus), auth, spy, bus
}

func perform(handler gin.HandlerFunc, headers map[string]string) *httptest.ResponseRecorder {
	router := gin.New()
	router.GET("/protected", handler, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuthRedirectsAnonymousBrowser(t *testing.T) {
	guard, _, _, _ := guardFixture()

	w := perform(guard.RequireAuth(), nil)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?reason=unauthorized", w.Header().Get("Location"))
}

func TestRequireAuthReturnsJSONForAPIClients(t *testing.T) {
	guard, _, _, _ := guardFixture()

	w := perform(guard.RequireAuth(), map[string]string{"Accept": "application/json"})

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "unauthorized")
}

func TestRequireAuthPassesAndRecordsActivity(t *testing.T) {
	guard, auth, spy, _ := guardFixture()
	auth.State = domain.AuthState{Status: domain.StatusAuthenticated}

	w := perform(guard.RequireAuth(), nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, spy.calls)
}

func TestRedirectCarriesSessionExpiredReason(t *testing.T) {
	guard, _, _, bus := guardFixture()

	bus.Publish(domain.NewSessionExpiredEvent())
	w := perform(guard.RequireAuth(), nil)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?reason=session_expired", w.Header().Get("Location"))
}

func TestLoginResetsRedirectReason(t *testing.T) {
	guard, _, _, bus := guardFixture()

	bus.Publish(domain.NewSessionExpiredEvent())
	bus.Publish(domain.NewLoginEvent(&domain.User{ID: "u-1"}))
	w := perform(guard.RequireAuth(), nil)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?reason=unauthorized", w.Header().Get("Location"))
}

func TestRequireRoleUsesHierarchy(t *testing.T) {
	tests := []struct {
		name     string
		granted  map[domain.Role]bool
		required domain.Role
		want     int
	}{
		{"role held", map[domain.Role]bool{domain.RoleAdmin: true}, domain.RoleAdmin, http.StatusOK},
		{"role missing", map[domain.Role]bool{}, domain.RoleFinance, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guard, auth, _, _ := guardFixture()
			auth.State = domain.AuthState{Status: domain.StatusAuthenticated}
			auth.Roles = tt.granted

			w := perform(guard.RequireRole(tt.required), nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequireAnyRole(t *testing.T) {
	guard, auth, _, _ := guardFixture()
	auth.State = domain.AuthState{Status: domain.StatusAuthenticated}
	auth.Roles = map[domain.Role]bool{domain.RoleAdmin: true}

	w := perform(guard.RequireAnyRole(domain.RoleFinance, domain.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = perform(guard.RequireAnyRole(domain.RoleFinance), nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequirePermissions(t *testing.T) {
	guard, auth, _, _ := guardFixture()
	auth.State = domain.AuthState{Status: domain.StatusAuthenticated}
	auth.PermissionSet = map[string]bool{"transfers.read": true, "reports.view": true}

	w := perform(guard.RequirePermissions("transfers.read", "reports.view"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = perform(guard.RequirePermissions("transfers.read", "accounts.close"), nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAnyPermission(t *testing.T) {
	guard, auth, _, _ := guardFixture()
	auth.State = domain.AuthState{Status: domain.StatusAuthenticated}
	auth.PermissionSet = map[string]bool{"reports.view": true}

	w := perform(guard.RequireAnyPermission("accounts.close", "reports.view"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = perform(guard.RequireAnyPermission("accounts.close"), nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestGuardsRejectAnonymousBeforeRoleCheck(t *testing.T) {
	guard, _, _, _ := guardFixture()

	tests := []struct {
		name    string
		handler gin.HandlerFunc
	}{
		{"role", guard.RequireRole(domain.RoleEmployee)},
		{"any role", guard.RequireAnyRole(domain.RoleEmployee)},
		{"permissions", guard.RequirePermissions("x")},
		{"any permission", guard.RequireAnyPermission("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(tt.handler, nil)
			assert.Equal(t, http.StatusFound, w.Code)
		})
	}
}
