package mocks

import (
	"context"
	"time"

	"github.com/LukaszDygon/sbcw-kiro-sub000/domain"
)

// MockAuthService is a configurable fake of domain.AuthService for handler
// and middleware tests. Query methods have value fields so the common case
// needs no closures.
type MockAuthService struct {
	InitializeFunc            func(ctx context.Context) (*domain.User, error)
	LoginURLFunc              func(ctx context.Context, redirectURI string) (*domain.LoginTarget, error)
	LoginWithMicrosoftFunc    func(ctx context.Context, idpToken string) (*domain.AuthResponse, error)
	CompleteOAuthCallbackFunc func(ctx context.Context, code, redirectURI, state string) (*domain.AuthResponse, error)
	RefreshTokenFunc          func(ctx context.Context) (*domain.RefreshResult, error)
	ForceRefreshTokenFunc     func(ctx context.Context) (*domain.RefreshResult, error)
	CheckSessionFunc          func(ctx context.Context) bool
	LogoutFunc                func(ctx context.Context) error
	ExpireSessionFunc         func(ctx context.Context)
	UpdatePermissionsFunc     func(ctx context.Context) ([]string, error)
	RefreshUserFunc           func(ctx context.Context) (*domain.User, error)
	SearchUsersFunc           func(ctx context.Context, query string, limit int, excludeSelf bool) (*domain.UserSearchResult, error)

	SnapshotFunc        func() domain.AuthState
	IsAuthenticatedFunc func() bool
	TimeToExpiryFunc    func() time.Duration

	State         domain.AuthState
	Expiry        time.Duration
	Roles         map[domain.Role]bool
	PermissionSet map[string]bool
}

func NewMockAuthService() *MockAuthService {
	return &MockAuthService{
		Roles:         make(map[domain.Role]bool),
		PermissionSet: make(map[string]bool),
	}
}

func (m *MockAuthService) Initialize(ctx context.Context) (*domain.User, error) {
	if m.InitializeFunc != nil {
		return m.InitializeFunc(ctx)
	}
	return m.State.User, nil
}

func (m *MockAuthService) LoginURL(ctx context.Context, redirectURI string) (*domain.LoginTarget, error) {
	if m.LoginURLFunc != nil {
		return m.LoginURLFunc(ctx, redirectURI)
	}
	return nil, nil
}

func (m *MockAuthService) LoginWithMicrosoft(ctx context.Context, idpToken string) (*domain.AuthResponse, error) {
	if m.LoginWithMicrosoftFunc != nil {
		return m.LoginWithMicrosoftFunc(ctx, idpToken)
	}
	return nil, nil
}

func (m *MockAuthService) CompleteOAuthCallback(ctx context.Context, code, redirectURI, state string) (*domain.AuthResponse, error) {
	if m.CompleteOAuthCallbackFunc != nil {
		return m.CompleteOAuthCallbackFunc(ctx, code, redirectURI, state)
	}
	return nil, nil
}

func (m *MockAuthService) RefreshToken(ctx context.Context) (*domain.RefreshResult, error) {
	if m.RefreshTokenFunc != nil {
		return m.RefreshTokenFunc(ctx)
	}
	return nil, nil
}

func (m *MockAuthService) ForceRefreshToken(ctx context.Context) (*domain.RefreshResult, error) {
	if m.ForceRefreshTokenFunc != nil {
		return m.ForceRefreshTokenFunc(ctx)
	}
	return nil, nil
}

func (m *MockAuthService) CheckSession(ctx context.Context) bool {
	if m.CheckSessionFunc != nil {
		return m.CheckSessionFunc(ctx)
	}
	return m.State.IsAuthenticated()
}

func (m *MockAuthService) Logout(ctx context.Context) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx)
	}
	m.State = domain.AuthState{Status: domain.StatusUnauthenticated}
	return nil
}

func (m *MockAuthService) ExpireSession(ctx context.Context) {
	if m.ExpireSessionFunc != nil {
		m.ExpireSessionFunc(ctx)
		return
	}
	m.State = domain.AuthState{Status: domain.StatusUnauthenticated}
}

func (m *MockAuthService) UpdatePermissions(ctx context.Context) ([]string, error) {
	if m.UpdatePermissionsFunc != nil {
		return m.UpdatePermissionsFunc(ctx)
	}
	return m.State.Permissions, nil
}

func (m *MockAuthService) RefreshUser(ctx context.Context) (*domain.User, error) {
	if m.RefreshUserFunc != nil {
		return m.RefreshUserFunc(ctx)
	}
	return m.State.User, nil
}

func (m *MockAuthService) SearchUsers(ctx context.Context, query string, limit int, excludeSelf bool) (*domain.UserSearchResult, error) {
	if m.SearchUsersFunc != nil {
		return m.SearchUsersFunc(ctx, query, limit, excludeSelf)
	}
	return nil, nil
}

func (m *MockAuthService) Snapshot() domain.AuthState {
	if m.SnapshotFunc != nil {
		return m.SnapshotFunc()
	}
	return m.State
}

func (m *MockAuthService) IsAuthenticated() bool {
	if m.IsAuthenticatedFunc != nil {
		return m.IsAuthenticatedFunc()
	}
	return m.State.IsAuthenticated()
}

func (m *MockAuthService) TimeToExpiry() time.Duration {
	if m.TimeToExpiryFunc != nil {
		return m.TimeToExpiryFunc()
	}
	return m.Expiry
}

func (m *MockAuthService) HasRole(role domain.Role) bool { return m.Roles[role] }

func (m *MockAuthService) HasAnyRole(roles ...domain.Role) bool {
	for _, role := range roles {
		if m.Roles[role] {
			return true
		}
	}
	return false
}

func (m *MockAuthService) HasPermission(permission string) bool {
	return m.PermissionSet[permission]
}

func (m *MockAuthService) HasAnyPermission(permissions ...string) bool {
	for _, p := range permissions {
		if m.PermissionSet[p] {
			return true
		}
	}
	return false
}

func (m *MockAuthService) HasAllPermissions(permissions ...string) bool {
	for _, p := range permissions {
		if !m.PermissionSet[p] {
			return false
		}
	}
	return true
}

var _ domain.AuthService = (*MockAuthService)(nil)
