package mocks

import (
	"context"
	"sync"

	"github.com/LukaszDygon/sbcw-kiro-sub000/domain"
)

// MockBackendClient is a configurable fake of domain.BackendClient. Tests
// set the function fields they need; unset operations fail loudly by
// returning zero values.
type MockBackendClient struct {
	mu    sync.Mutex
	calls map[string]int

	LoginURLFunc         func(ctx context.Context, redirectURI string) (*domain.LoginTarget, error)
	ExchangeTokenFunc    func(ctx context.Context, idpToken string) (*domain.AuthResponse, error)
	ExchangeCallbackFunc func(ctx context.Context, code, redirectURI, state string) (*domain.AuthResponse, error)
	RefreshFunc          func(ctx context.Context, refreshToken string) (*domain.RefreshResult, error)
	ValidateFunc         func(ctx context.Context, accessToken string) (*domain.ValidateResult, error)
	CurrentUserFunc      func(ctx context.Context, accessToken string) (*domain.User, []string, error)
	PermissionsFunc      func(ctx context.Context, accessToken string) ([]string, error)
	CheckSessionFunc     func(ctx context.Context, accessToken string) (*domain.SessionCheck, error)
	LogoutFunc           func(ctx context.Context, accessToken string) error
	SearchUsersFunc      func(ctx context.Context, accessToken, query string, limit int, excludeSelf bool) (*domain.UserSearchResult, error)
}

func NewMockBackendClient() *MockBackendClient {
	return &MockBackendClient{calls: make(map[string]int)}
}

func (m *MockBackendClient) record(op string) {
	m.mu.Lock()
	m.calls[op]++
	m.mu.Unlock()
}

// Calls reports how many times the named operation ran.
func (m *MockBackendClient) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockBackendClient) LoginURL(ctx context.Context, redirectURI string) (*domain.LoginTarget, error) {
	m.record("LoginURL")
	if m.LoginURLFunc != nil {
		return m.LoginURLFunc(ctx, redirectURI)
	}
	return nil, nil
}

func (m *MockBackendClient) ExchangeToken(ctx context.Context, idpToken string) (*domain.AuthResponse, error) {
	m.record("ExchangeToken")
	if m.ExchangeTokenFunc != nil {
		return m.ExchangeTokenFunc(ctx, idpToken)
	}
	return nil, nil
}

func (m *MockBackendClient) ExchangeCallback(ctx context.Context, code, redirectURI, state string) (*domain.AuthResponse, error) {
	m.record("ExchangeCallback")
	if m.ExchangeCallbackFunc != nil {
		return m.ExchangeCallbackFunc(ctx, code, redirectURI, state)
	}
	return nil, nil
}

func (m *MockBackendClient) Refresh(ctx context.Context, refreshToken string) (*domain.RefreshResult, error) {
	m.record("Refresh")
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil, nil
}

func (m *MockBackendClient) Validate(ctx context.Context, accessToken string) (*domain.ValidateResult, error) {
	m.record("Validate")
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, accessToken)
	}
	return &domain.ValidateResult{Valid: true}, nil
}

func (m *MockBackendClient) CurrentUser(ctx context.Context, accessToken string) (*domain.User, []string, error) {
	m.record("CurrentUser")
	if m.CurrentUserFunc != nil {
		return m.CurrentUserFunc(ctx, accessToken)
	}
	return nil, nil, nil
}

func (m *MockBackendClient) Permissions(ctx context.Context, accessToken string) ([]string, error) {
	m.record("Permissions")
	if m.PermissionsFunc != nil {
		return m.PermissionsFunc(ctx, accessToken)
	}
	return nil, nil
}

func (m *MockBackendClient) CheckSession(ctx context.Context, accessToken string) (*domain.SessionCheck, error) {
	m.record("CheckSession")
	if m.CheckSessionFunc != nil {
		return m.CheckSessionFunc(ctx, accessToken)
	}
	return &domain.SessionCheck{Valid: true}, nil
}

func (m *MockBackendClient) Logout(ctx context.Context, accessToken string) error {
	m.record("Logout")
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, accessToken)
	}
	return nil
}

func (m *MockBackendClient) SearchUsers(ctx context.Context, accessToken, query string, limit int, excludeSelf bool) (*domain.UserSearchResult, error) {
	m.record("SearchUsers")
	if m.SearchUsersFunc != nil {
		return m.SearchUsersFunc(ctx, accessToken, query, limit, excludeSelf)
	}
	return nil, nil
}

var _ domain.BackendClient = (*MockBackendClient)(nil)
