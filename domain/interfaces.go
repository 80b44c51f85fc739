package domain

import (
	"context"
	"time"
)

// KeyValueStore is the injected persistent storage capability (the browser
// storage analog): string keys, string values, atomic multi-key writes.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// SetMulti writes all pairs atomically; readers never observe a partial
	// write.
	SetMulti(ctx context.Context, pairs map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
}

// CredentialStore persists the credential pair, user record, permission set
// and session descriptor. Wipe is the only clear path and removes everything.
type CredentialStore interface {
	SaveAuth(ctx context.Context, bundle *AuthBundle) error
	LoadAuth(ctx context.Context) (*AuthBundle, error)
	SaveTokens(ctx context.Context, creds Credentials) error
	SaveUser(ctx context.Context, user *User) error
	SavePermissions(ctx context.Context, permissions []string) error
	SaveSession(ctx context.Context, session *SessionInfo) error
	Wipe(ctx context.Context) error
}

// BackendClient is the REST auth backend collaborator. Calls are opaque
// HTTP round-trips; non-2xx answers surface as *BackendError.
type BackendClient interface {
	LoginURL(ctx context.Context, redirectURI string) (*LoginTarget, error)
	ExchangeToken(ctx context.Context, idpToken string) (*AuthResponse, error)
	ExchangeCallback(ctx context.Context, code, redirectURI, state string) (*AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
	Validate(ctx context.Context, accessToken string) (*ValidateResult, error)
	CurrentUser(ctx context.Context, accessToken string) (*User, []string, error)
	Permissions(ctx context.Context, accessToken string) ([]string, error)
	CheckSession(ctx context.Context, accessToken string) (*SessionCheck, error)
	Logout(ctx context.Context, accessToken string) error
	SearchUsers(ctx context.Context, accessToken, query string, limit int, excludeSelf bool) (*UserSearchResult, error)
}

// EventBus fans lifecycle events out to subscribers. Delivery is synchronous
// and in registration order; there is no replay.
type EventBus interface {
	Subscribe(kind EventType, fn Listener) int
	Unsubscribe(kind EventType, id int)
	Publish(event Event)
}

// AuthService is the stateful auth controller: it owns AuthState, drives the
// session timers, mutates the credential store and emits lifecycle events.
type AuthService interface {
	// Initialize restores a stored session once per app load. A cold store
	// resolves to (nil, nil) without any network call. Overlapping calls
	// share one round-trip set.
	Initialize(ctx context.Context) (*User, error)
	LoginURL(ctx context.Context, redirectURI string) (*LoginTarget, error)
	LoginWithMicrosoft(ctx context.Context, idpToken string) (*AuthResponse, error)
	CompleteOAuthCallback(ctx context.Context, code, redirectURI, state string) (*AuthResponse, error)
	// RefreshToken exchanges the stored refresh credential. Failure clears
	// all state and propagates the error; it is never swallowed.
	RefreshToken(ctx context.Context) (*RefreshResult, error)
	// ForceRefreshToken refreshes even when the cached token still looks
	// fresh.
	ForceRefreshToken(ctx context.Context) (*RefreshResult, error)
	// CheckSession re-validates the server-side session record. It reports
	// false on any failure and never returns an error.
	CheckSession(ctx context.Context) bool
	Logout(ctx context.Context) error
	// ExpireSession performs a forced logout and emits session_expired.
	ExpireSession(ctx context.Context)
	UpdatePermissions(ctx context.Context) ([]string, error)
	RefreshUser(ctx context.Context) (*User, error)
	SearchUsers(ctx context.Context, query string, limit int, excludeSelf bool) (*UserSearchResult, error)

	Snapshot() AuthState
	IsAuthenticated() bool
	TimeToExpiry() time.Duration
	HasRole(role Role) bool
	HasAnyRole(roles ...Role) bool
	HasPermission(permission string) bool
	HasAnyPermission(permissions ...string) bool
	HasAllPermissions(permissions ...string) bool
}

// ActivityRecorder receives user-interaction signals from whatever layer
// observes them.
type ActivityRecorder interface {
	RecordActivity()
}
