package domain

import "time"

// Role is the coarse access level assigned to a user. Permissions are fetched
// independently; the role only drives the hierarchy check.
type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleAdmin    Role = "ADMIN"
	RoleFinance  Role = "FINANCE"
)

// User represents the signed-in banking user as returned by the backend.
type User struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Role          Role       `json:"role"`
	AccountStatus string     `json:"account_status"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
}

// SessionInfo is the server-side session record mirrored on the client.
// A session past ExpiresAt is never trusted even if still cached.
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	LastActivity time.Time `json:"last_activity"`
}

// Expired reports whether the session record is past its hard expiry.
func (s *SessionInfo) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Credentials is the access/refresh token pair together with the access
// token's issue and expiry timestamps. The access token and ExpiresAt are
// always replaced together.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token is past its expiry.
func (c *Credentials) Expired(now time.Time) bool {
	return c.ExpiresAt.IsZero() || now.After(c.ExpiresAt)
}

// TimeToExpiry returns the remaining access token lifetime, negative once
// expired.
func (c *Credentials) TimeToExpiry(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

// AuthBundle is everything persisted at a successful login or initialize.
// It is stored and wiped as a single unit.
type AuthBundle struct {
	Credentials Credentials
	User        *User
	Permissions []string
	Session     *SessionInfo
}

// AuthStatus is the controller's lifecycle state.
type AuthStatus int

const (
	StatusUninitialized AuthStatus = iota
	StatusInitializing
	StatusAuthenticated
	StatusUnauthenticated
)

func (s AuthStatus) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusInitializing:
		return "initializing"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// AuthState is the canonical in-memory auth state owned by the controller.
// Consumers only ever see copies. Invariants: authenticated implies User is
// non-nil; a non-empty Err implies not authenticated.
type AuthState struct {
	Status      AuthStatus
	IsLoading   bool
	User        *User
	Permissions []string
	Err         string
	Session     *SessionInfo
}

// IsAuthenticated reports whether the state represents a signed-in user.
func (s AuthState) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated
}

// AuthResponse is the backend's answer to a token or callback exchange.
type AuthResponse struct {
	User         *User    `json:"user"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	Permissions  []string `json:"permissions,omitempty"`
	SessionID    string   `json:"session_id,omitempty"`
}

// RefreshResult is the backend's answer to a token refresh.
type RefreshResult struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// LoginTarget is the identity-provider sign-in location issued by the backend.
type LoginTarget struct {
	LoginURL    string `json:"login_url"`
	State       string `json:"state"`
	RedirectURI string `json:"redirect_uri"`
}

// ValidateResult is the backend's verdict on a bearer credential.
type ValidateResult struct {
	Valid  bool   `json:"valid"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// SessionCheck is the backend's verdict on the server-side session record.
type SessionCheck struct {
	Valid   bool         `json:"valid"`
	Session *SessionInfo `json:"session,omitempty"`
}

// UserSearchResult is a page of users matching a directory search.
type UserSearchResult struct {
	Users      []User `json:"users"`
	SearchTerm string `json:"search_term"`
	Count      int    `json:"count"`
}
