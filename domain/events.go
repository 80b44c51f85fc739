package domain

import "time"

// EventType identifies a lifecycle event. The set is closed; listeners key
// their subscriptions on it.
type EventType string

const (
	EventLogin             EventType = "login"
	EventLogout            EventType = "logout"
	EventTokenRefresh      EventType = "token_refresh"
	EventSessionExpired    EventType = "session_expired"
	EventPermissionChanged EventType = "permission_changed"
)

// LogoutReason is carried on logout navigation so the sign-in view can show
// a contextual message without the auth subsystem rendering UI.
type LogoutReason string

const (
	ReasonSessionExpired LogoutReason = "session_expired"
	ReasonUnauthorized   LogoutReason = "unauthorized"
)

// Event is a lifecycle notification published by the auth controller.
// Only the fields relevant to the Type are populated.
type Event struct {
	Type        EventType
	Timestamp   time.Time
	User        *User
	Reason      LogoutReason
	Permissions []string
	ExpiresAt   time.Time
}

// Listener receives events synchronously, in registration order.
type Listener func(Event)

// NewLoginEvent signals a successful sign-in or restored session.
func NewLoginEvent(user *User) Event {
	return Event{Type: EventLogin, Timestamp: time.Now().UTC(), User: user}
}

// NewLogoutEvent signals a user-initiated sign-out.
func NewLogoutEvent(reason LogoutReason) Event {
	return Event{Type: EventLogout, Timestamp: time.Now().UTC(), Reason: reason}
}

// NewTokenRefreshEvent signals a replaced access credential.
func NewTokenRefreshEvent(expiresAt time.Time) Event {
	return Event{Type: EventTokenRefresh, Timestamp: time.Now().UTC(), ExpiresAt: expiresAt}
}

// NewSessionExpiredEvent signals a forced logout caused by session
// invalidity or refresh failure.
func NewSessionExpiredEvent() Event {
	return Event{Type: EventSessionExpired, Timestamp: time.Now().UTC(), Reason: ReasonSessionExpired}
}

// NewPermissionChangedEvent signals a refetched permission set.
func NewPermissionChangedEvent(permissions []string) Event {
	return Event{Type: EventPermissionChanged, Timestamp: time.Now().UTC(), Permissions: permissions}
}
