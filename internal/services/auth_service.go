package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LukaszDygon/sbcw-kiro-sub000/domain"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/obs"
)

// AuthConfig carries the session timer parameters.
type AuthConfig struct {
	// RefreshMargin is how far ahead of expiry a refresh fires.
	RefreshMargin time.Duration
	// RefreshFloor is the minimum delay before any scheduled refresh.
	RefreshFloor time.Duration
	// PollInterval is the cadence of server-side session checks.
	PollInterval time.Duration
}

func (c AuthConfig) withDefaults() AuthConfig {
	if c.RefreshMargin <= 0 {
		c.RefreshMargin = 5 * time.Minute
	}
	if c.RefreshFloor <= 0 {
		c.RefreshFloor = time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Minute
	}
	return c
}

type initFlight struct {
	done chan struct{}
	user *domain.User
	err  error
}

// AuthServiceImpl implements domain.AuthService. It is the only writer of
// the auth state; every other component reads snapshots and listens for
// events. Store writes and the matching in-memory update happen under one
// critical section so no reader ever observes them disagreeing. A
// generation counter, bumped on every clear, lets in-flight network
// completions detect that logout won the race and discard their results.
type AuthServiceImpl struct {
	backend domain.BackendClient
	creds   domain.CredentialStore
	bus     domain.EventBus
	cfg     AuthConfig
	log     *slog.Logger
	metrics *obs.Metrics
	now     func() time.Time
	clock   *SessionClock

	mu          sync.Mutex
	state       domain.AuthState
	current     domain.Credentials
	generation  uint64
	flight      *initFlight
	initialized bool
}

// AuthOption configures the auth service.
type AuthOption func(*AuthServiceImpl)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) AuthOption {
	return func(s *AuthServiceImpl) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithMetrics attaches lifecycle counters.
func WithMetrics(m *obs.Metrics) AuthOption {
	return func(s *AuthServiceImpl) { s.metrics = m }
}

// NewAuthService creates the auth controller.
func NewAuthService(
	backend domain.BackendClient,
	creds domain.CredentialStore,
	bus domain.EventBus,
	cfg AuthConfig,
	log *slog.Logger,
	opts ...AuthOption,
) domain.AuthService {
	if log == nil {
		log = slog.Default()
	}
	svc := &AuthServiceImpl{
		backend: backend,
		creds:   creds,
		bus:     bus,
		cfg:     cfg.withDefaults(),
		log:     log,
		now:     time.Now,
		state:   domain.AuthState{Status: domain.StatusUninitialized},
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.clock = NewSessionClock(
		svc.cfg.RefreshMargin, svc.cfg.RefreshFloor, svc.cfg.PollInterval,
		log, svc.timerRefresh, svc.timerPoll,
	)
	return svc
}

// Initialize implements domain.AuthService. It runs once per process:
// overlapping calls converge on a single in-flight pass, and calls after
// completion return the settled state without touching the network again.
func (s *AuthServiceImpl) Initialize(ctx context.Context) (*domain.User, error) {
	s.mu.Lock()
	if s.initialized {
		user := s.state.User
		s.mu.Unlock()
		return user, nil
	}
	if fl := s.flight; fl != nil {
		s.mu.Unlock()
		<-fl.done
		return fl.user, fl.err
	}
	fl := &initFlight{done: make(chan struct{})}
	s.flight = fl
	gen := s.generation
	s.state.Status = domain.StatusInitializing
	s.state.IsLoading = true
	s.mu.Unlock()

	user, err := s.restore(ctx, gen)

	s.mu.Lock()
	fl.user, fl.err = user, err
	s.flight = nil
	s.initialized = true
	s.state.IsLoading = false
	s.mu.Unlock()
	close(fl.done)
	return user, err
}

// restore replays a stored session: refresh if expired, then validate the
// credential and the server-side session in parallel. Every failure path
// degrades to a clean unauthenticated state rather than an error.
func (s *AuthServiceImpl) restore(ctx context.Context, gen uint64) (*domain.User, error) {
	bundle, err := s.creds.LoadAuth(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNoStoredAuth) {
			s.log.Warn("credential store read failed", "error", err)
		}
		s.settleUnauthenticated(gen)
		return nil, nil
	}

	if bundle.Credentials.Expired(s.now()) {
		if bundle.Credentials.RefreshToken == "" {
			s.wipeAndSettle(ctx, gen)
			return nil, nil
		}
		res, err := s.backend.Refresh(ctx, bundle.Credentials.RefreshToken)
		if err != nil {
			s.log.Info("stored credential refresh failed", "error", err)
			s.metrics.RefreshFailed()
			s.wipeAndSettle(ctx, gen)
			return nil, nil
		}
		now := s.now()
		issuedAt, expiresAt := tokenTimes(res.AccessToken, res.ExpiresIn, now)
		bundle.Credentials = domain.Credentials{
			AccessToken:  res.AccessToken,
			RefreshToken: bundle.Credentials.RefreshToken,
			IssuedAt:     issuedAt,
			ExpiresAt:    expiresAt,
		}
		s.mu.Lock()
		if gen != s.generation {
			// Logout landed while the refresh was in flight; the store
			// was wiped and must stay wiped.
			s.mu.Unlock()
			return nil, nil
		}
		saveErr := s.creds.SaveTokens(ctx, bundle.Credentials)
		s.mu.Unlock()
		if saveErr != nil {
			s.log.Warn("persisting refreshed tokens failed", "error", saveErr)
			s.wipeAndSettle(ctx, gen)
			return nil, nil
		}
		s.metrics.RefreshSucceeded()
	}

	token := bundle.Credentials.AccessToken

	var wg sync.WaitGroup
	var validateRes *domain.ValidateResult
	var validateErr error
	var sessionRes *domain.SessionCheck
	var sessionErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		validateRes, validateErr = s.backend.Validate(ctx, token)
	}()
	go func() {
		defer wg.Done()
		sessionRes, sessionErr = s.backend.CheckSession(ctx, token)
	}()
	wg.Wait()

	if validateErr != nil || !validateRes.Valid || sessionErr != nil || !sessionRes.Valid {
		s.wipeAndSettle(ctx, gen)
		return nil, nil
	}
	if sessionRes.Session != nil {
		bundle.Session = sessionRes.Session
	}

	if bundle.User == nil {
		user, permissions, err := s.backend.CurrentUser(ctx, token)
		if err != nil || user == nil {
			s.wipeAndSettle(ctx, gen)
			return nil, nil
		}
		bundle.User = user
		if permissions != nil {
			bundle.Permissions = permissions
		}
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil, nil
	}
	if bundle.Session != nil {
		if err := s.creds.SaveSession(ctx, bundle.Session); err != nil {
			s.log.Warn("persisting session failed", "error", err)
		}
	}
	s.current = bundle.Credentials
	s.state = domain.AuthState{
		Status:      domain.StatusAuthenticated,
		User:        bundle.User,
		Permissions: bundle.Permissions,
		Session:     bundle.Session,
	}
	s.clock.Start(bundle.Credentials.TimeToExpiry(s.now()))
	s.mu.Unlock()

	s.metrics.Login()
	s.bus.Publish(domain.NewLoginEvent(bundle.User))
	return bundle.User, nil
}

// LoginURL implements domain.AuthService.
func (s *AuthServiceImpl) LoginURL(ctx context.Context, redirectURI string) (*domain.LoginTarget, error) {
	target, err := s.backend.LoginURL(ctx, redirectURI)
	if err != nil {
		return nil, fmt.Errorf("fetch login url: %w", err)
	}
	return target, nil
}

// LoginWithMicrosoft implements domain.AuthService.
func (s *AuthServiceImpl) LoginWithMicrosoft(ctx context.Context, idpToken string) (*domain.AuthResponse, error) {
	s.setLoading(true)
	res, err := s.backend.ExchangeToken(ctx, idpToken)
	if err != nil {
		s.failLogin(err)
		return nil, fmt.Errorf("%w: %w", domain.ErrLoginFailed, err)
	}
	if err := s.adopt(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// CompleteOAuthCallback implements domain.AuthService.
func (s *AuthServiceImpl) CompleteOAuthCallback(ctx context.Context, code, redirectURI, state string) (*domain.AuthResponse, error) {
	s.setLoading(true)
	res, err := s.backend.ExchangeCallback(ctx, code, redirectURI, state)
	if err != nil {
		s.failLogin(err)
		return nil, fmt.Errorf("%w: %w", domain.ErrLoginFailed, err)
	}
	if err := s.adopt(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// adopt installs a backend-issued auth response: persist the bundle, swap
// the in-memory state, start the timers, emit login.
func (s *AuthServiceImpl) adopt(ctx context.Context, res *domain.AuthResponse) error {
	now := s.now()
	issuedAt, expiresAt := tokenTimes(res.AccessToken, res.ExpiresIn, now)
	bundle := &domain.AuthBundle{
		Credentials: domain.Credentials{
			AccessToken:  res.AccessToken,
			RefreshToken: res.RefreshToken,
			IssuedAt:     issuedAt,
			ExpiresAt:    expiresAt,
		},
		User:        res.User,
		Permissions: res.Permissions,
	}
	if res.SessionID != "" {
		bundle.Session = &domain.SessionInfo{SessionID: res.SessionID}
	}

	s.mu.Lock()
	if err := s.creds.SaveAuth(ctx, bundle); err != nil {
		s.mu.Unlock()
		s.failLogin(err)
		return fmt.Errorf("persist auth data: %w", err)
	}
	s.current = bundle.Credentials
	s.state = domain.AuthState{
		Status:      domain.StatusAuthenticated,
		User:        bundle.User,
		Permissions: bundle.Permissions,
		Session:     bundle.Session,
	}
	s.clock.Start(bundle.Credentials.TimeToExpiry(now))
	s.mu.Unlock()

	s.metrics.Login()
	s.bus.Publish(domain.NewLoginEvent(bundle.User))
	return nil
}

// RefreshToken implements domain.AuthService.
func (s *AuthServiceImpl) RefreshToken(ctx context.Context) (*domain.RefreshResult, error) {
	return s.refresh(ctx, false)
}

// ForceRefreshToken implements domain.AuthService. It treats the cached
// credential as already stale.
func (s *AuthServiceImpl) ForceRefreshToken(ctx context.Context) (*domain.RefreshResult, error) {
	return s.refresh(ctx, true)
}

func (s *AuthServiceImpl) refresh(ctx context.Context, force bool) (*domain.RefreshResult, error) {
	s.mu.Lock()
	gen := s.generation
	creds := s.current
	authed := s.state.IsAuthenticated()
	s.mu.Unlock()

	if creds.RefreshToken == "" {
		if authed {
			s.metrics.RefreshFailed()
			s.expire(ctx, gen, "refresh_failed")
		}
		return nil, domain.ErrRefreshTokenMissing
	}

	if !force {
		if remaining := creds.TimeToExpiry(s.now()); remaining > s.cfg.RefreshMargin {
			return &domain.RefreshResult{
				AccessToken: creds.AccessToken,
				ExpiresIn:   int64(remaining.Seconds()),
			}, nil
		}
	}

	res, err := s.backend.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		s.metrics.RefreshFailed()
		s.expire(ctx, gen, "refresh_failed")
		return nil, fmt.Errorf("token refresh: %w", err)
	}

	now := s.now()
	issuedAt, expiresAt := tokenTimes(res.AccessToken, res.ExpiresIn, now)
	next := domain.Credentials{
		AccessToken:  res.AccessToken,
		RefreshToken: creds.RefreshToken,
		IssuedAt:     issuedAt,
		ExpiresAt:    expiresAt,
	}

	s.mu.Lock()
	if gen != s.generation {
		// Logout won the race; the fresh credential must not resurrect
		// cleared state.
		s.mu.Unlock()
		return nil, domain.ErrSessionExpired
	}
	if err := s.creds.SaveTokens(ctx, next); err != nil {
		s.mu.Unlock()
		s.metrics.RefreshFailed()
		s.expire(ctx, gen, "refresh_failed")
		return nil, fmt.Errorf("persist refreshed tokens: %w", err)
	}
	s.current = next
	s.mu.Unlock()

	s.metrics.RefreshSucceeded()
	s.bus.Publish(domain.NewTokenRefreshEvent(expiresAt))
	return res, nil
}

// CheckSession implements domain.AuthService. It reports false on any
// failure and leaves the forced-logout decision to the caller.
func (s *AuthServiceImpl) CheckSession(ctx context.Context) bool {
	s.mu.Lock()
	gen := s.generation
	token := s.current.AccessToken
	s.mu.Unlock()

	if token == "" {
		return false
	}

	check, err := s.backend.CheckSession(ctx, token)
	if err != nil {
		s.log.Info("session check failed", "error", err)
		s.metrics.SessionPoll(false)
		return false
	}
	if !check.Valid || (check.Session != nil && check.Session.Expired(s.now())) {
		s.metrics.SessionPoll(false)
		return false
	}
	s.metrics.SessionPoll(true)

	if check.Session != nil {
		s.mu.Lock()
		if gen == s.generation {
			if err := s.creds.SaveSession(ctx, check.Session); err != nil {
				s.log.Warn("persisting session failed", "error", err)
			}
			s.state.Session = check.Session
		}
		s.mu.Unlock()
	}
	return true
}

// Logout implements domain.AuthService. The backend call is best-effort;
// local state is cleared no matter what.
func (s *AuthServiceImpl) Logout(ctx context.Context) error {
	s.mu.Lock()
	gen := s.generation
	token := s.current.AccessToken
	s.mu.Unlock()

	if token != "" {
		if err := s.backend.Logout(ctx, token); err != nil {
			s.log.Warn("backend logout failed", "error", err)
		}
	}
	s.clear(ctx, gen, domain.NewLogoutEvent(domain.ReasonUnauthorized))
	return nil
}

// ExpireSession implements domain.AuthService: forced logout with a
// session_expired emission. The backend logout is a courtesy call; local
// state is cleared regardless.
func (s *AuthServiceImpl) ExpireSession(ctx context.Context) {
	s.mu.Lock()
	gen := s.generation
	token := s.current.AccessToken
	authed := s.state.IsAuthenticated()
	s.mu.Unlock()

	if !authed {
		return
	}
	if token != "" {
		if err := s.backend.Logout(ctx, token); err != nil {
			s.log.Warn("backend logout failed", "error", err)
		}
	}
	s.clear(ctx, gen, domain.NewSessionExpiredEvent())
}

func (s *AuthServiceImpl) expire(ctx context.Context, gen uint64, trigger string) {
	if s.clear(ctx, gen, domain.NewSessionExpiredEvent()) {
		s.metrics.ForcedLogout(trigger)
	}
}

// clear cancels the timers, bumps the generation, wipes the store and
// resets the in-memory state as one unit. It reports whether this call did
// the clearing; a raced generation means someone else already had.
func (s *AuthServiceImpl) clear(ctx context.Context, gen uint64, event domain.Event) bool {
	s.clock.Stop()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	s.generation++
	if err := s.creds.Wipe(ctx); err != nil {
		s.log.Warn("credential wipe failed", "error", err)
	}
	s.current = domain.Credentials{}
	s.state = domain.AuthState{Status: domain.StatusUnauthenticated}
	s.mu.Unlock()

	s.bus.Publish(event)
	return true
}

// UpdatePermissions implements domain.AuthService.
func (s *AuthServiceImpl) UpdatePermissions(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	gen := s.generation
	token := s.current.AccessToken
	s.mu.Unlock()

	if token == "" {
		return nil, domain.ErrNotAuthenticated
	}
	permissions, err := s.backend.Permissions(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("fetch permissions: %w", err)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil, domain.ErrSessionExpired
	}
	if err := s.creds.SavePermissions(ctx, permissions); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("persist permissions: %w", err)
	}
	s.state.Permissions = permissions
	s.mu.Unlock()

	s.bus.Publish(domain.NewPermissionChangedEvent(permissions))
	return permissions, nil
}

// RefreshUser implements domain.AuthService: refetches the user record and
// permission set from /auth/me.
func (s *AuthServiceImpl) RefreshUser(ctx context.Context) (*domain.User, error) {
	s.mu.Lock()
	gen := s.generation
	token := s.current.AccessToken
	s.mu.Unlock()

	if token == "" {
		return nil, domain.ErrNotAuthenticated
	}
	user, permissions, err := s.backend.CurrentUser(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("fetch current user: %w", err)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil, domain.ErrSessionExpired
	}
	if err := s.creds.SaveUser(ctx, user); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("persist user: %w", err)
	}
	s.state.User = user
	if permissions != nil {
		if err := s.creds.SavePermissions(ctx, permissions); err != nil {
			s.log.Warn("persisting permissions failed", "error", err)
		}
		s.state.Permissions = permissions
	}
	s.mu.Unlock()
	return user, nil
}

// SearchUsers implements domain.AuthService.
func (s *AuthServiceImpl) SearchUsers(ctx context.Context, query string, limit int, excludeSelf bool) (*domain.UserSearchResult, error) {
	s.mu.Lock()
	token := s.current.AccessToken
	s.mu.Unlock()

	if token == "" {
		return nil, domain.ErrNotAuthenticated
	}
	result, err := s.backend.SearchUsers(ctx, token, query, limit, excludeSelf)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return result, nil
}

// Snapshot implements domain.AuthService. The copy shares no mutable data
// with the controller.
func (s *AuthServiceImpl) Snapshot() domain.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.state
	if s.state.User != nil {
		user := *s.state.User
		snap.User = &user
	}
	if s.state.Session != nil {
		session := *s.state.Session
		snap.Session = &session
	}
	if s.state.Permissions != nil {
		snap.Permissions = append([]string(nil), s.state.Permissions...)
	}
	return snap
}

// IsAuthenticated implements domain.AuthService.
func (s *AuthServiceImpl) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsAuthenticated()
}

// TimeToExpiry implements domain.AuthService. Zero when signed out.
func (s *AuthServiceImpl) TimeToExpiry() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsAuthenticated() {
		return 0
	}
	return s.current.TimeToExpiry(s.now())
}

// HasRole implements domain.AuthService.
func (s *AuthServiceImpl) HasRole(role domain.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsAuthenticated() || s.state.User == nil {
		return false
	}
	return SatisfiesRole(s.state.User.Role, role)
}

// HasAnyRole implements domain.AuthService.
func (s *AuthServiceImpl) HasAnyRole(roles ...domain.Role) bool {
	for _, role := range roles {
		if s.HasRole(role) {
			return true
		}
	}
	return false
}

// HasPermission implements domain.AuthService.
func (s *AuthServiceImpl) HasPermission(permission string) bool {
	return s.HasAnyPermission(permission)
}

// HasAnyPermission implements domain.AuthService.
func (s *AuthServiceImpl) HasAnyPermission(permissions ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsAuthenticated() {
		return false
	}
	return HasAny(s.state.Permissions, permissions...)
}

// HasAllPermissions implements domain.AuthService.
func (s *AuthServiceImpl) HasAllPermissions(permissions ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsAuthenticated() {
		return false
	}
	return HasAll(s.state.Permissions, permissions...)
}

// timerRefresh is the refresh timer callback.
func (s *AuthServiceImpl) timerRefresh(ctx context.Context) (time.Duration, bool) {
	res, err := s.RefreshToken(ctx)
	if err != nil {
		// State is already cleared; the log is for operators only.
		s.log.Info("background refresh stopped", "error", err)
		return 0, false
	}
	delay := RefreshDelay(
		time.Duration(res.ExpiresIn)*time.Second,
		s.cfg.RefreshMargin, s.cfg.RefreshFloor,
	)
	return delay, true
}

// timerPoll is the session poll callback.
func (s *AuthServiceImpl) timerPoll(ctx context.Context) bool {
	if s.CheckSession(ctx) {
		return true
	}
	s.mu.Lock()
	gen := s.generation
	authed := s.state.IsAuthenticated()
	s.mu.Unlock()
	if authed {
		s.expire(ctx, gen, "session_invalid")
	}
	return false
}

func (s *AuthServiceImpl) setLoading(loading bool) {
	s.mu.Lock()
	s.state.IsLoading = loading
	s.mu.Unlock()
}

func (s *AuthServiceImpl) failLogin(err error) {
	s.mu.Lock()
	s.state.IsLoading = false
	if !s.state.IsAuthenticated() {
		s.state.Status = domain.StatusUnauthenticated
		s.state.Err = err.Error()
	}
	s.mu.Unlock()
}

func (s *AuthServiceImpl) settleUnauthenticated(gen uint64) {
	s.mu.Lock()
	if gen == s.generation {
		s.current = domain.Credentials{}
		s.state = domain.AuthState{Status: domain.StatusUnauthenticated}
	}
	s.mu.Unlock()
}

func (s *AuthServiceImpl) wipeAndSettle(ctx context.Context, gen uint64) {
	if err := s.creds.Wipe(ctx); err != nil {
		s.log.Warn("credential wipe failed", "error", err)
	}
	s.settleUnauthenticated(gen)
}

var _ domain.AuthService = (*AuthServiceImpl)(nil)
