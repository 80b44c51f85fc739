package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LukaszDygon/sbcw-kiro-sub000/domain"
)

// Storage keys. They are always written and wiped together; there is no
// partial-clear path.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyUser         = "user"
	keyPermissions  = "permissions"
	keySession      = "session"
	keyExpiresAt    = "token_expires_at"
	keyIssuedAt     = "token_issued_at"
)

var allKeys = []string{
	keyAccessToken, keyRefreshToken, keyUser, keyPermissions,
	keySession, keyExpiresAt, keyIssuedAt,
}

// CredentialRepositoryImpl implements domain.CredentialStore over an
// injected key/value capability. Malformed persisted state is treated as
// absence: the store is wiped and the caller sees ErrNoStoredAuth.
type CredentialRepositoryImpl struct {
	store domain.KeyValueStore
}

// NewCredentialRepository creates a credential store over the given backing
// storage.
func NewCredentialRepository(store domain.KeyValueStore) domain.CredentialStore {
	return &CredentialRepositoryImpl{store: store}
}

// SaveAuth implements domain.CredentialStore. The whole bundle lands in one
// atomic multi-key write.
func (r *CredentialRepositoryImpl) SaveAuth(ctx context.Context, bundle *domain.AuthBundle) error {
	pairs := map[string]string{
		keyAccessToken:  bundle.Credentials.AccessToken,
		keyRefreshToken: bundle.Credentials.RefreshToken,
		keyExpiresAt:    bundle.Credentials.ExpiresAt.UTC().Format(time.RFC3339Nano),
		keyIssuedAt:     bundle.Credentials.IssuedAt.UTC().Format(time.RFC3339Nano),
	}

	if bundle.User != nil {
		data, err := json.Marshal(bundle.User)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}
		pairs[keyUser] = string(data)
	}
	if bundle.Permissions != nil {
		data, err := json.Marshal(bundle.Permissions)
		if err != nil {
			return fmt.Errorf("failed to marshal permissions: %w", err)
		}
		pairs[keyPermissions] = string(data)
	}
	if bundle.Session != nil {
		data, err := json.Marshal(bundle.Session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		pairs[keySession] = string(data)
	}

	return r.store.SetMulti(ctx, pairs)
}

// LoadAuth implements domain.CredentialStore. A missing access token means
// no stored authentication; corrupt stored state is wiped and reported the
// same way, never as a crash.
func (r *CredentialRepositoryImpl) LoadAuth(ctx context.Context) (*domain.AuthBundle, error) {
	accessToken, err := r.store.Get(ctx, keyAccessToken)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return nil, domain.ErrNoStoredAuth
		}
		return nil, err
	}

	bundle := &domain.AuthBundle{Credentials: domain.Credentials{AccessToken: accessToken}}

	if refresh, err := r.store.Get(ctx, keyRefreshToken); err == nil {
		bundle.Credentials.RefreshToken = refresh
	}

	expiresAt, err := r.timestamp(ctx, keyExpiresAt)
	if err != nil {
		return nil, r.wipeCorrupt(ctx)
	}
	issuedAt, err := r.timestamp(ctx, keyIssuedAt)
	if err != nil {
		return nil, r.wipeCorrupt(ctx)
	}
	bundle.Credentials.ExpiresAt = expiresAt
	bundle.Credentials.IssuedAt = issuedAt

	if raw, err := r.store.Get(ctx, keyUser); err == nil {
		var user domain.User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return nil, r.wipeCorrupt(ctx)
		}
		bundle.User = &user
	}
	if raw, err := r.store.Get(ctx, keyPermissions); err == nil {
		var permissions []string
		if err := json.Unmarshal([]byte(raw), &permissions); err != nil {
			return nil, r.wipeCorrupt(ctx)
		}
		bundle.Permissions = permissions
	}
	if raw, err := r.store.Get(ctx, keySession); err == nil {
		var session domain.SessionInfo
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			return nil, r.wipeCorrupt(ctx)
		}
		bundle.Session = &session
	}

	return bundle, nil
}

// SaveTokens implements domain.CredentialStore. The access token and its
// expiry replace the old pair in one atomic write.
func (r *CredentialRepositoryImpl) SaveTokens(ctx context.Context, creds domain.Credentials) error {
	pairs := map[string]string{
		keyAccessToken: creds.AccessToken,
		keyExpiresAt:   creds.ExpiresAt.UTC().Format(time.RFC3339Nano),
		keyIssuedAt:    creds.IssuedAt.UTC().Format(time.RFC3339Nano),
	}
	if creds.RefreshToken != "" {
		pairs[keyRefreshToken] = creds.RefreshToken
	}
	return r.store.SetMulti(ctx, pairs)
}

// SaveUser implements domain.CredentialStore.
func (r *CredentialRepositoryImpl) SaveUser(ctx context.Context, user *domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	return r.store.Set(ctx, keyUser, string(data))
}

// SavePermissions implements domain.CredentialStore.
func (r *CredentialRepositoryImpl) SavePermissions(ctx context.Context, permissions []string) error {
	data, err := json.Marshal(permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}
	return r.store.Set(ctx, keyPermissions, string(data))
}

// SaveSession implements domain.CredentialStore.
func (r *CredentialRepositoryImpl) SaveSession(ctx context.Context, session *domain.SessionInfo) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return r.store.Set(ctx, keySession, string(data))
}

// Wipe implements domain.CredentialStore. All keys go in one call.
func (r *CredentialRepositoryImpl) Wipe(ctx context.Context) error {
	return r.store.Delete(ctx, allKeys...)
}

func (r *CredentialRepositoryImpl) timestamp(ctx context.Context, key string) (time.Time, error) {
	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			// Token present without its expiry pair: a partial write that
			// must never be trusted.
			return time.Time{}, domain.ErrNoStoredAuth
		}
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, raw)
}

func (r *CredentialRepositoryImpl) wipeCorrupt(ctx context.Context) error {
	if err := r.Wipe(ctx); err != nil {
		return err
	}
	return domain.ErrNoStoredAuth
}

var _ domain.CredentialStore = (*CredentialRepositoryImpl)(nil)
