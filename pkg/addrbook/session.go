package addrbook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/addrbook-dev/addrbook-go/internal/storage"
	"github.com/addrbook-dev/addrbook-go/internal/types"
	"github.com/golang-jwt/jwt/v5"
)

// displayNameFallback is shown when the member has neither a nickname
// nor an email.
const displayNameFallback = "user"

// SessionStore is the single source of truth for authentication state:
// both tokens plus the member profile, mirrored synchronously to
// persisted storage on every mutation. It is an explicit, injectable
// container; consumers receive it from the Client rather than through a
// global.
//
// A token present means logically "logged in". The profile may lag
// behind token validity and is not invariant-bound.
type SessionStore struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	member       *Member

	api      AuthService
	store    storage.Store
	logger   Logger
	notifier Notifier
}

// newSessionStore builds a store and hydrates it from persisted keys.
func newSessionStore(store storage.Store, logger Logger, notifier Notifier) *SessionStore {
	s := &SessionStore{
		store:    store,
		logger:   logger,
		notifier: notifier,
	}
	s.load()
	return s
}

// setAPI wires the auth API client after service construction.
func (s *SessionStore) setAPI(api AuthService) {
	s.api = api
}

// load hydrates tokens and the profile from persisted storage. A
// corrupt member record is discarded, not fatal.
func (s *SessionStore) load() {
	if v, ok, err := s.store.Get(types.KeyAccessToken); err == nil && ok {
		s.accessToken = v
	}
	if v, ok, err := s.store.Get(types.KeyRefreshToken); err == nil && ok {
		s.refreshToken = v
	}
	if v, ok, err := s.store.Get(types.KeyMember); err == nil && ok {
		var m Member
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			s.logWarn("discarding corrupt persisted member record", "error", err)
			_ = s.store.Delete(types.KeyMember)
		} else {
			s.member = &m
		}
	}
}

// SetAuth atomically assigns both tokens and the profile, then mirrors
// them to persisted storage. Persistence failure is non-fatal and only
// logged; the in-memory assignment stands regardless.
func (s *SessionStore) SetAuth(res *LoginResult) {
	s.mu.Lock()
	s.accessToken = res.AccessToken
	s.refreshToken = res.RefreshToken
	s.member = res.Member
	s.mu.Unlock()

	s.persist(types.KeyAccessToken, res.AccessToken)
	s.persist(types.KeyRefreshToken, res.RefreshToken)
	if res.Member != nil {
		s.persistMember(res.Member)
	}

	s.logDebug("auth state set", "memberID", s.MemberID(), "hasToken", res.AccessToken != "")
}

// ClearAuth unconditionally clears all session fields and deletes the
// persisted keys. Calling it on an already-cleared session is a no-op.
func (s *SessionStore) ClearAuth() {
	s.mu.Lock()
	s.accessToken = ""
	s.refreshToken = ""
	s.member = nil
	s.mu.Unlock()

	for _, key := range []string{types.KeyAccessToken, types.KeyRefreshToken, types.KeyMember} {
		if err := s.store.Delete(key); err != nil {
			s.logWarn("failed to delete persisted key", "key", key, "error", err)
		}
	}
}

// Login authenticates and, on success, installs the session. On failure
// the session is left untouched and the error is reclassified for the
// caller: a 401 here means bad credentials, not an expired session.
func (s *SessionStore) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	res, err := s.api.Login(ctx, creds)
	if err != nil {
		reclassified := reclassifyLoginError(err)
		s.notify(types.NotifyError, reclassified.Error())
		return nil, reclassified
	}

	s.SetAuth(res)
	s.notify(types.NotifyInfo, "login successful")
	return res, nil
}

// Logout calls the logout API best-effort, then clears the session
// unconditionally. An API failure is logged and never blocks the clear.
func (s *SessionStore) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx); err != nil {
		s.logWarn("logout API call failed", "error", err)
	}
	s.ClearAuth()
	s.notify(types.NotifyInfo, "logged out")
}

// RefreshAccessToken exchanges the held refresh token for a new pair.
// Only the two token fields are overwritten; the profile is untouched.
// Any failure fully clears the session so no half-valid state survives.
func (s *SessionStore) RefreshAccessToken(ctx context.Context) error {
	s.mu.RLock()
	refreshToken := s.refreshToken
	s.mu.RUnlock()

	if refreshToken == "" {
		return ErrNoRefreshToken
	}

	pair, err := s.api.RefreshToken(ctx, refreshToken)
	if err != nil {
		s.ClearAuth()
		return err
	}

	s.mu.Lock()
	s.accessToken = pair.AccessToken
	s.refreshToken = pair.RefreshToken
	s.mu.Unlock()

	s.persist(types.KeyAccessToken, pair.AccessToken)
	s.persist(types.KeyRefreshToken, pair.RefreshToken)

	s.logDebug("access token refreshed")
	return nil
}

// CheckAuth validates the held token by fetching the current profile.
// No token means false without a network call. A fetch failure clears
// the session, so a stale token self-heals to a clean logged-out state.
func (s *SessionStore) CheckAuth(ctx context.Context) bool {
	if s.AccessToken() == "" {
		return false
	}

	member, err := s.api.GetCurrentMember(ctx)
	if err != nil {
		s.ClearAuth()
		return false
	}

	s.mu.Lock()
	s.member = member
	s.mu.Unlock()
	s.persistMember(member)

	return true
}

// FetchCurrentMember refreshes the profile from the API.
func (s *SessionStore) FetchCurrentMember(ctx context.Context) (*Member, error) {
	member, err := s.api.GetCurrentMember(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.member = member
	s.mu.Unlock()
	s.persistMember(member)

	return member, nil
}

// IsLoggedIn reports whether an access token is held.
func (s *SessionStore) IsLoggedIn() bool {
	return s.AccessToken() != ""
}

// AccessToken returns the current access token, or "" when logged out.
func (s *SessionStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token, or "".
func (s *SessionStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Member returns the current profile, or nil.
func (s *SessionStore) Member() *Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.member
}

// DisplayName returns the nickname, falling back to the email, then a
// fixed placeholder. Empty when no profile is held.
func (s *SessionStore) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.member == nil {
		return ""
	}
	if s.member.Nickname != "" {
		return s.member.Nickname
	}
	if s.member.Email != "" {
		return s.member.Email
	}
	return displayNameFallback
}

// MemberEmail returns the profile email, or "".
func (s *SessionStore) MemberEmail() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.member == nil {
		return ""
	}
	return s.member.Email
}

// MemberID returns the profile ID, or 0.
func (s *SessionStore) MemberID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.member == nil {
		return 0
	}
	return s.member.MemberID
}

// TokenExpiresAt decodes the exp claim of the held access token without
// verifying the signature. Zero when no token is held or the claim is
// absent.
func (s *SessionStore) TokenExpiresAt() time.Time {
	token := s.AccessToken()
	if token == "" {
		return time.Time{}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// persist mirrors one key to storage, logging on failure.
func (s *SessionStore) persist(key, value string) {
	if err := s.store.Set(key, value); err != nil {
		s.logWarn("failed to persist session key", "key", key, "error", err)
	}
}

func (s *SessionStore) persistMember(m *Member) {
	data, err := json.Marshal(m)
	if err != nil {
		s.logWarn("failed to marshal member", "error", err)
		return
	}
	s.persist(types.KeyMember, string(data))
}

func (s *SessionStore) notify(level NotifyLevel, msg string) {
	if s.notifier != nil {
		s.notifier.Notify(level, msg)
	}
}

func (s *SessionStore) logDebug(msg string, keysAndValues ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, keysAndValues...)
	}
}

func (s *SessionStore) logWarn(msg string, keysAndValues ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, keysAndValues...)
	}
}

// reclassifyLoginError maps pipeline failures during login onto
// login-specific errors: 401 becomes invalid credentials and a network
// failure becomes network unavailable. Everything else passes through.
func reclassifyLoginError(err error) error {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return err
	}

	switch {
	case apiErr.StatusCode == http.StatusUnauthorized:
		return &Error{
			Classification: ClassUnauthorized,
			Message:        types.ErrInvalidCredentials.Error(),
			StatusCode:     apiErr.StatusCode,
			Err:            types.ErrInvalidCredentials,
		}
	case apiErr.Classification == ClassNetwork:
		return &Error{
			Classification: ClassNetwork,
			Message:        types.ErrNetworkUnavailable.Error(),
			Err:            types.ErrNetworkUnavailable,
		}
	default:
		return err
	}
}
