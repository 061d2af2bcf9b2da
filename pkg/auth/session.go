package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/newdoli/dolisync/pkg/gateway"
	"github.com/newdoli/dolisync/pkg/settings"
	"github.com/newdoli/dolisync/pkg/store"
)

// State is the authentication lifecycle position.
type State string

const (
	StateLoggedOut      State = "logged_out"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateAuthError      State = "auth_error"
)

// ErrLoginInProgress rejects a login attempt while another one is
// already running.
var ErrLoginInProgress = errors.New("login already in progress")

// ErrNotAuthenticated is returned by operations that require an active
// session.
var ErrNotAuthenticated = errors.New("not authenticated")

// Snapshot is a point-in-time copy of the session, safe to hand out.
// The remote credential is deliberately absent.
type Snapshot struct {
	State       State
	User        *store.User
	Permissions []string
	Rights      map[string][]string
	LastError   string
}

// Session is the authentication state machine. It owns the current
// user identity, the derived permission set, and the validated rights
// map; everything else queries it.
type Session struct {
	log      logrus.FieldLogger
	store    store.Store
	settings *settings.Service
	gateway  *gateway.Client

	mu          sync.Mutex
	state       State
	user        *store.User
	permissions []string
	rights      map[string][]string
	lastError   string
	hydrated    bool
}

// NewSession creates a session in the LoggedOut state.
func NewSession(
	log logrus.FieldLogger,
	st store.Store,
	svc *settings.Service,
	gw *gateway.Client,
) *Session {
	return &Session{
		log:      log.WithField("component", "auth"),
		store:    st,
		settings: svc,
		gateway:  gw,
		state:    StateLoggedOut,
	}
}

// Hydrate attempts to re-establish a session from the stored credential
// and the persisted session record. A rejecting server discards the
// credential; an unreachable server falls back to the local record so
// an offline restart keeps its session.
func (s *Session) Hydrate(ctx context.Context) {
	s.mu.Lock()
	if s.hydrated {
		s.mu.Unlock()
		return
	}

	s.hydrated = true
	s.mu.Unlock()

	token := s.settings.Token(ctx)
	if token == "" {
		return
	}

	if _, err := s.gateway.Introspect(ctx, token); err != nil {
		if errors.Is(err, gateway.ErrStatus) {
			s.log.WithError(err).Warn("Stored credential rejected, discarding")
			s.teardown(ctx)

			return
		}

		// Server unreachable: trust the local record for now.
		s.log.WithError(err).Debug("Credential validation unavailable, hydrating locally")
	}

	rec, err := s.store.GetSessionRecord(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.WithError(err).Warn("Reading session record failed")
		}

		return
	}

	user, err := s.store.GetUser(ctx, rec.UserID)
	if err != nil {
		s.log.WithError(err).Warn("Session record references unknown user")

		return
	}

	s.mu.Lock()
	s.state = StateAuthenticated
	s.user = user
	s.permissions = rec.Permissions
	s.rights = rec.Rights
	s.lastError = ""
	s.mu.Unlock()

	s.log.WithField("login", user.Login).Info("Session restored")
}

// Login exchanges credentials for a remote token and establishes the
// local session. A concurrent login attempt is rejected.
func (s *Session) Login(ctx context.Context, login, password string) error {
	s.mu.Lock()
	if s.state == StateAuthenticating {
		s.mu.Unlock()

		return ErrLoginInProgress
	}

	s.state = StateAuthenticating
	s.hydrated = true
	s.mu.Unlock()

	user, permissions, rights, err := s.doLogin(ctx, login, password)
	if err != nil {
		s.mu.Lock()
		s.state = StateAuthError
		s.user = nil
		s.permissions = nil
		s.rights = nil
		s.lastError = err.Error()
		s.mu.Unlock()

		return err
	}

	s.mu.Lock()
	s.state = StateAuthenticated
	s.user = user
	s.permissions = permissions
	s.rights = rights
	s.lastError = ""
	s.mu.Unlock()

	s.log.WithField("login", user.Login).Info("Login succeeded")

	return nil
}

func (s *Session) doLogin(
	ctx context.Context, login, password string,
) (*store.User, []string, map[string][]string, error) {
	result, err := s.gateway.Login(ctx, login, password)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := s.settings.SetToken(ctx, result.Token); err != nil {
		return nil, nil, nil, fmt.Errorf("persisting credential: %w", err)
	}

	remote := result.User
	if remote == nil {
		remote, err = s.gateway.Introspect(ctx, result.Token)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	now := time.Now().UTC()
	user := &store.User{
		ID:          remote.ID,
		Login:       remote.Login,
		Firstname:   remote.Firstname,
		Lastname:    remote.Lastname,
		Email:       remote.Email,
		Admin:       remote.Admin,
		Active:      true,
		GroupIDs:    remote.GroupIDs,
		Permissions: remote.Permissions,
		LastLogin:   &now,
	}

	if err := s.store.UpsertUser(ctx, user); err != nil {
		return nil, nil, nil, fmt.Errorf("persisting user: %w", err)
	}

	permissions, err := s.derivePermissions(ctx, user)
	if err != nil {
		return nil, nil, nil, err
	}

	localToken, err := generateLocalToken()
	if err != nil {
		return nil, nil, nil, err
	}

	rec := &store.SessionRecord{
		UserID:      user.ID,
		LocalToken:  localToken,
		Permissions: permissions,
		Rights:      remote.Rights,
	}
	if err := s.store.PutSessionRecord(ctx, rec); err != nil {
		return nil, nil, nil, fmt.Errorf("persisting session record: %w", err)
	}

	return user, permissions, remote.Rights, nil
}

// derivePermissions resolves the effective permission set against the
// mirrored groups and permission catalogue.
func (s *Session) derivePermissions(
	ctx context.Context, user *store.User,
) ([]string, error) {
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading groups: %w", err)
	}

	all, err := s.store.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading permission catalogue: %w", err)
	}

	return DerivePermissions(user, groups, all), nil
}

// Logout tears the session down. The remote invalidation is
// best-effort; local teardown always happens, and calling Logout
// while logged out is a no-op.
func (s *Session) Logout(ctx context.Context) {
	if token := s.settings.Token(ctx); token != "" {
		s.gateway.Logout(ctx, token)
	}

	s.teardown(ctx)

	s.log.Info("Logged out")
}

// teardown clears the persisted credential, the session record, and
// the in-memory state.
func (s *Session) teardown(ctx context.Context) {
	if err := s.settings.ClearToken(ctx); err != nil {
		s.log.WithError(err).Warn("Clearing credential failed")
	}

	if err := s.store.DeleteSessionRecord(ctx); err != nil {
		s.log.WithError(err).Warn("Deleting session record failed")
	}

	s.mu.Lock()
	s.state = StateLoggedOut
	s.user = nil
	s.permissions = nil
	s.rights = nil
	s.lastError = ""
	s.mu.Unlock()
}

// IsUserAuthenticated reports whether a session is active, hydrating
// from persistence first if that has not happened yet.
func (s *Session) IsUserAuthenticated(ctx context.Context) bool {
	s.mu.Lock()
	hydrated := s.hydrated
	state := s.state
	s.mu.Unlock()

	if !hydrated {
		s.Hydrate(ctx)

		s.mu.Lock()
		state = s.state
		s.mu.Unlock()
	}

	return state == StateAuthenticated
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:     s.state,
		LastError: s.lastError,
	}

	if s.user != nil {
		u := *s.user
		snap.User = &u
	}

	snap.Permissions = append([]string(nil), s.permissions...)

	if s.rights != nil {
		snap.Rights = make(map[string][]string, len(s.rights))
		for k, v := range s.rights {
			snap.Rights[k] = append([]string(nil), v...)
		}
	}

	return snap
}

// CurrentUser returns the authenticated user, or nil.
func (s *Session) CurrentUser() *store.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return nil
	}

	u := *s.user

	return &u
}

// IsAdmin reports whether the session belongs to an administrator.
func (s *Session) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.user != nil && s.user.Admin
}

// HasPermission reports whether the session holds the named permission.
// Administrators hold everything.
func (s *Session) HasPermission(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hasPermissionLocked(name)
}

func (s *Session) hasPermissionLocked(name string) bool {
	if s.user == nil {
		return false
	}

	if s.user.Admin {
		return true
	}

	for _, p := range s.permissions {
		if p == name {
			return true
		}
	}

	return false
}

// HasAnyPermission reports whether at least one of the named
// permissions is held.
func (s *Session) HasAnyPermission(names ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range names {
		if s.hasPermissionLocked(name) {
			return true
		}
	}

	return false
}

// HasAllPermissions reports whether every named permission is held.
func (s *Session) HasAllPermissions(names ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range names {
		if !s.hasPermissionLocked(name) {
			return false
		}
	}

	return true
}

// CanAccessModule reports whether the session may use the named
// module: administrators always, otherwise a non-empty rights entry or
// any held permission prefixed with the module name.
func (s *Session) CanAccessModule(module string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return false
	}

	if s.user.Admin {
		return true
	}

	if len(s.rights[module]) > 0 {
		return true
	}

	for _, p := range s.permissions {
		if moduleOfPermission(p) == module {
			return true
		}
	}

	return false
}

// AccessibleModules lists the modules the session may use, sorted.
func (s *Session) AccessibleModules() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return nil
	}

	seen := make(map[string]struct{})

	for module, actions := range s.rights {
		if len(actions) > 0 {
			seen[module] = struct{}{}
		}
	}

	for _, p := range s.permissions {
		if module := moduleOfPermission(p); module != "" {
			seen[module] = struct{}{}
		}
	}

	modules := make([]string, 0, len(seen))
	for module := range seen {
		modules = append(modules, module)
	}

	sort.Strings(modules)

	return modules
}

// RefreshUserData re-reads the local user row and re-derives the
// permission set, updating the persisted session record.
func (s *Session) RefreshUserData(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateAuthenticated || s.user == nil {
		s.mu.Unlock()

		return ErrNotAuthenticated
	}

	userID := s.user.ID
	rights := s.rights
	s.mu.Unlock()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("reloading user: %w", err)
	}

	permissions, err := s.derivePermissions(ctx, user)
	if err != nil {
		return err
	}

	rec, err := s.store.GetSessionRecord(ctx)
	if err != nil {
		return fmt.Errorf("reloading session record: %w", err)
	}

	rec.Permissions = permissions
	if err := s.store.PutSessionRecord(ctx, rec); err != nil {
		return fmt.Errorf("updating session record: %w", err)
	}

	s.mu.Lock()
	s.user = user
	s.permissions = permissions
	s.rights = rights
	s.mu.Unlock()

	return nil
}

// ChangePassword verifies the current local password and stores a
// bcrypt hash of the new one on the local user row. The change is
// local only; it is never pushed upstream.
func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	s.mu.Lock()
	if s.state != StateAuthenticated || s.user == nil {
		s.mu.Unlock()

		return ErrNotAuthenticated
	}

	userID := s.user.ID
	s.mu.Unlock()

	if len(next) < 6 {
		return errors.New("new password must be at least 6 characters")
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading user: %w", err)
	}

	if user.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword(
			[]byte(user.PasswordHash), []byte(current),
		); err != nil {
			return errors.New("current password does not match")
		}
	}

	hash, err := bcrypt.GenerateFromPassword(
		[]byte(next), bcrypt.DefaultCost,
	)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user.PasswordHash = string(hash)
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("storing password: %w", err)
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()

	return nil
}
