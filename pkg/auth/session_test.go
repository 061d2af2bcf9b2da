package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newdoli/dolisync/pkg/auth"
	"github.com/newdoli/dolisync/pkg/config"
	"github.com/newdoli/dolisync/pkg/gateway"
	"github.com/newdoli/dolisync/pkg/settings"
	"github.com/newdoli/dolisync/pkg/store"
)

// backendStub emulates the remote REST API with one known account.
func backendStub(t *testing.T) *httptest.Server {
	t.Helper()

	userJSON := `{
		"id": 7,
		"login": "toto",
		"firstname": "Toto",
		"admin": false,
		"active": true,
		"rights": {"thirdparty": ["read", "write"]},
		"permissions": ["thirdparty_read", "thirdparty_write"]
	}`

	return httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")

			switch {
			case strings.HasSuffix(r.URL.Path, "/login"):
				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

				if body["login"] != "toto" || body["password"] != "Toto01" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}

				_, _ = w.Write([]byte(`{"token":"T-toto","user":` + userJSON + `}`))
			case strings.HasSuffix(r.URL.Path, "/users/info"):
				if r.Header.Get("DOLAPIKEY") != "T-toto" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}

				_, _ = w.Write([]byte(userJSON))
			case strings.HasSuffix(r.URL.Path, "/logout"):
				_, _ = w.Write([]byte(`{}`))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		},
	))
}

type fixture struct {
	store    store.Store
	settings *settings.Service
	session  *auth.Session
}

// newFixture builds a session over a fresh in-memory store pointed at
// the given backend.
func newFixture(t *testing.T, backendURL string) *fixture {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	st := store.NewStore(log, &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: ":memory:"},
	})
	require.NoError(t, st.Start(context.Background()))

	t.Cleanup(func() { _ = st.Stop() })

	svc := settings.NewService(log, st)
	if backendURL != "" {
		require.NoError(t, svc.SetServerURL(context.Background(), backendURL))
	}

	gw := gateway.NewClient(log, svc)

	return &fixture{
		store:    st,
		settings: svc,
		session:  auth.NewSession(log, st, svc, gw),
	}
}

func TestSession_LoginSucceeds(t *testing.T) {
	srv := backendStub(t)
	defer srv.Close()

	f := newFixture(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, f.session.Login(ctx, "toto", "Toto01"))

	assert.True(t, f.session.IsUserAuthenticated(ctx))

	user := f.session.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "toto", user.Login)
	assert.NotNil(t, user.LastLogin)

	// The credential and the session record both survive in the store.
	assert.Equal(t, "T-toto", f.settings.Token(ctx))

	rec, err := f.store.GetSessionRecord(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(7), rec.UserID)
	assert.NotEmpty(t, rec.LocalToken)
	assert.Equal(t, []string{"thirdparty_read", "thirdparty_write"}, rec.Permissions)

	snap := f.session.Snapshot()
	assert.Equal(t, auth.StateAuthenticated, snap.State)
	assert.Empty(t, snap.LastError)
}

func TestSession_LoginRejected(t *testing.T) {
	srv := backendStub(t)
	defer srv.Close()

	f := newFixture(t, srv.URL)
	ctx := context.Background()

	err := f.session.Login(ctx, "toto", "wrong")
	require.Error(t, err)

	snap := f.session.Snapshot()
	assert.Equal(t, auth.StateAuthError, snap.State)
	assert.NotEmpty(t, snap.LastError)
	assert.Nil(t, snap.User)
	assert.False(t, f.session.IsUserAuthenticated(ctx))
}

func TestSession_LoginReentrancyGuard(t *testing.T) {
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			<-release
			w.WriteHeader(http.StatusUnauthorized)
		},
	))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- f.session.Login(ctx, "toto", "Toto01")
	}()

	// Wait for the first attempt to reach Authenticating.
	require.Eventually(t, func() bool {
		return f.session.Snapshot().State == auth.StateAuthenticating
	}, time.Second, 5*time.Millisecond)

	err := f.session.Login(ctx, "toto", "Toto01")
	assert.ErrorIs(t, err, auth.ErrLoginInProgress)

	close(release)
	assert.Error(t, <-firstDone)
}

func TestSession_LogoutAlwaysTearsDownLocally(t *testing.T) {
	srv := backendStub(t)

	f := newFixture(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, f.session.Login(ctx, "toto", "Toto01"))

	// The remote logout will fail against a dead server; local teardown
	// must happen regardless.
	srv.Close()

	f.session.Logout(ctx)

	assert.False(t, f.session.IsUserAuthenticated(ctx))
	assert.Empty(t, f.settings.Token(ctx))

	_, err := f.store.GetSessionRecord(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Logging out while logged out is a no-op.
	f.session.Logout(ctx)
	assert.Equal(t, auth.StateLoggedOut, f.session.Snapshot().State)
}

func TestSession_HydrateRestoresSession(t *testing.T) {
	srv := backendStub(t)
	defer srv.Close()

	f := newFixture(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, f.session.Login(ctx, "toto", "Toto01"))

	// A fresh session over the same store simulates a process restart.
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	restarted := auth.NewSession(
		log, f.store, f.settings, gateway.NewClient(log, f.settings),
	)

	assert.True(t, restarted.IsUserAuthenticated(ctx))

	user := restarted.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "toto", user.Login)
}

func TestSession_HydrateDiscardsRejectedCredential(t *testing.T) {
	srv := backendStub(t)

	f := newFixture(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, f.session.Login(ctx, "toto", "Toto01"))
	srv.Close()

	// Replace the backend with one that rejects every token.
	rejecting := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
	))
	defer rejecting.Close()
	require.NoError(t, f.settings.SetServerURL(ctx, rejecting.URL))

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	restarted := auth.NewSession(
		log, f.store, f.settings, gateway.NewClient(log, f.settings),
	)

	assert.False(t, restarted.IsUserAuthenticated(ctx))
	assert.Empty(t, f.settings.Token(ctx))
}

func TestSession_HydrateOfflineUsesLocalRecord(t *testing.T) {
	srv := backendStub(t)

	f := newFixture(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, f.session.Login(ctx, "toto", "Toto01"))

	// Kill the backend entirely: introspection hits a transport error,
	// so the restart trusts the persisted record.
	srv.Close()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	restarted := auth.NewSession(
		log, f.store, f.settings, gateway.NewClient(log, f.settings),
	)

	assert.True(t, restarted.IsUserAuthenticated(ctx))
	assert.Equal(t, "T-toto", f.settings.Token(ctx))
}

func TestSession_PermissionQueries(t *testing.T) {
	srv := backendStub(t)
	defer srv.Close()

	f := newFixture(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, f.session.Login(ctx, "toto", "Toto01"))

	assert.False(t, f.session.IsAdmin())
	assert.True(t, f.session.HasPermission("thirdparty_read"))
	assert.False(t, f.session.HasPermission("user_delete"))
	assert.True(t, f.session.HasAnyPermission("user_delete", "thirdparty_write"))
	assert.False(t, f.session.HasAllPermissions("thirdparty_read", "user_delete"))
	assert.True(t, f.session.HasAllPermissions("thirdparty_read", "thirdparty_write"))

	assert.True(t, f.session.CanAccessModule("thirdparty"))
	assert.False(t, f.session.CanAccessModule("user"))
	assert.Equal(t, []string{"thirdparty"}, f.session.AccessibleModules())
}

func TestSession_QueriesWhileLoggedOut(t *testing.T) {
	f := newFixture(t, "")

	assert.False(t, f.session.HasPermission("thirdparty_read"))
	assert.False(t, f.session.CanAccessModule("thirdparty"))
	assert.Nil(t, f.session.AccessibleModules())
	assert.False(t, f.session.IsAdmin())
}

func TestSession_ChangePassword(t *testing.T) {
	srv := backendStub(t)
	defer srv.Close()

	f := newFixture(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, f.session.Login(ctx, "toto", "Toto01"))

	// No local hash yet: any current password is accepted.
	require.NoError(t, f.session.ChangePassword(ctx, "", "hunter22"))

	// Now the stored hash gates further changes.
	err := f.session.ChangePassword(ctx, "wrong", "another1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "current password")

	require.NoError(t, f.session.ChangePassword(ctx, "hunter22", "another1"))

	err = f.session.ChangePassword(ctx, "another1", "tiny")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 6")
}

func TestSession_ChangePasswordRequiresAuth(t *testing.T) {
	f := newFixture(t, "")

	err := f.session.ChangePassword(context.Background(), "a", "longenough")
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
}

func TestSession_RefreshUserData(t *testing.T) {
	srv := backendStub(t)
	defer srv.Close()

	f := newFixture(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, f.session.Login(ctx, "toto", "Toto01"))

	// Grant an extra direct permission on the stored row, as a group
	// mirror refresh would.
	user, err := f.store.GetUser(ctx, 7)
	require.NoError(t, err)
	user.Permissions = append(user.Permissions, "product_read")
	require.NoError(t, f.store.UpdateUser(ctx, user))

	require.NoError(t, f.session.RefreshUserData(ctx))

	assert.True(t, f.session.HasPermission("product_read"))

	rec, err := f.store.GetSessionRecord(ctx)
	require.NoError(t, err)
	assert.Contains(t, rec.Permissions, "product_read")
}
