package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/internal/model"
	"github.com/BuzzLyutic/task-sync-client/internal/router"
	"github.com/BuzzLyutic/task-sync-client/internal/store"
)

// MockAuthenticator - мок API авторизации
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, creds model.Credentials) (string, error) {
	args := m.Called(ctx, creds)
	return args.String(0), args.Error(1)
}

func (m *MockAuthenticator) Me(ctx context.Context) (model.UserProfile, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.UserProfile), args.Error(1)
}

type MockConnector struct {
	mock.Mock
}

func (m *MockConnector) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConnector) Disconnect() {
	m.Called()
}

type MockNavigator struct {
	mock.Mock
}

func (m *MockNavigator) Navigate(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

// watchedKV calls onSet after each write, like the file watcher reacting
// to this process's own writes. Writes to failKey fail.
type watchedKV struct {
	*store.Memory
	onSet   func(key string)
	failKey string
}

func (w *watchedKV) Set(ctx context.Context, key string, value []byte) error {
	if key == w.failKey {
		return errors.New("disk full")
	}
	if err := w.Memory.Set(ctx, key, value); err != nil {
		return err
	}
	if w.onSet != nil {
		w.onSet(key)
	}
	return nil
}

type fixture struct {
	auth *MockAuthenticator
	conn *MockConnector
	nav  *MockNavigator
	kv   *store.Memory
	sess *Session
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		auth: new(MockAuthenticator),
		conn: new(MockConnector),
		nav:  new(MockNavigator),
		kv:   store.NewMemory(),
	}
	f.sess = New(f.auth, f.conn, f.nav, f.kv, zap.NewNop())
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.auth.AssertExpectations(t)
	f.conn.AssertExpectations(t)
	f.nav.AssertExpectations(t)
}

var creds = model.Credentials{Email: "ana@example.com", Password: "secret"}

func TestSession_LoginSuccess(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var changes []bool
	f.sess.Subscribe(func(authenticated bool) { changes = append(changes, authenticated) })

	f.auth.On("Login", mock.Anything, creds).Return("tok-1", nil)
	f.auth.On("Me", mock.Anything).Return(model.UserProfile{ID: 7, Email: creds.Email}, nil)
	f.conn.On("Connect", mock.Anything).Return(nil)
	f.nav.On("Navigate", mock.Anything, router.PathTareas).Return(nil)

	require.NoError(t, f.sess.Login(ctx, creds))

	assert.True(t, f.sess.IsAuthenticated())
	assert.Equal(t, "tok-1", f.sess.Token())
	id, ok := f.sess.CurrentUserID()
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, []bool{true}, changes)

	stored, ok, err := store.ReadValue[string](ctx, f.kv, store.KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", stored)

	f.assertExpectations(t)
}

func TestSession_LoginSurvivesOwnTokenWrite(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	kv := &watchedKV{Memory: f.kv}
	f.sess = New(f.auth, f.conn, f.nav, kv, zap.NewNop())

	var changes []bool
	f.sess.Subscribe(func(authenticated bool) { changes = append(changes, authenticated) })

	kv.onSet = func(key string) {
		if key != store.KeyToken {
			return
		}
		require.NoError(t, f.sess.Reload(ctx))
		id, ok := f.sess.CurrentUserID()
		assert.True(t, ok, "identity known when the token lands")
		assert.Equal(t, int64(7), id)
	}

	f.auth.On("Login", mock.Anything, creds).Return("tok-1", nil)
	f.auth.On("Me", mock.Anything).Return(model.UserProfile{ID: 7, Email: creds.Email}, nil)
	f.conn.On("Connect", mock.Anything).Return(nil)
	f.nav.On("Navigate", mock.Anything, router.PathTareas).Return(nil)

	require.NoError(t, f.sess.Login(ctx, creds))
	assert.Equal(t, []bool{true}, changes)

	// Same token as held: Reload keeps the in-memory identity.
	require.NoError(t, f.kv.Delete(ctx, keyUser))
	require.NoError(t, f.sess.Reload(ctx))
	id, ok := f.sess.CurrentUserID()
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	f.assertExpectations(t)
}

func TestSession_LoginPersistFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	kv := &watchedKV{Memory: f.kv, failKey: store.KeyToken}
	f.sess = New(f.auth, f.conn, f.nav, kv, zap.NewNop())

	f.auth.On("Login", mock.Anything, creds).Return("tok-1", nil)
	f.auth.On("Me", mock.Anything).Return(model.UserProfile{ID: 7}, nil)

	err := f.sess.Login(ctx, creds)
	assert.ErrorContains(t, err, "persist token")
	assert.False(t, f.sess.IsAuthenticated())
	_, ok := f.sess.User()
	assert.False(t, ok)

	_, err = f.kv.Get(ctx, keyUser)
	assert.ErrorIs(t, err, store.ErrNotFound)
	f.conn.AssertNotCalled(t, "Connect", mock.Anything)
	f.assertExpectations(t)
}

func TestSession_LoginFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	apiErr := errors.New("invalid credentials")

	f.auth.On("Login", mock.Anything, creds).Return("", apiErr)

	err := f.sess.Login(ctx, creds)
	assert.ErrorIs(t, err, apiErr)
	assert.False(t, f.sess.IsAuthenticated())
	assert.Empty(t, f.sess.Token())

	_, err = f.kv.Get(ctx, store.KeyToken)
	assert.ErrorIs(t, err, store.ErrNotFound)

	f.conn.AssertNotCalled(t, "Connect", mock.Anything)
	f.nav.AssertNotCalled(t, "Navigate", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestSession_LoginSideEffectFailuresAreNotFatal(t *testing.T) {
	f := setup(t)

	f.auth.On("Login", mock.Anything, creds).Return("tok-1", nil)
	f.auth.On("Me", mock.Anything).Return(model.UserProfile{}, errors.New("profile down"))
	f.conn.On("Connect", mock.Anything).Return(errors.New("socket down"))
	f.nav.On("Navigate", mock.Anything, router.PathTareas).Return(nil)

	require.NoError(t, f.sess.Login(context.Background(), creds))
	assert.True(t, f.sess.IsAuthenticated())

	_, ok := f.sess.CurrentUserID()
	assert.False(t, ok, "identity stays unknown when the profile fetch fails")
	f.assertExpectations(t)
}

func TestSession_Logout(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.auth.On("Login", mock.Anything, creds).Return("tok-1", nil)
	f.auth.On("Me", mock.Anything).Return(model.UserProfile{ID: 7}, nil)
	f.conn.On("Connect", mock.Anything).Return(nil)
	f.conn.On("Disconnect").Return()
	f.nav.On("Navigate", mock.Anything, router.PathTareas).Return(nil)
	f.nav.On("Navigate", mock.Anything, router.PathAuth).Return(errors.New("nav failed"))

	require.NoError(t, f.sess.Login(ctx, creds))

	var changes []bool
	f.sess.Subscribe(func(authenticated bool) { changes = append(changes, authenticated) })

	f.sess.Logout(ctx)

	assert.False(t, f.sess.IsAuthenticated())
	_, ok := f.sess.User()
	assert.False(t, ok)
	assert.Equal(t, []bool{false}, changes)

	_, err := f.kv.Get(ctx, store.KeyToken)
	assert.ErrorIs(t, err, store.ErrNotFound)

	f.conn.AssertCalled(t, "Disconnect")
	f.assertExpectations(t)
}

func TestSession_RestoreAndReload(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, store.SaveValue(ctx, f.kv, store.KeyToken, "persisted"))
	require.NoError(t, store.SaveValue(ctx, f.kv, keyUser, model.UserProfile{ID: 3}))

	require.NoError(t, f.sess.Restore(ctx))
	assert.True(t, f.sess.IsAuthenticated())
	id, ok := f.sess.CurrentUserID()
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)

	var changes []bool
	unsubscribe := f.sess.Subscribe(func(authenticated bool) { changes = append(changes, authenticated) })

	// Another process logged out.
	require.NoError(t, f.kv.Delete(ctx, store.KeyToken))
	require.NoError(t, f.sess.Reload(ctx))
	assert.False(t, f.sess.IsAuthenticated())
	_, ok = f.sess.CurrentUserID()
	assert.False(t, ok)

	// Unchanged token does not notify.
	require.NoError(t, f.sess.Reload(ctx))
	assert.Equal(t, []bool{false}, changes)

	unsubscribe()
	require.NoError(t, store.SaveValue(ctx, f.kv, store.KeyToken, "again"))
	require.NoError(t, f.sess.Reload(ctx))
	assert.Equal(t, []bool{false}, changes)
	id, ok = f.sess.CurrentUserID()
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)
}

func TestSession_CheckAuthAndConnect(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.sess.CheckAuthAndConnect(ctx)
	f.conn.AssertNotCalled(t, "Connect", mock.Anything)

	require.NoError(t, store.SaveValue(ctx, f.kv, store.KeyToken, "tok"))
	require.NoError(t, f.sess.Restore(ctx))

	f.conn.On("Connect", mock.Anything).Return(nil)
	f.sess.CheckAuthAndConnect(ctx)
	f.assertExpectations(t)
}
