package service

import (
	"context"
	"testing"
	"time"

	"mnemochat/internal/models"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserStore struct {
	byID    map[string]*models.User
	byEmail map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byID: map[string]*models.User{}, byEmail: map[string]*models.User{}}
}

func (f *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	f.byID[user.ID] = user
	f.byEmail[user.Email] = user
	return nil
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return f.byEmail[email], nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return f.byID[id], nil
}

func (f *fakeUserStore) UpdateLastLogin(ctx context.Context, id string, t time.Time) error {
	if u := f.byID[id]; u != nil {
		u.LastLogin = t
	}
	return nil
}

func (f *fakeUserStore) UpdateSettings(ctx context.Context, id string, settings models.ChatSettings) error {
	if u := f.byID[id]; u != nil {
		u.Settings = settings
	}
	return nil
}

type fakeSessionStore struct {
	sessions map[string]bool
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]bool{}}
}

func (f *fakeSessionStore) key(userID, sessionID string) string { return userID + "/" + sessionID }

func (f *fakeSessionStore) Create(ctx context.Context, userID, sessionID string, ttl time.Duration) error {
	f.sessions[f.key(userID, sessionID)] = true
	return nil
}

func (f *fakeSessionStore) Exists(ctx context.Context, userID, sessionID string) (bool, error) {
	return f.sessions[f.key(userID, sessionID)], nil
}

func (f *fakeSessionStore) Delete(ctx context.Context, userID, sessionID string) error {
	delete(f.sessions, f.key(userID, sessionID))
	return nil
}

const testSecret = "test-secret"

func newTestService() (*Service, *fakeUserStore, *fakeSessionStore) {
	users := newFakeUserStore()
	sessions := newFakeSessionStore()
	return NewService(users, sessions, testSecret, time.Hour, time.Hour), users, sessions
}

func TestRegisterCreatesActiveUserWithDefaults(t *testing.T) {
	svc, users, _ := newTestService()

	user, err := svc.Register(context.Background(), "alice@example.com", "password123")
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, models.StatusActive, user.Status)
	assert.Equal(t, models.DefaultChatSettings(), user.Settings)
	assert.NotEqual(t, "password123", user.Password, "password must be stored hashed")
	assert.NotNil(t, users.byEmail["alice@example.com"])
}

func TestRegisterRejectsInvalidEmail(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Register(context.Background(), "not-an-email", "password123")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Register(context.Background(), "alice@example.com", "short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Register(context.Background(), "alice@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "alice@example.com", "password456")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestLoginReturnsTokenWithSessionClaims(t *testing.T) {
	svc, _, sessions := newTestService()

	registered, err := svc.Register(context.Background(), "alice@example.com", "password123")
	require.NoError(t, err)

	tokenString, user, err := svc.Login(context.Background(), "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, registered.ID, claims["sub"])

	sessionID, _ := claims["jti"].(string)
	require.NotEmpty(t, sessionID)
	alive, err := sessions.Exists(context.Background(), registered.ID, sessionID)
	require.NoError(t, err)
	assert.True(t, alive)
}

func TestLoginDoesNotRevealWhichCredentialFailed(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Register(context.Background(), "alice@example.com", "password123")
	require.NoError(t, err)

	_, _, errNoUser := svc.Login(context.Background(), "bob@example.com", "password123")
	_, _, errBadPassword := svc.Login(context.Background(), "alice@example.com", "wrongpassword")

	assert.ErrorIs(t, errNoUser, ErrInvalidCredentials)
	assert.ErrorIs(t, errBadPassword, ErrInvalidCredentials)
	assert.Equal(t, errNoUser.Error(), errBadPassword.Error())
}

func TestLoginUpdatesLastLogin(t *testing.T) {
	svc, users, _ := newTestService()

	user, err := svc.Register(context.Background(), "alice@example.com", "password123")
	require.NoError(t, err)
	before := users.byID[user.ID].LastLogin

	time.Sleep(10 * time.Millisecond)
	_, _, err = svc.Login(context.Background(), "alice@example.com", "password123")
	require.NoError(t, err)

	assert.True(t, users.byID[user.ID].LastLogin.After(before))
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _, sessions := newTestService()

	registered, err := svc.Register(context.Background(), "alice@example.com", "password123")
	require.NoError(t, err)

	tokenString, _, err := svc.Login(context.Background(), "alice@example.com", "password123")
	require.NoError(t, err)

	token, _ := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	sessionID := token.Claims.(jwt.MapClaims)["jti"].(string)

	require.NoError(t, svc.Logout(context.Background(), registered.ID, sessionID))

	alive, err := sessions.Exists(context.Background(), registered.ID, sessionID)
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestGetUserUnknownID(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
