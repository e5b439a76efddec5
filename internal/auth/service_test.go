package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/nearexpiry/backend-nearexpiry/internal/common"
)

type memAuthStore struct {
	mu       sync.Mutex
	users    map[string]Credential // keyed by email
	sessions map[string]Session    // keyed by token hash
}

func newMemAuthStore() *memAuthStore {
	return &memAuthStore{
		users:    make(map[string]Credential),
		sessions: make(map[string]Session),
	}
}

func (m *memAuthStore) CreateUser(_ context.Context, name, email, passwordHash, role string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[email]; exists {
		return User{}, ErrEmailTaken
	}
	user := User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.users[email] = Credential{User: user, PasswordHash: passwordHash}
	return user, nil
}

func (m *memAuthStore) GetUserByEmail(_ context.Context, email string) (Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.users[email]
	if !ok {
		return Credential{}, ErrSessionNotFound
	}
	return cred, nil
}

func (m *memAuthStore) GetUserByID(_ context.Context, id uuid.UUID) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cred := range m.users {
		if cred.ID == id.String() {
			return cred.User, nil
		}
	}
	return User{}, ErrSessionNotFound
}

func (m *memAuthStore) CreateSession(_ context.Context, userID uuid.UUID, tokenHash, _, _ string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	role := ""
	for _, cred := range m.users {
		if cred.ID == userID.String() {
			role = cred.Role
		}
	}
	m.sessions[tokenHash] = Session{ID: uuid.New(), UserID: userID, Role: role, ExpiresAt: expiresAt}
	return nil
}

func (m *memAuthStore) GetSessionByToken(_ context.Context, tokenHash string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[tokenHash]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (m *memAuthStore) RotateSessionToken(_ context.Context, sessionID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, session := range m.sessions {
		if session.ID == sessionID {
			delete(m.sessions, hash)
			session.ExpiresAt = expiresAt
			m.sessions[tokenHash] = session
			return nil
		}
	}
	return ErrSessionNotFound
}

func (m *memAuthStore) DeleteSessionByToken(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tokenHash)
	return nil
}

var authNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestAuthService(t *testing.T) (*Service, *memAuthStore) {
	t.Helper()
	store := newMemAuthStore()
	svc, err := NewService(Config{
		Store:           store,
		Secret:          "test-secret-test-secret-test-secret!",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "nearexpiry-api",
		Audience:        "nearexpiry-web",
	})
	require.NoError(t, err)
	svc.WithNow(func() time.Time { return authNow })
	return svc, store
}

func TestRegisterLoginTokenRoundTrip(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Asha", "asha@example.com", "hunter2hunter2", RoleSeller)
	require.NoError(t, err)
	require.Equal(t, RoleSeller, user.Role)

	result, err := svc.Login(ctx, "ASHA@example.com", "hunter2hunter2", "test-agent", "127.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	require.NotEmpty(t, result.RefreshToken)

	subject, role, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, subject)
	require.Equal(t, RoleSeller, role)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "First", "same@example.com", "password123", RoleBuyer)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "Second", "same@example.com", "password123", RoleBuyer)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "EMAIL_ALREADY_USED", appErr.Code)
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	svc, _ := newTestAuthService(t)
	_, err := svc.Register(context.Background(), "Root", "root@example.com", "password123", RoleAdmin)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	svc, store := newTestAuthService(t)
	hash, err := argon2id.CreateHash("correct-horse", argon2id.DefaultParams)
	require.NoError(t, err)
	store.users["u@example.com"] = Credential{
		User:         User{ID: uuid.NewString(), Email: "u@example.com", Role: RoleBuyer},
		PasswordHash: hash,
	}

	_, err = svc.Login(context.Background(), "u@example.com", "wrong", "", "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Bea", "bea@example.com", "password123", RoleBuyer)
	require.NoError(t, err)
	login, err := svc.Login(ctx, "bea@example.com", "password123", "", "")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The old refresh token is dead after rotation.
	_, err = svc.Refresh(ctx, login.RefreshToken)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "UNAUTHORIZED", appErr.Code)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Cal", "cal@example.com", "password123", RoleBuyer)
	require.NoError(t, err)
	login, err := svc.Login(ctx, "cal@example.com", "password123", "", "")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return authNow.Add(16 * time.Minute) })
	_, _, err = svc.ParseAccessToken(login.AccessToken)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsWrongAlgorithm(t *testing.T) {
	svc, _ := newTestAuthService(t)

	token, err := jwt.NewBuilder().
		Subject(uuid.NewString()).
		Issuer("nearexpiry-api").
		Audience([]string{"nearexpiry-web"}).
		IssuedAt(authNow).
		Expiration(authNow.Add(time.Hour)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS384, svc.secret))
	require.NoError(t, err)

	_, _, err = svc.ParseAccessToken(string(signed))
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "invalid token"))
}

func TestRequireRoleMiddleware(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Dee", "dee@example.com", "password123", RoleBuyer)
	require.NoError(t, err)
	login, err := svc.Login(ctx, "dee@example.com", "password123", "", "")
	require.NoError(t, err)

	mw := Middleware{Service: svc}
	handler := mw.RequireRole(RoleSeller)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/seller/items", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	buyerOK := mw.RequireRole(RoleBuyer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec = httptest.NewRecorder()
	buyerOK.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	anon := httptest.NewRequest(http.MethodGet, "/api/v1/seller/items", nil)
	buyerOK.ServeHTTP(rec, anon)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
