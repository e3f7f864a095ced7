package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/court-dcm-api/internal/models"
	appErrors "github.com/noah-isme/court-dcm-api/pkg/errors"
)

type mockAuthRepo struct {
	users            map[string]*models.User
	refreshTokens    map[string]*models.RefreshToken
	lastLoginUpdated bool
	passwordUpdated  string
	revokedAllFor    string
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	repo := &mockAuthRepo{
		users:         make(map[string]*models.User),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordUpdated = passwordHash
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAllFor = userID
	for _, t := range m.refreshTokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	t, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return t, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, t := range m.refreshTokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
		}
	}
	return nil
}

type mockAuthAudit struct {
	entries []*models.AuditLog
}

func (m *mockAuthAudit) Create(ctx context.Context, log *models.AuditLog) error {
	m.entries = append(m.entries, log)
	return nil
}

func testAuthUser(t *testing.T) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "clerk@court.test",
		PasswordHash: string(hash),
		FullName:     "Court Clerk",
		Role:         models.RoleClerk,
		Active:       true,
	}
}

func newTestAuthService(repo *mockAuthRepo, audit *mockAuthAudit) *AuthService {
	return NewAuthService(repo, audit, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "court-dcm-api",
		Audience:           []string{"court-dcm"},
	})
}

func TestAuthLoginSuccess(t *testing.T) {
	repo := newMockAuthRepo(testAuthUser(t))
	audit := &mockAuthAudit{}
	svc := newTestAuthService(repo, audit)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "clerk@court.test",
		Password: "correct-password",
		IP:       "10.0.0.1",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.True(t, repo.lastLoginUpdated)

	stored, ok := repo.refreshTokens[resp.RefreshToken]
	require.True(t, ok)
	assert.Equal(t, "user-1", stored.UserID)
	assert.Equal(t, "10.0.0.1", stored.IPAddress)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionLogin, audit.entries[0].Action)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepo(testAuthUser(t))
	svc := newTestAuthService(repo, &mockAuthAudit{})

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "clerk@court.test",
		Password: "wrong-password",
	})

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthLoginUnknownEmail(t *testing.T) {
	repo := newMockAuthRepo(testAuthUser(t))
	svc := newTestAuthService(repo, &mockAuthAudit{})

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@court.test",
		Password: "whatever",
	})

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	user := testAuthUser(t)
	user.Active = false
	repo := newMockAuthRepo(user)
	svc := newTestAuthService(repo, &mockAuthAudit{})

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "clerk@court.test",
		Password: "correct-password",
	})

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthRefreshRotatesToken(t *testing.T) {
	repo := newMockAuthRepo(testAuthUser(t))
	svc := newTestAuthService(repo, &mockAuthAudit{})

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "clerk@court.test",
		Password: "correct-password",
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: login.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// the used token is revoked and cannot be replayed
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: login.RefreshToken,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthRefreshExpiredToken(t *testing.T) {
	repo := newMockAuthRepo(testAuthUser(t))
	repo.refreshTokens["stale"] = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "user-1",
		Token:     "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	svc := newTestAuthService(repo, &mockAuthAudit{})

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthLogoutRejectsForeignToken(t *testing.T) {
	repo := newMockAuthRepo(testAuthUser(t))
	repo.refreshTokens["other"] = &models.RefreshToken{
		ID:        "rt-2",
		UserID:    "user-2",
		Token:     "other",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	svc := newTestAuthService(repo, &mockAuthAudit{})

	err := svc.Logout(context.Background(), "other", "user-1", models.LoginRequest{})

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAuthLogoutRevokesToken(t *testing.T) {
	repo := newMockAuthRepo(testAuthUser(t))
	svc := newTestAuthService(repo, &mockAuthAudit{})

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "clerk@court.test",
		Password: "correct-password",
	})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), login.RefreshToken, "user-1", models.LoginRequest{})
	require.NoError(t, err)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)
}

func TestAuthChangePassword(t *testing.T) {
	repo := newMockAuthRepo(testAuthUser(t))
	audit := &mockAuthAudit{}
	svc := newTestAuthService(repo, audit)

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		OldPassword: "correct-password",
		NewPassword: "brand-new-password",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, repo.passwordUpdated)
	assert.Equal(t, "user-1", repo.revokedAllFor)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.passwordUpdated), []byte("brand-new-password")))

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionPasswordChange, audit.entries[0].Action)
}

func TestAuthChangePasswordWrongOld(t *testing.T) {
	repo := newMockAuthRepo(testAuthUser(t))
	svc := newTestAuthService(repo, &mockAuthAudit{})

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		OldPassword: "not-the-password",
		NewPassword: "brand-new-password",
	})

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, repo.passwordUpdated)
}

func TestAuthValidateTokenRoundtrip(t *testing.T) {
	repo := newMockAuthRepo(testAuthUser(t))
	svc := newTestAuthService(repo, &mockAuthAudit{})

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "clerk@court.test",
		Password: "correct-password",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleClerk, claims.Role)
	assert.Equal(t, "clerk@court.test", claims.Email)
	assert.Equal(t, "court-dcm-api", claims.Issuer)
}

func TestAuthValidateTokenRejectsGarbage(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo(), &mockAuthAudit{})

	_, err := svc.ValidateToken("not.a.token")

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthValidateTokenRejectsWrongSecret(t *testing.T) {
	repo := newMockAuthRepo(testAuthUser(t))
	issuer := newTestAuthService(repo, &mockAuthAudit{})

	login, err := issuer.Login(context.Background(), models.LoginRequest{
		Email:    "clerk@court.test",
		Password: "correct-password",
	})
	require.NoError(t, err)

	verifier := NewAuthService(repo, nil, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: time.Hour,
	})
	_, err = verifier.ValidateToken(login.AccessToken)
	require.Error(t, err)
}
