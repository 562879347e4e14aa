package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/bazario/backend/pkg/auth"
	"github.com/bazario/backend/pkg/auth/session"
	"github.com/bazario/backend/pkg/config"
	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/security"
)

type stubUserRepo struct {
	user *models.User
	err  error
}

func (s stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s.user != nil && s.user.ID == id {
		s.user.LastLoginAt = &at
	}
	return nil
}

type stubSessionManager struct {
	refreshToken string
	rotateErr    error
	revoked      []string
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	return s.refreshToken, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	return session.NewAccessID(), "rotated-refresh-token", nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "bazario",
		ExpirationMinutes: 30,
	}
}

func buildTestService(t *testing.T, user *models.User) (Service, *stubSessionManager) {
	t.Helper()
	sessionMgr := &stubSessionManager{refreshToken: "refresh-token"}
	svc, err := NewService(ServiceParams{
		UserRepo:       stubUserRepo{user: user},
		SessionManager: sessionMgr,
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, sessionMgr
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func activeUser(t *testing.T, password string, role enums.UserRole) *models.User {
	t.Helper()
	return &models.User{
		ID:           uuid.New(),
		Email:        "shopper@example.com",
		PasswordHash: mustHashPassword(t, password),
		FirstName:    "Sam",
		LastName:     "Rivera",
		Role:         role,
		IsActive:     true,
	}
}

func TestServiceLoginIssuesTokenPair(t *testing.T) {
	password := "shopper-secret"
	user := activeUser(t, password, enums.UserRoleCustomer)
	svc, _ := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("token minted for wrong user")
	}
	if claims.Role != enums.UserRoleCustomer {
		t.Fatalf("expected customer role claim, got %s", claims.Role)
	}
	if resp.RefreshToken == "" {
		t.Fatalf("expected refresh token to be set")
	}
	if user.LastLoginAt == nil {
		t.Fatalf("last login not recorded")
	}
}

func TestServiceLoginRejectsWrongPassword(t *testing.T) {
	user := activeUser(t, "right-password", enums.UserRoleCustomer)
	svc, _ := buildTestService(t, user)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: "wrong-password",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestServiceLoginRejectsInactiveUser(t *testing.T) {
	password := "dormant"
	user := activeUser(t, password, enums.UserRoleCustomer)
	user.IsActive = false
	svc, _ := buildTestService(t, user)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: password,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestServiceLoginRejectsUnknownEmail(t *testing.T) {
	svc, _ := buildTestService(t, nil)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestServiceAdminLoginRejectsNonAdmin(t *testing.T) {
	password := "vendor-secret"
	user := activeUser(t, password, enums.UserRoleVendor)
	svc, _ := buildTestService(t, user)

	_, err := svc.AdminLogin(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: password,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestServiceAdminLoginAcceptsAdmin(t *testing.T) {
	password := "admin-secret"
	user := activeUser(t, password, enums.UserRoleAdmin)
	svc, _ := buildTestService(t, user)

	resp, err := svc.AdminLogin(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.UserRoleAdmin {
		t.Fatalf("expected admin role claim, got %s", claims.Role)
	}
}

func TestServiceRefreshRotatesTokens(t *testing.T) {
	password := "refresh-me"
	user := activeUser(t, password, enums.UserRoleCustomer)
	svc, _ := buildTestService(t, user)

	login, err := svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	resp, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken != "rotated-refresh-token" {
		t.Fatalf("rotated token pair not returned")
	}
	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse rotated token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("rotated token minted for wrong user")
	}
}

func TestServiceRefreshRejectsInvalidRefreshToken(t *testing.T) {
	password := "refresh-me"
	user := activeUser(t, password, enums.UserRoleCustomer)
	svc, sessionMgr := buildTestService(t, user)
	sessionMgr.rotateErr = session.ErrInvalidRefreshToken

	login, err := svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: "stolen-token",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestServiceLogoutRevokesSession(t *testing.T) {
	user := activeUser(t, "bye", enums.UserRoleCustomer)
	svc, sessionMgr := buildTestService(t, user)

	if err := svc.Logout(context.Background(), "access-id-1"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessionMgr.revoked) != 1 || sessionMgr.revoked[0] != "access-id-1" {
		t.Fatalf("session not revoked")
	}

	if err := svc.Logout(context.Background(), "  "); pkgerrors.As(err) == nil {
		t.Fatalf("blank access id accepted")
	}
}
