package services

import (
	"testing"

	"github.com/huangang/taskhub/internal/config"
	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/internal/utils"
)

func newAuthService(t *testing.T) (*AuthService, *models.User) {
	t.Helper()
	db := newTestDB(t)
	utils.SetJWTSecret("auth-test-secret")

	hashed, err := utils.HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := models.User{Username: "alice", Password: hashed, Role: models.RoleUser, AuthType: models.AuthTypeLocal, IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	svc := NewAuthService(db, &config.JWTConfig{ExpireHour: 1, RefreshExpireHour: 24}, NewLDAPService(&config.LDAPConfig{}))
	return svc, &user
}

func TestAuthService_Login(t *testing.T) {
	svc, user := newAuthService(t)

	tests := []struct {
		name string
		req  LoginRequest
		code string
	}{
		{"wrong password", LoginRequest{Username: "alice", Password: "nope"}, "INVALID_CREDENTIALS"},
		{"unknown user", LoginRequest{Username: "bob", Password: "s3cret!"}, "INVALID_CREDENTIALS"},
		{"ldap disabled", LoginRequest{Username: "alice", Password: "s3cret!", AuthType: "ldap"}, "INVALID_AUTH_TYPE"},
		{"unknown auth type", LoginRequest{Username: "alice", Password: "s3cret!", AuthType: "saml"}, "INVALID_AUTH_TYPE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := svc.Login(&req, "127.0.0.1", "test")
			assertCode(t, err, tt.code)
		})
	}

	pair, err := svc.Login(&LoginRequest{Username: "alice", Password: "s3cret!"}, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := utils.ParseToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("access token should parse: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != models.RoleUser {
		t.Errorf("unexpected claims %+v", claims)
	}
	if pair.RefreshToken == "" || pair.User == nil || pair.User.LastLogin == nil {
		t.Errorf("unexpected pair %+v", pair)
	}

	svc.db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_active", false)
	_, err = svc.Login(&LoginRequest{Username: "alice", Password: "s3cret!"}, "127.0.0.1", "test")
	assertCode(t, err, "USER_DISABLED")
}

func TestAuthService_RefreshRotates(t *testing.T) {
	svc, _ := newAuthService(t)
	pair, err := svc.Login(&LoginRequest{Username: "alice", Password: "s3cret!"}, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	next, err := svc.Refresh(pair.RefreshToken, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Error("refresh should issue a new refresh token")
	}

	_, err = svc.Refresh(pair.RefreshToken, "127.0.0.1", "test")
	assertCode(t, err, "INVALID_REFRESH_TOKEN")

	var old models.RefreshToken
	svc.db.Where("token_hash = ?", utils.HashToken(pair.RefreshToken)).First(&old)
	if old.RevokedAt == nil || old.ReplacedByTokenID == nil {
		t.Errorf("old token should be revoked and linked, got %+v", old)
	}

	if err := svc.RevokeRefreshToken(next.RefreshToken); err != nil {
		t.Fatalf("RevokeRefreshToken: %v", err)
	}
	_, err = svc.Refresh(next.RefreshToken, "127.0.0.1", "test")
	assertCode(t, err, "INVALID_REFRESH_TOKEN")

	_, err = svc.Refresh("garbage", "127.0.0.1", "test")
	assertCode(t, err, "INVALID_REFRESH_TOKEN")
}

func TestAuthService_ChangePasswordRevokesSessions(t *testing.T) {
	svc, user := newAuthService(t)
	pair, _ := svc.Login(&LoginRequest{Username: "alice", Password: "s3cret!"}, "127.0.0.1", "test")

	err := svc.ChangePassword(user.ID, &ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newpass"})
	assertCode(t, err, "INCORRECT_PASSWORD")

	if err := svc.ChangePassword(user.ID, &ChangePasswordRequest{OldPassword: "s3cret!", NewPassword: "newpass"}); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	_, err = svc.Refresh(pair.RefreshToken, "127.0.0.1", "test")
	assertCode(t, err, "INVALID_REFRESH_TOKEN")

	if _, err := svc.Login(&LoginRequest{Username: "alice", Password: "newpass"}, "127.0.0.1", "test"); err != nil {
		t.Errorf("login with the new password: %v", err)
	}

	ldapUser := models.User{Username: "dir", AuthType: models.AuthTypeLDAP, IsActive: true}
	svc.db.Create(&ldapUser)
	err = svc.ChangePassword(ldapUser.ID, &ChangePasswordRequest{OldPassword: "x", NewPassword: "yyyyyy"})
	assertCode(t, err, "PASSWORD_NOT_LOCAL")
}

func TestAuthService_CreateAdminIfNotExists(t *testing.T) {
	svc, _ := newAuthService(t)

	for i := 0; i < 2; i++ {
		if err := svc.CreateAdminIfNotExists(); err != nil {
			t.Fatalf("CreateAdminIfNotExists: %v", err)
		}
	}
	var admins int64
	svc.db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins)
	if admins != 1 {
		t.Errorf("expected exactly one admin, got %d", admins)
	}
	var admin models.User
	svc.db.Where("role = ?", models.RoleAdmin).First(&admin)
	if admin.Password == "admin" || !utils.CheckPassword("admin", admin.Password) {
		t.Error("seeded admin should store a bcrypt hash of the default password")
	}
	if svc.IsLDAPEnabled() {
		t.Error("LDAP should be disabled")
	}
}

func TestLDAPService_RejectsEmptyPassword(t *testing.T) {
	svc := NewLDAPService(&config.LDAPConfig{Enabled: true, Host: "127.0.0.1", Port: 1})
	if _, err := svc.Authenticate("alice", ""); err == nil {
		t.Error("empty password must be rejected before binding")
	}
}
