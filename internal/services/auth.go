package services

import (
	"errors"
	"time"

	"github.com/huangang/taskhub/internal/config"
	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/internal/utils"
	"github.com/huangang/taskhub/pkg/logger"
	"github.com/huangang/taskhub/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials  = response.NewUnauthorized("INVALID_CREDENTIALS", "invalid username or password")
	ErrUserDisabled        = response.NewForbidden("USER_DISABLED", "user is disabled")
	ErrInvalidAuthType     = response.NewBadRequest("INVALID_AUTH_TYPE", "auth type must be local or ldap")
	ErrInvalidRefreshToken = response.NewUnauthorized("INVALID_REFRESH_TOKEN", "refresh token is invalid, expired or revoked")
	ErrPasswordNotLocal    = response.NewBadRequest("PASSWORD_NOT_LOCAL", "LDAP users cannot change password here")
	ErrIncorrectPassword   = response.NewBadRequest("INCORRECT_PASSWORD", "incorrect old password")
)

type AuthService struct {
	db          *gorm.DB
	ldapService *LDAPService
	jwtConfig   *config.JWTConfig
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, ldapService *LDAPService) *AuthService {
	return &AuthService{
		db:          db,
		ldapService: ldapService,
		jwtConfig:   jwtCfg,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	AuthType string `json:"auth_type" binding:"omitempty,oneof=local ldap"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken     string       `json:"access_token"`
	AccessExpireAt  time.Time    `json:"access_expire_at"`
	RefreshToken    string       `json:"refresh_token"`
	RefreshExpireAt time.Time    `json:"refresh_expire_at"`
	User            *models.User `json:"user,omitempty"`
}

// Login authenticates a user and issues an access and a refresh token.
func (s *AuthService) Login(req *LoginRequest, clientIP, userAgent string) (*TokenPair, error) {
	authType := req.AuthType
	if authType == "" {
		authType = models.AuthTypeLocal
	}

	var user *models.User
	var err error
	switch authType {
	case models.AuthTypeLocal:
		user, err = s.localAuth(req.Username, req.Password)
	case models.AuthTypeLDAP:
		user, err = s.ldapAuth(req.Username, req.Password)
	default:
		return nil, ErrInvalidAuthType
	}
	if err != nil {
		logger.Warn().Str("username", req.Username).Str("auth_type", authType).Str("ip", clientIP).Msg("login failed")
		return nil, err
	}

	pair, err := s.issue(s.db, user, clientIP, userAgent)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s.db.Model(user).Update("last_login", now)
	user.LastLogin = &now
	pair.User = user
	return pair, nil
}

// Refresh rotates a refresh token: the presented one is revoked and linked
// to its replacement.
func (s *AuthService) Refresh(refreshToken, clientIP, userAgent string) (*TokenPair, error) {
	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ?", utils.HashToken(refreshToken)).First(&stored).Error; err != nil {
		return nil, notFoundOr(err, ErrInvalidRefreshToken)
	}
	if stored.RevokedAt != nil || time.Now().After(stored.ExpiresAt) {
		return nil, ErrInvalidRefreshToken
	}

	var user models.User
	if err := s.db.First(&user, stored.UserID).Error; err != nil {
		return nil, notFoundOr(err, ErrInvalidRefreshToken)
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	var pair *TokenPair
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		pair, err = s.issue(tx, &user, clientIP, userAgent)
		if err != nil {
			return err
		}
		var replacement models.RefreshToken
		if err := tx.Where("token_hash = ?", utils.HashToken(pair.RefreshToken)).First(&replacement).Error; err != nil {
			return err
		}
		result := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Updates(map[string]interface{}{
				"revoked_at":           time.Now(),
				"replaced_by_token_id": replacement.ID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Lost a race with another refresh of the same token
			return ErrInvalidRefreshToken
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *AuthService) RevokeRefreshToken(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", utils.HashToken(refreshToken)).
		Update("revoked_at", time.Now()).Error
}

func (s *AuthService) issue(db *gorm.DB, user *models.User, clientIP, userAgent string) (*TokenPair, error) {
	accessHours := s.jwtConfig.ExpireHour
	if accessHours <= 0 {
		accessHours = 24
	}
	refreshHours := s.jwtConfig.RefreshExpireHour
	if refreshHours <= 0 {
		refreshHours = 720
	}

	access, err := utils.GenerateToken(user.ID, user.Username, user.Role, accessHours)
	if err != nil {
		return nil, err
	}
	refresh, digest, err := utils.NewOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   digest,
		ExpiresAt:   now.Add(time.Duration(refreshHours) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   userAgent,
	}
	if err := db.Create(&record).Error; err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:     access,
		AccessExpireAt:  now.Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    refresh,
		RefreshExpireAt: record.ExpiresAt,
	}, nil
}

func (s *AuthService) localAuth(username, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ? AND auth_type = ?", username, models.AuthTypeLocal).First(&user).Error; err != nil {
		return nil, notFoundOr(err, ErrInvalidCredentials)
	}
	if !utils.CheckPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}
	return &user, nil
}

// ldapAuth verifies against the directory and provisions the local record
// on first login.
func (s *AuthService) ldapAuth(username, password string) (*models.User, error) {
	if s.ldapService == nil || !s.ldapService.IsEnabled() {
		return nil, ErrInvalidAuthType.WithMessage("LDAP authentication is not enabled")
	}
	ldapUser, err := s.ldapService.Authenticate(username, password)
	if err != nil {
		logger.Warn().Err(err).Str("username", username).Msg("LDAP authentication failed")
		return nil, ErrInvalidCredentials
	}

	var user models.User
	err = s.db.Where("username = ? AND auth_type = ?", ldapUser.Username, models.AuthTypeLDAP).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			Username: ldapUser.Username,
			Email:    ldapUser.Email,
			Nickname: ldapUser.Nickname,
			Role:     models.RoleUser,
			AuthType: models.AuthTypeLDAP,
			IsActive: true,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	s.db.Model(&user).Updates(map[string]interface{}{"email": ldapUser.Email, "nickname": ldapUser.Nickname})
	return &user, nil
}

func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, ErrUserNotFound)
	}
	return &user, nil
}

func (s *AuthService) IsLDAPEnabled() bool {
	return s.ldapService != nil && s.ldapService.IsEnabled()
}

// CreateAdminIfNotExists seeds admin/admin on an empty user table.
func (s *AuthService) CreateAdminIfNotExists() error {
	var count int64
	if err := s.db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := utils.HashPassword("admin")
	if err != nil {
		return err
	}
	admin := models.User{
		Username: "admin",
		Password: hashed,
		Nickname: "Administrator",
		Role:     models.RoleAdmin,
		AuthType: models.AuthTypeLocal,
		IsActive: true,
	}
	if err := s.db.Create(&admin).Error; err != nil {
		return err
	}
	logger.Warn().Msg("default admin account created with password 'admin'; change it after first login")
	return nil
}

func (s *AuthService) ChangePassword(userID uint, req *ChangePasswordRequest) error {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return notFoundOr(err, ErrUserNotFound)
	}
	if user.AuthType != models.AuthTypeLocal {
		return ErrPasswordNotLocal
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return ErrIncorrectPassword
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("password", hashed).Error; err != nil {
			return err
		}
		// Sign out every other session
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND revoked_at IS NULL", userID).
			Update("revoked_at", time.Now()).Error
	})
}
