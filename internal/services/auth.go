package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/buildvault/backend/internal/config"
	"github.com/buildvault/backend/internal/models"
	"github.com/buildvault/backend/internal/utils"
	"github.com/buildvault/backend/pkg/logger"
	"github.com/buildvault/backend/pkg/response"
	"gorm.io/gorm"
)

// AuthService is the identity store: sign-up, credential checks and token
// issuance. It never decides authorization.
type AuthService struct {
	db        *gorm.DB
	jwtConfig *config.JWTConfig
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig) *AuthService {
	return &AuthService{db: db, jwtConfig: jwtCfg}
}

type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	FullName string `json:"full_name" binding:"max=255"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// NewUserInput creates an identity with an explicit role and status.
// Empty Role/Status fall back to staff/pending.
type NewUserInput struct {
	Email    string
	Password string
	FullName string
	Role     models.Role
	Status   models.Status
}

type LoginResult struct {
	AccessToken     string          `json:"access_token"`
	AccessExpireAt  time.Time       `json:"access_expire_at"`
	RefreshToken    string          `json:"refresh_token"`
	RefreshExpireAt time.Time       `json:"refresh_expire_at"`
	User            *models.User    `json:"user"`
	Profile         *models.Profile `json:"profile"`
}

type RefreshResult struct {
	AccessToken     string    `json:"access_token"`
	AccessExpireAt  time.Time `json:"access_expire_at"`
	RefreshToken    string    `json:"refresh_token"`
	RefreshExpireAt time.Time `json:"refresh_expire_at"`
}

// SignUp registers a new identity. Its profile always starts pending/staff.
func (s *AuthService) SignUp(ctx context.Context, req *SignUpRequest) (*models.User, *models.Profile, error) {
	return s.CreateUser(ctx, &NewUserInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
}

// CreateUser writes the identity and its profile in one transaction.
func (s *AuthService) CreateUser(ctx context.Context, in *NewUserInput) (*models.User, *models.Profile, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, nil, response.NewBadRequest("Email is required")
	}

	role := in.Role
	if role == "" {
		role = models.RoleStaff
	}
	status := in.Status
	if status == "" {
		status = models.StatusPending
	}
	if !role.Valid() {
		return nil, nil, response.NewBadRequest("Invalid role")
	}
	if !status.Valid() {
		return nil, nil, response.NewBadRequest("Invalid status")
	}

	hashed, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, nil, response.NewBadRequest(err.Error())
	}

	user := &models.User{Email: email, Password: hashed}
	profile := &models.Profile{Email: email, Role: role, Status: status}
	if name := strings.TrimSpace(in.FullName); name != "" {
		profile.FullName = &name
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return response.NewUpstream(http.StatusInternalServerError, err)
		}
		if count > 0 {
			return response.NewBadRequest("User already registered")
		}
		if err := tx.Create(user).Error; err != nil {
			return response.NewUpstream(http.StatusBadRequest, err)
		}
		profile.ID = user.ID
		if err := tx.Create(profile).Error; err != nil {
			return response.NewUpstream(http.StatusBadRequest, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return user, profile, nil
}

// Login checks credentials and issues tokens. Pending and rejected users may
// log in; the guard refuses them everything else.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, response.NewBadRequest("Invalid login credentials")
		}
		return nil, response.NewUpstream(http.StatusInternalServerError, err)
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		return nil, response.NewBadRequest("Invalid login credentials")
	}

	accessToken, accessExpireAt, err := s.issueAccessToken(&user)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshRecord, err := s.newRefreshRecord(user.ID, clientIP, userAgent)
	if err != nil {
		return nil, err
	}
	if err := db.Create(refreshRecord).Error; err != nil {
		return nil, response.NewUpstream(http.StatusInternalServerError, err)
	}

	now := time.Now()
	user.LastLogin = &now
	if err := db.Model(&user).Update("last_login", now).Error; err != nil {
		logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	}

	var profile models.Profile
	if err := db.Where("id = ?", user.ID).First(&profile).Error; err != nil && !isNotFound(err) {
		return nil, response.NewUpstream(http.StatusInternalServerError, err)
	}

	result := &LoginResult{
		AccessToken:     accessToken,
		AccessExpireAt:  accessExpireAt,
		RefreshToken:    refreshToken,
		RefreshExpireAt: refreshRecord.ExpiresAt,
		User:            &user,
	}
	if profile.ID != "" {
		result.Profile = &profile
	}
	return result, nil
}

// Refresh rotates a refresh token: the old one is revoked and linked to its
// replacement in the same transaction.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, clientIP, userAgent string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, response.NewUnauthorized("Refresh token required")
	}

	db := s.db.WithContext(ctx)

	var stored models.RefreshToken
	if err := db.Where("token_hash = ?", hashRefreshToken(refreshToken)).First(&stored).Error; err != nil {
		if isNotFound(err) {
			return nil, response.NewUnauthorized("Invalid refresh token")
		}
		return nil, response.NewUpstream(http.StatusInternalServerError, err)
	}
	if stored.RevokedAt != nil {
		return nil, response.NewUnauthorized("Refresh token revoked")
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, response.NewUnauthorized("Refresh token expired")
	}

	var user models.User
	if err := db.Where("id = ?", stored.UserID).First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, response.NewUnauthorized("User not found")
		}
		return nil, response.NewUpstream(http.StatusInternalServerError, err)
	}

	accessToken, accessExpireAt, err := s.issueAccessToken(&user)
	if err != nil {
		return nil, err
	}

	newToken, newRecord, err := s.newRefreshRecord(user.ID, clientIP, userAgent)
	if err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(newRecord).Error; err != nil {
			return err
		}
		return tx.Model(&stored).Updates(map[string]interface{}{
			"revoked_at":           time.Now(),
			"replaced_by_token_id": newRecord.ID,
		}).Error
	})
	if err != nil {
		return nil, response.NewUpstream(http.StatusInternalServerError, err)
	}

	return &RefreshResult{
		AccessToken:     accessToken,
		AccessExpireAt:  accessExpireAt,
		RefreshToken:    newToken,
		RefreshExpireAt: newRecord.ExpiresAt,
	}, nil
}

// RevokeRefreshToken implements sign-out. Unknown tokens are ignored.
func (s *AuthService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashRefreshToken(refreshToken)).
		Update("revoked_at", time.Now()).Error
	if err != nil {
		return response.NewUpstream(http.StatusInternalServerError, err)
	}
	return nil
}

// CurrentUser returns the identity and, when present, its profile.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, *models.Profile, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, nil, response.NewUnauthorized("Not authenticated")
		}
		return nil, nil, response.NewUpstream(http.StatusInternalServerError, err)
	}

	var profile models.Profile
	if err := db.Where("id = ?", userID).First(&profile).Error; err != nil {
		if isNotFound(err) {
			return &user, nil, nil
		}
		return nil, nil, response.NewUpstream(http.StatusInternalServerError, err)
	}
	return &user, &profile, nil
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6,max=72"`
}

func (s *AuthService) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
		return response.NewNotFound("User not found")
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return response.NewBadRequest("Incorrect old password")
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return response.NewBadRequest(err.Error())
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("password", hashed).Error; err != nil {
			return err
		}
		// sign out every other session
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND revoked_at IS NULL", userID).
			Update("revoked_at", time.Now()).Error
	})
}

// CreateAdminIfNotExists seeds an approved admin from config when no admin
// profile exists yet.
func (s *AuthService) CreateAdminIfNotExists(ctx context.Context, cfg *config.AdminConfig) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if cfg.Email == "" || cfg.Password == "" {
		logger.Warn().Msg("no admin account exists and ADMIN_EMAIL/ADMIN_PASSWORD are not set")
		return nil
	}

	_, profile, err := s.CreateUser(ctx, &NewUserInput{
		Email:    cfg.Email,
		Password: cfg.Password,
		FullName: cfg.FullName,
		Role:     models.RoleAdmin,
		Status:   models.StatusApproved,
	})
	if err != nil {
		return err
	}

	logger.Info().Str("user_id", profile.ID).Str("email", profile.Email).Msg("bootstrap admin created")
	return nil
}

func (s *AuthService) issueAccessToken(user *models.User) (string, time.Time, error) {
	hours := s.jwtConfig.ExpireHour
	if hours <= 0 {
		hours = 24
	}
	token, err := utils.GenerateToken(user.ID, user.Email, hours)
	if err != nil {
		return "", time.Time{}, response.NewServerError("failed to sign token")
	}
	return token, time.Now().Add(time.Duration(hours) * time.Hour), nil
}

func (s *AuthService) newRefreshRecord(userID, clientIP, userAgent string) (string, *models.RefreshToken, error) {
	days := s.jwtConfig.RefreshExpireDays
	if days <= 0 {
		days = 30
	}

	token, hash, err := generateRefreshToken()
	if err != nil {
		return "", nil, response.NewServerError("failed to generate refresh token")
	}

	if len(userAgent) > 255 {
		userAgent = userAgent[:255]
	}

	return token, &models.RefreshToken{
		UserID:      userID,
		TokenHash:   hash,
		ExpiresAt:   time.Now().AddDate(0, 0, days),
		CreatedByIP: clientIP,
		UserAgent:   userAgent,
	}, nil
}

func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
