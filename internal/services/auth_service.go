package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/safecli/safecli/internal/config"
	"github.com/safecli/safecli/internal/models"
)

const (
	maxFailedLogins = 5
	lockoutDuration = 15 * time.Minute
	tokenLifetime   = 24 * time.Hour
)

type AuthService struct {
	db     *gorm.DB
	config config.Config
	now    func() time.Time
}

func NewAuthService(db *gorm.DB, cfg config.Config) *AuthService {
	return &AuthService{db: db, config: cfg, now: utcNow}
}

// Claims identify the account behind a session token.
type Claims struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	jwt.RegisteredClaims
}

// Register creates an account and seeds its blacklist with the configured
// defaults in the same transaction.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}

	account := &models.Account{Username: username, Email: email, Active: true}
	if err := account.SetPassword(password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Account{}).Where("username = ? OR email = ?", username, email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAccountExists
		}
		if err := tx.Create(account).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAccountExists
			}
			return err
		}
		if err := replaceBlacklist(tx, account.ID, NormalizeCommands(s.config.DefaultBlacklist)); err != nil {
			return fmt.Errorf("seed blacklist: %w", err)
		}
		return recordAudit(tx, &models.AuditEvent{
			AccountID: account.ID,
			Actor:     account.Username,
			Action:    AuditAccountCreated,
			Target:    account.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Login checks credentials and returns a signed session token. Five consecutive
// failures lock the account for a while.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Where("username = ? OR email = ?", username, strings.ToLower(username)).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	now := s.now()
	if account.IsLocked(now) {
		return "", ErrAccountLocked
	}
	if !account.Active {
		return "", ErrInvalidCredentials
	}

	if !account.CheckPassword(password) {
		updates := map[string]interface{}{"failed_login_attempts": account.FailedLoginAttempts + 1}
		if account.FailedLoginAttempts+1 >= maxFailedLogins {
			updates["locked_until"] = now.Add(lockoutDuration)
		}
		if err := s.db.WithContext(ctx).Model(&account).Updates(updates).Error; err != nil {
			return "", err
		}
		return "", ErrInvalidCredentials
	}

	if err := s.db.WithContext(ctx).Model(&account).Updates(map[string]interface{}{
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"last_login":            now,
	}).Error; err != nil {
		return "", err
	}
	return s.GenerateToken(&account)
}

// GenerateToken signs a session token for the account.
func (s *AuthService) GenerateToken(account *models.Account) (string, error) {
	now := s.now()
	claims := &Claims{
		AccountID: account.ID,
		Username:  account.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			Issuer:    "safecli",
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// ValidateToken parses a session token and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid || claims.AccountID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GetAccount returns an account by id.
func (s *AuthService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidAccount
		}
		return nil, err
	}
	return &account, nil
}

// ResetPassword sets a new password and clears any lockout.
func (s *AuthService) ResetPassword(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return ErrMissingFields
	}
	var account models.Account
	if err := s.db.WithContext(ctx).Where("username = ? OR email = ?", username, strings.ToLower(username)).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidAccount
		}
		return err
	}
	if err := account.SetPassword(password); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&account).Updates(map[string]interface{}{
		"password_hash":         account.PasswordHash,
		"failed_login_attempts": 0,
		"locked_until":          nil,
	}).Error
}
