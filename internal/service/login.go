package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Stone-Creek-Software/armory-back/internal/auth"
	"github.com/Stone-Creek-Software/armory-back/internal/config"
	"github.com/Stone-Creek-Software/armory-back/internal/db"
)

var (
	ErrLoginUserNotFound         = errors.New("user not found")
	ErrLoginPasswordDoesNotMatch = errors.New("password does not match")
	ErrRememberTokenInvalid      = errors.New("remember token invalid")
)

type LoginService struct {
	db          *gorm.DB
	logger      *zap.SugaredLogger
	tokens      *auth.TokenManager
	rememberTTL time.Duration
}

func NewLoginService(gormDB *gorm.DB, l *zap.SugaredLogger, tokens *auth.TokenManager, cfg *config.Config) *LoginService {
	return &LoginService{
		db:          gormDB,
		logger:      l,
		tokens:      tokens,
		rememberTTL: cfg.RememberTTL,
	}
}

// Login checks credentials against an enabled user and issues an
// access token. A disabled account is indistinguishable from a missing
// one.
func (s *LoginService) Login(email, pass string) (*db.User, string, error) {
	user := db.User{}
	res := s.db.Where("email = ? AND enabled = ?", strings.ToLower(email), true).First(&user)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, "", ErrLoginUserNotFound
		}
		return nil, "", res.Error
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(pass)); err != nil {
		return nil, "", ErrLoginPasswordDoesNotMatch
	}

	token, err := s.tokens.Sign(&user)
	if err != nil {
		return nil, "", errors.Wrap(err, "sign token")
	}

	s.logger.Infow("user logged in", "email", user.Email)
	return &user, token, nil
}

// CreateRememberToken mints a selector:validator credential that lets
// the user skip the TOTP prompt on this device. Only the validator
// hash is persisted.
func (s *LoginService) CreateRememberToken(userID uint64) (string, error) {
	selector := uuid.New().String()
	validator := uuid.New().String()

	hash, err := auth.HashPassword(validator)
	if err != nil {
		return "", err
	}

	model := db.AuthToken{
		Selector:        selector,
		HashedValidator: hash,
		Expires:         time.Now().Add(s.rememberTTL),
		UserID:          userID,
	}
	if res := s.db.Create(&model); res.Error != nil {
		return "", errors.Wrap(res.Error, "create auth token")
	}
	return selector + ":" + validator, nil
}

// RedeemRememberToken validates a remember-me credential and rotates
// it: the presented row is destroyed and a fresh token is returned
// alongside the user and a new access token.
func (s *LoginService) RedeemRememberToken(raw string) (*db.User, string, string, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return nil, "", "", ErrRememberTokenInvalid
	}
	selector, validator := parts[0], parts[1]

	model := db.AuthToken{}
	res := s.db.Where("selector = ?", selector).First(&model)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, "", "", ErrRememberTokenInvalid
		}
		return nil, "", "", errors.Wrap(res.Error, "load auth token")
	}

	if time.Now().After(model.Expires) {
		_ = s.db.Delete(&model).Error
		return nil, "", "", ErrRememberTokenInvalid
	}
	if err := auth.CheckPassword(model.HashedValidator, validator); err != nil {
		return nil, "", "", ErrRememberTokenInvalid
	}

	user := db.User{}
	res = s.db.Where("id = ? AND enabled = ?", model.UserID, true).First(&user)
	if res.Error != nil {
		return nil, "", "", ErrRememberTokenInvalid
	}

	if res := s.db.Delete(&model); res.Error != nil {
		return nil, "", "", errors.Wrap(res.Error, "rotate auth token")
	}
	next, err := s.CreateRememberToken(user.ID)
	if err != nil {
		return nil, "", "", err
	}

	access, err := s.tokens.Sign(&user)
	if err != nil {
		return nil, "", "", errors.Wrap(err, "sign token")
	}
	return &user, access, next, nil
}
