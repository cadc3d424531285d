package service

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Stone-Creek-Software/armory-back/internal/auth"
	"github.com/Stone-Creek-Software/armory-back/internal/config"
	"github.com/Stone-Creek-Software/armory-back/internal/db"
)

// ProfileService is the self-service slice of the user model: own
// profile, password, and the TOTP second factor.
type ProfileService struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
	issuer string
}

func NewProfileService(gormDB *gorm.DB, l *zap.SugaredLogger, cfg *config.Config) *ProfileService {
	return &ProfileService{
		db:     gormDB,
		logger: l,
		issuer: cfg.TOTPIssuer,
	}
}

func (s *ProfileService) Read(id uint64) (*db.User, error) {
	model := db.User{}
	res := s.db.First(&model, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "user %d", id)
		}
		return nil, errors.Wrap(res.Error, "load user")
	}
	return &model, nil
}

func (s *ProfileService) Update(id uint64, email, name string) (*db.User, error) {
	model, err := s.Read(id)
	if err != nil {
		return nil, err
	}

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.Wrap(ErrValidation, "invalid email")
	}
	if name == "" {
		return nil, errors.Wrap(ErrValidation, "empty name")
	}

	var count int64
	res := s.db.Model(&db.User{}).Where("email = ? AND id <> ?", email, id).Count(&count)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "check email")
	}
	if count > 0 {
		return nil, errors.Wrapf(ErrConflict, "email %q already exists", email)
	}

	model.Email = email
	model.Name = name
	if res := s.db.Save(model); res.Error != nil {
		return nil, errors.Wrap(res.Error, "update profile")
	}
	return model, nil
}

func (s *ProfileService) UpdatePassword(id uint64, password string) error {
	model, err := s.Read(id)
	if err != nil {
		return err
	}
	if password == "" {
		return errors.Wrap(ErrValidation, "empty password")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	model.Password = hash

	if res := s.db.Save(model); res.Error != nil {
		return errors.Wrap(res.Error, "update password")
	}
	return nil
}

// RefreshTotp issues a fresh shared secret. Every remember-me token is
// destroyed at the same time, since those stand in for a validated
// code under the old secret.
func (s *ProfileService) RefreshTotp(id uint64) (*db.User, string, error) {
	model, err := s.Read(id)
	if err != nil {
		return nil, "", err
	}

	secret, url, err := auth.NewTOTPKey(s.issuer, model.Email)
	if err != nil {
		return nil, "", err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if res := tx.Where("user_id = ?", id).Delete(&db.AuthToken{}); res.Error != nil {
			return errors.Wrap(res.Error, "invalidate remember tokens")
		}

		model.TOTPKey = secret
		model.TOTPValidated = false
		if res := tx.Save(model); res.Error != nil {
			return errors.Wrap(res.Error, "save totp key")
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return model, url, nil
}

func (s *ProfileService) ValidateTotp(id uint64, code string) (*db.User, error) {
	model, err := s.Read(id)
	if err != nil {
		return nil, err
	}
	if model.TOTPKey == "" {
		return nil, errors.Wrap(ErrValidation, "no totp key")
	}
	if !auth.ValidateTOTP(code, model.TOTPKey) {
		return nil, errors.Wrap(ErrValidation, "invalid code")
	}

	model.TOTPValidated = true
	if res := s.db.Save(model); res.Error != nil {
		return nil, errors.Wrap(res.Error, "save totp validation")
	}
	return model, nil
}

func (s *ProfileService) EnableTotp(id uint64, enabled bool) (*db.User, error) {
	model, err := s.Read(id)
	if err != nil {
		return nil, err
	}

	model.TOTPEnabled = enabled
	if res := s.db.Save(model); res.Error != nil {
		return nil, errors.Wrap(res.Error, "save totp enabled")
	}
	return model, nil
}
