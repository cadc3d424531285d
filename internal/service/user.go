package service

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Stone-Creek-Software/armory-back/internal/auth"
	"github.com/Stone-Creek-Software/armory-back/internal/db"
)

// UserService covers the admin-facing user management surface. The
// role gate in front of it lives in the transport layer.
type UserService struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewUserService(gormDB *gorm.DB, l *zap.SugaredLogger) *UserService {
	return &UserService{
		db:     gormDB,
		logger: l,
	}
}

func (s *UserService) Users() ([]db.User, error) {
	users := make([]db.User, 0)
	res := s.db.Order("email").Find(&users)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "list users")
	}
	return users, nil
}

func (s *UserService) Create(email, name, password, role string, enabled bool) (*db.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.Wrap(ErrValidation, "invalid email")
	}
	if name == "" {
		return nil, errors.Wrap(ErrValidation, "empty name")
	}
	if password == "" {
		return nil, errors.Wrap(ErrValidation, "empty password")
	}
	if role == "" {
		role = db.RoleUser
	}
	if role != db.RoleAdmin && role != db.RoleUser {
		return nil, errors.Wrapf(ErrValidation, "unknown role %q", role)
	}
	if err := s.checkEmail(email, 0); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	model := db.User{
		Email:    email,
		Name:     name,
		Password: hash,
		Role:     role,
		Enabled:  enabled,
	}
	if res := s.db.Create(&model); res.Error != nil {
		return nil, errors.Wrap(res.Error, "create user")
	}
	return &model, nil
}

func (s *UserService) Read(id uint64) (*db.User, error) {
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

func (s *UserService) Update(id uint64, email, name, role string, enabled bool) (*db.User, error) {
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
	if role != db.RoleAdmin && role != db.RoleUser {
		return nil, errors.Wrapf(ErrValidation, "unknown role %q", role)
	}
	if err := s.checkEmail(email, id); err != nil {
		return nil, err
	}

	model.Email = email
	model.Name = name
	model.Role = role
	model.Enabled = enabled

	if res := s.db.Save(model); res.Error != nil {
		return nil, errors.Wrap(res.Error, "update user")
	}
	return model, nil
}

func (s *UserService) UpdatePassword(id uint64, password string) error {
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

// Delete removes the user and their remember-me tokens. Owned
// firearms data stays behind under soft delete.
func (s *UserService) Delete(id uint64) error {
	model, err := s.Read(id)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if res := tx.Where("user_id = ?", id).Delete(&db.AuthToken{}); res.Error != nil {
			return errors.Wrap(res.Error, "delete auth tokens")
		}
		if res := tx.Delete(model); res.Error != nil {
			return errors.Wrap(res.Error, "delete user")
		}
		return nil
	})
}

func (s *UserService) checkEmail(email string, selfID uint64) error {
	var count int64
	res := s.db.Model(&db.User{}).
		Where("email = ? AND id <> ?", email, selfID).
		Count(&count)
	if res.Error != nil {
		return errors.Wrap(res.Error, "check email")
	}
	if count > 0 {
		return errors.Wrapf(ErrConflict, "email %q already exists", email)
	}
	return nil
}
