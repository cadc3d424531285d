package service

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Stone-Creek-Software/armory-back/internal/db"
)

type GunService struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewGunService(gormDB *gorm.DB, l *zap.SugaredLogger) *GunService {
	return &GunService{
		db:     gormDB,
		logger: l,
	}
}

func (s *GunService) Create(userID uint64, fields db.Gun) (*db.Gun, error) {
	if err := s.checkSerial(userID, fields.SerialNumber, 0); err != nil {
		return nil, err
	}

	model := fields
	model.ID = 0
	model.UserID = userID

	res := s.db.Create(&model)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "create gun")
	}
	return &model, nil
}

func (s *GunService) Read(userID, id uint64) (*db.Gun, error) {
	return s.load(userID, id)
}

// Guns lists every gun the user owns, ordered by name.
func (s *GunService) Guns(userID uint64) ([]db.Gun, error) {
	guns := make([]db.Gun, 0)
	res := s.db.Where("user_id = ?", userID).Order("name").Find(&guns)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "list guns")
	}
	return guns, nil
}

// Update replaces the full mutable field set of the gun. Images are
// handled separately via UpdateImages.
func (s *GunService) Update(userID, id uint64, fields db.Gun) (*db.Gun, error) {
	model, err := s.load(userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkSerial(userID, fields.SerialNumber, id); err != nil {
		return nil, err
	}

	model.Name = fields.Name
	model.SerialNumber = fields.SerialNumber
	model.ModelName = fields.ModelName
	model.Manufacturer = fields.Manufacturer
	model.Caliber = fields.Caliber
	model.Type = fields.Type
	model.Action = fields.Action
	model.Dealer = fields.Dealer
	model.FFL = fields.FFL
	model.PurchasePrice = fields.PurchasePrice
	model.PurchaseDate = fields.PurchaseDate
	model.Buyer = fields.Buyer
	model.SalePrice = fields.SalePrice
	model.SaleDate = fields.SaleDate
	model.Rating = fields.Rating
	model.Notes = fields.Notes

	res := s.db.Save(model)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update gun")
	}
	return model, nil
}

func (s *GunService) ReadImage(userID, id uint64, imageType string) (string, error) {
	model, err := s.load(userID, id)
	if err != nil {
		return "", err
	}
	switch imageType {
	case "front":
		return model.FrontImage, nil
	case "back":
		return model.BackImage, nil
	case "serial":
		return model.SerialImage, nil
	default:
		return "", errors.Wrapf(ErrValidation, "unknown image type %q", imageType)
	}
}

func (s *GunService) UpdateImages(userID, id uint64, front, back, serial string) (*db.Gun, error) {
	model, err := s.load(userID, id)
	if err != nil {
		return nil, err
	}

	model.FrontImage = front
	model.BackImage = back
	model.SerialImage = serial

	res := s.db.Save(model)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update gun images")
	}
	return model, nil
}

func (s *GunService) Delete(userID, id uint64) error {
	model, err := s.load(userID, id)
	if err != nil {
		return err
	}
	res := s.db.Delete(model)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete gun")
	}
	return nil
}

func (s *GunService) load(userID, id uint64) (*db.Gun, error) {
	model := db.Gun{}
	res := s.db.First(&model, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "gun %d", id)
		}
		return nil, errors.Wrap(res.Error, "load gun")
	}
	if model.UserID != userID {
		return nil, errors.Wrapf(ErrOwnershipDenied, "gun %d", id)
	}
	return &model, nil
}

// checkSerial enforces serial uniqueness within one user's collection.
// Scoping per user keeps another owner's serials unobservable.
func (s *GunService) checkSerial(userID uint64, serial string, selfID uint64) error {
	if serial == "" {
		return nil
	}
	var count int64
	res := s.db.Model(&db.Gun{}).
		Where("user_id = ? AND serial_number = ? AND id <> ?", userID, serial, selfID).
		Count(&count)
	if res.Error != nil {
		return errors.Wrap(res.Error, "check serial number")
	}
	if count > 0 {
		return errors.Wrapf(ErrConflict, "serial number %q already exists", serial)
	}
	return nil
}
