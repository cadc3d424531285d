package service

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Stone-Creek-Software/armory-back/internal/db"
)

type AccessoryService struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewAccessoryService(gormDB *gorm.DB, l *zap.SugaredLogger) *AccessoryService {
	return &AccessoryService{
		db:     gormDB,
		logger: l,
	}
}

func (s *AccessoryService) Create(userID uint64, fields db.Accessory, gunIDs []uint64) (*db.Accessory, error) {
	model := fields
	model.ID = 0
	model.UserID = userID

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if res := tx.Create(&model); res.Error != nil {
			return errors.Wrap(res.Error, "create accessory")
		}
		return s.addLinks(tx, userID, model.ID, gunIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.Read(userID, model.ID)
}

func (s *AccessoryService) Read(userID, id uint64) (*db.Accessory, error) {
	model, err := s.load(s.db, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.attach(model); err != nil {
		return nil, err
	}
	return model, nil
}

// All lists the user's accessories ordered by type.
func (s *AccessoryService) All(userID uint64) ([]db.Accessory, error) {
	accessories := make([]db.Accessory, 0)
	res := s.db.Where("user_id = ?", userID).Order("type DESC").Find(&accessories)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "list accessories")
	}
	for i := range accessories {
		if err := s.attach(&accessories[i]); err != nil {
			return nil, err
		}
	}
	return accessories, nil
}

// Update replaces the scalar fields and the gun association set with
// the same full-replace contract history uses, in one transaction.
func (s *AccessoryService) Update(userID, id uint64, fields db.Accessory, gunIDs []uint64) (*db.Accessory, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		model, err := s.load(tx, userID, id)
		if err != nil {
			return err
		}

		model.Type = fields.Type
		model.SerialNumber = fields.SerialNumber
		model.ModelName = fields.ModelName
		model.Manufacturer = fields.Manufacturer
		model.MagazineCapacity = fields.MagazineCapacity
		model.Count = fields.Count
		model.Notes = fields.Notes
		model.Country = fields.Country
		model.StorageLocation = fields.StorageLocation
		model.PurchasedFrom = fields.PurchasedFrom
		model.PurchasePrice = fields.PurchasePrice
		model.PricePerItem = fields.PricePerItem
		model.PurchaseDate = fields.PurchaseDate
		model.ManufactureYear = fields.ManufactureYear
		if res := tx.Save(model); res.Error != nil {
			return errors.Wrap(res.Error, "update accessory")
		}

		if err := s.removeLinks(tx, id); err != nil {
			return err
		}
		return s.addLinks(tx, userID, id, gunIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.Read(userID, id)
}

func (s *AccessoryService) Delete(userID, id uint64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		model, err := s.load(tx, userID, id)
		if err != nil {
			return err
		}
		if err := s.removeLinks(tx, id); err != nil {
			return err
		}
		if res := tx.Delete(model); res.Error != nil {
			return errors.Wrap(res.Error, "delete accessory")
		}
		return nil
	})
}

func (s *AccessoryService) addLinks(tx *gorm.DB, userID, accessoryID uint64, gunIDs []uint64) error {
	for _, gunID := range gunIDs {
		gun := db.Gun{}
		res := tx.First(&gun, gunID)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrRecordNotFound) {
				continue
			}
			return errors.Wrap(res.Error, "load gun for link")
		}
		if gun.UserID != userID {
			return errors.Wrapf(ErrOwnershipDenied, "gun %d", gunID)
		}

		edge := db.AccessoryGun{
			AccessoryID: accessoryID,
			GunID:       gunID,
		}
		if res := tx.Create(&edge); res.Error != nil {
			return errors.Wrap(res.Error, "link gun")
		}
	}
	return nil
}

func (s *AccessoryService) removeLinks(tx *gorm.DB, accessoryID uint64) error {
	res := tx.Where("accessory_id = ?", accessoryID).Delete(&db.AccessoryGun{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "unlink guns")
	}
	return nil
}

func (s *AccessoryService) attach(model *db.Accessory) error {
	model.Guns = make([]db.Gun, 0)

	edges := make([]db.AccessoryGun, 0)
	if res := s.db.Where("accessory_id = ?", model.ID).Find(&edges); res.Error != nil {
		return errors.Wrap(res.Error, "load gun links")
	}
	if len(edges) == 0 {
		return nil
	}

	gunIDs := make([]uint64, len(edges))
	for i, edge := range edges {
		gunIDs[i] = edge.GunID
	}
	if res := s.db.Where("id IN ?", gunIDs).Order("name").Find(&model.Guns); res.Error != nil {
		return errors.Wrap(res.Error, "load linked guns")
	}
	return nil
}

func (s *AccessoryService) load(tx *gorm.DB, userID, id uint64) (*db.Accessory, error) {
	model := db.Accessory{}
	res := tx.First(&model, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "accessory %d", id)
		}
		return nil, errors.Wrap(res.Error, "load accessory")
	}
	if model.UserID != userID {
		return nil, errors.Wrapf(ErrOwnershipDenied, "accessory %d", id)
	}
	return &model, nil
}
