package service

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Stone-Creek-Software/armory-back/internal/db"
)

type AmmoService struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewAmmoService(gormDB *gorm.DB, l *zap.SugaredLogger) *AmmoService {
	return &AmmoService{
		db:     gormDB,
		logger: l,
	}
}

// Create records an ammo purchase and files it into the inventory
// bucket matching (caliber, brand, name, userId), creating the bucket
// if it does not exist yet. Resolution and insert run in one
// transaction so a failed create never leaves an orphan bucket link.
func (s *AmmoService) Create(userID uint64, fields db.Ammo) (*db.Ammo, error) {
	model := fields
	model.ID = 0
	model.UserID = userID

	err := s.db.Transaction(func(tx *gorm.DB) error {
		inventory, err := resolveInventory(tx, userID, model.Caliber, model.Brand, model.Name)
		if err != nil {
			return err
		}
		model.AmmoInventoryID = inventory.ID

		if res := tx.Create(&model); res.Error != nil {
			return errors.Wrap(res.Error, "create ammo")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &model, nil
}

func (s *AmmoService) Read(userID, id uint64) (*db.Ammo, error) {
	return s.load(s.db, userID, id)
}

// Ammo lists every purchase the user owns, newest purchase first.
func (s *AmmoService) Ammo(userID uint64) ([]db.Ammo, error) {
	ammo := make([]db.Ammo, 0)
	res := s.db.Where("user_id = ?", userID).Order("purchase_date DESC").Find(&ammo)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "list ammo")
	}
	return ammo, nil
}

// Update replaces the full mutable field set and re-resolves the
// inventory bucket, so changing caliber/brand/name moves the purchase
// into the right bucket instead of duplicating one.
func (s *AmmoService) Update(userID, id uint64, fields db.Ammo) (*db.Ammo, error) {
	var model *db.Ammo
	err := s.db.Transaction(func(tx *gorm.DB) error {
		loaded, err := s.load(tx, userID, id)
		if err != nil {
			return err
		}
		model = loaded

		inventory, err := resolveInventory(tx, userID, fields.Caliber, fields.Brand, fields.Name)
		if err != nil {
			return err
		}

		model.Name = fields.Name
		model.Brand = fields.Brand
		model.Caliber = fields.Caliber
		model.Weight = fields.Weight
		model.BulletType = fields.BulletType
		model.MuzzleVelocity = fields.MuzzleVelocity
		model.PurchasedFrom = fields.PurchasedFrom
		model.PurchasePrice = fields.PurchasePrice
		model.PurchaseDate = fields.PurchaseDate
		model.RoundCount = fields.RoundCount
		model.PricePerRound = fields.PricePerRound
		model.AmmoInventoryID = inventory.ID

		if res := tx.Save(model); res.Error != nil {
			return errors.Wrap(res.Error, "update ammo")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return model, nil
}

func (s *AmmoService) Delete(userID, id uint64) error {
	model, err := s.load(s.db, userID, id)
	if err != nil {
		return err
	}
	res := s.db.Delete(model)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete ammo")
	}
	return nil
}

func (s *AmmoService) load(tx *gorm.DB, userID, id uint64) (*db.Ammo, error) {
	model := db.Ammo{}
	res := tx.First(&model, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "ammo %d", id)
		}
		return nil, errors.Wrap(res.Error, "load ammo")
	}
	if model.UserID != userID {
		return nil, errors.Wrapf(ErrOwnershipDenied, "ammo %d", id)
	}
	return &model, nil
}

// resolveInventory finds or creates the bucket for an ammo purchase.
// Repeated calls with the same key reuse the same row.
func resolveInventory(tx *gorm.DB, userID uint64, caliber, brand, name string) (*db.AmmoInventory, error) {
	inventory := db.AmmoInventory{}
	res := tx.
		Where("caliber = ? AND brand = ? AND name = ? AND user_id = ?", caliber, brand, name, userID).
		First(&inventory)
	if res.Error == nil {
		return &inventory, nil
	}
	if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(res.Error, "resolve inventory")
	}

	inventory = db.AmmoInventory{
		Caliber: caliber,
		Brand:   brand,
		Name:    name,
		UserID:  userID,
	}
	if res := tx.Create(&inventory); res.Error != nil {
		return nil, errors.Wrap(res.Error, "create inventory bucket")
	}
	return &inventory, nil
}
