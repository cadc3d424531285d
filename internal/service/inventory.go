package service

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Stone-Creek-Software/armory-back/internal/db"
)

// InventoryService manages free-form stocked items. Counts here are
// entered by hand; derived ammo buckets live in AmmoInventoryService.
type InventoryService struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewInventoryService(gormDB *gorm.DB, l *zap.SugaredLogger) *InventoryService {
	return &InventoryService{
		db:     gormDB,
		logger: l,
	}
}

func (s *InventoryService) Create(userID uint64, fields db.Inventory) (*db.Inventory, error) {
	model := fields
	model.ID = 0
	model.UserID = userID

	res := s.db.Create(&model)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "create inventory item")
	}
	return &model, nil
}

func (s *InventoryService) Read(userID, id uint64) (*db.Inventory, error) {
	return s.load(userID, id)
}

// All lists the user's items ordered by name, descending.
func (s *InventoryService) All(userID uint64) ([]db.Inventory, error) {
	items := make([]db.Inventory, 0)
	res := s.db.Where("user_id = ?", userID).Order("name DESC").Find(&items)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "list inventory items")
	}
	return items, nil
}

func (s *InventoryService) Update(userID, id uint64, fields db.Inventory) (*db.Inventory, error) {
	model, err := s.load(userID, id)
	if err != nil {
		return nil, err
	}

	model.Name = fields.Name
	model.Type = fields.Type
	model.Count = fields.Count
	model.Goal = fields.Goal

	res := s.db.Save(model)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update inventory item")
	}
	return model, nil
}

func (s *InventoryService) Delete(userID, id uint64) error {
	model, err := s.load(userID, id)
	if err != nil {
		return err
	}
	res := s.db.Delete(model)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete inventory item")
	}
	return nil
}

func (s *InventoryService) load(userID, id uint64) (*db.Inventory, error) {
	model := db.Inventory{}
	res := s.db.First(&model, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "inventory item %d", id)
		}
		return nil, errors.Wrap(res.Error, "load inventory item")
	}
	if model.UserID != userID {
		return nil, errors.Wrapf(ErrOwnershipDenied, "inventory item %d", id)
	}
	return &model, nil
}
