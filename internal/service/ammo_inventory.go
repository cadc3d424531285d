package service

import (
	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Stone-Creek-Software/armory-back/internal/db"
)

type AmmoInventoryService struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewAmmoInventoryService(gormDB *gorm.DB, l *zap.SugaredLogger) *AmmoInventoryService {
	return &AmmoInventoryService{
		db:     gormDB,
		logger: l,
	}
}

func (s *AmmoInventoryService) Create(userID uint64, fields db.AmmoInventory) (*db.AmmoInventory, error) {
	model := fields
	model.ID = 0
	model.UserID = userID

	res := s.db.Create(&model)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "create inventory")
	}
	if err := s.Hydrate(&model); err != nil {
		return nil, err
	}
	return &model, nil
}

func (s *AmmoInventoryService) Read(userID, id uint64) (*db.AmmoInventory, error) {
	model, err := s.load(userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.Hydrate(model); err != nil {
		return nil, err
	}
	return model, nil
}

// All lists the user's buckets ordered by caliber, with derived counts
// filled in.
func (s *AmmoInventoryService) All(userID uint64) ([]db.AmmoInventory, error) {
	inventories := make([]db.AmmoInventory, 0)
	res := s.db.Where("user_id = ?", userID).Order("caliber DESC").Find(&inventories)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "list inventory")
	}
	for i := range inventories {
		if err := s.Hydrate(&inventories[i]); err != nil {
			return nil, err
		}
	}
	return inventories, nil
}

// Update replaces the bucket key fields and goal. Count and the totals
// stay derived; they are never written.
func (s *AmmoInventoryService) Update(userID, id uint64, fields db.AmmoInventory) (*db.AmmoInventory, error) {
	model, err := s.load(userID, id)
	if err != nil {
		return nil, err
	}

	model.Caliber = fields.Caliber
	model.Brand = fields.Brand
	model.Name = fields.Name
	model.Goal = fields.Goal

	res := s.db.Save(model)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update inventory")
	}
	if err := s.Hydrate(model); err != nil {
		return nil, err
	}
	return model, nil
}

// Delete refuses to remove a bucket that still has purchases or usage
// history behind it, so consumption records are never orphaned.
func (s *AmmoInventoryService) Delete(userID, id uint64) error {
	model, err := s.load(userID, id)
	if err != nil {
		return err
	}
	if err := s.Hydrate(model); err != nil {
		return err
	}
	if model.TotalPurchased > 0 || model.TotalShot > 0 || model.Count > 0 {
		return errors.Wrapf(ErrConflict, "inventory %d still has history", id)
	}

	res := s.db.Delete(model)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete inventory")
	}
	return nil
}

// Hydrate computes the derived quantities for one bucket:
//
//	totalPurchased      sum of roundCount over live linked ammo
//	totalPurchasePrice  sum of purchasePrice over the same rows
//	totalShot           sum of edge roundCount over Range Day history
//	count               totalPurchased - totalShot (not clamped)
func (s *AmmoInventoryService) Hydrate(inventory *db.AmmoInventory) error {
	return hydrateInventory(s.db, inventory)
}

// hydrateInventory is shared with every read path that embeds buckets,
// so a bucket serializes with the same derived values everywhere.
func hydrateInventory(gormDB *gorm.DB, inventory *db.AmmoInventory) error {
	purchasedSQL, purchasedArgs, err := squirrel.
		Select(
			"COALESCE(SUM(round_count), 0) AS total_purchased",
			"COALESCE(SUM(purchase_price), 0) AS total_purchase_price",
		).
		From("ammo").
		Where(squirrel.Eq{"ammo_inventory_id": inventory.ID, "deleted_at": nil}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "build purchased sql")
	}

	purchased := struct {
		TotalPurchased     int
		TotalPurchasePrice float64
	}{}
	if res := gormDB.Raw(purchasedSQL, purchasedArgs...).Scan(&purchased); res.Error != nil {
		return errors.Wrap(res.Error, "scan purchased totals")
	}

	shotSQL, shotArgs, err := squirrel.
		Select("COALESCE(SUM(hi.round_count), 0) AS total_shot").
		From("history_inventory hi").
		Join("history h ON h.id = hi.history_id").
		Where(squirrel.Eq{
			"hi.ammo_inventory_id": inventory.ID,
			"h.type":               db.HistoryTypeRangeDay,
			"h.deleted_at":         nil,
		}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "build shot sql")
	}

	shot := struct {
		TotalShot int
	}{}
	if res := gormDB.Raw(shotSQL, shotArgs...).Scan(&shot); res.Error != nil {
		return errors.Wrap(res.Error, "scan shot total")
	}

	inventory.TotalPurchased = purchased.TotalPurchased
	inventory.TotalPurchasePrice = purchased.TotalPurchasePrice
	inventory.TotalShot = shot.TotalShot
	inventory.Count = inventory.TotalPurchased - inventory.TotalShot
	return nil
}

func (s *AmmoInventoryService) load(userID, id uint64) (*db.AmmoInventory, error) {
	model := db.AmmoInventory{}
	res := s.db.First(&model, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "inventory %d", id)
		}
		return nil, errors.Wrap(res.Error, "load inventory")
	}
	if model.UserID != userID {
		return nil, errors.Wrapf(ErrOwnershipDenied, "inventory %d", id)
	}
	return &model, nil
}
