package service

import (
	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Stone-Creek-Software/armory-back/internal/db"
)

type (
	// HistoryLinks is the requested association set for a history
	// event. Round counts are keyed by gun/inventory id; ids without an
	// entry get a zero-count edge.
	HistoryLinks struct {
		GunIDs               []uint64
		InventoryIDs         []uint64
		GunRoundsFired       map[uint64]int
		InventoryRoundsFired map[uint64]int
	}

	HistoryService struct {
		db     *gorm.DB
		logger *zap.SugaredLogger
	}
)

func NewHistoryService(gormDB *gorm.DB, l *zap.SugaredLogger) *HistoryService {
	return &HistoryService{
		db:     gormDB,
		logger: l,
	}
}

func (s *HistoryService) Create(userID uint64, fields db.History, links HistoryLinks) (*db.History, error) {
	model := fields
	model.ID = 0
	model.UserID = userID

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if res := tx.Create(&model); res.Error != nil {
			return errors.Wrap(res.Error, "create history")
		}
		return s.addLinks(tx, userID, model.ID, links)
	})
	if err != nil {
		return nil, err
	}
	return s.Read(userID, model.ID)
}

func (s *HistoryService) Read(userID, id uint64) (*db.History, error) {
	model, err := s.load(s.db, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.attach(model); err != nil {
		return nil, err
	}
	return model, nil
}

// All lists the user's history events, newest event first.
func (s *HistoryService) All(userID uint64) ([]db.History, error) {
	return s.list(s.db.Where("user_id = ?", userID))
}

// RangeDays lists only the events that consume ammo inventory.
func (s *HistoryService) RangeDays(userID uint64) ([]db.History, error) {
	return s.list(s.db.Where("user_id = ? AND type = ?", userID, db.HistoryTypeRangeDay))
}

// ByGun lists every event linked to one of the user's guns.
func (s *HistoryService) ByGun(userID, gunID uint64) ([]db.History, error) {
	gun := db.Gun{}
	res := s.db.First(&gun, gunID)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "gun %d", gunID)
		}
		return nil, errors.Wrap(res.Error, "load gun")
	}
	if gun.UserID != userID {
		return nil, errors.Wrapf(ErrOwnershipDenied, "gun %d", gunID)
	}

	return s.listJoined("history_gun", "gun_id", gunID)
}

// ByInventory lists every event linked to one of the user's buckets.
func (s *HistoryService) ByInventory(userID, inventoryID uint64) ([]db.History, error) {
	inventory := db.AmmoInventory{}
	res := s.db.First(&inventory, inventoryID)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "inventory %d", inventoryID)
		}
		return nil, errors.Wrap(res.Error, "load inventory")
	}
	if inventory.UserID != userID {
		return nil, errors.Wrapf(ErrOwnershipDenied, "inventory %d", inventoryID)
	}

	return s.listJoined("history_inventory", "ammo_inventory_id", inventoryID)
}

// Update replaces the scalar fields and the full association set: every
// existing edge is removed, then every requested edge is added. Edge
// round counts survive only when resupplied in links. The whole
// sequence runs in one transaction, so a failed removal or a foreign
// id leaves nothing half-applied.
func (s *HistoryService) Update(userID, id uint64, fields db.History, links HistoryLinks) (*db.History, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		model, err := s.load(tx, userID, id)
		if err != nil {
			return err
		}

		model.Type = fields.Type
		model.Notes = fields.Notes
		model.Location = fields.Location
		model.EventDate = fields.EventDate
		if res := tx.Save(model); res.Error != nil {
			return errors.Wrap(res.Error, "update history")
		}

		if err := s.removeLinks(tx, id); err != nil {
			return err
		}
		return s.addLinks(tx, userID, id, links)
	})
	if err != nil {
		return nil, err
	}
	return s.Read(userID, id)
}

func (s *HistoryService) Delete(userID, id uint64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		model, err := s.load(tx, userID, id)
		if err != nil {
			return err
		}
		if err := s.removeLinks(tx, id); err != nil {
			return err
		}
		if res := tx.Delete(model); res.Error != nil {
			return errors.Wrap(res.Error, "delete history")
		}
		return nil
	})
}

func (s *HistoryService) addLinks(tx *gorm.DB, userID, historyID uint64, links HistoryLinks) error {
	for _, gunID := range links.GunIDs {
		gun := db.Gun{}
		res := tx.First(&gun, gunID)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrRecordNotFound) {
				// Unknown ids are skipped rather than failing the event.
				continue
			}
			return errors.Wrap(res.Error, "load gun for link")
		}
		if gun.UserID != userID {
			return errors.Wrapf(ErrOwnershipDenied, "gun %d", gunID)
		}

		edge := db.HistoryGun{
			HistoryID:  historyID,
			GunID:      gunID,
			RoundCount: links.GunRoundsFired[gunID],
		}
		if res := tx.Create(&edge); res.Error != nil {
			return errors.Wrap(res.Error, "link gun")
		}
	}

	for _, inventoryID := range links.InventoryIDs {
		inventory := db.AmmoInventory{}
		res := tx.First(&inventory, inventoryID)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrRecordNotFound) {
				continue
			}
			return errors.Wrap(res.Error, "load inventory for link")
		}
		if inventory.UserID != userID {
			return errors.Wrapf(ErrOwnershipDenied, "inventory %d", inventoryID)
		}

		edge := db.HistoryInventory{
			HistoryID:       historyID,
			AmmoInventoryID: inventoryID,
			RoundCount:      links.InventoryRoundsFired[inventoryID],
		}
		if res := tx.Create(&edge); res.Error != nil {
			return errors.Wrap(res.Error, "link inventory")
		}
	}

	return nil
}

func (s *HistoryService) removeLinks(tx *gorm.DB, historyID uint64) error {
	edges := make([]db.HistoryInventory, 0)
	if res := tx.Where("history_id = ?", historyID).Find(&edges); res.Error != nil {
		return errors.Wrap(res.Error, "load inventory links")
	}
	for _, edge := range edges {
		res := tx.
			Where("history_id = ? AND ammo_inventory_id = ?", historyID, edge.AmmoInventoryID).
			Delete(&db.HistoryInventory{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "unlink inventory")
		}
		if res.RowsAffected == 0 {
			return errors.Errorf("failed to remove inventory link %d", edge.AmmoInventoryID)
		}
	}

	gunEdges := make([]db.HistoryGun, 0)
	if res := tx.Where("history_id = ?", historyID).Find(&gunEdges); res.Error != nil {
		return errors.Wrap(res.Error, "load gun links")
	}
	for _, edge := range gunEdges {
		res := tx.
			Where("history_id = ? AND gun_id = ?", historyID, edge.GunID).
			Delete(&db.HistoryGun{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "unlink gun")
		}
		if res.RowsAffected == 0 {
			return errors.Errorf("failed to remove gun link %d", edge.GunID)
		}
	}

	return nil
}

// attach loads the association collections and their edge metadata.
func (s *HistoryService) attach(model *db.History) error {
	model.Guns = make([]db.Gun, 0)
	model.Inventories = make([]db.AmmoInventory, 0)
	model.GunRoundsFired = make(map[uint64]int)
	model.InventoryRoundsFired = make(map[uint64]int)

	gunEdges := make([]db.HistoryGun, 0)
	if res := s.db.Where("history_id = ?", model.ID).Find(&gunEdges); res.Error != nil {
		return errors.Wrap(res.Error, "load gun links")
	}
	if len(gunEdges) > 0 {
		gunIDs := make([]uint64, len(gunEdges))
		for i, edge := range gunEdges {
			gunIDs[i] = edge.GunID
			model.GunRoundsFired[edge.GunID] = edge.RoundCount
		}
		if res := s.db.Where("id IN ?", gunIDs).Order("name").Find(&model.Guns); res.Error != nil {
			return errors.Wrap(res.Error, "load linked guns")
		}
	}

	inventoryEdges := make([]db.HistoryInventory, 0)
	if res := s.db.Where("history_id = ?", model.ID).Find(&inventoryEdges); res.Error != nil {
		return errors.Wrap(res.Error, "load inventory links")
	}
	if len(inventoryEdges) > 0 {
		inventoryIDs := make([]uint64, len(inventoryEdges))
		for i, edge := range inventoryEdges {
			inventoryIDs[i] = edge.AmmoInventoryID
			model.InventoryRoundsFired[edge.AmmoInventoryID] = edge.RoundCount
		}
		res := s.db.Where("id IN ?", inventoryIDs).Order("caliber DESC").Find(&model.Inventories)
		if res.Error != nil {
			return errors.Wrap(res.Error, "load linked inventories")
		}
		// Embedded buckets carry the same derived counts as the
		// inventory endpoints.
		for i := range model.Inventories {
			if err := hydrateInventory(s.db, &model.Inventories[i]); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *HistoryService) list(query *gorm.DB) ([]db.History, error) {
	histories := make([]db.History, 0)
	res := query.Order("event_date DESC").Find(&histories)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "list history")
	}
	for i := range histories {
		if err := s.attach(&histories[i]); err != nil {
			return nil, err
		}
	}
	return histories, nil
}

func (s *HistoryService) listJoined(joinTable, joinColumn string, id uint64) ([]db.History, error) {
	sql, args, err := squirrel.
		Select("h.id").From("history h").
		Join(joinTable + " j ON h.id = j.history_id").
		Where(squirrel.Eq{"j." + joinColumn: id, "h.deleted_at": nil}).
		OrderBy("h.event_date DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build history join sql")
	}

	ids := make([]uint64, 0)
	if res := s.db.Raw(sql, args...).Scan(&ids); res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan history ids")
	}
	if len(ids) == 0 {
		return []db.History{}, nil
	}

	return s.list(s.db.Where("id IN ?", ids))
}

func (s *HistoryService) load(tx *gorm.DB, userID, id uint64) (*db.History, error) {
	model := db.History{}
	res := tx.First(&model, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "history %d", id)
		}
		return nil, errors.Wrap(res.Error, "load history")
	}
	if model.UserID != userID {
		return nil, errors.Wrapf(ErrOwnershipDenied, "history %d", id)
	}
	return &model, nil
}
