package service

import (
	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Stone-Creek-Software/armory-back/internal/db"
)

type (
	// DashboardData is the read-only summary for one user's armory.
	DashboardData struct {
		AmmoBreakdown        map[string]int `json:"ammoBreakdown"`
		GunBreakdown         map[string]int `json:"gunBreakdown"`
		GunCount             int            `json:"gunCount"`
		RifleCount           int            `json:"rifleCount"`
		PistolCount          int            `json:"pistolCount"`
		ShotgunCount         int            `json:"shotgunCount"`
		AmmoPurchasesCount   int            `json:"ammoPurchasesCount"`
		AccessoryCount       int            `json:"accessoryCount"`
		TotalRoundsPurchased int            `json:"totalRoundsPurchased"`
		TotalGunCost         float64        `json:"totalGunCost"`
		TotalAmmoCost        float64        `json:"totalAmmoCost"`
		TotalAccessoryCost   float64        `json:"totalAccessoryCost"`
		TotalInvestment      float64        `json:"totalInvestment"`
		TotalRoundsShot      int            `json:"totalRoundsShot"`
		TotalAmmoInStock     int            `json:"totalAmmoInStock"`
	}

	DashboardService struct {
		db          *gorm.DB
		logger      *zap.SugaredLogger
		inventories *AmmoInventoryService
	}
)

func NewDashboardService(gormDB *gorm.DB, l *zap.SugaredLogger, inventories *AmmoInventoryService) *DashboardService {
	return &DashboardService{
		db:          gormDB,
		logger:      l,
		inventories: inventories,
	}
}

// Data aggregates the user's whole collection. An unknown user id is a
// NotFound error; an existing user with nothing recorded gets zeroed
// aggregates.
func (s *DashboardService) Data(userID uint64) (*DashboardData, error) {
	var userCount int64
	if res := s.db.Model(&db.User{}).Where("id = ?", userID).Count(&userCount); res.Error != nil {
		return nil, errors.Wrap(res.Error, "check user")
	}
	if userCount == 0 {
		return nil, errors.Wrapf(ErrNotFound, "user %d", userID)
	}

	data := DashboardData{
		AmmoBreakdown: make(map[string]int),
		GunBreakdown:  make(map[string]int),
	}

	inventories, err := s.inventories.All(userID)
	if err != nil {
		return nil, err
	}
	for _, inventory := range inventories {
		data.AmmoBreakdown[inventory.Caliber] += inventory.Count
		data.TotalAmmoInStock += inventory.Count
	}

	guns := make([]db.Gun, 0)
	if res := s.db.Where("user_id = ?", userID).Find(&guns); res.Error != nil {
		return nil, errors.Wrap(res.Error, "list guns")
	}
	data.GunCount = len(guns)
	for _, gun := range guns {
		if gun.Caliber != "" {
			data.GunBreakdown[gun.Caliber]++
		}
		switch gun.Type {
		case "Rifle":
			data.RifleCount++
		case "Pistol":
			data.PistolCount++
		case "Shotgun":
			data.ShotgunCount++
		}
		data.TotalGunCost += gun.PurchasePrice
	}

	ammo := make([]db.Ammo, 0)
	if res := s.db.Where("user_id = ?", userID).Find(&ammo); res.Error != nil {
		return nil, errors.Wrap(res.Error, "list ammo")
	}
	data.AmmoPurchasesCount = len(ammo)
	for _, purchase := range ammo {
		data.TotalAmmoCost += purchase.PurchasePrice
		data.TotalRoundsPurchased += purchase.RoundCount
	}

	accessories := make([]db.Accessory, 0)
	if res := s.db.Where("user_id = ?", userID).Find(&accessories); res.Error != nil {
		return nil, errors.Wrap(res.Error, "list accessories")
	}
	for _, accessory := range accessories {
		data.AccessoryCount += accessory.Count
		data.TotalAccessoryCost += accessory.PurchasePrice
	}

	shot, err := s.totalRoundsShot(userID)
	if err != nil {
		return nil, err
	}
	data.TotalRoundsShot = shot

	data.TotalInvestment = data.TotalGunCost + data.TotalAmmoCost + data.TotalAccessoryCost
	return &data, nil
}

func (s *DashboardService) totalRoundsShot(userID uint64) (int, error) {
	sql, args, err := squirrel.
		Select("COALESCE(SUM(hi.round_count), 0) AS total").
		From("history_inventory hi").
		Join("history h ON h.id = hi.history_id").
		Where(squirrel.Eq{
			"h.user_id":    userID,
			"h.type":       db.HistoryTypeRangeDay,
			"h.deleted_at": nil,
		}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "build rounds shot sql")
	}

	row := struct {
		Total int
	}{}
	if res := s.db.Raw(sql, args...).Scan(&row); res.Error != nil {
		return 0, errors.Wrap(res.Error, "scan rounds shot")
	}
	return row.Total, nil
}
