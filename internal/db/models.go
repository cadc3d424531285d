package db

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"

	// HistoryTypeRangeDay is the only history type that consumes ammo
	// inventory. Cleaning and maintenance events do not.
	HistoryTypeRangeDay = "Range Day"
)

type (
	ArmoryModel struct {
		ID        uint64    `gorm:"primarykey" json:"id"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	User struct {
		ArmoryModel
		Email         string `gorm:"unique;not null" json:"email"`
		Name          string `gorm:"not null" json:"name"`
		Password      string `gorm:"not null" json:"-"`
		Role          string `gorm:"not null;default:USER" json:"role"`
		Enabled       bool   `gorm:"not null;default:true" json:"enabled"`
		TOTPKey       string `json:"-"`
		TOTPEnabled   bool   `json:"totpEnabled"`
		TOTPValidated bool   `json:"totpValidated"`

		Guns        []Gun           `json:"guns,omitempty"`
		Ammo        []Ammo          `json:"ammo,omitempty"`
		Inventories []AmmoInventory `json:"inventories,omitempty"`
		Histories   []History       `json:"histories,omitempty"`
		Accessories []Accessory     `json:"accessories,omitempty"`
		AuthTokens  []AuthToken     `json:"-"`
	}

	Gun struct {
		ArmoryModel
		DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
		Name          string         `json:"name"`
		SerialNumber  string         `gorm:"index" json:"serialNumber"`
		ModelName     string         `json:"modelName"`
		Manufacturer  string         `json:"manufacturer"`
		Caliber       string         `json:"caliber"`
		Type          string         `json:"type"`
		Action        string         `json:"action"`
		Dealer        string         `json:"dealer"`
		FFL           string         `json:"ffl"`
		PurchasePrice float64        `json:"purchasePrice"`
		PurchaseDate  *time.Time     `json:"purchaseDate"`
		Buyer         string         `json:"buyer"`
		SalePrice     float64        `json:"salePrice"`
		SaleDate      *time.Time     `json:"saleDate"`
		Rating        int            `json:"rating"`
		Notes         string         `json:"notes"`
		FrontImage    string         `json:"-"`
		BackImage     string         `json:"-"`
		SerialImage   string         `json:"-"`
		UserID        uint64         `gorm:"not null;index" json:"userId"`
		User          User           `json:"-"`
	}

	Ammo struct {
		ArmoryModel
		DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
		Name            string         `json:"name"`
		Brand           string         `json:"brand"`
		Caliber         string         `json:"caliber"`
		Weight          string         `json:"weight"`
		BulletType      string         `json:"bulletType"`
		MuzzleVelocity  string         `json:"muzzleVelocity"`
		PurchasedFrom   string         `json:"purchasedFrom"`
		PurchasePrice   float64        `json:"purchasePrice"`
		PurchaseDate    *time.Time     `json:"purchaseDate"`
		RoundCount      int            `json:"roundCount"`
		PricePerRound   float64        `json:"pricePerRound"`
		UserID          uint64         `gorm:"not null;index" json:"userId"`
		User            User           `json:"-"`
		AmmoInventoryID uint64         `gorm:"not null;index" json:"ammoInventoryId"`
	}

	// AmmoInventory is a logical bucket of ammo purchases keyed by
	// (caliber, brand, name, userId). Count and the totals are derived
	// from linked Ammo rows and Range Day history edges; they are never
	// stored.
	AmmoInventory struct {
		ArmoryModel
		DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
		Caliber   string         `gorm:"not null;index:idx_inventory_lookup" json:"caliber"`
		Brand     string         `gorm:"not null;index:idx_inventory_lookup" json:"brand"`
		Name      string         `gorm:"not null;index:idx_inventory_lookup" json:"name"`
		Goal      int            `json:"goal"`
		UserID    uint64         `gorm:"not null;index:idx_inventory_lookup" json:"userId"`
		User      User           `json:"-"`

		TotalPurchased     int     `gorm:"-" json:"totalPurchased"`
		TotalPurchasePrice float64 `gorm:"-" json:"totalPurchasePrice"`
		TotalShot          int     `gorm:"-" json:"totalShot"`
		Count              int     `gorm:"-" json:"count"`
	}

	// Inventory is a free-form stocked item (cleaning supplies, targets,
	// reloading components) tracked by hand, unlike AmmoInventory whose
	// counts are derived.
	Inventory struct {
		ArmoryModel
		DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
		Name      string         `json:"name"`
		Type      string         `json:"type"`
		Count     int            `json:"count"`
		Goal      int            `json:"goal"`
		UserID    uint64         `gorm:"not null;index" json:"userId"`
		User      User           `json:"-"`
	}

	History struct {
		ArmoryModel
		DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
		Type      string         `json:"type"`
		Notes     string         `json:"notes"`
		Location  string         `json:"location"`
		EventDate *time.Time     `json:"eventDate"`
		UserID    uint64         `gorm:"not null;index" json:"userId"`
		User      User           `json:"-"`

		// Associations and their edge metadata, loaded by the service on
		// read. Join rows are managed explicitly, not through gorm's
		// association mode, so that per-edge round counts stay under our
		// control.
		Guns                 []Gun           `gorm:"-" json:"guns"`
		Inventories          []AmmoInventory `gorm:"-" json:"inventories"`
		GunRoundsFired       map[uint64]int  `gorm:"-" json:"gunRoundsFired"`
		InventoryRoundsFired map[uint64]int  `gorm:"-" json:"inventoryRoundsFired"`
	}

	Accessory struct {
		ArmoryModel
		DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
		Type             string         `json:"type"`
		SerialNumber     string         `json:"serialNumber"`
		ModelName        string         `json:"modelName"`
		Manufacturer     string         `json:"manufacturer"`
		MagazineCapacity int            `json:"magazineCapacity"`
		Count            int            `json:"count"`
		Notes            string         `json:"notes"`
		Country          string         `json:"country"`
		StorageLocation  string         `json:"storageLocation"`
		PurchasedFrom    string         `json:"purchasedFrom"`
		PurchasePrice    float64        `json:"purchasePrice"`
		PricePerItem     float64        `json:"pricePerItem"`
		PurchaseDate     *time.Time     `json:"purchaseDate"`
		ManufactureYear  string         `json:"manufactureYear"`
		UserID           uint64         `gorm:"not null;index" json:"userId"`
		User             User           `json:"-"`

		Guns []Gun `gorm:"-" json:"guns"`
	}

	// AuthToken is a persistent "remember me" credential in
	// selector:validator form. Only the validator hash is stored; the
	// row is replaced on every successful use.
	AuthToken struct {
		ArmoryModel
		Selector        string    `gorm:"index;not null" json:"-"`
		HashedValidator string    `gorm:"not null" json:"-"`
		Expires         time.Time `json:"-"`
		UserID          uint64    `gorm:"not null;index" json:"-"`
		User            User      `json:"-"`
	}

	// HistoryGun links a history event to a gun, with the rounds fired
	// from that gun during the event on the edge itself.
	HistoryGun struct {
		HistoryID  uint64 `gorm:"primaryKey;autoIncrement:false"`
		GunID      uint64 `gorm:"primaryKey;autoIncrement:false"`
		RoundCount int
	}

	// HistoryInventory links a history event to an inventory bucket,
	// with the rounds consumed from that bucket on the edge.
	HistoryInventory struct {
		HistoryID       uint64 `gorm:"primaryKey;autoIncrement:false"`
		AmmoInventoryID uint64 `gorm:"primaryKey;autoIncrement:false"`
		RoundCount      int
	}

	AccessoryGun struct {
		AccessoryID uint64 `gorm:"primaryKey;autoIncrement:false"`
		GunID       uint64 `gorm:"primaryKey;autoIncrement:false"`
	}
)

func (HistoryGun) TableName() string       { return "history_gun" }
func (HistoryInventory) TableName() string { return "history_inventory" }
func (AccessoryGun) TableName() string     { return "accessory_gun" }
func (AmmoInventory) TableName() string    { return "ammo_inventory" }
func (Inventory) TableName() string        { return "inventory" }
func (History) TableName() string          { return "history" }
func (Ammo) TableName() string             { return "ammo" }

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
