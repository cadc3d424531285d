package service

import (
	"go.uber.org/fx"
)

var (
	Module = fx.Provide(
		NewLoginService,
		NewUserService,
		NewProfileService,
		NewGunService,
		NewAmmoService,
		NewAmmoInventoryService,
		NewInventoryService,
		NewHistoryService,
		NewAccessoryService,
		NewDashboardService,
	)
)
