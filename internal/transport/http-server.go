package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Stone-Creek-Software/armory-back/internal/auth"
	"github.com/Stone-Creek-Software/armory-back/internal/config"
	"github.com/Stone-Creek-Software/armory-back/internal/db"
	"github.com/Stone-Creek-Software/armory-back/internal/service"
)

type (
	LoginReq struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	RememberReq struct {
		Token string `json:"token" validate:"required"`
	}

	TotpValidateReq struct {
		Code       string `json:"code" validate:"required"`
		RememberMe bool   `json:"rememberMe"`
	}

	TotpEnableReq struct {
		Enabled bool `json:"enabled"`
	}

	ProfileReq struct {
		Email string `json:"email" validate:"required,email"`
		Name  string `json:"name" validate:"required"`
	}

	PasswordReq struct {
		Password string `json:"password" validate:"required"`
	}

	AdminUserReq struct {
		Email   string `json:"email" validate:"required,email"`
		Name    string `json:"name" validate:"required"`
		Role    string `json:"role"`
		Enabled bool   `json:"enabled"`
		// Honored on create only; updates go through the password route.
		Password string `json:"password"`
	}

	HistoryReq struct {
		Type                 string         `json:"type"`
		Notes                string         `json:"notes"`
		Location             string         `json:"location"`
		EventDate            *time.Time     `json:"eventDate"`
		GunIDs               []uint64       `json:"gunIds"`
		InventoryIDs         []uint64       `json:"inventoryIds"`
		GunRoundsFired       map[uint64]int `json:"gunRoundsFired"`
		InventoryRoundsFired map[uint64]int `json:"inventoryRoundsFired"`
	}

	AccessoryReq struct {
		db.Accessory
		GunIDs []uint64 `json:"gunIds"`
	}

	GunImagesReq struct {
		FrontImage  string `json:"frontImage"`
		BackImage   string `json:"backImage"`
		SerialImage string `json:"serialImage"`
	}

	GunImageResp struct {
		Image string `json:"image"`
	}

	TotpRefreshResp struct {
		User *db.User `json:"user"`
		URL  string   `json:"url"`
	}

	LoginResp struct {
		Token         string   `json:"token,omitempty"`
		User          *db.User `json:"user"`
		TotpRequired  bool     `json:"totpRequired"`
		RememberToken string   `json:"rememberToken,omitempty"`
	}

	ErrorResp struct {
		Error string `json:"error"`
	}

	CustomValidator struct {
		validator *validator.Validate
	}

	HTTPServer struct {
		logger          *zap.SugaredLogger
		tokens          *auth.TokenManager
		login           *service.LoginService
		users           *service.UserService
		profile         *service.ProfileService
		guns            *service.GunService
		ammo            *service.AmmoService
		ammoInventories *service.AmmoInventoryService
		inventories     *service.InventoryService
		histories       *service.HistoryService
		accessories     *service.AccessoryService
		dashboard       *service.DashboardService
	}
)

func NewHTTPServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	logger *zap.SugaredLogger,
	tokens *auth.TokenManager,
	login *service.LoginService,
	users *service.UserService,
	profile *service.ProfileService,
	guns *service.GunService,
	ammo *service.AmmoService,
	ammoInventories *service.AmmoInventoryService,
	inventories *service.InventoryService,
	histories *service.HistoryService,
	accessories *service.AccessoryService,
	dashboard *service.DashboardService,
) *HTTPServer {
	instance := HTTPServer{
		logger:          logger,
		tokens:          tokens,
		login:           login,
		users:           users,
		profile:         profile,
		guns:            guns,
		ammo:            ammo,
		ammoInventories: ammoInventories,
		inventories:     inventories,
		histories:       histories,
		accessories:     accessories,
		dashboard:       dashboard,
	}

	e := instance.BuildEcho()

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				listen := cfg.Host + ":" + cfg.Port
				if err := e.Start(listen); err != nil && err != http.ErrServerClosed {
					e.Logger.Fatal("shutting down the server")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server.")
			return e.Shutdown(ctx)
		},
	})

	return &instance
}

// BuildEcho wires routes and middleware. Split out of the constructor
// so the HTTP tests can drive the handler without an fx app.
func (s *HTTPServer) BuildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.POST("/login", s.Login)
	e.POST("/login/remember", s.LoginRemember)
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	profileG := e.Group("/api/profile")
	profileG.GET("", s.ProfileGet)
	profileG.PUT("", s.ProfileUpdate)
	profileG.PUT("/password", s.ProfilePassword)
	profileG.POST("/totp", s.TotpRefresh)
	profileG.PUT("/totp", s.TotpEnable)
	profileG.POST("/totp/validate", s.TotpValidate)

	gunG := e.Group("/api/guns")
	gunG.GET("", s.GunList)
	gunG.POST("", s.GunCreate)
	gunG.GET("/:id", s.GunGet)
	gunG.PUT("/:id", s.GunUpdate)
	gunG.DELETE("/:id", s.GunDelete)
	gunG.GET("/:id/images/:type", s.GunImageGet)
	gunG.PUT("/:id/images", s.GunImagesUpdate)
	gunG.GET("/:id/history", s.HistoryByGun)

	ammoG := e.Group("/api/ammo")
	ammoG.GET("", s.AmmoList)
	ammoG.POST("", s.AmmoCreate)
	ammoG.GET("/:id", s.AmmoGet)
	ammoG.PUT("/:id", s.AmmoUpdate)
	ammoG.DELETE("/:id", s.AmmoDelete)

	ammoInventoryG := e.Group("/api/ammoinventory")
	ammoInventoryG.GET("", s.AmmoInventoryList)
	ammoInventoryG.POST("", s.AmmoInventoryCreate)
	ammoInventoryG.GET("/:id", s.AmmoInventoryGet)
	ammoInventoryG.PUT("/:id", s.AmmoInventoryUpdate)
	ammoInventoryG.DELETE("/:id", s.AmmoInventoryDelete)
	ammoInventoryG.GET("/:id/history", s.HistoryByInventory)

	inventoryG := e.Group("/api/inventory")
	inventoryG.GET("", s.InventoryList)
	inventoryG.POST("", s.InventoryCreate)
	inventoryG.GET("/:id", s.InventoryGet)
	inventoryG.PUT("/:id", s.InventoryUpdate)
	inventoryG.DELETE("/:id", s.InventoryDelete)

	historyG := e.Group("/api/history")
	historyG.GET("", s.HistoryList)
	historyG.GET("/rangedays", s.HistoryRangeDays)
	historyG.POST("", s.HistoryCreate)
	historyG.GET("/:id", s.HistoryGet)
	historyG.PUT("/:id", s.HistoryUpdate)
	historyG.DELETE("/:id", s.HistoryDelete)

	accessoryG := e.Group("/api/accessories")
	accessoryG.GET("", s.AccessoryList)
	accessoryG.POST("", s.AccessoryCreate)
	accessoryG.GET("/:id", s.AccessoryGet)
	accessoryG.PUT("/:id", s.AccessoryUpdate)
	accessoryG.DELETE("/:id", s.AccessoryDelete)

	e.GET("/api/dashboard", s.Dashboard)

	adminG := e.Group("/api/admin/users", s.AdminMiddleware)
	adminG.GET("", s.UserList)
	adminG.POST("", s.UserCreate)
	adminG.GET("/:id", s.UserGet)
	adminG.PUT("/:id", s.UserUpdate)
	adminG.PUT("/:id/password", s.UserPassword)
	adminG.DELETE("/:id", s.UserDelete)

	e.Use(middleware.CORS())
	e.Use(middleware.BodyDump(func(c echo.Context, reqBody, resBody []byte) {
		if len(reqBody) > 0 {
			s.logger.Debugw("request",
				"method", c.Request().Method,
				"path", c.Path(),
				"body", string(censorBody(reqBody)),
			)
		}
	}))
	e.Use(middleware.Recover())

	e.Use(s.AuthMiddleware)

	e.Validator = &CustomValidator{validator: validator.New()}

	echo.NotFoundHandler = func(c echo.Context) error {
		return c.NoContent(http.StatusNotFound)
	}

	return e
}

////////

func (s *HTTPServer) Login(c echo.Context) error {
	req := LoginReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	user, token, err := s.login.Login(req.Email, req.Password)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(http.StatusOK, LoginResp{
		Token:        token,
		User:         user,
		TotpRequired: user.TOTPEnabled,
	})
}

func (s *HTTPServer) LoginRemember(c echo.Context) error {
	req := RememberReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	user, token, next, err := s.login.RedeemRememberToken(req.Token)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(http.StatusOK, LoginResp{
		Token:         token,
		User:          user,
		RememberToken: next,
	})
}

////////

func (s *HTTPServer) ProfileGet(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (s *HTTPServer) ProfileUpdate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := ProfileReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	updated, err := s.profile.Update(user.ID, req.Email, req.Name)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *HTTPServer) ProfilePassword(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := PasswordReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	if err := s.profile.UpdatePassword(user.ID, req.Password); err != nil {
		return s.respondError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *HTTPServer) TotpRefresh(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	updated, url, err := s.profile.RefreshTotp(user.ID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, TotpRefreshResp{User: updated, URL: url})
}

func (s *HTTPServer) TotpEnable(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := TotpEnableReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	updated, err := s.profile.EnableTotp(user.ID, req.Enabled)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *HTTPServer) TotpValidate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := TotpValidateReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	updated, err := s.profile.ValidateTotp(user.ID, req.Code)
	if err != nil {
		return s.respondError(c, err)
	}

	resp := LoginResp{User: updated}
	if req.RememberMe {
		remember, err := s.login.CreateRememberToken(user.ID)
		if err != nil {
			return s.respondError(c, err)
		}
		resp.RememberToken = remember
	}
	return c.JSON(http.StatusOK, resp)
}

////////

func (s *HTTPServer) GunList(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	guns, err := s.guns.Guns(user.ID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, guns)
}

func (s *HTTPServer) GunCreate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := db.Gun{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	gun, err := s.guns.Create(user.ID, req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, gun)
}

func (s *HTTPServer) GunGet(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}
	gun, err := s.guns.Read(user.ID, id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, gun)
}

func (s *HTTPServer) GunUpdate(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}

	req := db.Gun{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	gun, err := s.guns.Update(user.ID, id, req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, gun)
}

func (s *HTTPServer) GunDelete(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}
	if err := s.guns.Delete(user.ID, id); err != nil {
		return s.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) GunImageGet(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}
	image, err := s.guns.ReadImage(user.ID, id, c.Param("type"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, GunImageResp{Image: image})
}

func (s *HTTPServer) GunImagesUpdate(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}

	req := GunImagesReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	gun, err := s.guns.UpdateImages(user.ID, id, req.FrontImage, req.BackImage, req.SerialImage)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, gun)
}

////////

func (s *HTTPServer) AmmoList(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	ammo, err := s.ammo.Ammo(user.ID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, ammo)
}

func (s *HTTPServer) AmmoCreate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := db.Ammo{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	created, err := s.ammo.Create(user.ID, req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, created)
}

func (s *HTTPServer) AmmoGet(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}
	ammo, err := s.ammo.Read(user.ID, id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, ammo)
}

func (s *HTTPServer) AmmoUpdate(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}

	req := db.Ammo{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	updated, err := s.ammo.Update(user.ID, id, req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *HTTPServer) AmmoDelete(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}
	if err := s.ammo.Delete(user.ID, id); err != nil {
		return s.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

////////

func (s *HTTPServer) AmmoInventoryList(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	inventories, err := s.ammoInventories.All(user.ID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, inventories)
}

func (s *HTTPServer) AmmoInventoryCreate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := db.AmmoInventory{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	created, err := s.ammoInventories.Create(user.ID, req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, created)
}

func (s *HTTPServer) AmmoInventoryGet(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}
	inventory, err := s.ammoInventories.Read(user.ID, id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, inventory)
}

func (s *HTTPServer) AmmoInventoryUpdate(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}

	req := db.AmmoInventory{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	updated, err := s.ammoInventories.Update(user.ID, id, req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *HTTPServer) AmmoInventoryDelete(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}
	if err := s.ammoInventories.Delete(user.ID, id); err != nil {
		return s.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

////////

func (s *HTTPServer) InventoryList(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	items, err := s.inventories.All(user.ID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (s *HTTPServer) InventoryCreate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := db.Inventory{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	created, err := s.inventories.Create(user.ID, req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, created)
}

func (s *HTTPServer) InventoryGet(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}
	item, err := s.inventories.Read(user.ID, id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (s *HTTPServer) InventoryUpdate(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}

	req := db.Inventory{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	updated, err := s.inventories.Update(user.ID, id, req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *HTTPServer) InventoryDelete(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}
	if err := s.inventories.Delete(user.ID, id); err != nil {
		return s.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

////////

func (s *HTTPServer) HistoryList(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	histories, err := s.histories.All(user.ID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, histories)
}

func (s *HTTPServer) HistoryRangeDays(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	histories, err := s.histories.RangeDays(user.ID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, histories)
}

func (s *HTTPServer) HistoryByGun(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}
	histories, err := s.histories.ByGun(user.ID, id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, histories)
}

func (s *HTTPServer) HistoryByInventory(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}
	histories, err := s.histories.ByInventory(user.ID, id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, histories)
}

func (s *HTTPServer) HistoryCreate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := HistoryReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	history, err := s.histories.Create(user.ID, db.History{
		Type:      req.Type,
		Notes:     req.Notes,
		Location:  req.Location,
		EventDate: req.EventDate,
	}, service.HistoryLinks{
		GunIDs:               req.GunIDs,
		InventoryIDs:         req.InventoryIDs,
		GunRoundsFired:       req.GunRoundsFired,
		InventoryRoundsFired: req.InventoryRoundsFired,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, history)
}

func (s *HTTPServer) HistoryGet(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}
	history, err := s.histories.Read(user.ID, id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, history)
}

func (s *HTTPServer) HistoryUpdate(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}

	req := HistoryReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	history, err := s.histories.Update(user.ID, id, db.History{
		Type:      req.Type,
		Notes:     req.Notes,
		Location:  req.Location,
		EventDate: req.EventDate,
	}, service.HistoryLinks{
		GunIDs:               req.GunIDs,
		InventoryIDs:         req.InventoryIDs,
		GunRoundsFired:       req.GunRoundsFired,
		InventoryRoundsFired: req.InventoryRoundsFired,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, history)
}

func (s *HTTPServer) HistoryDelete(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}
	if err := s.histories.Delete(user.ID, id); err != nil {
		return s.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

////////

func (s *HTTPServer) AccessoryList(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	accessories, err := s.accessories.All(user.ID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, accessories)
}

func (s *HTTPServer) AccessoryCreate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := AccessoryReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	accessory, err := s.accessories.Create(user.ID, req.Accessory, req.GunIDs)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, accessory)
}

func (s *HTTPServer) AccessoryGet(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}
	accessory, err := s.accessories.Read(user.ID, id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, accessory)
}

func (s *HTTPServer) AccessoryUpdate(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}

	req := AccessoryReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	accessory, err := s.accessories.Update(user.ID, id, req.Accessory, req.GunIDs)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, accessory)
}

func (s *HTTPServer) AccessoryDelete(c echo.Context) error {
	user, id, err := userAndID(c)
	if err != nil {
		return err
	}
	if err := s.accessories.Delete(user.ID, id); err != nil {
		return s.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

////////

func (s *HTTPServer) Dashboard(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	data, err := s.dashboard.Data(user.ID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, data)
}

////////

func (s *HTTPServer) UserList(c echo.Context) error {
	users, err := s.users.Users()
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

func (s *HTTPServer) UserCreate(c echo.Context) error {
	req := AdminUserReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := s.users.Create(req.Email, req.Name, req.Password, req.Role, req.Enabled)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (s *HTTPServer) UserGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := s.users.Read(id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (s *HTTPServer) UserUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}

	req := AdminUserReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := s.users.Update(id, req.Email, req.Name, req.Role, req.Enabled)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (s *HTTPServer) UserPassword(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}

	req := PasswordReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	if err := s.users.UpdatePassword(id, req.Password); err != nil {
		return s.respondError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *HTTPServer) UserDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.users.Delete(id); err != nil {
		return s.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

////////

func (s *HTTPServer) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		switch c.Path() {
		case "/login", "/login/remember", "/ping":
			return next(c)
		}

		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return c.NoContent(http.StatusUnauthorized)
		}

		claims, err := s.tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return c.NoContent(http.StatusUnauthorized)
		}

		user, err := s.profile.Read(claims.UserID)
		if err != nil || !user.Enabled {
			return c.NoContent(http.StatusUnauthorized)
		}

		c.Set("user", user)
		return next(c)
	}
}

// AdminMiddleware runs behind AuthMiddleware: the principal is already
// authenticated, so a non-admin gets 403, never 401.
func (s *HTTPServer) AdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := GetUserFromContext(c)
		if err != nil {
			return c.NoContent(http.StatusUnauthorized)
		}
		if !user.IsAdmin() {
			return c.NoContent(http.StatusForbidden)
		}
		return next(c)
	}
}

func (s *HTTPServer) respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, ErrorResp{Error: err.Error()})
	case errors.Is(err, service.ErrLoginUserNotFound),
		errors.Is(err, service.ErrLoginPasswordDoesNotMatch),
		errors.Is(err, service.ErrRememberTokenInvalid):
		return c.JSON(http.StatusUnauthorized, ErrorResp{Error: "invalid credentials"})
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrOwnershipDenied):
		return c.JSON(http.StatusNotFound, ErrorResp{Error: "not found"})
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, ErrorResp{Error: err.Error()})
	default:
		s.logger.Errorw("internal error", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResp{Error: "internal error"})
	}
}

////////

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func BindAndValidate(c echo.Context, v interface{}) error {
	var err error
	if err = c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err = c.Validate(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func GetUserFromContext(c echo.Context) (*db.User, error) {
	user, _ := c.Get("user").(*db.User)
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "no user found in context")
	}
	return user, nil
}

func GetParam(c echo.Context, name string) (string, error) {
	value := c.Param(name)
	if value == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return value, nil
}

func GetAndParseParam(c echo.Context, name string) (uint64, error) {
	v, e := GetParam(c, name)
	if e != nil {
		return 0, e
	}
	vv, e := strconv.ParseUint(v, 10, 64)
	if e != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return vv, nil
}

func userAndID(c echo.Context) (*db.User, uint64, error) {
	user, err := GetUserFromContext(c)
	if err != nil {
		return nil, 0, err
	}
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return nil, 0, err
	}
	return user, id, nil
}

// censorBody blanks the password field in a request body before it
// reaches the request log.
func censorBody(body []byte) []byte {
	parsed := map[string]interface{}{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return body
	}
	if _, ok := parsed["password"]; ok {
		parsed["password"] = "$censored"
	}
	censored, err := json.Marshal(parsed)
	if err != nil {
		return body
	}
	return censored
}
