package transport

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Stone-Creek-Software/armory-back/internal/auth"
	"github.com/Stone-Creek-Software/armory-back/internal/config"
	"github.com/Stone-Creek-Software/armory-back/internal/db"
	"github.com/Stone-Creek-Software/armory-back/internal/service"
)

type testServer struct {
	db     *gorm.DB
	client *resty.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))

	cfg := &config.Config{
		JWTSecret:   "test-secret",
		JWTTTL:      time.Hour,
		RememberTTL: time.Hour,
		TOTPIssuer:  "armory-test",
	}
	logger := zap.NewNop().Sugar()
	tokens := auth.NewTokenManager(cfg)
	ammoInventories := service.NewAmmoInventoryService(gormDB, logger)

	server := HTTPServer{
		logger:          logger,
		tokens:          tokens,
		login:           service.NewLoginService(gormDB, logger, tokens, cfg),
		users:           service.NewUserService(gormDB, logger),
		profile:         service.NewProfileService(gormDB, logger, cfg),
		guns:            service.NewGunService(gormDB, logger),
		ammo:            service.NewAmmoService(gormDB, logger),
		ammoInventories: ammoInventories,
		inventories:     service.NewInventoryService(gormDB, logger),
		histories:       service.NewHistoryService(gormDB, logger),
		accessories:     service.NewAccessoryService(gormDB, logger),
		dashboard:       service.NewDashboardService(gormDB, logger, ammoInventories),
	}

	ts := httptest.NewServer(server.BuildEcho())
	t.Cleanup(ts.Close)

	return &testServer{
		db:     gormDB,
		client: resty.New().SetBaseURL(ts.URL),
	}
}

func (ts *testServer) createUser(t *testing.T, email, role string) *db.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)

	user := db.User{
		Email:    email,
		Name:     "Test User",
		Password: string(hash),
		Role:     role,
		Enabled:  true,
	}
	require.NoError(t, ts.db.Create(&user).Error)
	return &user
}

func (ts *testServer) loginAs(t *testing.T, email string) string {
	t.Helper()

	result := LoginResp{}
	resp, err := ts.client.R().
		SetBody(LoginReq{Email: email, Password: "hunter22"}).
		SetResult(&result).
		Post("/login")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	require.NotEmpty(t, result.Token)
	return result.Token
}

func TestPing(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.client.R().Get("/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "pong", resp.String())
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/guns", "/api/dashboard", "/api/profile"} {
		resp, err := ts.client.R().Get(path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode(), path)
	}

	resp, err := ts.client.R().
		SetAuthToken("not-a-jwt").
		Get("/api/guns")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
}

func TestLoginFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "login@example.com", db.RoleUser)

	token := ts.loginAs(t, "login@example.com")

	resp, err := ts.client.R().
		SetAuthToken(token).
		Get("/api/profile")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	resp, err = ts.client.R().
		SetBody(LoginReq{Email: "login@example.com", Password: "wrong"}).
		Post("/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())

	// Malformed body fails validation.
	resp, err = ts.client.R().
		SetBody(map[string]string{"email": "not-an-email"}).
		Post("/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
}

func TestGunEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "guns@example.com", db.RoleUser)
	token := ts.loginAs(t, "guns@example.com")

	created := db.Gun{}
	resp, err := ts.client.R().
		SetAuthToken(token).
		SetBody(map[string]interface{}{
			"name":         "G19",
			"serialNumber": "T-1",
			"caliber":      "9mm",
			"type":         "Pistol",
		}).
		SetResult(&created).
		Post("/api/guns")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	require.NotZero(t, created.ID)

	list := []db.Gun{}
	resp, err = ts.client.R().
		SetAuthToken(token).
		SetResult(&list).
		Get("/api/guns")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Len(t, list, 1)

	// Duplicate serial is a conflict.
	resp, err = ts.client.R().
		SetAuthToken(token).
		SetBody(map[string]interface{}{"name": "Clone", "serialNumber": "T-1"}).
		Post("/api/guns")
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode())

	resp, err = ts.client.R().
		SetAuthToken(token).
		Delete("/api/guns/" + itoa(created.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
}

func TestForeignResourceLooksMissing(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "owner@example.com", db.RoleUser)
	ts.createUser(t, "other@example.com", db.RoleUser)

	ownerToken := ts.loginAs(t, "owner@example.com")
	otherToken := ts.loginAs(t, "other@example.com")

	created := db.Gun{}
	resp, err := ts.client.R().
		SetAuthToken(ownerToken).
		SetBody(map[string]interface{}{"name": "Mine"}).
		SetResult(&created).
		Post("/api/guns")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	// Someone else's gun and a nonexistent gun answer identically.
	resp, err = ts.client.R().
		SetAuthToken(otherToken).
		Get("/api/guns/" + itoa(created.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())

	resp, err = ts.client.R().
		SetAuthToken(otherToken).
		Get("/api/guns/424242")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
}

func TestAdminGate(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "admin@example.com", db.RoleAdmin)
	ts.createUser(t, "member@example.com", db.RoleUser)

	adminToken := ts.loginAs(t, "admin@example.com")
	memberToken := ts.loginAs(t, "member@example.com")

	// Authenticated but not authorized: 403, not 401.
	resp, err := ts.client.R().
		SetAuthToken(memberToken).
		Get("/api/admin/users")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	resp, err = ts.client.R().
		Get("/api/admin/users")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())

	users := []db.User{}
	resp, err = ts.client.R().
		SetAuthToken(adminToken).
		SetResult(&users).
		Get("/api/admin/users")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Len(t, users, 2)

	resp, err = ts.client.R().
		SetAuthToken(adminToken).
		SetBody(AdminUserReq{
			Email:    "new@example.com",
			Name:     "New User",
			Role:     db.RoleUser,
			Enabled:  true,
			Password: "initial-password",
		}).
		Post("/api/admin/users")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestHistoryEndpointsRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "range@example.com", db.RoleUser)
	token := ts.loginAs(t, "range@example.com")

	gun := db.Gun{}
	resp, err := ts.client.R().
		SetAuthToken(token).
		SetBody(map[string]interface{}{"name": "G19", "caliber": "9mm"}).
		SetResult(&gun).
		Post("/api/guns")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	purchase := db.Ammo{}
	resp, err = ts.client.R().
		SetAuthToken(token).
		SetBody(map[string]interface{}{
			"name": "Range Pack", "brand": "Blazer", "caliber": "9mm", "roundCount": 500,
		}).
		SetResult(&purchase).
		Post("/api/ammo")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	require.NotZero(t, purchase.AmmoInventoryID)

	event := db.History{}
	resp, err = ts.client.R().
		SetAuthToken(token).
		SetBody(map[string]interface{}{
			"type":   db.HistoryTypeRangeDay,
			"gunIds": []uint64{gun.ID},
			"inventoryIds": []uint64{
				purchase.AmmoInventoryID,
			},
			"gunRoundsFired":       map[string]int{itoa(gun.ID): 200},
			"inventoryRoundsFired": map[string]int{itoa(purchase.AmmoInventoryID): 200},
		}).
		SetResult(&event).
		Post("/api/history")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	require.Len(t, event.Guns, 1)
	assert.Equal(t, 200, event.InventoryRoundsFired[purchase.AmmoInventoryID])

	bucket := db.AmmoInventory{}
	resp, err = ts.client.R().
		SetAuthToken(token).
		SetResult(&bucket).
		Get("/api/ammoinventory/" + itoa(purchase.AmmoInventoryID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, 500, bucket.TotalPurchased)
	assert.Equal(t, 200, bucket.TotalShot)
	assert.Equal(t, 300, bucket.Count)

	// Pinned bucket refuses deletion.
	resp, err = ts.client.R().
		SetAuthToken(token).
		Delete("/api/ammoinventory/" + itoa(purchase.AmmoInventoryID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode())

	rangeDays := []db.History{}
	resp, err = ts.client.R().
		SetAuthToken(token).
		SetResult(&rangeDays).
		Get("/api/history/rangedays")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Len(t, rangeDays, 1)

	byGun := []db.History{}
	resp, err = ts.client.R().
		SetAuthToken(token).
		SetResult(&byGun).
		Get("/api/guns/" + itoa(gun.ID) + "/history")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Len(t, byGun, 1)
}

func TestInventoryItemEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "supplies@example.com", db.RoleUser)
	token := ts.loginAs(t, "supplies@example.com")

	created := db.Inventory{}
	resp, err := ts.client.R().
		SetAuthToken(token).
		SetBody(map[string]interface{}{
			"name": "Patches", "type": "Cleaning", "count": 100, "goal": 250,
		}).
		SetResult(&created).
		Post("/api/inventory")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	require.NotZero(t, created.ID)

	updated := db.Inventory{}
	resp, err = ts.client.R().
		SetAuthToken(token).
		SetBody(map[string]interface{}{
			"name": "Patches", "type": "Cleaning", "count": 60, "goal": 250,
		}).
		SetResult(&updated).
		Put("/api/inventory/" + itoa(created.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, 60, updated.Count)

	list := []db.Inventory{}
	resp, err = ts.client.R().
		SetAuthToken(token).
		SetResult(&list).
		Get("/api/inventory")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Len(t, list, 1)

	resp, err = ts.client.R().
		SetAuthToken(token).
		Delete("/api/inventory/" + itoa(created.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())

	resp, err = ts.client.R().
		SetAuthToken(token).
		Get("/api/inventory/" + itoa(created.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
}

func TestDashboardEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "dash@example.com", db.RoleUser)
	token := ts.loginAs(t, "dash@example.com")

	data := service.DashboardData{}
	resp, err := ts.client.R().
		SetAuthToken(token).
		SetResult(&data).
		Get("/api/dashboard")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Zero(t, data.GunCount)
	assert.NotNil(t, data.AmmoBreakdown)
}

func TestRememberTokenEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "remember@example.com", db.RoleUser)
	token := ts.loginAs(t, "remember@example.com")

	// Opt in to remember-me while validating TOTP is the normal path;
	// here the user has no TOTP key yet, so validation fails cleanly.
	resp, err := ts.client.R().
		SetAuthToken(token).
		SetBody(TotpValidateReq{Code: "000000", RememberMe: true}).
		Post("/api/profile/totp/validate")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())

	resp, err = ts.client.R().
		SetBody(RememberReq{Token: "bogus:token"}).
		Post("/login/remember")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
}

func itoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}
