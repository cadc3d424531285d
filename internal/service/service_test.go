package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Stone-Creek-Software/armory-back/internal/config"
	"github.com/Stone-Creek-Software/armory-back/internal/db"
)

type testingDeps struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func newTestingDeps(t *testing.T) *testingDeps {
	t.Helper()
	return &testingDeps{
		db:     newTestDB(t),
		logger: newTestLogger(),
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

func newTestLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func newTestConfig() *config.Config {
	return &config.Config{
		JWTSecret:   "test-secret",
		JWTTTL:      time.Hour,
		RememberTTL: time.Hour,
		TOTPIssuer:  "armory-test",
	}
}

func newTestUser(t *testing.T, gormDB *gorm.DB, email string) *db.User {
	t.Helper()

	// MinCost keeps the suite fast; production hashing goes through
	// auth.HashPassword.
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)

	user := db.User{
		Email:    email,
		Name:     "Test User",
		Password: string(hash),
		Role:     db.RoleUser,
		Enabled:  true,
	}
	require.NoError(t, gormDB.Create(&user).Error)
	return &user
}
