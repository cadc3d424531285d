package service

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stone-Creek-Software/armory-back/internal/db"
)

func TestInventoryItemCRUD(t *testing.T) {
	gormDB := newTestDB(t)
	svc := NewInventoryService(gormDB, newTestLogger())
	user := newTestUser(t, gormDB, "items@example.com")

	created, err := svc.Create(user.ID, db.Inventory{
		Name: "Bore cleaner", Type: "Cleaning", Count: 2, Goal: 4,
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.Equal(t, user.ID, created.UserID)

	got, err := svc.Read(user.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bore cleaner", got.Name)
	assert.Equal(t, 2, got.Count)

	updated, err := svc.Update(user.ID, created.ID, db.Inventory{
		Name: "Bore cleaner", Type: "Cleaning", Count: 3, Goal: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Count)

	require.NoError(t, svc.Delete(user.ID, created.ID))

	_, err = svc.Read(user.ID, created.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInventoryItemOrdering(t *testing.T) {
	gormDB := newTestDB(t)
	svc := NewInventoryService(gormDB, newTestLogger())
	user := newTestUser(t, gormDB, "items-order@example.com")

	for _, name := range []string{"Apex targets", "Zip ties", "Mats"} {
		_, err := svc.Create(user.ID, db.Inventory{Name: name})
		require.NoError(t, err)
	}

	items, err := svc.All(user.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	// Name, descending.
	assert.Equal(t, "Zip ties", items[0].Name)
	assert.Equal(t, "Mats", items[1].Name)
	assert.Equal(t, "Apex targets", items[2].Name)
}

func TestInventoryItemOwnership(t *testing.T) {
	gormDB := newTestDB(t)
	svc := NewInventoryService(gormDB, newTestLogger())
	owner := newTestUser(t, gormDB, "items-owner@example.com")
	other := newTestUser(t, gormDB, "items-other@example.com")

	item, err := svc.Create(owner.ID, db.Inventory{Name: "Mine"})
	require.NoError(t, err)

	_, err = svc.Read(other.ID, item.ID)
	assert.True(t, errors.Is(err, ErrOwnershipDenied))

	_, err = svc.Update(other.ID, item.ID, db.Inventory{Name: "Taken"})
	assert.True(t, errors.Is(err, ErrOwnershipDenied))

	err = svc.Delete(other.ID, item.ID)
	assert.True(t, errors.Is(err, ErrOwnershipDenied))

	list, err := svc.All(other.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
