package service

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stone-Creek-Software/armory-back/internal/db"
)

func TestAccessoryCRUDWithGunLinks(t *testing.T) {
	deps := newTestingDeps(t)
	accessories := NewAccessoryService(deps.db, deps.logger)
	guns := NewGunService(deps.db, deps.logger)
	user := newTestUser(t, deps.db, "acc@example.com")

	gun1, err := guns.Create(user.ID, db.Gun{Name: "Alpha", SerialNumber: "A-1"})
	require.NoError(t, err)
	gun2, err := guns.Create(user.ID, db.Gun{Name: "Bravo", SerialNumber: "A-2"})
	require.NoError(t, err)

	created, err := accessories.Create(user.ID, db.Accessory{
		Type:         "Optic",
		Manufacturer: "Holosun",
		Count:        1,
	}, []uint64{gun1.ID})
	require.NoError(t, err)
	require.Len(t, created.Guns, 1)
	assert.Equal(t, gun1.ID, created.Guns[0].ID)

	// Update fully replaces the linked set.
	updated, err := accessories.Update(user.ID, created.ID, db.Accessory{
		Type:         "Optic",
		Manufacturer: "Holosun",
		Count:        1,
	}, []uint64{gun2.ID})
	require.NoError(t, err)
	require.Len(t, updated.Guns, 1)
	assert.Equal(t, gun2.ID, updated.Guns[0].ID)

	list, err := accessories.All(user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, accessories.Delete(user.ID, created.ID))

	var edges int64
	require.NoError(t, deps.db.Model(&db.AccessoryGun{}).Count(&edges).Error)
	assert.Zero(t, edges)
}

func TestAccessoryRejectsForeignGun(t *testing.T) {
	deps := newTestingDeps(t)
	accessories := NewAccessoryService(deps.db, deps.logger)
	guns := NewGunService(deps.db, deps.logger)
	user := newTestUser(t, deps.db, "accowner@example.com")
	other := newTestUser(t, deps.db, "accother@example.com")

	foreignGun, err := guns.Create(other.ID, db.Gun{Name: "Not yours"})
	require.NoError(t, err)

	_, err = accessories.Create(user.ID, db.Accessory{Type: "Sling"}, []uint64{foreignGun.ID})
	assert.True(t, errors.Is(err, ErrOwnershipDenied))

	// The failed create leaves nothing behind.
	list, err := accessories.All(user.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAccessoryOwnership(t *testing.T) {
	deps := newTestingDeps(t)
	accessories := NewAccessoryService(deps.db, deps.logger)
	owner := newTestUser(t, deps.db, "accown@example.com")
	intruder := newTestUser(t, deps.db, "accint@example.com")

	created, err := accessories.Create(owner.ID, db.Accessory{Type: "Case"}, nil)
	require.NoError(t, err)

	_, err = accessories.Read(intruder.ID, created.ID)
	assert.True(t, errors.Is(err, ErrOwnershipDenied))

	err = accessories.Delete(intruder.ID, created.ID)
	assert.True(t, errors.Is(err, ErrOwnershipDenied))
}
