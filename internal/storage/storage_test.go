package storage_test

import (
	"testing"

	"brandlink/backend/internal/models"
	"brandlink/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *storage.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RoomRecord{}, &models.ArchivedMessage{}))
	return storage.NewService(db)
}

func TestFindOrCreateUser_CreatesOnFirstContact(t *testing.T) {
	svc := newTestService(t)

	user, err := svc.FindOrCreateUser("owner@acme.example", "Acme Brand", "brand")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID, "BeforeCreate assigns an id")
	assert.Equal(t, "owner@acme.example", user.Email)
	assert.Equal(t, "Acme Brand", user.DisplayName)
	assert.Equal(t, "brand", user.Role)
}

func TestFindOrCreateUser_ReturningUserMatchedByEmailAlone(t *testing.T) {
	svc := newTestService(t)

	first, err := svc.FindOrCreateUser("owner@acme.example", "Acme Brand", "brand")
	require.NoError(t, err)

	// Same account, different display name: must resolve to the existing
	// record instead of attempting an insert that the email unique index
	// would reject.
	second, err := svc.FindOrCreateUser("owner@acme.example", "Acme Brand Inc", "brand")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same email resolves to the same account")
	assert.Equal(t, "Acme Brand", second.DisplayName, "profile fields apply to new records only")

	var count int64
	require.NoError(t, svc.DB.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestFindOrCreateUser_DistinctEmailsDistinctAccounts(t *testing.T) {
	svc := newTestService(t)

	a, err := svc.FindOrCreateUser("owner@acme.example", "Acme Brand", "brand")
	require.NoError(t, err)
	b, err := svc.FindOrCreateUser("fr@kyiv.example", "Kyiv Franchisee", "franchisee")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "franchisee", b.Role)
}
