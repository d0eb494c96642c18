package database

import (
	"fmt"
	"testing"

	"fundhub/config"
	"fundhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqliteMigrateAndSeed(t *testing.T) {
	db, err := NewDB(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	icfg := &config.InterestConfig{DailyRate: "0.0001", MinBalance: "100"}
	require.NoError(t, SeedInterestConfig(db, icfg))

	var got models.InterestConfig
	require.NoError(t, db.First(&got, 1).Error)
	assert.Equal(t, "100", got.MinBalance.String())
	assert.Equal(t, "0.0001", got.DailyRate.String())
	assert.Empty(t, got.Tiers)

	// seeding again keeps the admin's edits
	require.NoError(t, db.Model(&got).Update("updated_by", "admin-1").Error)
	require.NoError(t, SeedInterestConfig(db, icfg))
	require.NoError(t, db.First(&got, 1).Error)
	assert.Equal(t, "admin-1", got.UpdatedBy)
}

func TestUnknownDriver(t *testing.T) {
	_, err := NewDB(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
