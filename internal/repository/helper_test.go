package repository

import (
	"testing"

	"github.com/nimasrn/kamoa-supervision/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// every pooled connection to :memory: would get its own database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&UnitEntity{}, &FaultEntity{}, &ReportEntity{})
	require.NoError(t, err)

	t.Cleanup(func() { _ = sqlDB.Close() })

	return &testDB{
		DB:    pg.Wrap(db),
		rawDB: db,
	}
}

func seedUnits(t *testing.T, tdb *testDB, ids ...string) {
	t.Helper()
	units := make([]UnitEntity, len(ids))
	for i, id := range ids {
		units[i] = UnitEntity{UnitID: id}
	}
	require.NoError(t, tdb.rawDB.Create(&units).Error)
}
