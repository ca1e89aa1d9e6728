package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/familyhub/schoolmail-backend/internal/models"
)

// newTestDB opens an isolated in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every session on the same in-memory DB.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.EmailAccount{},
		&models.Email{},
		&models.Attachment{},
		&models.Child{},
		&models.CalendarEvent{},
		&models.EmailEventAssociation{},
		&models.EmailChildRelevance{},
		&models.EmailAction{},
		&models.ClassificationFeedback{},
	)
	require.NoError(t, err)

	return db
}
