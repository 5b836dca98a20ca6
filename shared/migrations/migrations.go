package migrations

import (
	"fullwork/shared/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	err := db.AutoMigrate(
		&database.Document{},
	)
	if err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}
