package storage

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gpuslave/uikit-gallery-v2/internal/logging"
	"github.com/gpuslave/uikit-gallery-v2/internal/photo"
)

// OpenAndMigrate opens the sqlite database, keeps the schema updated via
// AutoMigrate and seeds the photo catalog from the configuration file on
// first run.
func OpenAndMigrate(dataSourceName string, photosFromConfig []photo.Photo) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dataSourceName), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&photo.Photo{}, &photo.User{}); err != nil {
		return nil, err
	}
	seedCatalog(db, photosFromConfig)
	return db, nil
}

// seedCatalog inserts configured photos that are not yet present. The
// reference URL is the identity; titles and authors of existing rows are
// refreshed from config so the file stays the source of truth.
func seedCatalog(db *gorm.DB, photosFromConfig []photo.Photo) {
	for _, p := range photosFromConfig {
		var existing photo.Photo
		err := db.Where("reference = ?", p.Reference).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := db.Create(&p).Error; err != nil {
				logging.Error("failed to seed photo", err, logging.Fields{"reference": p.Reference})
			}
			continue
		}
		if err != nil {
			logging.Error("failed to look up seeded photo", err, logging.Fields{"reference": p.Reference})
			continue
		}
		if existing.Title != p.Title || existing.Author != p.Author {
			existing.Title = p.Title
			existing.Author = p.Author
			if err := db.Save(&existing).Error; err != nil {
				logging.Error("failed to refresh seeded photo", err, logging.Fields{"reference": p.Reference})
			}
		}
	}
}
