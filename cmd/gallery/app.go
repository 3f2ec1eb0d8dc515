package main

import (
	"github.com/gpuslave/uikit-gallery-v2/internal/config"
	"github.com/gpuslave/uikit-gallery-v2/internal/logging"
	"github.com/gpuslave/uikit-gallery-v2/internal/photo"
	"github.com/gpuslave/uikit-gallery-v2/internal/storage"
)

func loadConfigOrExit(path string) *config.LoadedConfig {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logging.Fatal("Missing or invalid gallery configuration", err, logging.Fields{"config_path": path, "hint": "create a gallery_config.json with a 'photo_list' array of photo objects (title,author,reference) and optional keys: server.address, cache{max_entries,max_bytes}, fetch_timeout_seconds, resolver, prefetch"})
	}
	return cfg
}

func createRepositoryOrExit(dbPath string, photos []photo.Photo) storage.Repository {
	db, err := storage.OpenAndMigrate(dbPath, photos)
	if err != nil {
		logging.Fatal("Failed to initialize database", err, nil)
	}
	return storage.NewSQLiteRepository(db)
}
