package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gpuslave/uikit-gallery-v2/internal/api"
	"github.com/gpuslave/uikit-gallery-v2/internal/constants"
	"github.com/gpuslave/uikit-gallery-v2/internal/fetcher"
	"github.com/gpuslave/uikit-gallery-v2/internal/gallery"
	"github.com/gpuslave/uikit-gallery-v2/internal/logging"
)

func main() {
	// Load gallery configuration file (required). Path may be provided via
	// GALLERY_CONFIG env var or defaults to ./gallery_config.json in the
	// current working directory.
	configPath := os.Getenv(constants.EnvConfigPath)
	if configPath == "" {
		configPath = "./gallery_config.json"
	}
	cfg := loadConfigOrExit(configPath)

	// Allow the DB path to be configured via GALLERY_DB. Default to a
	// `data/` directory inside the backend module for local development.
	dbPath := os.Getenv(constants.EnvDBPath)
	if dbPath == "" {
		dbPath = "./data/gallery.db"
	}
	repo := createRepositoryOrExit(dbPath, cfg.Photos)

	imageFetcher, err := fetcher.New(fetcher.Config{
		MaxEntries:     cfg.CacheMaxEntries,
		MaxBytes:       cfg.CacheMaxBytes,
		RequestTimeout: cfg.FetchTimeout,
	})
	if err != nil {
		logging.Fatal("Failed to initialize image fetcher", err, nil)
	}

	handler := api.NewPhotoHandler(repo, imageFetcher, cfg.Resolver, cfg.FetchTimeout)
	authHandler := api.NewAuthHandler(repo)

	if cfg.PrefetchEnabled {
		warmer := gallery.NewPrefetcher(imageFetcher, cfg.Resolver, cfg.PrefetchWidth)
		startPrefetchLoop(repo, warmer, cfg.PrefetchInterval)
	}

	router := gin.Default()

	apiRoutes := router.Group(constants.RouteAPIPrefix)
	{
		// Public endpoints
		apiRoutes.GET(constants.RoutePhotos, handler.ListPhotos)
		apiRoutes.GET(constants.RoutePhotoThumbnail, handler.ServeThumbnail)
		apiRoutes.GET(constants.RoutePhotoImage, handler.ServeImage)
		apiRoutes.GET(constants.RouteVersion, api.Version)

		// Administrative endpoints require an authenticated session
		protected := apiRoutes.Group("")
		protected.Use(api.AuthRequired())
		protected.POST(constants.RouteCacheClear, handler.ClearCache)
		protected.POST(constants.RouteFetchCancelAll, handler.CancelAllFetches)
	}

	router.POST(constants.RouteAPIPrefix+constants.RouteAuthGoogleCallBack, authHandler.GoogleOAuthCallback)
	router.GET(constants.RouteMetrics, gin.WrapH(promhttp.Handler()))

	addr := cfg.ServerAddress
	logging.Info("Server started", logging.Fields{constants.LogFieldAddr: addr})
	if err := router.Run(addr); err != nil {
		logging.Fatal("Failed to start server", err, nil)
	}
}
