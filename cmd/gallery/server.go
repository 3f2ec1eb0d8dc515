package main

import (
	"time"

	"github.com/gpuslave/uikit-gallery-v2/internal/gallery"
	"github.com/gpuslave/uikit-gallery-v2/internal/logging"
	"github.com/gpuslave/uikit-gallery-v2/internal/photo"
)

// startPrefetchLoop periodically reloads the catalog and warms thumbnails
// for it. Each reload supersedes prefetches still pending from the previous
// one, so a changed catalog never gets stale results applied.
func startPrefetchLoop(repo interface {
	GetPhotos() ([]photo.Photo, error)
}, warmer *gallery.Prefetcher, interval time.Duration) {
	reload := func() {
		photos, err := repo.GetPhotos()
		if err != nil {
			logging.Error("prefetch loop failed to list photos", err, nil)
			return
		}
		refs := make([]string, 0, len(photos))
		for _, p := range photos {
			refs = append(refs, p.Reference)
		}
		warmer.Reload(refs)
	}

	go func() {
		reload()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			reload()
		}
	}()
}
