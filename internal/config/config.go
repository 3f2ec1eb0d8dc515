package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gpuslave/uikit-gallery-v2/internal/constants"
	"github.com/gpuslave/uikit-gallery-v2/internal/imageref"
	"github.com/gpuslave/uikit-gallery-v2/internal/photo"
)

type photoEntry struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Reference string `json:"reference"`
}

type rawConfig struct {
	PhotoList []photoEntry `json:"photo_list"`
	Server    *struct {
		Address string `json:"address"`
	} `json:"server"`
	Cache *struct {
		MaxEntries int   `json:"max_entries"`
		MaxBytes   int64 `json:"max_bytes"`
	} `json:"cache"`
	FetchTimeoutSeconds int `json:"fetch_timeout_seconds"`
	// Optional resolver overrides for a non-stock image CDN: the host
	// pattern that marks a reference as catalog-capable and the query
	// parameters carrying the size catalog and selected variant.
	Resolver *struct {
		HostPattern  string `json:"host_pattern"`
		CatalogParam string `json:"catalog_param"`
		VariantParam string `json:"variant_param"`
	} `json:"resolver"`
	Prefetch *struct {
		Enabled         bool `json:"enabled"`
		Width           int  `json:"width"`
		IntervalSeconds int  `json:"interval_seconds"`
	} `json:"prefetch"`
}

// LoadedConfig contains the seeded photo catalog and all server tunables.
type LoadedConfig struct {
	Photos        []photo.Photo
	ServerAddress string

	CacheMaxEntries int
	CacheMaxBytes   int64
	FetchTimeout    time.Duration

	Resolver imageref.Resolver

	PrefetchEnabled  bool
	PrefetchWidth    int
	PrefetchInterval time.Duration
}

// LoadConfig reads the configuration file at path. It requires a non-empty
// `photo_list` (snake_case); everything else is optional and defaulted.
func LoadConfig(path string) (*LoadedConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var rc rawConfig
	if err := json.Unmarshal(b, &rc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if len(rc.PhotoList) == 0 {
		return nil, fmt.Errorf("config file %s: photo_list is empty (provide a 'photo_list' array)", path)
	}
	photos := make([]photo.Photo, 0, len(rc.PhotoList))
	for _, p := range rc.PhotoList {
		ref := strings.TrimSpace(p.Reference)
		if ref == "" {
			return nil, fmt.Errorf("config file %s: photo entry missing 'reference'", path)
		}
		photos = append(photos, photo.Photo{Title: p.Title, Author: p.Author, Reference: ref})
	}

	out := &LoadedConfig{
		Photos:          photos,
		ServerAddress:   ":8080",
		CacheMaxEntries: constants.DefaultCacheMaxEntries,
		CacheMaxBytes:   constants.DefaultCacheMaxBytes,
		FetchTimeout:    constants.DefaultFetchTimeoutSec * time.Second,
		Resolver:        imageref.Default(),
		PrefetchWidth:   constants.DefaultPrefetchWidth,
	}
	if rc.Server != nil && rc.Server.Address != "" {
		out.ServerAddress = rc.Server.Address
	}
	if rc.Cache != nil {
		if rc.Cache.MaxEntries > 0 {
			out.CacheMaxEntries = rc.Cache.MaxEntries
		}
		if rc.Cache.MaxBytes > 0 {
			out.CacheMaxBytes = rc.Cache.MaxBytes
		}
	}
	if rc.FetchTimeoutSeconds > 0 {
		out.FetchTimeout = time.Duration(rc.FetchTimeoutSeconds) * time.Second
	}
	if rc.Resolver != nil {
		if rc.Resolver.HostPattern != "" {
			out.Resolver.HostPattern = rc.Resolver.HostPattern
		}
		if rc.Resolver.CatalogParam != "" {
			out.Resolver.CatalogParam = rc.Resolver.CatalogParam
		}
		if rc.Resolver.VariantParam != "" {
			out.Resolver.VariantParam = rc.Resolver.VariantParam
		}
	}
	if rc.Prefetch != nil {
		out.PrefetchEnabled = rc.Prefetch.Enabled
		if rc.Prefetch.Width > 0 {
			out.PrefetchWidth = rc.Prefetch.Width
		}
		if rc.Prefetch.IntervalSeconds > 0 {
			out.PrefetchInterval = time.Duration(rc.Prefetch.IntervalSeconds) * time.Second
		}
	}
	if out.PrefetchInterval <= 0 {
		out.PrefetchInterval = 5 * time.Minute
	}
	return out, nil
}
