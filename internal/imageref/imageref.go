// Package imageref resolves a logical image reference into the concrete
// resource URL to fetch. CDN references carry an embedded catalog of
// pre-rendered sizes in a query parameter; the resolver picks the variant
// closest to the requested display width and rewrites the reference to
// point at it. References without a catalog are returned unchanged and
// flagged for client-side downsampling.
package imageref

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Size is a single WxH entry from a reference's size catalog.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Resolution is the outcome of resolving a thumbnail reference.
type Resolution struct {
	// Key is the resolved resource URL, used as cache and dedup key.
	Key string
	// NeedsClientResize is set when the reference offers no pre-rendered
	// variants and the caller must downsample after download.
	NeedsClientResize bool
}

// Resolver rewrites catalog-carrying references. The zero value is not
// usable; construct with Default or from configuration.
type Resolver struct {
	// HostPattern is a substring matched against the reference hostname.
	// Only matching hosts are treated as catalog-capable.
	HostPattern string
	// CatalogParam is the query parameter holding the comma-separated
	// WxH size catalog.
	CatalogParam string
	// VariantParam is the query parameter rewritten to the selected WxH.
	VariantParam string
}

// Default returns the resolver settings for the stock image CDN.
func Default() Resolver {
	return Resolver{HostPattern: "imgcdn", CatalogParam: "sizes", VariantParam: "size"}
}

// ParseSizeCatalog parses a comma-separated list of WxH tokens. Malformed
// entries (missing separator, non-numeric or non-positive dimensions) are
// dropped rather than aborting the parse.
func ParseSizeCatalog(raw string) []Size {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]Size, 0, len(parts))
	for _, p := range parts {
		w, h, ok := strings.Cut(strings.TrimSpace(p), "x")
		if !ok {
			continue
		}
		width, err := strconv.Atoi(w)
		if err != nil || width <= 0 {
			continue
		}
		height, err := strconv.Atoi(h)
		if err != nil || height <= 0 {
			continue
		}
		out = append(out, Size{Width: width, Height: height})
	}
	return out
}

// ResolveThumbnail picks the best pre-rendered variant for targetWidth: the
// smallest catalog entry whose width covers targetWidth, or the largest
// entry when none does. References without a usable catalog come back
// unchanged with NeedsClientResize set.
func (r Resolver) ResolveThumbnail(reference string, targetWidth int) Resolution {
	u, catalog := r.catalogFor(reference)
	if u == nil || len(catalog) == 0 {
		return Resolution{Key: reference, NeedsClientResize: true}
	}

	pick := catalog[0]
	found := false
	for _, s := range catalog {
		if s.Width >= targetWidth && (!found || s.Width < pick.Width) {
			pick = s
			found = true
		}
	}
	if !found {
		// nothing covers the target, take the largest available
		for _, s := range catalog {
			if s.Width > pick.Width {
				pick = s
			}
		}
	}
	return Resolution{Key: r.rewrite(u, pick), NeedsClientResize: false}
}

// ResolveFullSize rewrites the reference to its last (largest) catalog
// entry, or returns the reference unmodified when no catalog is found.
func (r Resolver) ResolveFullSize(reference string) string {
	u, catalog := r.catalogFor(reference)
	if u == nil || len(catalog) == 0 {
		return reference
	}
	return r.rewrite(u, catalog[len(catalog)-1])
}

// catalogFor returns the parsed URL and size catalog, or (nil, nil) when
// the reference is not catalog-capable.
func (r Resolver) catalogFor(reference string) (*url.URL, []Size) {
	u, err := url.Parse(reference)
	if err != nil {
		return nil, nil
	}
	if r.HostPattern == "" || !strings.Contains(u.Hostname(), r.HostPattern) {
		return nil, nil
	}
	raw := u.Query().Get(r.CatalogParam)
	if raw == "" {
		return nil, nil
	}
	return u, ParseSizeCatalog(raw)
}

func (r Resolver) rewrite(u *url.URL, pick Size) string {
	q := u.Query()
	q.Set(r.VariantParam, pick.String())
	u.RawQuery = q.Encode()
	return u.String()
}
