// Package gallery warms the image cache for the catalog the list screen
// shows. Each catalog position owns a binding.Slot; reloading the catalog
// rebinds every slot, so a prefetch still pending for a position's old
// content is cancelled and its late result dropped instead of being
// recorded against the new content.
package gallery

import (
	"sync"

	"github.com/gpuslave/uikit-gallery-v2/internal/binding"
	"github.com/gpuslave/uikit-gallery-v2/internal/fetcher"
	"github.com/gpuslave/uikit-gallery-v2/internal/imageref"
	"github.com/gpuslave/uikit-gallery-v2/internal/logging"
)

// Prefetcher warms thumbnails for an ordered list of references.
type Prefetcher struct {
	fetcher  *fetcher.Fetcher
	resolver imageref.Resolver
	width    int

	mu    sync.Mutex
	slots []*binding.Slot
	warm  map[string]bool // position key -> last prefetch landed
}

// NewPrefetcher creates a warmer targeting thumbnails of the given width.
func NewPrefetcher(f *fetcher.Fetcher, resolver imageref.Resolver, width int) *Prefetcher {
	return &Prefetcher{fetcher: f, resolver: resolver, width: width, warm: make(map[string]bool)}
}

// Reload rebinds every catalog position to the given references and issues
// a thumbnail prefetch for each. Prefetches still pending from a previous
// Reload are superseded.
func (p *Prefetcher) Reload(references []string) {
	p.mu.Lock()
	for len(p.slots) < len(references) {
		p.slots = append(p.slots, &binding.Slot{})
	}
	// positions beyond the new catalog are torn down
	for i := len(references); i < len(p.slots); i++ {
		p.slots[i].Reset()
	}
	slots := p.slots[:len(references)]
	p.mu.Unlock()

	for i, ref := range references {
		p.prefetch(slots[i], ref)
	}
}

func (p *Prefetcher) prefetch(slot *binding.Slot, reference string) {
	token := slot.Begin()
	res := p.resolver.ResolveThumbnail(reference, p.width)
	opts := fetcher.Options{}
	if res.NeedsClientResize {
		opts.ClientResizeWidth = p.width
	}
	h := p.fetcher.Fetch(res.Key, opts, func(r fetcher.Result) {
		// Commit drops the result silently when the position moved on
		// while we were downloading.
		slot.Commit(token, func() {
			p.record(reference, r)
		})
	})
	slot.Attach(token, h)
}

func (p *Prefetcher) record(reference string, r fetcher.Result) {
	p.mu.Lock()
	p.warm[reference] = r.Err == nil
	p.mu.Unlock()
	if r.Err != nil {
		logging.Warn("thumbnail prefetch failed", logging.Fields{"reference": reference, "error": r.Err.Error()})
		return
	}
	logging.Info("thumbnail prefetched", logging.Fields{"reference": reference, "size_bytes": len(r.Data)})
}

// Warm reports whether the last prefetch for reference succeeded.
func (p *Prefetcher) Warm(reference string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.warm[reference]
}
