// Package fetcher implements the image acquisition core: a bounded
// in-memory cache of image payloads plus an in-flight registry that
// coalesces concurrent downloads of the same resource. All cache mutation,
// registry mutation and callback delivery happen on a single run-loop
// goroutine; downloads and downsampling run on worker goroutines and hand
// their results back to the loop.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	// register decoders used for payload validation
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gpuslave/uikit-gallery-v2/internal/constants"
	"github.com/gpuslave/uikit-gallery-v2/internal/dedupe"
	"github.com/gpuslave/uikit-gallery-v2/internal/imageutil"
	"github.com/gpuslave/uikit-gallery-v2/internal/metrics"
)

// Result is the single terminal outcome of a fetch. On success Data holds
// the (possibly downsampled) image bytes. On ErrDownsample failures Data
// still carries the original download so callers may fall back to it.
type Result struct {
	Key         string
	Data        []byte
	ContentType string
	Err         error
}

// Callback receives a fetch outcome. Callbacks run on the fetcher's
// delivery goroutine, one at a time, and must not block.
type Callback func(Result)

// Options tunes a single fetch request.
type Options struct {
	// ClientResizeWidth, when positive, downsamples the downloaded image
	// so its longer side does not exceed this value before caching.
	ClientResizeWidth int
}

// Handle identifies one joiner of a fetch. Cancelling a handle suppresses
// its callback; the physical download is only torn down when its last
// joiner cancels.
type Handle struct {
	key string
	f   *Fetcher
	cb  Callback

	// loop-confined
	cancelled bool
}

// Key returns the resource key this handle was issued for.
func (h *Handle) Key() string { return h.key }

// Cancel detaches this joiner. After Cancel returns, the handle's callback
// will not fire (a delivery already running on the loop may still finish).
func (h *Handle) Cancel() {
	h.f.post(func() { h.f.detach(h) })
}

// flight is one registered in-flight download and its joiners.
type flight struct {
	key     string
	joiners []*Handle
	cancel  context.CancelFunc
	started time.Time
}

// Config tunes a Fetcher. Zero fields fall back to the package defaults.
type Config struct {
	// MaxEntries bounds the cache entry count.
	MaxEntries int
	// MaxBytes bounds the total estimated payload bytes held in cache.
	MaxBytes int64
	// RequestTimeout bounds each physical download.
	RequestTimeout time.Duration
	// Client is the HTTP client used for downloads.
	Client *http.Client
}

// Fetcher is the process-wide image acquisition service. Construct one with
// New, inject it where needed, and keep it alive for the process lifetime.
type Fetcher struct {
	client         *http.Client
	requestTimeout time.Duration

	// loop-confined state
	cache    *byteCache
	inflight map[string]*flight

	mu        sync.Mutex
	queue     []func()
	wake      chan struct{}
	quit      chan struct{}
	closeOnce sync.Once
}

// New creates a Fetcher and starts its run loop.
func New(cfg Config) (*Fetcher, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = constants.DefaultCacheMaxEntries
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = constants.DefaultCacheMaxBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = constants.DefaultFetchTimeoutSec * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.RequestTimeout}
	}

	cache, err := newByteCache(cfg.MaxEntries, cfg.MaxBytes)
	if err != nil {
		return nil, err
	}
	f := &Fetcher{
		client:         cfg.Client,
		requestTimeout: cfg.RequestTimeout,
		cache:          cache,
		inflight:       make(map[string]*flight),
		wake:           make(chan struct{}, 1),
		quit:           make(chan struct{}),
	}
	go f.run()
	return f, nil
}

// Fetch requests the image identified by key. The callback fires exactly
// once with the terminal outcome unless the returned handle is cancelled
// first. Identical keys requested while a download is in flight join that
// download instead of starting another.
func (f *Fetcher) Fetch(key string, opts Options, cb Callback) *Handle {
	h := &Handle{key: key, f: f, cb: cb}
	f.post(func() { f.admit(h, opts) })
	return h
}

// Cancel tears down the in-flight download for key, if any. Joiners of that
// download receive no callback. The cache is untouched.
func (f *Fetcher) Cancel(key string) {
	f.post(func() { f.cancelKey(key) })
}

// CancelAll tears down every in-flight download.
func (f *Fetcher) CancelAll() {
	f.post(func() {
		for key := range f.inflight {
			f.cancelKey(key)
		}
	})
}

// Clear empties the cache. In-flight downloads are unaffected.
func (f *Fetcher) Clear() {
	f.post(func() { f.cache.purge() })
}

// CacheLen reports the number of cached entries. It blocks until the run
// loop answers, so it must not be called from a callback.
func (f *Fetcher) CacheLen() int {
	out := make(chan int, 1)
	f.post(func() { out <- f.cache.len() })
	select {
	case n := <-out:
		return n
	case <-f.quit:
		return 0
	}
}

// Close cancels all in-flight downloads and stops the run loop. The
// fetcher is unusable afterwards; only tests and orderly shutdown need it.
func (f *Fetcher) Close() {
	f.closeOnce.Do(func() {
		done := make(chan struct{})
		f.post(func() {
			for key := range f.inflight {
				f.cancelKey(key)
			}
			close(done)
		})
		<-done
		close(f.quit)
	})
}

// post enqueues a job for the run loop.
func (f *Fetcher) post(job func()) {
	f.mu.Lock()
	f.queue = append(f.queue, job)
	f.mu.Unlock()
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// run is the designated execution context: the only goroutine that touches
// the cache, the in-flight registry and joiner callbacks.
func (f *Fetcher) run() {
	for {
		select {
		case <-f.quit:
			return
		case <-f.wake:
			for {
				f.mu.Lock()
				jobs := f.queue
				f.queue = nil
				f.mu.Unlock()
				if len(jobs) == 0 {
					break
				}
				for _, job := range jobs {
					job()
				}
			}
		}
	}
}

// admit decides how a fetch request is satisfied: cache hit, join of an
// in-flight download, or a new registered download. Runs on the loop.
func (f *Fetcher) admit(h *Handle, opts Options) {
	if h.cancelled {
		return
	}
	if data, ct, ok := f.cache.get(h.key); ok {
		metrics.CacheHits.Inc()
		f.deliver(h, Result{Key: h.key, Data: data, ContentType: ct})
		return
	}
	if fl, ok := f.inflight[h.key]; ok {
		metrics.FetchJoins.Inc()
		fl.joiners = append(fl.joiners, h)
		return
	}
	if !fetchableKey(h.key) {
		err := fmt.Errorf("%w: %q", ErrMalformedReference, h.key)
		metrics.FetchFailures.WithLabelValues(failureReason(err)).Inc()
		f.deliver(h, Result{Key: h.key, Err: err})
		return
	}
	metrics.CacheMisses.Inc()

	// Register before issuing the request so a second caller cannot miss
	// the registry and start a duplicate download.
	ctx, cancel := context.WithTimeout(context.Background(), f.requestTimeout)
	fl := &flight{key: h.key, joiners: []*Handle{h}, cancel: cancel, started: time.Now()}
	f.inflight[h.key] = fl
	metrics.InFlight.Inc()
	go f.download(ctx, fl, opts)
}

// download runs on a worker goroutine. The physical HTTP request is routed
// through the process-wide singleflight group so even downloads registered
// by different fetcher instances coalesce on the wire.
func (f *Fetcher) download(ctx context.Context, fl *flight, opts Options) {
	key := fl.key
	ch := dedupe.FetchGroup.DoChan(key, func() (interface{}, error) {
		return f.doRequest(ctx, key)
	})

	var res Result
	select {
	case <-ctx.Done():
		res = Result{Key: key, Err: ctx.Err()}
	case r := <-ch:
		if r.Err != nil {
			res = Result{Key: key, Err: r.Err}
		} else {
			p := r.Val.(payload)
			res = Result{Key: key, Data: p.data, ContentType: p.contentType}
		}
	}

	if res.Err == nil && opts.ClientResizeWidth > 0 {
		out, err := imageutil.Downsample(res.Data, opts.ClientResizeWidth)
		if err != nil {
			// keep the original bytes so callers may fall back to them
			res.Err = fmt.Errorf("%w: %v", ErrDownsample, err)
		} else {
			res.Data = out
			res.ContentType = constants.ContentTypePNG
		}
	}

	f.post(func() { f.complete(fl, res) })
}

type payload struct {
	data        []byte
	contentType string
}

// doRequest performs the HTTP GET and validates status and payload.
func (f *Fetcher) doRequest(ctx context.Context, key string) (payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
	if err != nil {
		return payload{}, fmt.Errorf("%w: %v", ErrMalformedReference, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return payload{}, fmt.Errorf("fetch %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return payload{}, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return payload{}, fmt.Errorf("fetch %s: %w", key, err)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return payload{}, fmt.Errorf("%w: %v", ErrUndecodablePayload, err)
	}
	return payload{data: data, contentType: resp.Header.Get(constants.HeaderContentType)}, nil
}

// complete settles a flight: the registry entry is removed strictly before
// the cache write and before any joiner callback fires. Runs on the loop.
func (f *Fetcher) complete(fl *flight, res Result) {
	key := fl.key
	if f.inflight[key] != fl {
		// torn down via Cancel/CancelAll while the worker was finishing;
		// a refetch may already own the key, so only settle our own flight
		return
	}
	delete(f.inflight, key)
	metrics.InFlight.Dec()
	metrics.FetchDuration.Observe(time.Since(fl.started).Seconds())
	fl.cancel()

	if res.Err == nil {
		f.cache.add(key, res.Data, res.ContentType)
	} else {
		metrics.FetchFailures.WithLabelValues(failureReason(res.Err)).Inc()
	}
	for _, h := range fl.joiners {
		f.deliver(h, res)
	}
}

// detach removes one joiner; the last joiner's departure cancels the
// physical download. Runs on the loop.
func (f *Fetcher) detach(h *Handle) {
	if h.cancelled {
		return
	}
	h.cancelled = true
	fl, ok := f.inflight[h.key]
	if !ok {
		return
	}
	live := fl.joiners[:0]
	for _, j := range fl.joiners {
		if !j.cancelled {
			live = append(live, j)
		}
	}
	fl.joiners = live
	if len(live) == 0 {
		delete(f.inflight, h.key)
		metrics.InFlight.Dec()
		fl.cancel()
		dedupe.FetchGroup.Forget(h.key)
	}
}

// cancelKey tears down a flight and suppresses every joiner. Runs on the loop.
func (f *Fetcher) cancelKey(key string) {
	fl, ok := f.inflight[key]
	if !ok {
		return
	}
	delete(f.inflight, key)
	metrics.InFlight.Dec()
	for _, h := range fl.joiners {
		h.cancelled = true
	}
	fl.cancel()
	dedupe.FetchGroup.Forget(key)
}

// deliver invokes a joiner callback unless its handle was cancelled. Runs
// on the loop.
func (f *Fetcher) deliver(h *Handle, res Result) {
	if h.cancelled || h.cb == nil {
		return
	}
	h.cancelled = true // exactly one terminal outcome per handle
	h.cb(res)
}

// fetchableKey reports whether key is a well-formed absolute HTTP(S) URL.
func fetchableKey(key string) bool {
	u, err := url.Parse(key)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
