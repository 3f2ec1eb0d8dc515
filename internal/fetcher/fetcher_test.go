package fetcher

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gpuslave/uikit-gallery-v2/internal/metrics"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	f, err := New(Config{MaxEntries: 16, MaxBytes: 1 << 20, RequestTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(f.Close)
	return f
}

// barrier waits until every job posted before it has run on the loop.
func barrier(f *Fetcher) {
	f.CacheLen()
}

func fetchResult(t *testing.T, f *Fetcher, key string, opts Options) Result {
	t.Helper()
	done := make(chan Result, 1)
	f.Fetch(key, opts, func(r Result) { done <- r })
	select {
	case r := <-done:
		return r
	case <-time.After(5 * time.Second):
		t.Fatalf("fetch of %s did not complete", key)
		return Result{}
	}
}

func TestFetchSuccessAndCacheHit(t *testing.T) {
	payload := testPNG(t, 8, 8)
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := newTestFetcher(t)

	r := fetchResult(t, f, srv.URL+"/a.png", Options{})
	if r.Err != nil {
		t.Fatalf("fetch failed: %v", r.Err)
	}
	if !bytes.Equal(r.Data, payload) {
		t.Fatalf("payload mismatch")
	}
	if r.ContentType != "image/png" {
		t.Fatalf("content type = %q", r.ContentType)
	}

	// second fetch is served from cache without network I/O
	r = fetchResult(t, f, srv.URL+"/a.png", Options{})
	if r.Err != nil {
		t.Fatalf("cached fetch failed: %v", r.Err)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Fatalf("network requests = %d, want 1", got)
	}
}

func TestConcurrentFetchesCoalesce(t *testing.T) {
	payload := testPNG(t, 8, 8)
	var requests int32
	release := make(chan struct{})
	received := make(chan struct{}, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		received <- struct{}{}
		<-release
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	key := srv.URL + "/shared.png"

	const joiners = 5
	done := make(chan Result, joiners)
	f.Fetch(key, Options{}, func(r Result) { done <- r })

	// wait for the download to be on the wire, then attach more joiners
	<-received
	for i := 1; i < joiners; i++ {
		f.Fetch(key, Options{}, func(r Result) { done <- r })
	}
	barrier(f) // all joins admitted before the download settles
	close(release)

	for i := 0; i < joiners; i++ {
		select {
		case r := <-done:
			if r.Err != nil {
				t.Fatalf("joiner %d failed: %v", i, r.Err)
			}
			if !bytes.Equal(r.Data, payload) {
				t.Fatalf("joiner %d payload mismatch", i)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("joiner %d never delivered", i)
		}
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Fatalf("network requests = %d, want 1", got)
	}
}

func TestFailureIsNotCachedAndRegistryIsCleared(t *testing.T) {
	var requests int32
	payload := testPNG(t, 8, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	key := srv.URL + "/flaky.png"

	r := fetchResult(t, f, key, Options{})
	if !errors.Is(r.Err, ErrBadStatus) {
		t.Fatalf("err = %v, want ErrBadStatus", r.Err)
	}
	if n := f.CacheLen(); n != 0 {
		t.Fatalf("failure was cached, %d entries", n)
	}

	// the registry entry is gone, so a retry issues a fresh download
	r = fetchResult(t, f, key, Options{})
	if r.Err != nil {
		t.Fatalf("retry failed: %v", r.Err)
	}
	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Fatalf("network requests = %d, want 2", got)
	}
}

func TestUndecodablePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not an image"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	r := fetchResult(t, f, srv.URL+"/bad.png", Options{})
	if !errors.Is(r.Err, ErrUndecodablePayload) {
		t.Fatalf("err = %v, want ErrUndecodablePayload", r.Err)
	}
	if n := f.CacheLen(); n != 0 {
		t.Fatalf("undecodable payload was cached")
	}
}

func TestMalformedKeyFailsImmediately(t *testing.T) {
	f := newTestFetcher(t)
	missesBefore := testutil.ToFloat64(metrics.CacheMisses)
	failuresBefore := testutil.ToFloat64(metrics.FetchFailures.WithLabelValues("malformed_reference"))

	r := fetchResult(t, f, "not a fetchable url", Options{})
	if !errors.Is(r.Err, ErrMalformedReference) {
		t.Fatalf("err = %v, want ErrMalformedReference", r.Err)
	}

	// no download starts, so the rejection is a failure, not a cache miss
	if got := testutil.ToFloat64(metrics.CacheMisses); got != missesBefore {
		t.Fatalf("cache misses = %v, want %v", got, missesBefore)
	}
	if got := testutil.ToFloat64(metrics.FetchFailures.WithLabelValues("malformed_reference")); got != failuresBefore+1 {
		t.Fatalf("malformed_reference failures = %v, want %v", got, failuresBefore+1)
	}
}

func TestCancelSuppressesCallback(t *testing.T) {
	var requests int32
	payload := testPNG(t, 8, 8)
	release := make(chan struct{})
	received := make(chan struct{}, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		received <- struct{}{}
		<-release
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	key := srv.URL + "/slow.png"

	fired := make(chan struct{}, 1)
	h := f.Fetch(key, Options{}, func(Result) { fired <- struct{}{} })
	<-received
	h.Cancel()
	barrier(f) // the joiner is detached before the download settles
	close(release)

	select {
	case <-fired:
		t.Fatalf("cancelled handle received a callback")
	case <-time.After(200 * time.Millisecond):
	}

	// the key is fetchable again afterwards
	r := fetchResult(t, f, key, Options{})
	if r.Err != nil {
		t.Fatalf("refetch failed: %v", r.Err)
	}
	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Fatalf("network requests = %d, want 2", got)
	}
}

func TestCancelDetachesSingleJoinerOnly(t *testing.T) {
	payload := testPNG(t, 8, 8)
	release := make(chan struct{})
	received := make(chan struct{}, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
		<-release
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	key := srv.URL + "/shared-cancel.png"

	cancelledFired := make(chan struct{}, 1)
	survivorDone := make(chan Result, 1)

	h1 := f.Fetch(key, Options{}, func(Result) { cancelledFired <- struct{}{} })
	<-received
	f.Fetch(key, Options{}, func(r Result) { survivorDone <- r })
	barrier(f)

	h1.Cancel()
	barrier(f)
	close(release)

	select {
	case r := <-survivorDone:
		if r.Err != nil {
			t.Fatalf("surviving joiner failed: %v", r.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("surviving joiner never delivered")
	}
	select {
	case <-cancelledFired:
		t.Fatalf("cancelled joiner received a callback")
	default:
	}
}

func TestCancelKeySuppressesAllJoiners(t *testing.T) {
	var requests int32
	payload := testPNG(t, 8, 8)
	release := make(chan struct{})
	received := make(chan struct{}, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		received <- struct{}{}
		<-release
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	key := srv.URL + "/keyed-cancel.png"

	fired := make(chan struct{}, 2)
	f.Fetch(key, Options{}, func(Result) { fired <- struct{}{} })
	<-received
	f.Fetch(key, Options{}, func(Result) { fired <- struct{}{} })
	barrier(f)

	f.Cancel(key)
	barrier(f) // registry entry is gone before the download settles
	close(release)

	select {
	case <-fired:
		t.Fatalf("joiner of a cancelled key received a callback")
	case <-time.After(200 * time.Millisecond):
	}

	// nothing was cached, so a refetch goes back to the network
	r := fetchResult(t, f, key, Options{})
	if r.Err != nil {
		t.Fatalf("refetch failed: %v", r.Err)
	}
	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Fatalf("network requests = %d, want 2", got)
	}
}

func TestCancelAllTearsDownEveryFlight(t *testing.T) {
	var requests int32
	payload := testPNG(t, 8, 8)
	release := make(chan struct{})
	received := make(chan struct{}, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		received <- struct{}{}
		<-release
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	keyA := srv.URL + "/all-a.png"
	keyB := srv.URL + "/all-b.png"

	fired := make(chan struct{}, 2)
	f.Fetch(keyA, Options{}, func(Result) { fired <- struct{}{} })
	f.Fetch(keyB, Options{}, func(Result) { fired <- struct{}{} })
	<-received
	<-received

	f.CancelAll()
	barrier(f)
	close(release)

	select {
	case <-fired:
		t.Fatalf("joiner survived CancelAll")
	case <-time.After(200 * time.Millisecond):
	}

	for _, key := range []string{keyA, keyB} {
		if r := fetchResult(t, f, key, Options{}); r.Err != nil {
			t.Fatalf("refetch of %s failed: %v", key, r.Err)
		}
	}
	if got := atomic.LoadInt32(&requests); got != 4 {
		t.Fatalf("network requests = %d, want 4", got)
	}
}

func TestClearEmptiesCacheOnly(t *testing.T) {
	var requests int32
	payload := testPNG(t, 8, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	key := srv.URL + "/clear.png"

	if r := fetchResult(t, f, key, Options{}); r.Err != nil {
		t.Fatalf("fetch failed: %v", r.Err)
	}
	if n := f.CacheLen(); n != 1 {
		t.Fatalf("cache entries = %d, want 1", n)
	}

	f.Clear()
	if n := f.CacheLen(); n != 0 {
		t.Fatalf("cache not empty after Clear")
	}

	if r := fetchResult(t, f, key, Options{}); r.Err != nil {
		t.Fatalf("refetch failed: %v", r.Err)
	}
	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Fatalf("network requests = %d, want 2", got)
	}
}

func TestClientResizeDownsamplesBeforeCaching(t *testing.T) {
	payload := testPNG(t, 200, 100)
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	key := srv.URL + "/big.png"

	r := fetchResult(t, f, key, Options{ClientResizeWidth: 50})
	if r.Err != nil {
		t.Fatalf("fetch failed: %v", r.Err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(r.Data))
	if err != nil {
		t.Fatalf("result is not a PNG: %v", err)
	}
	if cfg.Width != 50 || cfg.Height != 25 {
		t.Fatalf("downsampled to %dx%d, want 50x25", cfg.Width, cfg.Height)
	}

	// the downsampled payload is what got cached
	r = fetchResult(t, f, key, Options{ClientResizeWidth: 50})
	if r.Err != nil {
		t.Fatalf("cached fetch failed: %v", r.Err)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Fatalf("network requests = %d, want 1", got)
	}
}

func TestDownsampleFailureKeepsOriginalBytes(t *testing.T) {
	// a payload that passes DecodeConfig but fails a full decode: a PNG
	// header with a truncated body
	full := testPNG(t, 64, 64)
	truncated := full[:len(full)/2]

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(truncated)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	r := fetchResult(t, f, srv.URL+"/broken.png", Options{ClientResizeWidth: 32})
	if !errors.Is(r.Err, ErrDownsample) {
		t.Fatalf("err = %v, want ErrDownsample", r.Err)
	}
	if !bytes.Equal(r.Data, truncated) {
		t.Fatalf("original bytes not carried on downsample failure")
	}
	if n := f.CacheLen(); n != 0 {
		t.Fatalf("downsample failure was cached")
	}
}
