package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gpuslave/uikit-gallery-v2/internal/constants"
	"github.com/gpuslave/uikit-gallery-v2/internal/fetcher"
	"github.com/gpuslave/uikit-gallery-v2/internal/imageref"
	"github.com/gpuslave/uikit-gallery-v2/internal/logging"
	"github.com/gpuslave/uikit-gallery-v2/internal/photo"
	"github.com/gpuslave/uikit-gallery-v2/internal/storage"
)

// PhotoHandler serves the gallery catalog and its image variants.
type PhotoHandler struct {
	repo         storage.Repository
	fetcher      *fetcher.Fetcher
	resolver     imageref.Resolver
	fetchTimeout time.Duration
}

func NewPhotoHandler(repo storage.Repository, f *fetcher.Fetcher, resolver imageref.Resolver, fetchTimeout time.Duration) *PhotoHandler {
	return &PhotoHandler{repo: repo, fetcher: f, resolver: resolver, fetchTimeout: fetchTimeout}
}

// ListPhotos returns the full catalog.
func (h *PhotoHandler) ListPhotos(c *gin.Context) {
	photos, err := h.repo.GetPhotos()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{constants.JSONKeyError: constants.ErrFailedFetchPhotos})
		return
	}
	out, err := MarshalIntoSnakeTimestamps(photos)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{constants.JSONKeyError: constants.ErrFailedEncodePhotos})
		return
	}
	c.JSON(http.StatusOK, out)
}

// ServeThumbnail resolves a photo's reference for the requested display
// width and streams the variant. URL format:
// /api/photos/:photoID/thumbnail?width=240
func (h *PhotoHandler) ServeThumbnail(c *gin.Context) {
	p, ok := h.lookupPhoto(c)
	if !ok {
		return
	}
	width, err := strconv.Atoi(c.DefaultQuery("width", strconv.Itoa(constants.DefaultThumbnailWidth)))
	if err != nil || width <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrInvalidWidth})
		return
	}

	res := h.resolver.ResolveThumbnail(p.Reference, width)
	opts := fetcher.Options{}
	if res.NeedsClientResize {
		opts.ClientResizeWidth = width
	}
	h.serveFetch(c, res.Key, opts)
}

// ServeImage streams the full-size variant of a photo.
func (h *PhotoHandler) ServeImage(c *gin.Context) {
	p, ok := h.lookupPhoto(c)
	if !ok {
		return
	}
	h.serveFetch(c, h.resolver.ResolveFullSize(p.Reference), fetcher.Options{})
}

// ClearCache empties the image cache. In-flight downloads keep running.
func (h *PhotoHandler) ClearCache(c *gin.Context) {
	h.fetcher.Clear()
	logging.Info("image cache cleared", nil)
	c.JSON(http.StatusOK, gin.H{constants.JSONKeyStatus: "cleared"})
}

// CancelAllFetches tears down every in-flight download.
func (h *PhotoHandler) CancelAllFetches(c *gin.Context) {
	h.fetcher.CancelAll()
	logging.Info("in-flight fetches cancelled", nil)
	c.JSON(http.StatusOK, gin.H{constants.JSONKeyStatus: "cancelled"})
}

func (h *PhotoHandler) lookupPhoto(c *gin.Context) (*photo.Photo, bool) {
	id, err := strconv.ParseUint(c.Param("photoID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrInvalidPhotoID})
		return nil, false
	}
	rec, err := h.repo.GetPhotoByID(uint(id))
	if err != nil || rec == nil {
		c.JSON(http.StatusNotFound, gin.H{constants.JSONKeyError: constants.ErrPhotoNotFound})
		return nil, false
	}
	return rec, true
}

// serveFetch runs a fetch for key and streams the outcome. The request
// context propagates to the fetch handle: a client that disconnects
// detaches its joiner, and the shared download only stops when the last
// interested request goes away.
func (h *PhotoHandler) serveFetch(c *gin.Context, key string, opts fetcher.Options) {
	done := make(chan fetcher.Result, 1)
	handle := h.fetcher.Fetch(key, opts, func(r fetcher.Result) { done <- r })

	select {
	case r := <-done:
		h.writeResult(c, r)
	case <-c.Request.Context().Done():
		handle.Cancel()
	case <-time.After(h.fetchTimeout + time.Second):
		// the fetcher bounds each download; this is a safety net
		handle.Cancel()
		c.JSON(http.StatusGatewayTimeout, gin.H{constants.JSONKeyError: constants.ErrFetchTimedOut})
	}
}

func (h *PhotoHandler) writeResult(c *gin.Context, r fetcher.Result) {
	if r.Err != nil && !errors.Is(r.Err, fetcher.ErrDownsample) {
		status := http.StatusBadGateway
		if errors.Is(r.Err, fetcher.ErrMalformedReference) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{constants.JSONKeyError: constants.ErrFailedFetchImage, constants.JSONKeyDetails: r.Err.Error()})
		return
	}
	// On a downsample failure the result still carries the original
	// download; serve that rather than nothing.
	if r.Err != nil {
		logging.Warn("serving undownsampled image", logging.Fields{constants.LogFieldKey: r.Key, "error": r.Err.Error()})
	}
	ct := r.ContentType
	if ct == "" {
		ct = constants.ContentTypePNG
	}
	c.Header(constants.HeaderContentType, ct)
	c.Header(constants.CacheControlHeader, constants.CacheControlThumbnails)
	c.Writer.WriteHeader(http.StatusOK)
	_, _ = c.Writer.Write(r.Data)
}
