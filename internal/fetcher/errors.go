package fetcher

import (
	"context"
	"errors"
)

// Sentinel failure classes for a fetch attempt. All are terminal: the
// attempt is delivered to every joiner and nothing is cached.
var (
	// ErrMalformedReference means the resource key is not a fetchable
	// URL. Reported immediately, before any download is registered.
	ErrMalformedReference = errors.New("malformed image reference")

	// ErrBadStatus means the server answered outside the 2xx range.
	ErrBadStatus = errors.New("unexpected response status")

	// ErrUndecodablePayload means bytes arrived but are not a valid image.
	ErrUndecodablePayload = errors.New("undecodable image payload")

	// ErrDownsample means the downloaded image was valid but client-side
	// thumbnail generation failed. The delivered Result still carries the
	// original bytes so callers may fall back to the full-size payload.
	ErrDownsample = errors.New("thumbnail downsample failed")
)

// failureReason maps a fetch error to a metrics label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedReference):
		return "malformed_reference"
	case errors.Is(err, ErrBadStatus):
		return "bad_status"
	case errors.Is(err, ErrUndecodablePayload):
		return "undecodable_payload"
	case errors.Is(err, ErrDownsample):
		return "downsample"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "network"
	}
}
