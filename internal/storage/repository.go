package storage

import (
	"github.com/gpuslave/uikit-gallery-v2/internal/photo"
)

// Repository is the persistence surface the API and prefetch layers use.
type Repository interface {
	// GetPhotos returns the full gallery catalog in insertion order.
	GetPhotos() ([]photo.Photo, error)
	// GetPhotoByID returns a single catalog entry.
	GetPhotoByID(id uint) (*photo.Photo, error)

	// UpsertUser creates or refreshes an account row after OAuth login.
	UpsertUser(email, uuid, name string) error
	// GetUserByEmail returns the account for email, if any.
	GetUserByEmail(email string) (*photo.User, error)
}
