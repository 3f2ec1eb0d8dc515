package storage

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gpuslave/uikit-gallery-v2/internal/photo"
)

type sqliteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository wraps an opened gorm DB in the Repository interface.
func NewSQLiteRepository(db *gorm.DB) Repository {
	return &sqliteRepository{db: db}
}

func (r *sqliteRepository) GetPhotos() ([]photo.Photo, error) {
	var photos []photo.Photo
	if err := r.db.Order("id").Find(&photos).Error; err != nil {
		return nil, err
	}
	return photos, nil
}

func (r *sqliteRepository) GetPhotoByID(id uint) (*photo.Photo, error) {
	var p photo.Photo
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *sqliteRepository) UpsertUser(email, uuid, name string) error {
	u := photo.User{Email: email, UUID: uuid, Name: name}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"uuid", "name", "updated_at"}),
	}).Create(&u).Error
}

func (r *sqliteRepository) GetUserByEmail(email string) (*photo.User, error) {
	var u photo.User
	if err := r.db.Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
