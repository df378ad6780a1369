package repository

import (
	"time"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"gorm.io/gorm"
)

// listingRepository implements the ListingRepository interface
type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository creates a new listing repository instance
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

// Create creates a new listing in the database
func (r *listingRepository) Create(listing *models.Listing) error {
	return r.db.Create(listing).Error
}

// GetByID retrieves a listing by its primary key
func (r *listingRepository) GetByID(id uint) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.First(&listing, id).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// GetByUUID retrieves a listing by its public UUID
func (r *listingRepository) GetByUUID(uuid string) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.Where("uuid = ?", uuid).First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// MarkSold moves the listing to sold and clears the reservation fields.
// Guarded on the current status so a replayed settlement keeps the first
// sold_at timestamp.
func (r *listingRepository) MarkSold(id uint, soldAt time.Time) (int64, error) {
	updates := map[string]interface{}{
		"status":            models.ListingStatusSold,
		"sold_at":           &soldAt,
		"reserved_order_id": nil,
		"reserved_at":       nil,
	}
	tx := r.db.Model(&models.Listing{}).
		Where("id = ? AND status IN ?", id, []string{models.ListingStatusActive, models.ListingStatusReserved}).
		Updates(updates)
	return tx.RowsAffected, tx.Error
}

// Reopen returns the listing to active and clears reservation and sale fields
func (r *listingRepository) Reopen(id uint) (int64, error) {
	updates := map[string]interface{}{
		"status":            models.ListingStatusActive,
		"sold_at":           nil,
		"reserved_order_id": nil,
		"reserved_at":       nil,
	}
	tx := r.db.Model(&models.Listing{}).
		Where("id = ? AND status <> ?", id, models.ListingStatusActive).
		Updates(updates)
	return tx.RowsAffected, tx.Error
}
