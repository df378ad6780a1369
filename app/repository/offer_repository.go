package repository

import (
	"time"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"gorm.io/gorm"
)

// offerRepository implements the OfferRepository interface
type offerRepository struct {
	db *gorm.DB
}

// NewOfferRepository creates a new offer repository instance
func NewOfferRepository(db *gorm.DB) OfferRepository {
	return &offerRepository{db: db}
}

// Create creates a new offer in the database
func (r *offerRepository) Create(offer *models.Offer) error {
	return r.db.Create(offer).Error
}

// GetByID retrieves an offer by its primary key
func (r *offerRepository) GetByID(id uint) (*models.Offer, error) {
	var offer models.Offer
	err := r.db.First(&offer, id).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// ExpireDue marks all pending offers whose expiry lies before now as
// expired and returns how many rows were touched.
func (r *offerRepository) ExpireDue(now time.Time) (int64, error) {
	tx := r.db.Model(&models.Offer{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", models.OfferStatusPending, now).
		Updates(map[string]interface{}{
			"status":       models.OfferStatusExpired,
			"responded_at": &now,
		})
	return tx.RowsAffected, tx.Error
}
