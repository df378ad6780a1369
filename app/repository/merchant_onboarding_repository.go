package repository

import (
	"time"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// merchantOnboardingRepository implements the MerchantOnboardingRepository interface
type merchantOnboardingRepository struct {
	db *gorm.DB
}

// NewMerchantOnboardingRepository creates a new correlation record repository instance
func NewMerchantOnboardingRepository(db *gorm.DB) MerchantOnboardingRepository {
	return &merchantOnboardingRepository{db: db}
}

// CreateIfNotExists inserts the record unless one with the same form id
// exists. Returns the stored record either way.
func (r *merchantOnboardingRepository) CreateIfNotExists(rec *models.MerchantOnboarding) (bool, *models.MerchantOnboarding, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "form_id"}},
		DoNothing: true,
	}).Create(rec)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.MerchantOnboarding
	if err := r.db.Where("form_id = ?", rec.FormID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// GetByFormID retrieves a record by the gateway onboarding form id
func (r *merchantOnboardingRepository) GetByFormID(formID string) (*models.MerchantOnboarding, error) {
	var rec models.MerchantOnboarding
	err := r.db.Where("form_id = ?", formID).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByIdentityID retrieves a record by the gateway identity id
func (r *merchantOnboardingRepository) GetByIdentityID(identityID string) (*models.MerchantOnboarding, error) {
	var rec models.MerchantOnboarding
	err := r.db.Where("identity_id = ?", identityID).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByUserID retrieves a record by the owning internal user
func (r *merchantOnboardingRepository) GetByUserID(userID uint) (*models.MerchantOnboarding, error) {
	var rec models.MerchantOnboarding
	err := r.db.Where("user_id = ?", userID).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// BindIdentity writes the identity id and moves the record to PROVISIONING.
// The condition only matches an empty identity, which keeps identity_id
// immutable and keeps a redelivery from regressing a state a later
// merchant event already advanced. Zero affected rows means the identity
// was bound before; the caller decides whether that is the idempotent
// replay or a conflict.
func (r *merchantOnboardingRepository) BindIdentity(formID, identityID string, onboardedAt time.Time) (int64, error) {
	updates := map[string]interface{}{
		"identity_id":      identityID,
		"onboarding_state": models.OnboardingStateProvisioning,
		"onboarded_at":     &onboardedAt,
	}
	tx := r.db.Model(&models.MerchantOnboarding{}).
		Where("form_id = ? AND (identity_id IS NULL OR identity_id = '')", formID).
		Updates(updates)
	return tx.RowsAffected, tx.Error
}

// UpdateByIdentityID applies a field-scoped partial update keyed by identity
func (r *merchantOnboardingRepository) UpdateByIdentityID(identityID string, updates map[string]interface{}) (int64, error) {
	tx := r.db.Model(&models.MerchantOnboarding{}).
		Where("identity_id = ?", identityID).
		Updates(updates)
	return tx.RowsAffected, tx.Error
}

// SetVerifiedAt stamps the verification success time. The first success
// wins, a replayed event keeps the original timestamp.
func (r *merchantOnboardingRepository) SetVerifiedAt(identityID string, verifiedAt time.Time) error {
	return r.db.Model(&models.MerchantOnboarding{}).
		Where("identity_id = ? AND verified_at IS NULL", identityID).
		Update("verified_at", &verifiedAt).Error
}

// ClearVerifiedAt removes the verification success time after a failure
func (r *merchantOnboardingRepository) ClearVerifiedAt(identityID string) error {
	return r.db.Model(&models.MerchantOnboarding{}).
		Where("identity_id = ?", identityID).
		Update("verified_at", nil).Error
}

// List returns correlation records ordered by newest first, optionally
// filtered by onboarding state
func (r *merchantOnboardingRepository) List(state string, offset, limit int) ([]models.MerchantOnboarding, error) {
	var recs []models.MerchantOnboarding
	query := r.db.Model(&models.MerchantOnboarding{})
	if state != "" {
		query = query.Where("onboarding_state = ?", state)
	}
	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&recs).Error
	return recs, err
}
