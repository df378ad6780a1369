package repository

import (
	"time"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// finixEventRepository implements the FinixEventRepository interface
type finixEventRepository struct {
	db *gorm.DB
}

// NewFinixEventRepository creates a new gateway twin repository instance
func NewFinixEventRepository(db *gorm.DB) FinixEventRepository {
	return &finixEventRepository{db: db}
}

// CreateIfNotExists inserts the twin unless one with the same event id exists
func (r *finixEventRepository) CreateIfNotExists(event *models.FinixWebhookEvent) (bool, *models.FinixWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.FinixWebhookEvent
	if err := r.db.Where("event_id = ?", event.EventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// GetByEventID retrieves a twin by its provider event id
func (r *finixEventRepository) GetByEventID(eventID string) (*models.FinixWebhookEvent, error) {
	var event models.FinixWebhookEvent
	err := r.db.Where("event_id = ?", eventID).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkProcessing transitions the twin to processing with an atomic attempt increment
func (r *finixEventRepository) MarkProcessing(eventID string) error {
	updates := map[string]interface{}{
		"status":        models.WebhookStatusProcessing,
		"attempt_count": gorm.Expr("attempt_count + ?", 1),
	}
	return r.db.Model(&models.FinixWebhookEvent{}).Where("event_id = ?", eventID).Updates(updates).Error
}

// MarkProcessed transitions the twin to processed and stores the handler outcome
func (r *finixEventRepository) MarkProcessed(eventID, outcome string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       models.WebhookStatusProcessed,
		"processed_at": &now,
		"outcome":      outcome,
		"last_error":   "",
	}
	return r.db.Model(&models.FinixWebhookEvent{}).Where("event_id = ?", eventID).Updates(updates).Error
}

// MarkFailed transitions the twin to failed and stores the error
func (r *finixEventRepository) MarkFailed(eventID, processingError string) error {
	updates := map[string]interface{}{
		"status":     models.WebhookStatusFailed,
		"last_error": processingError,
	}
	return r.db.Model(&models.FinixWebhookEvent{}).Where("event_id = ?", eventID).Updates(updates).Error
}

// ListByStatus returns twins filtered by status and optionally entity
func (r *finixEventRepository) ListByStatus(status, entity string, offset, limit int) ([]models.FinixWebhookEvent, error) {
	var events []models.FinixWebhookEvent
	query := r.db.Model(&models.FinixWebhookEvent{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if entity != "" {
		query = query.Where("entity = ?", entity)
	}
	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&events).Error
	return events, err
}
