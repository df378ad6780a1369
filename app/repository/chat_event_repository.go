package repository

import (
	"time"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// chatEventRepository implements the ChatEventRepository interface
type chatEventRepository struct {
	db *gorm.DB
}

// NewChatEventRepository creates a new chat twin repository instance
func NewChatEventRepository(db *gorm.DB) ChatEventRepository {
	return &chatEventRepository{db: db}
}

// CreateIfNotExists inserts the twin unless one with the same event id exists
func (r *chatEventRepository) CreateIfNotExists(event *models.ChatWebhookEvent) (bool, *models.ChatWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.ChatWebhookEvent
	if err := r.db.Where("event_id = ?", event.EventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// GetByEventID retrieves a twin by its provider event id
func (r *chatEventRepository) GetByEventID(eventID string) (*models.ChatWebhookEvent, error) {
	var event models.ChatWebhookEvent
	err := r.db.Where("event_id = ?", eventID).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkProcessing transitions the twin to processing with an atomic attempt increment
func (r *chatEventRepository) MarkProcessing(eventID string) error {
	updates := map[string]interface{}{
		"status":        models.WebhookStatusProcessing,
		"attempt_count": gorm.Expr("attempt_count + ?", 1),
	}
	return r.db.Model(&models.ChatWebhookEvent{}).Where("event_id = ?", eventID).Updates(updates).Error
}

// MarkProcessed transitions the twin to processed and stores the handler outcome
func (r *chatEventRepository) MarkProcessed(eventID, outcome string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       models.WebhookStatusProcessed,
		"processed_at": &now,
		"outcome":      outcome,
		"last_error":   "",
	}
	return r.db.Model(&models.ChatWebhookEvent{}).Where("event_id = ?", eventID).Updates(updates).Error
}

// MarkFailed transitions the twin to failed and stores the error
func (r *chatEventRepository) MarkFailed(eventID, processingError string) error {
	updates := map[string]interface{}{
		"status":     models.WebhookStatusFailed,
		"last_error": processingError,
	}
	return r.db.Model(&models.ChatWebhookEvent{}).Where("event_id = ?", eventID).Updates(updates).Error
}
