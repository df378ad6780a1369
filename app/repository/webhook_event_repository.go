package repository

import (
	"time"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// webhookEventRepository implements the WebhookEventRepository interface
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new event store repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// CreateIfNotExists inserts the event unless one with the same provider and
// event id already exists. Returns whether a row was created plus the stored
// record either way, so duplicate deliveries resolve to the original row.
func (r *webhookEventRepository) CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND event_id = ?", event.Provider, event.EventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// GetByID retrieves an event by its primary key
func (r *webhookEventRepository) GetByID(id uint) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.First(&event, id).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// GetByProviderEventID retrieves an event by its provider-assigned id
func (r *webhookEventRepository) GetByProviderEventID(provider, eventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.Where("provider = ? AND event_id = ?", provider, eventID).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkProcessing transitions the event to processing and increments the
// attempt counter in a single atomic update. The increment runs in SQL so
// concurrent duplicate deliveries cannot double-apply it.
func (r *webhookEventRepository) MarkProcessing(id uint) error {
	updates := map[string]interface{}{
		"status":        models.WebhookStatusProcessing,
		"attempt_count": gorm.Expr("attempt_count + ?", 1),
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

// MarkProcessed transitions the event to processed with a timestamp
func (r *webhookEventRepository) MarkProcessed(id uint) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       models.WebhookStatusProcessed,
		"processed_at": &now,
		"last_error":   "",
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

// MarkFailed transitions the event to failed and stores the error
func (r *webhookEventRepository) MarkFailed(id uint, processingError string) error {
	updates := map[string]interface{}{
		"status":     models.WebhookStatusFailed,
		"last_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

// ListByStatus returns events filtered by status and optionally provider
func (r *webhookEventRepository) ListByStatus(status, provider string, offset, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	query := r.db.Model(&models.WebhookEvent{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if provider != "" {
		query = query.Where("provider = ?", provider)
	}
	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&events).Error
	return events, err
}

// CountByStatus counts events filtered by status and optionally provider
func (r *webhookEventRepository) CountByStatus(status, provider string) (int64, error) {
	var count int64
	query := r.db.Model(&models.WebhookEvent{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if provider != "" {
		query = query.Where("provider = ?", provider)
	}
	err := query.Count(&count).Error
	return count, err
}

// FindStuck returns events still sitting in received or processing past the
// given age. Used by the reconcile sweep to recover from crashes between
// the durable insert and the enqueue.
func (r *webhookEventRepository) FindStuck(olderThan time.Time, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.
		Where("status IN ? AND updated_at < ?", []string{models.WebhookStatusReceived, models.WebhookStatusProcessing}, olderThan).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// GetDailyStats returns the flushed per-day counters in a date range (inclusive)
func (r *webhookEventRepository) GetDailyStats(startDate, endDate string) ([]models.WebhookDailyStat, error) {
	var stats []models.WebhookDailyStat
	err := r.db.
		Where("date >= ? AND date <= ?", startDate, endDate).
		Order("date ASC, provider ASC").
		Find(&stats).Error
	return stats, err
}
