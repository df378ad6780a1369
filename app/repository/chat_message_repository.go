package repository

import (
	"time"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// chatMessageRepository implements the ChatMessageRepository interface
type chatMessageRepository struct {
	db *gorm.DB
}

// NewChatMessageRepository creates a new chat message repository instance
func NewChatMessageRepository(db *gorm.DB) ChatMessageRepository {
	return &chatMessageRepository{db: db}
}

// CreateIfNotExists inserts the message mirror row unless the provider
// message id is already present. Returns true when the row was created.
func (r *chatMessageRepository) CreateIfNotExists(message *models.ChatMessage) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}},
		DoNothing: true,
	}).Create(message)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// GetByMessageID retrieves a message mirror row by the provider message id
func (r *chatMessageRepository) GetByMessageID(messageID string) (*models.ChatMessage, error) {
	var message models.ChatMessage
	err := r.db.Where("message_id = ?", messageID).First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// UpdateByMessageID applies the given column updates to the message with
// the provider message id and returns the affected row count.
func (r *chatMessageRepository) UpdateByMessageID(messageID string, updates map[string]interface{}) (int64, error) {
	tx := r.db.Model(&models.ChatMessage{}).
		Where("message_id = ?", messageID).
		Updates(updates)
	return tx.RowsAffected, tx.Error
}

// SoftDelete flags the message as deleted without removing the row.
// Replays keep the first deletion timestamp.
func (r *chatMessageRepository) SoftDelete(messageID string, deletedAt time.Time) (int64, error) {
	tx := r.db.Model(&models.ChatMessage{}).
		Where("message_id = ? AND is_deleted = ?", messageID, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": &deletedAt,
		})
	return tx.RowsAffected, tx.Error
}

// MarkRead stamps read_at on every unread message in the channel that was
// not sent by the reader themselves.
func (r *chatMessageRepository) MarkRead(channelID, readerID string, readAt time.Time) (int64, error) {
	tx := r.db.Model(&models.ChatMessage{}).
		Where("channel_id = ? AND sender_id <> ? AND read_at IS NULL AND is_deleted = ?", channelID, readerID, false).
		Updates(map[string]interface{}{"read_at": &readAt})
	return tx.RowsAffected, tx.Error
}

// AddReaction inserts a reaction unless the same user already reacted with
// the same type on the message. Returns true when the row was created.
func (r *chatMessageRepository) AddReaction(reaction *models.MessageReaction) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}, {Name: "type"}},
		DoNothing: true,
	}).Create(reaction)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// RemoveReaction deletes exactly the reaction identified by message, user
// and type and returns the affected row count.
func (r *chatMessageRepository) RemoveReaction(messageID, userID, reactionType string) (int64, error) {
	tx := r.db.Where("message_id = ? AND user_id = ? AND type = ?", messageID, userID, reactionType).
		Delete(&models.MessageReaction{})
	return tx.RowsAffected, tx.Error
}
