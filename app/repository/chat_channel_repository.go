package repository

import (
	"github.com/LucaWinkler/FlohMarkt/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// chatChannelRepository implements the ChatChannelRepository interface
type chatChannelRepository struct {
	db *gorm.DB
}

// NewChatChannelRepository creates a new chat channel repository instance
func NewChatChannelRepository(db *gorm.DB) ChatChannelRepository {
	return &chatChannelRepository{db: db}
}

// Upsert creates the channel mirror row or refreshes its mutable fields
// when the provider id is already known.
func (r *chatChannelRepository) Upsert(channel *models.ChatChannel) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"channel_type", "listing_id", "offer_id", "order_id", "custom_data", "updated_at"}),
	}).Create(channel).Error
}

// EnsureExists creates the channel shell when it is missing and leaves an
// existing row untouched. Message events use this so they never clobber
// correlation ids written by a channel event.
func (r *chatChannelRepository) EnsureExists(channel *models.ChatChannel) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}},
		DoNothing: true,
	}).Create(channel).Error
}

// GetByChannelID retrieves a channel mirror row by the provider channel id
func (r *chatChannelRepository) GetByChannelID(channelID string) (*models.ChatChannel, error) {
	var channel models.ChatChannel
	err := r.db.Where("channel_id = ?", channelID).First(&channel).Error
	if err != nil {
		return nil, err
	}
	return &channel, nil
}
