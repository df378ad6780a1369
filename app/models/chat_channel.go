package models

import (
	"time"

	"gorm.io/datatypes"
)

// ChatChannel mirrors a chat-provider channel together with the marketplace
// correlation ids carried in the channel metadata block.
type ChatChannel struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ChannelID   string         `gorm:"type:varchar(191);not null;uniqueIndex" json:"channel_id"`
	ChannelType string         `gorm:"type:varchar(50)" json:"channel_type"`
	ListingID   *uint          `gorm:"index;default:null" json:"listing_id,omitempty"`
	OfferID     *uint          `gorm:"index;default:null" json:"offer_id,omitempty"`
	OrderID     *uint          `gorm:"index;default:null" json:"order_id,omitempty"`
	CustomData  datatypes.JSON `gorm:"type:json" json:"custom_data"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
