package models

import "time"

const (
	OfferStatusPending  = "pending"
	OfferStatusAccepted = "accepted"
	OfferStatusDeclined = "declined"
	OfferStatusExpired  = "expired"
)

type Offer struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ListingID   uint       `gorm:"not null;index" json:"listing_id"`
	Listing     Listing    `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
	BuyerID     uint       `gorm:"not null;index" json:"buyer_id"`
	Amount      int64      `gorm:"type:bigint;not null" json:"amount"` // minor units
	Status      string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ExpiresAt   *time.Time `gorm:"type:timestamp;default:null;index" json:"expires_at,omitempty"`
	RespondedAt *time.Time `gorm:"type:timestamp;default:null" json:"responded_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
