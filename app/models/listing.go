package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ListingStatusActive   = "active"
	ListingStatusReserved = "reserved"
	ListingStatusSold     = "sold"
)

type Listing struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UUID        string `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	SellerID    uint   `gorm:"not null;index" json:"seller_id"`
	Seller      User   `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
	Title       string `gorm:"type:varchar(255);not null" json:"title" validate:"required,max=255"`
	Description string `gorm:"type:text" json:"description"`
	Price       int64  `gorm:"type:bigint;not null" json:"price"` // minor units
	Currency    string `gorm:"type:varchar(3);default:'EUR'" json:"currency"`
	Status      string `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`

	// reservation fields, cleared when the order settles or refunds
	ReservedOrderID *uint      `gorm:"index;default:null" json:"reserved_order_id,omitempty"`
	ReservedAt      *time.Time `gorm:"type:timestamp;default:null" json:"reserved_at,omitempty"`
	SoldAt          *time.Time `gorm:"type:timestamp;default:null" json:"sold_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate generates the public UUID if not set
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.UUID == "" {
		l.UUID = uuid.New().String()
	}
	return nil
}
