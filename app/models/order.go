package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	OrderStatusCreated    = "created"
	OrderStatusAuthorized = "authorized"
	OrderStatusPending    = "pending"
	OrderStatusPaid       = "paid"
	OrderStatusRefunded   = "refunded"
	OrderStatusCancelled  = "cancelled"
)

type Order struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	UUID      string  `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	ListingID uint    `gorm:"not null;index" json:"listing_id"`
	Listing   Listing `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
	BuyerID   uint    `gorm:"not null;index" json:"buyer_id"`
	Buyer     User    `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	SellerID  uint    `gorm:"not null;index" json:"seller_id"`
	Amount    int64   `gorm:"type:bigint;not null" json:"amount"` // minor units
	Currency  string  `gorm:"type:varchar(3);default:'EUR'" json:"currency"`
	Status    string  `gorm:"type:varchar(20);not null;default:'created';index" json:"status"`

	// payment gateway correlation
	FinixAuthorizationID string `gorm:"type:varchar(64);index;default:null" json:"finix_authorization_id"`
	FinixTransferID      string `gorm:"type:varchar(64);index;default:null" json:"finix_transfer_id"`
	FinixInstrumentID    string `gorm:"type:varchar(64);index;default:null" json:"finix_instrument_id"`

	ThreeDSCompletedAt *time.Time `gorm:"type:timestamp;default:null" json:"three_ds_completed_at,omitempty"`
	PaidAt             *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	RefundedAt         *time.Time `gorm:"type:timestamp;default:null" json:"refunded_at,omitempty"`
	FailureCode        string     `gorm:"type:varchar(100);default:null" json:"failure_code"`
	FailureMessage     string     `gorm:"type:text" json:"failure_message"`

	// dispute sub-state, orthogonal to Status
	DisputeID        string     `gorm:"type:varchar(64);index;default:null" json:"dispute_id"`
	DisputeState     string     `gorm:"type:varchar(40);default:null" json:"dispute_state"`
	DisputeReason    string     `gorm:"type:varchar(255);default:null" json:"dispute_reason"`
	DisputeAmount    int64      `gorm:"type:bigint;default:0" json:"dispute_amount"`
	DisputeRespondBy *time.Time `gorm:"type:timestamp;default:null" json:"dispute_respond_by,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate generates the public UUID if not set
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.UUID == "" {
		o.UUID = uuid.New().String()
	}
	return nil
}

// IsTerminal reports whether the order reached a final payment state.
// Paid is not terminal, a paid order can still be refunded.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusRefunded || o.Status == OrderStatusCancelled
}
