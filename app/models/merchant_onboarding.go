package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	OnboardingStatePending         = "PENDING"
	OnboardingStateProvisioning    = "PROVISIONING"
	OnboardingStateApproved        = "APPROVED"
	OnboardingStateRejected        = "REJECTED"
	OnboardingStateUpdateRequested = "UPDATE_REQUESTED"

	VerificationStatePending   = "PENDING"
	VerificationStateSucceeded = "SUCCEEDED"
	VerificationStateFailed    = "FAILED"
)

// MerchantOnboarding verknüpft eine Gateway-Identity mit einem internen User
// und hält den Provisioning-Zustand des Händlers. Alle Gateway-Events nach
// dem ersten werden über IdentityID aufgelöst, nie über die interne UserID.
type MerchantOnboarding struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	UserID            uint           `gorm:"not null;index" json:"user_id"`
	User              User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	FormID            string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"form_id"`
	IdentityID        string         `gorm:"type:varchar(64);index;default:null" json:"identity_id"`
	MerchantID        string         `gorm:"type:varchar(64);index;default:null" json:"merchant_id"`
	VerificationID    string         `gorm:"type:varchar(64);default:null" json:"verification_id"`
	OnboardingState   string         `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"onboarding_state"`
	VerificationState string         `gorm:"type:varchar(20);default:null" json:"verification_state"`
	Tags              datatypes.JSON `gorm:"type:json" json:"tags"`
	OnboardedAt       *time.Time     `gorm:"type:timestamp;default:null" json:"onboarded_at,omitempty"`
	VerifiedAt        *time.Time     `gorm:"type:timestamp;default:null" json:"verified_at,omitempty"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsValidOnboardingState reports whether the gateway sent a state this
// machine knows. Unknown states are rejected at the handler boundary.
func IsValidOnboardingState(state string) bool {
	switch state {
	case OnboardingStatePending, OnboardingStateProvisioning, OnboardingStateApproved,
		OnboardingStateRejected, OnboardingStateUpdateRequested:
		return true
	}
	return false
}
