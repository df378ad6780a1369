package repository

import (
	"time"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Count() (int64, error)
}

// WebhookEventRepository defines the operations on the generic event store.
// Rows are created by the ingestor and mutated only by the dispatcher.
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	GetByID(id uint) (*models.WebhookEvent, error)
	GetByProviderEventID(provider, eventID string) (*models.WebhookEvent, error)
	MarkProcessing(id uint) error
	MarkProcessed(id uint) error
	MarkFailed(id uint, processingError string) error
	ListByStatus(status, provider string, offset, limit int) ([]models.WebhookEvent, error)
	CountByStatus(status, provider string) (int64, error)
	FindStuck(olderThan time.Time, limit int) ([]models.WebhookEvent, error)
	GetDailyStats(startDate, endDate string) ([]models.WebhookDailyStat, error)
}

// FinixEventRepository maintains the payment-gateway twin records.
type FinixEventRepository interface {
	CreateIfNotExists(event *models.FinixWebhookEvent) (bool, *models.FinixWebhookEvent, error)
	GetByEventID(eventID string) (*models.FinixWebhookEvent, error)
	MarkProcessing(eventID string) error
	MarkProcessed(eventID, outcome string) error
	MarkFailed(eventID, processingError string) error
	ListByStatus(status, entity string, offset, limit int) ([]models.FinixWebhookEvent, error)
}

// ChatEventRepository maintains the chat-provider twin records.
type ChatEventRepository interface {
	CreateIfNotExists(event *models.ChatWebhookEvent) (bool, *models.ChatWebhookEvent, error)
	GetByEventID(eventID string) (*models.ChatWebhookEvent, error)
	MarkProcessing(eventID string) error
	MarkProcessed(eventID, outcome string) error
	MarkFailed(eventID, processingError string) error
}

// MerchantOnboardingRepository defines operations on the identity
// correlation record. Writes are field-scoped and conditional so
// concurrent events for the same identity cannot lose updates.
type MerchantOnboardingRepository interface {
	CreateIfNotExists(rec *models.MerchantOnboarding) (bool, *models.MerchantOnboarding, error)
	GetByFormID(formID string) (*models.MerchantOnboarding, error)
	GetByIdentityID(identityID string) (*models.MerchantOnboarding, error)
	GetByUserID(userID uint) (*models.MerchantOnboarding, error)
	BindIdentity(formID, identityID string, onboardedAt time.Time) (int64, error)
	UpdateByIdentityID(identityID string, updates map[string]interface{}) (int64, error)
	SetVerifiedAt(identityID string, verifiedAt time.Time) error
	ClearVerifiedAt(identityID string) error
	List(state string, offset, limit int) ([]models.MerchantOnboarding, error)
}

// OrderRepository defines the order operations owned by the payment engine.
// TransitionStatus applies a compare-and-swap update gated on the allowed
// predecessor statuses and reports the affected row count.
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetByUUID(uuid string) (*models.Order, error)
	GetByAuthorizationID(authorizationID string) (*models.Order, error)
	GetByInstrumentID(instrumentID string) (*models.Order, error)
	GetByTransferID(transferID string) (*models.Order, error)
	TransitionStatus(id uint, from []string, updates map[string]interface{}) (int64, error)
	SetTransferID(id uint, transferID string) error
	SetThreeDSCompleted(id uint, completedAt time.Time) error
	AttachDispute(id uint, updates map[string]interface{}) error
}

// ListingRepository defines the listing fields this engine owns.
type ListingRepository interface {
	Create(listing *models.Listing) error
	GetByID(id uint) (*models.Listing, error)
	GetByUUID(uuid string) (*models.Listing, error)
	MarkSold(id uint, soldAt time.Time) (int64, error)
	Reopen(id uint) (int64, error)
}

// OfferRepository defines offer operations including the recurring
// expiry sweep.
type OfferRepository interface {
	Create(offer *models.Offer) error
	GetByID(id uint) (*models.Offer, error)
	ExpireDue(now time.Time) (int64, error)
}

// ChatChannelRepository mirrors chat-provider channels.
type ChatChannelRepository interface {
	Upsert(channel *models.ChatChannel) error
	EnsureExists(channel *models.ChatChannel) error
	GetByChannelID(channelID string) (*models.ChatChannel, error)
}

// ChatMessageRepository mirrors chat-provider messages and reactions.
type ChatMessageRepository interface {
	CreateIfNotExists(msg *models.ChatMessage) (bool, error)
	GetByMessageID(messageID string) (*models.ChatMessage, error)
	UpdateByMessageID(messageID string, updates map[string]interface{}) (int64, error)
	SoftDelete(messageID string, deletedAt time.Time) (int64, error)
	MarkRead(channelID, readerID string, readAt time.Time) (int64, error)
	AddReaction(reaction *models.MessageReaction) (bool, error)
	RemoveReaction(messageID, userID, reactionType string) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User               UserRepository
	WebhookEvent       WebhookEventRepository
	FinixEvent         FinixEventRepository
	ChatEvent          ChatEventRepository
	MerchantOnboarding MerchantOnboardingRepository
	Order              OrderRepository
	Listing            ListingRepository
	Offer              OfferRepository
	ChatChannel        ChatChannelRepository
	ChatMessage        ChatMessageRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:               NewUserRepository(db),
		WebhookEvent:       NewWebhookEventRepository(db),
		FinixEvent:         NewFinixEventRepository(db),
		ChatEvent:          NewChatEventRepository(db),
		MerchantOnboarding: NewMerchantOnboardingRepository(db),
		Order:              NewOrderRepository(db),
		Listing:            NewListingRepository(db),
		Offer:              NewOfferRepository(db),
		ChatChannel:        NewChatChannelRepository(db),
		ChatMessage:        NewChatMessageRepository(db),
	}
}
