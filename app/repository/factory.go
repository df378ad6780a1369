package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetUserRepository returns the user repository instance
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

// GetWebhookEventRepository returns the generic event store repository instance
func (f *Factory) GetWebhookEventRepository() WebhookEventRepository {
	return f.GetRepositories().WebhookEvent
}

// GetFinixEventRepository returns the gateway twin repository instance
func (f *Factory) GetFinixEventRepository() FinixEventRepository {
	return f.GetRepositories().FinixEvent
}

// GetChatEventRepository returns the chat twin repository instance
func (f *Factory) GetChatEventRepository() ChatEventRepository {
	return f.GetRepositories().ChatEvent
}

// GetMerchantOnboardingRepository returns the correlation record repository instance
func (f *Factory) GetMerchantOnboardingRepository() MerchantOnboardingRepository {
	return f.GetRepositories().MerchantOnboarding
}

// GetOrderRepository returns the order repository instance
func (f *Factory) GetOrderRepository() OrderRepository {
	return f.GetRepositories().Order
}

// GetListingRepository returns the listing repository instance
func (f *Factory) GetListingRepository() ListingRepository {
	return f.GetRepositories().Listing
}

// GetOfferRepository returns the offer repository instance
func (f *Factory) GetOfferRepository() OfferRepository {
	return f.GetRepositories().Offer
}

// GetChatChannelRepository returns the chat channel repository instance
func (f *Factory) GetChatChannelRepository() ChatChannelRepository {
	return f.GetRepositories().ChatChannel
}

// GetChatMessageRepository returns the chat message repository instance
func (f *Factory) GetChatMessageRepository() ChatMessageRepository {
	return f.GetRepositories().ChatMessage
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
