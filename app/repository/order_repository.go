package repository

import (
	"time"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"gorm.io/gorm"
)

// orderRepository implements the OrderRepository interface
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository instance
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create creates a new order in the database
func (r *orderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

// GetByID retrieves an order by its primary key
func (r *orderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByUUID retrieves an order by its public UUID
func (r *orderRepository) GetByUUID(uuid string) (*models.Order, error) {
	var order models.Order
	err := r.db.Where("uuid = ?", uuid).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByAuthorizationID retrieves an order by its gateway authorization id
func (r *orderRepository) GetByAuthorizationID(authorizationID string) (*models.Order, error) {
	var order models.Order
	err := r.db.Where("finix_authorization_id = ?", authorizationID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByInstrumentID retrieves an order by its gateway payment instrument id
func (r *orderRepository) GetByInstrumentID(instrumentID string) (*models.Order, error) {
	var order models.Order
	err := r.db.Where("finix_instrument_id = ?", instrumentID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByTransferID retrieves an order by its gateway transfer id
func (r *orderRepository) GetByTransferID(transferID string) (*models.Order, error) {
	var order models.Order
	err := r.db.Where("finix_transfer_id = ?", transferID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// TransitionStatus applies a compare-and-swap status update. The row is only
// touched while its status is one of the allowed predecessors, so concurrent
// and redelivered events cannot regress a later state or double-apply
// timestamps. The affected row count tells the caller whether the
// transition fired.
func (r *orderRepository) TransitionStatus(id uint, from []string, updates map[string]interface{}) (int64, error) {
	tx := r.db.Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return tx.RowsAffected, tx.Error
}

// SetTransferID records the gateway transfer id on the order
func (r *orderRepository) SetTransferID(id uint, transferID string) error {
	return r.db.Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"finix_transfer_id": transferID}).Error
}

// SetThreeDSCompleted stamps the 3DS completion time once. Replays keep the
// first timestamp because the condition only matches a NULL column.
func (r *orderRepository) SetThreeDSCompleted(id uint, completedAt time.Time) error {
	return r.db.Model(&models.Order{}).
		Where("id = ? AND three_ds_completed_at IS NULL", id).
		Updates(map[string]interface{}{"three_ds_completed_at": &completedAt}).Error
}

// AttachDispute writes the dispute sub-state fields without touching status
func (r *orderRepository) AttachDispute(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}
