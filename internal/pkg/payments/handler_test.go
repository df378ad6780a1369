package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/finix"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/webhook"
)

type fakeOrders struct {
	orders map[uint]*models.Order
}

func newFakeOrders(orders ...*models.Order) *fakeOrders {
	f := &fakeOrders{orders: make(map[uint]*models.Order)}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeOrders) Create(o *models.Order) error {
	f.orders[o.ID] = o
	return nil
}

func (f *fakeOrders) GetByID(id uint) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) GetByUUID(uuid string) (*models.Order, error) {
	for _, o := range f.orders {
		if o.UUID == uuid {
			cp := *o
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrders) GetByAuthorizationID(authorizationID string) (*models.Order, error) {
	for _, o := range f.orders {
		if o.FinixAuthorizationID == authorizationID && authorizationID != "" {
			cp := *o
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrders) GetByInstrumentID(instrumentID string) (*models.Order, error) {
	for _, o := range f.orders {
		if o.FinixInstrumentID == instrumentID && instrumentID != "" {
			cp := *o
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrders) GetByTransferID(transferID string) (*models.Order, error) {
	for _, o := range f.orders {
		if o.FinixTransferID == transferID && transferID != "" {
			cp := *o
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrders) TransitionStatus(id uint, from []string, updates map[string]interface{}) (int64, error) {
	o, ok := f.orders[id]
	if !ok {
		return 0, nil
	}
	allowed := false
	for _, s := range from {
		if o.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return 0, nil
	}
	applyOrderUpdates(o, updates)
	return 1, nil
}

func (f *fakeOrders) SetTransferID(id uint, transferID string) error {
	if o, ok := f.orders[id]; ok {
		o.FinixTransferID = transferID
	}
	return nil
}

func (f *fakeOrders) SetThreeDSCompleted(id uint, completedAt time.Time) error {
	if o, ok := f.orders[id]; ok && o.ThreeDSCompletedAt == nil {
		o.ThreeDSCompletedAt = &completedAt
	}
	return nil
}

func (f *fakeOrders) AttachDispute(id uint, updates map[string]interface{}) error {
	if o, ok := f.orders[id]; ok {
		applyOrderUpdates(o, updates)
	}
	return nil
}

func applyOrderUpdates(o *models.Order, updates map[string]interface{}) {
	for k, v := range updates {
		switch k {
		case "status":
			o.Status = v.(string)
		case "paid_at":
			o.PaidAt = v.(*time.Time)
		case "refunded_at":
			o.RefundedAt = v.(*time.Time)
		case "failure_code":
			o.FailureCode = v.(string)
		case "failure_message":
			o.FailureMessage = v.(string)
		case "dispute_id":
			o.DisputeID = v.(string)
		case "dispute_state":
			o.DisputeState = v.(string)
		case "dispute_reason":
			o.DisputeReason = v.(string)
		case "dispute_amount":
			o.DisputeAmount = v.(int64)
		case "dispute_respond_by":
			o.DisputeRespondBy = v.(*time.Time)
		}
	}
}

type fakeListings struct {
	listings  map[uint]*models.Listing
	soldCalls int
}

func newFakeListings(listings ...*models.Listing) *fakeListings {
	f := &fakeListings{listings: make(map[uint]*models.Listing)}
	for _, l := range listings {
		f.listings[l.ID] = l
	}
	return f
}

func (f *fakeListings) Create(l *models.Listing) error {
	f.listings[l.ID] = l
	return nil
}

func (f *fakeListings) GetByID(id uint) (*models.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeListings) GetByUUID(uuid string) (*models.Listing, error) {
	for _, l := range f.listings {
		if l.UUID == uuid {
			cp := *l
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeListings) MarkSold(id uint, soldAt time.Time) (int64, error) {
	f.soldCalls++
	l, ok := f.listings[id]
	if !ok {
		return 0, nil
	}
	if l.Status != models.ListingStatusActive && l.Status != models.ListingStatusReserved {
		return 0, nil
	}
	l.Status = models.ListingStatusSold
	l.SoldAt = &soldAt
	return 1, nil
}

func (f *fakeListings) Reopen(id uint) (int64, error) {
	l, ok := f.listings[id]
	if !ok {
		return 0, nil
	}
	if l.Status == models.ListingStatusActive {
		return 0, nil
	}
	l.Status = models.ListingStatusActive
	l.SoldAt = nil
	return 1, nil
}

func newTestHandler(orders *fakeOrders, listings *fakeListings) *Handler {
	return &Handler{orders: orders, listings: listings}
}

func transferEnvelope(eventType string, tr finix.Transfer) *finix.Envelope {
	return &finix.Envelope{
		ID:     "evt_" + tr.ID,
		Entity: finix.EntityTransfer,
		Type:   eventType,
		Embedded: finix.Embedded{
			Transfers: []finix.Transfer{tr},
		},
	}
}

func testOrder(status string) *models.Order {
	return &models.Order{
		ID:                   1,
		UUID:                 "ord-uuid-1",
		ListingID:            10,
		BuyerID:              2,
		SellerID:             3,
		Amount:               2500,
		Status:               status,
		FinixAuthorizationID: "AU_1",
	}
}

func TestHandleTransferCreated_MovesOrderToPending(t *testing.T) {
	orders := newFakeOrders(testOrder(models.OrderStatusAuthorized))
	listings := newFakeListings(&models.Listing{ID: 10, Status: models.ListingStatusReserved})
	h := newTestHandler(orders, listings)

	outcome, err := h.HandleTransferCreated(context.Background(), transferEnvelope(finix.TypeCreated, finix.Transfer{
		ID:     "TR_1",
		State:  finix.StatePending,
		Source: "AU_1",
	}))

	require.NoError(t, err)
	assert.Contains(t, outcome, "pending")
	assert.Equal(t, "TR_1", orders.orders[1].FinixTransferID)
	assert.Equal(t, models.OrderStatusPending, orders.orders[1].Status)
}

func TestHandleTransferCreated_SettledAtCreation(t *testing.T) {
	orders := newFakeOrders(testOrder(models.OrderStatusAuthorized))
	listings := newFakeListings(&models.Listing{ID: 10, Status: models.ListingStatusReserved})
	h := newTestHandler(orders, listings)

	outcome, err := h.HandleTransferCreated(context.Background(), transferEnvelope(finix.TypeCreated, finix.Transfer{
		ID:     "TR_1",
		State:  finix.StateSucceeded,
		Source: "AU_1",
	}))

	require.NoError(t, err)
	assert.Contains(t, outcome, "paid")
	assert.Equal(t, models.OrderStatusPaid, orders.orders[1].Status)
	assert.NotNil(t, orders.orders[1].PaidAt)
	assert.Equal(t, models.ListingStatusSold, listings.listings[10].Status)
}

func TestHandleTransferCreated_FallsBackToInstrumentID(t *testing.T) {
	order := testOrder(models.OrderStatusCreated)
	order.FinixAuthorizationID = ""
	order.FinixInstrumentID = "PI_7"
	orders := newFakeOrders(order)
	h := newTestHandler(orders, newFakeListings())

	_, err := h.HandleTransferCreated(context.Background(), transferEnvelope(finix.TypeCreated, finix.Transfer{
		ID:     "TR_2",
		State:  finix.StatePending,
		Source: "PI_7",
	}))

	require.NoError(t, err)
	assert.Equal(t, "TR_2", orders.orders[1].FinixTransferID)
}

func TestHandleTransferCreated_UnknownSourceIsRetryable(t *testing.T) {
	h := newTestHandler(newFakeOrders(), newFakeListings())

	_, err := h.HandleTransferCreated(context.Background(), transferEnvelope(finix.TypeCreated, finix.Transfer{
		ID:     "TR_1",
		State:  finix.StatePending,
		Source: "AU_unknown",
	}))

	require.Error(t, err)
	assert.True(t, webhook.IsRetryable(err))
	assert.False(t, webhook.IsFatal(err))
}

func TestHandleTransferCreated_MissingTransferIsFatal(t *testing.T) {
	h := newTestHandler(newFakeOrders(), newFakeListings())

	_, err := h.HandleTransferCreated(context.Background(), &finix.Envelope{
		ID: "evt_x", Entity: finix.EntityTransfer, Type: finix.TypeCreated,
	})

	require.Error(t, err)
	assert.True(t, webhook.IsFatal(err))
}

func TestHandleTransferCreated_EmptySourceIsFatal(t *testing.T) {
	h := newTestHandler(newFakeOrders(), newFakeListings())

	_, err := h.HandleTransferCreated(context.Background(), transferEnvelope(finix.TypeCreated, finix.Transfer{
		ID: "TR_1", State: finix.StatePending, Source: "  ",
	}))

	require.Error(t, err)
	assert.True(t, webhook.IsFatal(err))
}

func TestHandleTransferUpdated_SettlesOrder(t *testing.T) {
	order := testOrder(models.OrderStatusPending)
	order.FinixTransferID = "TR_1"
	orders := newFakeOrders(order)
	listings := newFakeListings(&models.Listing{ID: 10, Status: models.ListingStatusReserved})
	h := newTestHandler(orders, listings)

	outcome, err := h.HandleTransferUpdated(context.Background(), transferEnvelope(finix.TypeUpdated, finix.Transfer{
		ID:    "TR_1",
		State: finix.StateSucceeded,
	}))

	require.NoError(t, err)
	assert.Contains(t, outcome, "paid")
	assert.Equal(t, models.OrderStatusPaid, orders.orders[1].Status)
	assert.Equal(t, models.ListingStatusSold, listings.listings[10].Status)
}

func TestHandleTransferUpdated_UnknownTransferIsFatal(t *testing.T) {
	h := newTestHandler(newFakeOrders(), newFakeListings())

	_, err := h.HandleTransferUpdated(context.Background(), transferEnvelope(finix.TypeUpdated, finix.Transfer{
		ID: "TR_ghost", State: finix.StateSucceeded,
	}))

	require.Error(t, err)
	assert.True(t, webhook.IsFatal(err))
}

func TestHandleTransferUpdated_FailureCancelsOrder(t *testing.T) {
	order := testOrder(models.OrderStatusPending)
	order.FinixTransferID = "TR_1"
	orders := newFakeOrders(order)
	h := newTestHandler(orders, newFakeListings())

	outcome, err := h.HandleTransferUpdated(context.Background(), transferEnvelope(finix.TypeUpdated, finix.Transfer{
		ID:             "TR_1",
		State:          finix.StateFailed,
		FailureCode:    "INSUFFICIENT_FUNDS",
		FailureMessage: "card declined",
	}))

	require.NoError(t, err)
	assert.Contains(t, outcome, "cancelled")
	assert.Equal(t, models.OrderStatusCancelled, orders.orders[1].Status)
	assert.Equal(t, "INSUFFICIENT_FUNDS", orders.orders[1].FailureCode)
	assert.Equal(t, "card declined", orders.orders[1].FailureMessage)
}

func TestHandleTransferUpdated_ReplayedSettlementIsIdempotent(t *testing.T) {
	order := testOrder(models.OrderStatusPending)
	order.FinixTransferID = "TR_1"
	orders := newFakeOrders(order)
	listings := newFakeListings(&models.Listing{ID: 10, Status: models.ListingStatusReserved})
	h := newTestHandler(orders, listings)

	envelope := transferEnvelope(finix.TypeUpdated, finix.Transfer{ID: "TR_1", State: finix.StateSucceeded})

	_, err := h.HandleTransferUpdated(context.Background(), envelope)
	require.NoError(t, err)
	firstPaidAt := orders.orders[1].PaidAt
	require.NotNil(t, firstPaidAt)

	_, err = h.HandleTransferUpdated(context.Background(), envelope)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPaid, orders.orders[1].Status)
	assert.Equal(t, firstPaidAt, orders.orders[1].PaidAt)
	assert.Equal(t, models.ListingStatusSold, listings.listings[10].Status)
}

func TestHandleTransferUpdated_ReversalBeforeSettlementRetries(t *testing.T) {
	order := testOrder(models.OrderStatusPending)
	order.FinixTransferID = "TR_REV"
	orders := newFakeOrders(order)
	h := newTestHandler(orders, newFakeListings())

	_, err := h.HandleTransferUpdated(context.Background(), transferEnvelope(finix.TypeUpdated, finix.Transfer{
		ID:    "TR_REV",
		State: finix.StateSucceeded,
		Type:  finix.TransferTypeReversal,
	}))

	require.Error(t, err)
	assert.True(t, webhook.IsRetryable(err))
	assert.Equal(t, models.OrderStatusPending, orders.orders[1].Status)
}

func TestHandleTransferUpdated_ReversalRefundsPaidOrder(t *testing.T) {
	order := testOrder(models.OrderStatusPaid)
	order.FinixTransferID = "TR_REV"
	orders := newFakeOrders(order)
	soldAt := time.Now()
	listings := newFakeListings(&models.Listing{ID: 10, Status: models.ListingStatusSold, SoldAt: &soldAt})
	h := newTestHandler(orders, listings)

	outcome, err := h.HandleTransferUpdated(context.Background(), transferEnvelope(finix.TypeUpdated, finix.Transfer{
		ID:      "TR_REV",
		State:   finix.StateSucceeded,
		Subtype: finix.TransferTypeReversal,
	}))

	require.NoError(t, err)
	assert.Contains(t, outcome, "refunded")
	assert.Equal(t, models.OrderStatusRefunded, orders.orders[1].Status)
	assert.NotNil(t, orders.orders[1].RefundedAt)
	assert.Equal(t, models.ListingStatusActive, listings.listings[10].Status)
	assert.Nil(t, listings.listings[10].SoldAt)
}

func TestHandleTransferUpdated_LateSettlementAfterRefundKeepsStatus(t *testing.T) {
	order := testOrder(models.OrderStatusRefunded)
	order.FinixTransferID = "TR_1"
	orders := newFakeOrders(order)
	listings := newFakeListings(&models.Listing{ID: 10, Status: models.ListingStatusActive})
	h := newTestHandler(orders, listings)

	outcome, err := h.HandleTransferUpdated(context.Background(), transferEnvelope(finix.TypeUpdated, finix.Transfer{
		ID: "TR_1", State: finix.StateSucceeded,
	}))

	require.NoError(t, err)
	assert.Contains(t, outcome, "kept status")
	assert.Equal(t, models.OrderStatusRefunded, orders.orders[1].Status)
	// the reopened listing must not be sold again by a stale settlement
	assert.Equal(t, models.ListingStatusActive, listings.listings[10].Status)
	assert.Zero(t, listings.soldCalls)
}

func TestHandleTransferUpdated_PendingLeavesOrderAlone(t *testing.T) {
	order := testOrder(models.OrderStatusCreated)
	order.FinixTransferID = "TR_1"
	orders := newFakeOrders(order)
	h := newTestHandler(orders, newFakeListings())

	outcome, err := h.HandleTransferUpdated(context.Background(), transferEnvelope(finix.TypeUpdated, finix.Transfer{
		ID: "TR_1", State: finix.StatePending,
	}))

	require.NoError(t, err)
	assert.Contains(t, outcome, "unchanged")
	assert.Equal(t, models.OrderStatusCreated, orders.orders[1].Status)
}

func threeDSEnvelope(state string) *finix.Envelope {
	return &finix.Envelope{
		ID:     "evt_3ds",
		Entity: finix.EntityAuthorization,
		Type:   finix.TypeThreeDS,
		Embedded: finix.Embedded{
			Authorizations: []finix.Authorization{{ID: "AU_1", State: state}},
		},
	}
}

func TestHandleThreeDSComplete_SuccessAuthorizesOrder(t *testing.T) {
	orders := newFakeOrders(testOrder(models.OrderStatusCreated))
	h := newTestHandler(orders, newFakeListings())

	outcome, err := h.HandleThreeDSComplete(context.Background(), threeDSEnvelope(finix.StateSucceeded))

	require.NoError(t, err)
	assert.Contains(t, outcome, "authorized")
	assert.Equal(t, models.OrderStatusAuthorized, orders.orders[1].Status)
	assert.NotNil(t, orders.orders[1].ThreeDSCompletedAt)
}

func TestHandleThreeDSComplete_FailureCancelsOrder(t *testing.T) {
	orders := newFakeOrders(testOrder(models.OrderStatusCreated))
	h := newTestHandler(orders, newFakeListings())

	_, err := h.HandleThreeDSComplete(context.Background(), threeDSEnvelope(finix.StateFailed))

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, orders.orders[1].Status)
	assert.Equal(t, "3ds_authentication_failed", orders.orders[1].FailureCode)
	assert.NotNil(t, orders.orders[1].ThreeDSCompletedAt)
}

func TestHandleThreeDSComplete_ReplayKeepsFirstTimestamp(t *testing.T) {
	orders := newFakeOrders(testOrder(models.OrderStatusCreated))
	h := newTestHandler(orders, newFakeListings())

	_, err := h.HandleThreeDSComplete(context.Background(), threeDSEnvelope(finix.StateSucceeded))
	require.NoError(t, err)
	first := orders.orders[1].ThreeDSCompletedAt
	require.NotNil(t, first)

	_, err = h.HandleThreeDSComplete(context.Background(), threeDSEnvelope(finix.StateSucceeded))
	require.NoError(t, err)
	assert.Equal(t, first, orders.orders[1].ThreeDSCompletedAt)
}

func TestHandleThreeDSComplete_UnknownAuthorizationIsRetryable(t *testing.T) {
	h := newTestHandler(newFakeOrders(), newFakeListings())

	_, err := h.HandleThreeDSComplete(context.Background(), threeDSEnvelope(finix.StateSucceeded))

	require.Error(t, err)
	assert.True(t, webhook.IsRetryable(err))
}

func disputeEnvelope(d finix.Dispute) *finix.Envelope {
	return &finix.Envelope{
		ID:     "evt_di",
		Entity: finix.EntityDispute,
		Type:   finix.TypeCreated,
		Embedded: finix.Embedded{
			Disputes: []finix.Dispute{d},
		},
	}
}

func TestHandleDisputeEvent_AttachesDisputeState(t *testing.T) {
	order := testOrder(models.OrderStatusPaid)
	order.FinixTransferID = "TR_1"
	orders := newFakeOrders(order)
	h := newTestHandler(orders, newFakeListings())

	respondBy := time.Now().Add(14 * 24 * time.Hour)
	outcome, err := h.HandleDisputeEvent(context.Background(), disputeEnvelope(finix.Dispute{
		ID:        "DI_1",
		State:     "pending",
		Reason:    "FRAUD",
		Amount:    2500,
		Transfer:  "TR_1",
		RespondBy: &respondBy,
	}))

	require.NoError(t, err)
	assert.Contains(t, outcome, "DI_1")

	stored := orders.orders[1]
	assert.Equal(t, "DI_1", stored.DisputeID)
	assert.Equal(t, "PENDING", stored.DisputeState)
	assert.Equal(t, "FRAUD", stored.DisputeReason)
	assert.Equal(t, int64(2500), stored.DisputeAmount)
	assert.NotNil(t, stored.DisputeRespondBy)
	// payment status is orthogonal to the dispute sub-state
	assert.Equal(t, models.OrderStatusPaid, stored.Status)
}

func TestHandleDisputeEvent_UnknownTransferResolvesAsOutcome(t *testing.T) {
	h := newTestHandler(newFakeOrders(), newFakeListings())

	outcome, err := h.HandleDisputeEvent(context.Background(), disputeEnvelope(finix.Dispute{
		ID: "DI_1", State: "PENDING", Transfer: "TR_ghost",
	}))

	require.NoError(t, err)
	assert.Contains(t, outcome, "not found")
}

func TestHandleDisputeEvent_MissingDisputeIsFatal(t *testing.T) {
	h := newTestHandler(newFakeOrders(), newFakeListings())

	_, err := h.HandleDisputeEvent(context.Background(), &finix.Envelope{
		ID: "evt_di", Entity: finix.EntityDispute, Type: finix.TypeCreated,
	})

	require.Error(t, err)
	assert.True(t, webhook.IsFatal(err))
}
