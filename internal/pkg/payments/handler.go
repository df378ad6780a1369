// Package payments advances orders through the transfer lifecycle:
// authorization, settlement, refund, failure and the orthogonal dispute
// sub-state. Status writes are compare-and-swap updates gated on the
// allowed predecessor statuses, so duplicated and out-of-order events
// can never regress an order.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"github.com/LucaWinkler/FlohMarkt/app/repository"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/finix"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/webhook"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Handler drives the payment state machine for orders and their listings.
type Handler struct {
	orders   repository.OrderRepository
	listings repository.ListingRepository
}

// NewHandler creates the payment handler over the injected repositories.
func NewHandler(repos *repository.Repositories) *Handler {
	return &Handler{
		orders:   repos.Order,
		listings: repos.Listing,
	}
}

// HandleTransferCreated links a fresh transfer to its order. The order is
// located by the authorization or payment instrument id the transfer was
// created from. A transfer that is already settled drives the order to
// paid immediately instead of waiting for the update event.
func (h *Handler) HandleTransferCreated(ctx context.Context, envelope *finix.Envelope) (string, error) {
	t, ok := envelope.Transfer()
	if !ok {
		return "", webhook.Fatalf("gateway event %s carries no transfer", envelope.ID)
	}

	source := strings.TrimSpace(t.Source)
	if source == "" {
		return "", webhook.Fatalf("transfer %s carries no source", t.ID)
	}

	order, err := h.orders.GetByAuthorizationID(source)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		order, err = h.orders.GetByInstrumentID(source)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Checkout commits the order synchronously, this can only be
			// a short race.
			return "", webhook.Retryablef("no order for transfer source %s yet", source)
		}
		return "", err
	}

	if err := h.orders.SetTransferID(order.ID, t.ID); err != nil {
		return "", err
	}

	// Some gateway environments report the transfer settled at creation.
	if strings.EqualFold(t.State, finix.StateSucceeded) {
		if t.IsReversal() {
			return h.applyRefund(order, t.ID)
		}
		return h.applyPaid(order)
	}

	rows, err := h.orders.TransitionStatus(order.ID,
		[]string{models.OrderStatusCreated, models.OrderStatusAuthorized},
		map[string]interface{}{"status": models.OrderStatusPending})
	if err != nil {
		return "", err
	}
	if rows == 0 {
		return fmt.Sprintf("transfer %s recorded, order %s kept its status", t.ID, order.UUID), nil
	}
	return fmt.Sprintf("transfer %s recorded, order %s pending", t.ID, order.UUID), nil
}

// HandleTransferUpdated applies the authoritative transfer state change.
// The order is located strictly by the transfer id; a missing order is a
// hard failure because no later event will supply the missing link.
func (h *Handler) HandleTransferUpdated(ctx context.Context, envelope *finix.Envelope) (string, error) {
	t, ok := envelope.Transfer()
	if !ok {
		return "", webhook.Fatalf("gateway event %s carries no transfer", envelope.ID)
	}

	order, err := h.orders.GetByTransferID(t.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", webhook.Fatalf("no order for transfer %s", t.ID)
		}
		return "", err
	}

	switch strings.ToUpper(strings.TrimSpace(t.State)) {
	case finix.StateSucceeded:
		if t.IsReversal() {
			return h.applyRefund(order, t.ID)
		}
		return h.applyPaid(order)
	case finix.StateFailed:
		return h.applyCancelled(order, t.FailureCode, t.FailureMessage)
	case finix.StateCanceled:
		return h.applyCancelled(order, t.FailureCode, t.FailureMessage)
	case finix.StatePending:
		return fmt.Sprintf("transfer %s pending, order %s unchanged", t.ID, order.UUID), nil
	default:
		return fmt.Sprintf("transfer %s state %s ignored, order %s unchanged", t.ID, t.State, order.UUID), nil
	}
}

// HandleThreeDSComplete processes the card authentication result. The
// completion timestamp is stamped once regardless of the outcome.
func (h *Handler) HandleThreeDSComplete(ctx context.Context, envelope *finix.Envelope) (string, error) {
	a, ok := envelope.Authorization()
	if !ok {
		return "", webhook.Fatalf("gateway event %s carries no authorization", envelope.ID)
	}

	order, err := h.orders.GetByAuthorizationID(a.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", webhook.Retryablef("no order for authorization %s yet", a.ID)
		}
		return "", err
	}

	if err := h.orders.SetThreeDSCompleted(order.ID, time.Now()); err != nil {
		return "", err
	}

	if strings.EqualFold(a.State, finix.StateSucceeded) {
		rows, err := h.orders.TransitionStatus(order.ID,
			[]string{models.OrderStatusCreated},
			map[string]interface{}{"status": models.OrderStatusAuthorized})
		if err != nil {
			return "", err
		}
		if rows == 0 {
			return fmt.Sprintf("3DS succeeded, order %s kept its status", order.UUID), nil
		}
		return fmt.Sprintf("3DS succeeded, order %s authorized", order.UUID), nil
	}
	return h.applyCancelled(order, "3ds_authentication_failed",
		fmt.Sprintf("3DS authentication ended in state %s", a.State))
}

// HandleDisputeEvent attaches chargeback state to the disputed order
// without touching the payment status. A missing order is logged and
// resolved as an outcome because the transfer id will never change.
func (h *Handler) HandleDisputeEvent(ctx context.Context, envelope *finix.Envelope) (string, error) {
	d, ok := envelope.Dispute()
	if !ok {
		return "", webhook.Fatalf("gateway event %s carries no dispute", envelope.ID)
	}

	order, err := h.orders.GetByTransferID(d.Transfer)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Payments] no order for disputed transfer %s", d.Transfer)
			return fmt.Sprintf("order for transfer %s not found", d.Transfer), nil
		}
		return "", err
	}

	updates := map[string]interface{}{
		"dispute_id":     d.ID,
		"dispute_state":  strings.ToUpper(strings.TrimSpace(d.State)),
		"dispute_reason": d.Reason,
		"dispute_amount": d.Amount,
	}
	if d.RespondBy != nil {
		updates["dispute_respond_by"] = d.RespondBy
	}
	if err := h.orders.AttachDispute(order.ID, updates); err != nil {
		return "", err
	}
	return fmt.Sprintf("dispute %s (%s) attached to order %s", d.ID, d.State, order.UUID), nil
}

// applyPaid settles the order and closes its listing. Replays and late
// events resolve against the current status instead of regressing it.
func (h *Handler) applyPaid(order *models.Order) (string, error) {
	now := time.Now()
	rows, err := h.orders.TransitionStatus(order.ID,
		[]string{models.OrderStatusCreated, models.OrderStatusAuthorized, models.OrderStatusPending},
		map[string]interface{}{
			"status":  models.OrderStatusPaid,
			"paid_at": &now,
		})
	if err != nil {
		return "", err
	}
	if rows == 0 {
		current, err := h.orders.GetByID(order.ID)
		if err != nil {
			return "", err
		}
		if current.Status != models.OrderStatusPaid {
			return fmt.Sprintf("order %s kept status %s", order.UUID, current.Status), nil
		}
	}

	if _, err := h.listings.MarkSold(order.ListingID, now); err != nil {
		return "", err
	}
	return fmt.Sprintf("order %s paid, listing %d sold", order.UUID, order.ListingID), nil
}

// applyRefund moves a settled order to refunded and reopens its listing.
// A reversal for an order that has not settled locally yet is retried
// until the settlement event lands.
func (h *Handler) applyRefund(order *models.Order, transferID string) (string, error) {
	now := time.Now()
	rows, err := h.orders.TransitionStatus(order.ID,
		[]string{models.OrderStatusPaid},
		map[string]interface{}{
			"status":      models.OrderStatusRefunded,
			"refunded_at": &now,
		})
	if err != nil {
		return "", err
	}
	if rows == 0 {
		current, err := h.orders.GetByID(order.ID)
		if err != nil {
			return "", err
		}
		if current.Status != models.OrderStatusRefunded {
			return "", webhook.Retryablef("order %s is %s, reversal %s waits for settlement",
				order.UUID, current.Status, transferID)
		}
	}

	if _, err := h.listings.Reopen(order.ListingID); err != nil {
		return "", err
	}
	return fmt.Sprintf("order %s refunded, listing %d reopened", order.UUID, order.ListingID), nil
}

// applyCancelled fails the order out of any non-terminal status.
func (h *Handler) applyCancelled(order *models.Order, failureCode, failureMessage string) (string, error) {
	updates := map[string]interface{}{
		"status": models.OrderStatusCancelled,
	}
	if failureCode != "" {
		updates["failure_code"] = failureCode
	}
	if failureMessage != "" {
		updates["failure_message"] = failureMessage
	}

	rows, err := h.orders.TransitionStatus(order.ID,
		[]string{models.OrderStatusCreated, models.OrderStatusAuthorized, models.OrderStatusPending},
		updates)
	if err != nil {
		return "", err
	}
	if rows == 0 {
		current, err := h.orders.GetByID(order.ID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("order %s kept status %s", order.UUID, current.Status), nil
	}
	return fmt.Sprintf("order %s cancelled", order.UUID), nil
}
