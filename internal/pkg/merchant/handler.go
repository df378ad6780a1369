// Package merchant advances the onboarding state machine driven by three
// independently arriving gateway event kinds: onboarding form completion,
// merchant lifecycle and identity verification.
package merchant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"github.com/LucaWinkler/FlohMarkt/app/repository"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/finix"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/sideeffect"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/webhook"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Provisioner creates the gateway merchant for a bound identity.
type Provisioner interface {
	ProvisionMerchant(ctx context.Context, identityID string) (*finix.Merchant, error)
}

// IdentitySyncer mirrors merchant status into the identity provider.
type IdentitySyncer interface {
	SyncMerchantStatus(ctx context.Context, userID uint, merchantID, onboardingState string) error
}

// Handler drives the identity correlation record through
// PENDING -> PROVISIONING -> APPROVED/REJECTED/UPDATE_REQUESTED. All
// events after the first are correlated by the gateway identity id.
type Handler struct {
	onboardings repository.MerchantOnboardingRepository
	users       repository.UserRepository
	gateway     Provisioner
	identity    IdentitySyncer
}

// NewHandler creates the onboarding handler. The gateway and identity
// clients are injected so tests can fake the outbound calls.
func NewHandler(repos *repository.Repositories, gateway Provisioner, identity IdentitySyncer) *Handler {
	return &Handler{
		onboardings: repos.MerchantOnboarding,
		users:       repos.User,
		gateway:     gateway,
		identity:    identity,
	}
}

// HandleFormEvent processes onboarding form events. A completed form binds
// the gateway identity to the internal user and kicks off provisioning.
func (h *Handler) HandleFormEvent(ctx context.Context, envelope *finix.Envelope) (string, error) {
	form, ok := envelope.OnboardingForm()
	if !ok {
		return "", webhook.Fatalf("gateway event %s carries no onboarding form", envelope.ID)
	}

	if !form.IsCompleted() {
		return fmt.Sprintf("onboarding form %s not completed yet", form.ID), nil
	}

	// Only this very first event carries our user id. Without the tag no
	// later event can establish the correlation.
	rawUserID, ok := form.UserIDTag()
	if !ok {
		return "", webhook.Fatalf("onboarding form %s is missing the %s tag", form.ID, finix.TagUserID)
	}
	userID64, err := strconv.ParseUint(rawUserID, 10, 32)
	if err != nil || userID64 == 0 {
		return "", webhook.Fatalf("onboarding form %s carries an invalid user id %q", form.ID, rawUserID)
	}
	userID := uint(userID64)

	identityID := strings.TrimSpace(form.Identity)
	if identityID == "" {
		return "", webhook.Fatalf("onboarding form %s completed without an identity id", form.ID)
	}

	if _, err := h.users.GetByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", webhook.Fatalf("onboarding form %s references unknown user %d", form.ID, userID)
		}
		return "", err
	}

	if _, _, err := h.onboardings.CreateIfNotExists(&models.MerchantOnboarding{
		UserID:          userID,
		FormID:          form.ID,
		OnboardingState: models.OnboardingStatePending,
	}); err != nil {
		return "", err
	}

	bound, err := h.onboardings.BindIdentity(form.ID, identityID, time.Now())
	if err != nil {
		return "", err
	}

	record, err := h.onboardings.GetByFormID(form.ID)
	if err != nil {
		return "", err
	}
	if record.IdentityID != identityID {
		return "", webhook.Fatalf("onboarding form %s is already bound to identity %s", form.ID, record.IdentityID)
	}

	// Provisioning is synchronous but best-effort: on failure the record
	// stays in PROVISIONING until the merchant created event lands.
	provisionNote := "merchant already provisioned"
	if record.MerchantID == "" {
		provisionNote = "merchant provisioning deferred"
		sideeffect.Observe("merchant auto-provisioning", func() error {
			m, perr := h.gateway.ProvisionMerchant(ctx, identityID)
			if perr != nil {
				return perr
			}
			if _, uerr := h.onboardings.UpdateByIdentityID(identityID, map[string]interface{}{
				"merchant_id": m.ID,
			}); uerr != nil {
				return uerr
			}
			provisionNote = fmt.Sprintf("merchant %s provisioned", m.ID)
			return nil
		})
	}

	if bound > 0 {
		return fmt.Sprintf("identity %s bound to user %d, %s", identityID, userID, provisionNote), nil
	}
	return fmt.Sprintf("identity %s already bound to user %d, %s", identityID, userID, provisionNote), nil
}

// HandleMerchantEvent processes merchant created/updated/underwritten
// events. Arriving before the form completed event is tolerated by
// throwing a retryable error until the correlation record exists.
func (h *Handler) HandleMerchantEvent(ctx context.Context, envelope *finix.Envelope) (string, error) {
	m, ok := envelope.Merchant()
	if !ok {
		return "", webhook.Fatalf("gateway event %s carries no merchant", envelope.ID)
	}

	record, err := h.onboardings.GetByIdentityID(m.Identity)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Out-of-order delivery, the form completed event creates
			// the record and has not landed yet.
			return "", webhook.Retryablef("no onboarding record for identity %s yet", m.Identity)
		}
		return "", err
	}

	updates := map[string]interface{}{
		"merchant_id": m.ID,
	}
	state := strings.ToUpper(strings.TrimSpace(m.OnboardingState))
	if state != "" && !models.IsValidOnboardingState(state) {
		log.Warnf("[Merchant] ignoring unknown onboarding state %q for identity %s", state, m.Identity)
		state = ""
	}
	if state != "" {
		updates["onboarding_state"] = state
	}
	if v := strings.TrimSpace(m.Verification); v != "" {
		updates["verification_id"] = v
	}

	if _, err := h.onboardings.UpdateByIdentityID(m.Identity, updates); err != nil {
		return "", err
	}

	syncState := state
	if syncState == "" {
		syncState = record.OnboardingState
	}
	sideeffect.Observe("identity metadata sync", func() error {
		return h.identity.SyncMerchantStatus(ctx, record.UserID, m.ID, syncState)
	})

	if state == "" {
		return fmt.Sprintf("merchant %s linked to identity %s", m.ID, m.Identity), nil
	}
	return fmt.Sprintf("merchant %s for identity %s moved to %s", m.ID, m.Identity, state), nil
}

// HandleVerificationEvent processes verification events with the same
// out-of-order retry policy as merchant events.
func (h *Handler) HandleVerificationEvent(ctx context.Context, envelope *finix.Envelope) (string, error) {
	v, ok := envelope.Verification()
	if !ok {
		return "", webhook.Fatalf("gateway event %s carries no verification", envelope.ID)
	}

	if _, err := h.onboardings.GetByIdentityID(v.Identity); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", webhook.Retryablef("no onboarding record for identity %s yet", v.Identity)
		}
		return "", err
	}

	state := strings.ToUpper(strings.TrimSpace(v.State))
	updates := map[string]interface{}{
		"verification_id": v.ID,
	}
	if state != "" {
		updates["verification_state"] = state
	}
	if _, err := h.onboardings.UpdateByIdentityID(v.Identity, updates); err != nil {
		return "", err
	}

	switch state {
	case models.VerificationStateSucceeded:
		if err := h.onboardings.SetVerifiedAt(v.Identity, time.Now()); err != nil {
			return "", err
		}
	case models.VerificationStateFailed:
		if err := h.onboardings.ClearVerifiedAt(v.Identity); err != nil {
			return "", err
		}
	}

	if state == "" {
		return fmt.Sprintf("verification %s for identity %s recorded", v.ID, v.Identity), nil
	}
	return fmt.Sprintf("verification %s for identity %s is %s", v.ID, v.Identity, state), nil
}
