// Package finix models the payment gateway webhook envelope and the
// typed entity variants it embeds, plus a small API client for merchant
// provisioning.
package finix

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Entity values carried in the webhook envelope.
const (
	EntityOnboardingForm = "onboarding_form"
	EntityMerchant       = "merchant"
	EntityVerification   = "verification"
	EntityTransfer       = "transfer"
	EntityDispute        = "dispute"
	EntityAuthorization  = "authorization"
)

// Type values carried in the webhook envelope.
const (
	TypeCreated      = "created"
	TypeUpdated      = "updated"
	TypeUnderwritten = "underwritten"
	TypeThreeDS      = "3ds_authentication_complete"
)

// Gateway states shared across entity kinds.
const (
	StateSucceeded = "SUCCEEDED"
	StateFailed    = "FAILED"
	StatePending   = "PENDING"
	StateCanceled  = "CANCELED"

	TransferTypeReversal = "REVERSAL"

	FormStatusCompleted = "COMPLETED"
)

// TagUserID is the onboarding form tag that carries our internal user id.
// It is the only place the gateway echoes an internal identifier back.
const TagUserID = "user_id"

// Envelope is the outer webhook payload. The gateway keys the embedded
// entity arrays by kind; exactly one array is populated per event.
type Envelope struct {
	ID       string   `json:"id"`
	Entity   string   `json:"entity" validate:"required"`
	Type     string   `json:"type" validate:"required"`
	Embedded Embedded `json:"_embedded"`
}

// Embedded holds one array per entity kind. The first element carries the
// event's entity fields.
type Embedded struct {
	OnboardingForms []OnboardingForm `json:"onboarding_forms,omitempty" validate:"omitempty,dive"`
	Merchants       []Merchant       `json:"merchants,omitempty" validate:"omitempty,dive"`
	Verifications   []Verification   `json:"verifications,omitempty" validate:"omitempty,dive"`
	Transfers       []Transfer       `json:"transfers,omitempty" validate:"omitempty,dive"`
	Disputes        []Dispute        `json:"disputes,omitempty" validate:"omitempty,dive"`
	Authorizations  []Authorization  `json:"authorizations,omitempty" validate:"omitempty,dive"`
}

// OnboardingForm is the hosted onboarding form entity. Identity is set once
// the applicant finished the form; Tags carry the internal user id.
type OnboardingForm struct {
	ID       string            `json:"id" validate:"required"`
	Status   string            `json:"status"`
	Identity string            `json:"identity_id"`
	Tags     map[string]string `json:"tags"`
}

// Merchant is the gateway's sellable-entity record.
type Merchant struct {
	ID                string            `json:"id" validate:"required"`
	Identity          string            `json:"identity" validate:"required"`
	OnboardingState   string            `json:"onboarding_state"`
	Verification      string            `json:"verification"`
	ProcessingEnabled bool              `json:"processing_enabled"`
	Tags              map[string]string `json:"tags"`
}

// Verification is an identity verification run.
type Verification struct {
	ID       string            `json:"id" validate:"required"`
	Identity string            `json:"identity" validate:"required"`
	State    string            `json:"state"`
	Tags     map[string]string `json:"tags"`
}

// Transfer is a movement of funds. Source holds the authorization or
// payment instrument id the transfer was created from.
type Transfer struct {
	ID             string            `json:"id" validate:"required"`
	State          string            `json:"state"`
	Type           string            `json:"type"`
	Subtype        string            `json:"subtype"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Source         string            `json:"source"`
	Destination    string            `json:"destination"`
	FailureCode    string            `json:"failure_code"`
	FailureMessage string            `json:"failure_message"`
	Tags           map[string]string `json:"tags"`
}

// IsReversal reports whether the transfer represents a refund of a prior
// successful transfer.
func (t *Transfer) IsReversal() bool {
	return strings.EqualFold(t.Type, TransferTypeReversal) || strings.EqualFold(t.Subtype, TransferTypeReversal)
}

// Dispute is a chargeback lifecycle record attached to a transfer.
type Dispute struct {
	ID        string            `json:"id" validate:"required"`
	State     string            `json:"state"`
	Reason    string            `json:"reason"`
	Amount    int64             `json:"amount"`
	Transfer  string            `json:"transfer" validate:"required"`
	RespondBy *time.Time        `json:"respond_by"`
	Tags      map[string]string `json:"tags"`
}

// Authorization is a card authorization, delivered here for the 3-D Secure
// completion event.
type Authorization struct {
	ID    string            `json:"id" validate:"required"`
	State string            `json:"state"`
	Tags  map[string]string `json:"tags"`
}

// DecodeEnvelope parses and normalizes a raw webhook payload.
func DecodeEnvelope(payload []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("invalid gateway payload: %w", err)
	}
	env.ID = strings.TrimSpace(env.ID)
	env.Entity = strings.ToLower(strings.TrimSpace(env.Entity))
	env.Type = strings.ToLower(strings.TrimSpace(env.Type))
	return &env, nil
}

// Validate checks the envelope against its tags.
func (e *Envelope) Validate() error {
	v := validator.New()
	return v.Struct(e)
}

// EventKey returns the dispatcher routing key for the envelope.
func (e *Envelope) EventKey() string {
	return e.Entity + "." + e.Type
}

// OnboardingForm returns the first embedded onboarding form, if present.
func (e *Envelope) OnboardingForm() (*OnboardingForm, bool) {
	if len(e.Embedded.OnboardingForms) == 0 {
		return nil, false
	}
	return &e.Embedded.OnboardingForms[0], true
}

// Merchant returns the first embedded merchant, if present.
func (e *Envelope) Merchant() (*Merchant, bool) {
	if len(e.Embedded.Merchants) == 0 {
		return nil, false
	}
	return &e.Embedded.Merchants[0], true
}

// Verification returns the first embedded verification, if present.
func (e *Envelope) Verification() (*Verification, bool) {
	if len(e.Embedded.Verifications) == 0 {
		return nil, false
	}
	return &e.Embedded.Verifications[0], true
}

// Transfer returns the first embedded transfer, if present.
func (e *Envelope) Transfer() (*Transfer, bool) {
	if len(e.Embedded.Transfers) == 0 {
		return nil, false
	}
	return &e.Embedded.Transfers[0], true
}

// Dispute returns the first embedded dispute, if present.
func (e *Envelope) Dispute() (*Dispute, bool) {
	if len(e.Embedded.Disputes) == 0 {
		return nil, false
	}
	return &e.Embedded.Disputes[0], true
}

// Authorization returns the first embedded authorization, if present.
func (e *Envelope) Authorization() (*Authorization, bool) {
	if len(e.Embedded.Authorizations) == 0 {
		return nil, false
	}
	return &e.Embedded.Authorizations[0], true
}

// UserIDTag extracts the internal user id from the form tags. The second
// return is false when the tag is missing or empty.
func (f *OnboardingForm) UserIDTag() (string, bool) {
	if f.Tags == nil {
		return "", false
	}
	id := strings.TrimSpace(f.Tags[TagUserID])
	return id, id != ""
}

// IsCompleted reports whether the form reached its completed state. Some
// gateway environments never flag the status and only attach the identity
// to a created variant, which counts as completed as well.
func (f *OnboardingForm) IsCompleted() bool {
	if strings.EqualFold(f.Status, FormStatusCompleted) {
		return true
	}
	return strings.TrimSpace(f.Identity) != ""
}
