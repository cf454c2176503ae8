package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an invoice.
//
// Legal transitions:
//
//	draft → processing → {authorized, rejected}
//	authorized → cancelled
//
// rejected and cancelled are terminal. A rejected invoice is never
// resurrected in place; it is resubmitted as a new draft with a fresh
// RPS number.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusProcessing Status = "processing"
	StatusAuthorized Status = "authorized"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition is allowed except
// cancellation of an authorized invoice.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// CanTransitionTo reports whether the transition graph permits moving
// from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusAuthorized || next == StatusRejected
	case StatusAuthorized:
		return next == StatusCancelled
	default:
		return false
	}
}

// Invoice is the central entity of the transmission workflow. The
// authority (SEFAZ São Paulo) is the source of truth for acceptance;
// NFSeNumber and VerificationCode are only set once the authority
// confirms the RPS batch.
type Invoice struct {
	ID               uuid.UUID
	IssuerID         string
	RPSNumber        int64
	RPSSeries        string
	RPSType          string
	NFSeNumber       string
	VerificationCode string
	IssuedAt         time.Time
	ServiceAmount    decimal.Decimal
	TaxBase          decimal.Decimal
	TaxRate          decimal.Decimal
	Deductions       decimal.Decimal
	ServiceCode      string
	ServiceDescr     string
	ClientRef        string
	Status           Status
	CancelReason     string
	CancelledAt      *time.Time
	SettingsID       string
	CertificateID    uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TaxAmount derives the ISS value from the tax base and rate.
func (i *Invoice) TaxAmount() decimal.Decimal {
	return i.TaxBase.Mul(i.TaxRate).Round(2)
}
