package translog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Stage names the workflow step a log entry belongs to.
const (
	StageTransmit    = "transmit"
	StageCancel      = "cancel"
	StageStatusQuery = "status_query"
	StageResubmit    = "resubmit"
)

// Entry statuses. "processing" marks the attempt before the authority
// answered; exactly one of "success"/"error" follows unless the
// outcome stayed ambiguous (timeout), in which case "processing" is
// the last word until a status query resolves it.
const (
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusError      = "error"
)

// Entry is one append-only audit record of a transmission attempt.
// Entries capture both raw payloads because the authority is the
// ground truth and local state can diverge; the log is the only proof
// of what was actually sent and received. Entries are never updated
// or deleted.
type Entry struct {
	ID              int64
	InvoiceID       uuid.UUID
	CorrelationID   string
	Stage           string
	Status          string
	Message         string
	RequestPayload  []byte
	ResponsePayload []byte
	CreatedAt       time.Time
}

// Repository defines the persistence contract for the transmission log.
type Repository interface {
	// Append persists one entry. There is deliberately no update or
	// delete operation.
	Append(ctx context.Context, entry Entry) error

	// FindByInvoiceID returns the full audit trail for an invoice,
	// newest first.
	FindByInvoiceID(ctx context.Context, invoiceID uuid.UUID) ([]Entry, error)
}
