package invoice

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the invoice does not exist.
	ErrNotFound = errors.New("invoice not found")

	// ErrStatusConflict indicates a guarded transition lost the race:
	// the stored status no longer matches the expected one. Exactly one
	// of two concurrent attempts on the same invoice observes this.
	ErrStatusConflict = errors.New("invoice status conflict")
)

// Repository defines the persistence contract for invoices.
//
// Every state-changing method is an optimistic check-and-set on the
// status column: the update only applies while the stored status still
// matches the expected predecessor, and ErrStatusConflict is returned
// when zero rows match.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// Create inserts a new draft invoice. Used both for first issuance
	// and for the controlled re-issue of a rejected invoice under a
	// fresh RPS number.
	Create(ctx context.Context, inv *Invoice) error

	// TransitionStatus moves the invoice from one status to another
	// under the CAS guard.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status) error

	// RecordAuthorization moves processing → authorized and persists
	// the authority-assigned NFS-e number and verification code in the
	// same guarded update.
	RecordAuthorization(ctx context.Context, id uuid.UUID, nfseNumber, verificationCode string) error

	// RecordCancellation moves authorized → cancelled and persists the
	// reason and timestamp in the same guarded update.
	RecordCancellation(ctx context.Context, id uuid.UUID, reason string) error

	// NextRPSNumber allocates the next provisional receipt number for
	// the issuer and series. Numbers are never reused.
	NextRPSNumber(ctx context.Context, issuerID, series string) (int64, error)
}
