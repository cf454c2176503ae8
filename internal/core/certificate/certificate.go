package certificate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates no active certificate exists for the issuer.
	ErrNotFound = errors.New("active certificate not found")
)

// Kind distinguishes the two Brazilian digital certificate profiles.
// Only A1 (software container) can be used by a server-side signer;
// A3 lives on a hardware token and is stored for inventory only.
type Kind string

const (
	KindA1 Kind = "A1"
	KindA3 Kind = "A3"
)

// Certificate holds an encrypted PKCS#12 container and the metadata
// derived from it at upload time. The container is consumed read-only
// by the signer and is only ever replaced whole, never mutated.
type Certificate struct {
	ID         uuid.UUID
	IssuerID   string
	Container  []byte
	Passphrase string
	SubjectDN  string
	IssuerDN   string
	ValidFrom  time.Time
	ValidUntil time.Time
	Kind       Kind
	Active     bool
	CreatedAt  time.Time
}

// ValidAt reports whether the certificate's validity window covers t.
func (c *Certificate) ValidAt(t time.Time) bool {
	return !t.Before(c.ValidFrom) && t.Before(c.ValidUntil)
}

// Metadata is the result of validating an uploaded container, returned
// so the caller can assess expiry before relying on the certificate.
type Metadata struct {
	SubjectDN  string
	IssuerDN   string
	ValidFrom  time.Time
	ValidUntil time.Time
}

// Repository defines the persistence contract for certificates.
type Repository interface {
	// GetActive returns the issuer's single active certificate with
	// container bytes and passphrase, ready for the signer.
	GetActive(ctx context.Context, issuerID string) (*Certificate, error)
}
