// Package postgres persists A1 certificate containers.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gestaoplus/ms_nfse_core/internal/core/certificate"
)

// Repository implements the certificate.Repository interface using PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepository creates a new PostgreSQL certificate repository.
func NewRepository(pool *pgxpool.Pool, log *slog.Logger) certificate.Repository {
	return &Repository{pool: pool, log: log}
}

// GetActive loads the issuer's active certificate. With more than one
// active row the one expiring last wins.
func (r *Repository) GetActive(ctx context.Context, issuerID string) (*certificate.Certificate, error) {
	query := `
		SELECT id, issuer_id, kind, container, passphrase, subject_dn,
		       issuer_dn, valid_from, valid_until, active
		FROM certificates
		WHERE issuer_id = $1 AND active
		ORDER BY valid_until DESC
		LIMIT 1
	`

	var cert certificate.Certificate
	err := r.pool.QueryRow(ctx, query, issuerID).Scan(
		&cert.ID,
		&cert.IssuerID,
		&cert.Kind,
		&cert.Container,
		&cert.Passphrase,
		&cert.SubjectDN,
		&cert.IssuerDN,
		&cert.ValidFrom,
		&cert.ValidUntil,
		&cert.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, certificate.ErrNotFound
		}
		return nil, fmt.Errorf("query active certificate: %w", err)
	}

	return &cert, nil
}
