// Package postgres persists per-issuer municipal settings.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gestaoplus/ms_nfse_core/internal/core/settings"
)

// Repository implements the settings.Repository interface using PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepository creates a new PostgreSQL settings repository.
func NewRepository(pool *pgxpool.Pool, log *slog.Logger) settings.Repository {
	return &Repository{pool: pool, log: log}
}

// FindByIssuer loads the issuer's settings row.
func (r *Repository) FindByIssuer(ctx context.Context, issuerID string) (*settings.IssuerSettings, error) {
	query := `
		SELECT issuer_id, municipal_registration, cnpj, tax_regime,
		       document_type, schema_version, environment, default_service_code
		FROM issuer_settings
		WHERE issuer_id = $1
	`

	var st settings.IssuerSettings
	err := r.pool.QueryRow(ctx, query, issuerID).Scan(
		&st.IssuerID,
		&st.MunicipalRegistration,
		&st.CNPJ,
		&st.TaxRegime,
		&st.DocumentType,
		&st.SchemaVersion,
		&st.Environment,
		&st.DefaultServiceCode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, settings.ErrNotFound
		}
		return nil, fmt.Errorf("query issuer settings: %w", err)
	}

	return &st, nil
}
