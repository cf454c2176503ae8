// Package postgres persists invoices. Status changes go through
// compare-and-set updates so concurrent transmissions of the same
// invoice serialize to exactly one winner.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"gestaoplus/ms_nfse_core/internal/core/invoice"
)

// Repository implements the invoice.Repository interface using PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepository creates a new PostgreSQL invoice repository.
func NewRepository(pool *pgxpool.Pool, log *slog.Logger) invoice.Repository {
	return &Repository{pool: pool, log: log}
}

const selectColumns = `
	id, issuer_id, rps_number, rps_series, rps_type, nfse_number,
	verification_code, issued_at, service_amount::text, tax_base::text,
	tax_rate::text, deductions::text, service_code, service_descr,
	client_ref, status, cancel_reason, cancelled_at, settings_id,
	certificate_id, created_at, updated_at
`

// FindByID loads one invoice.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	query := `SELECT ` + selectColumns + ` FROM invoices WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrNotFound
		}
		return nil, fmt.Errorf("query invoice: %w", err)
	}
	return inv, nil
}

// Create persists a new invoice row.
func (r *Repository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, issuer_id, rps_number, rps_series, rps_type, nfse_number,
			verification_code, issued_at, service_amount, tax_base, tax_rate,
			deductions, service_code, service_descr, client_ref, status,
			cancel_reason, cancelled_at, settings_id, certificate_id,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)
	`

	var certificateID any
	if inv.CertificateID != uuid.Nil {
		certificateID = inv.CertificateID
	}

	_, err := r.pool.Exec(ctx, query,
		inv.ID,
		inv.IssuerID,
		inv.RPSNumber,
		inv.RPSSeries,
		inv.RPSType,
		inv.NFSeNumber,
		inv.VerificationCode,
		inv.IssuedAt,
		inv.ServiceAmount.String(),
		inv.TaxBase.String(),
		inv.TaxRate.String(),
		inv.Deductions.String(),
		inv.ServiceCode,
		inv.ServiceDescr,
		inv.ClientRef,
		inv.Status,
		inv.CancelReason,
		inv.CancelledAt,
		inv.SettingsID,
		certificateID,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// TransitionStatus moves the invoice from one status to another. The
// WHERE clause carries the expected current status; zero affected rows
// means another writer got there first (or the invoice is gone).
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to invoice.Status) error {
	query := `
		UPDATE invoices
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`

	tag, err := r.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("transition invoice status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.conflictOrMissing(ctx, id)
	}

	r.log.Debug("invoice status transitioned", "invoice_id", id, "from", from, "to", to)
	return nil
}

// RecordAuthorization moves processing → authorized and stores the
// authority-assigned identifiers in the same statement.
func (r *Repository) RecordAuthorization(ctx context.Context, id uuid.UUID, nfseNumber, verificationCode string) error {
	query := `
		UPDATE invoices
		SET status = $2, nfse_number = $3, verification_code = $4, updated_at = now()
		WHERE id = $1 AND status = $5
	`

	tag, err := r.pool.Exec(ctx, query, id, invoice.StatusAuthorized, nfseNumber, verificationCode, invoice.StatusProcessing)
	if err != nil {
		return fmt.Errorf("record authorization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.conflictOrMissing(ctx, id)
	}
	return nil
}

// RecordCancellation moves authorized → cancelled.
func (r *Repository) RecordCancellation(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE invoices
		SET status = $2, cancel_reason = $3, cancelled_at = now(), updated_at = now()
		WHERE id = $1 AND status = $4
	`

	tag, err := r.pool.Exec(ctx, query, id, invoice.StatusCancelled, reason, invoice.StatusAuthorized)
	if err != nil {
		return fmt.Errorf("record cancellation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.conflictOrMissing(ctx, id)
	}
	return nil
}

// NextRPSNumber allocates the next number of the issuer's series. The
// upsert keeps allocation atomic, numbers are never reused even when
// the invoice that consumed one ends up rejected.
func (r *Repository) NextRPSNumber(ctx context.Context, issuerID, series string) (int64, error) {
	query := `
		INSERT INTO rps_counters (issuer_id, series, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (issuer_id, series)
		DO UPDATE SET last_number = rps_counters.last_number + 1
		RETURNING last_number
	`

	var number int64
	if err := r.pool.QueryRow(ctx, query, issuerID, series).Scan(&number); err != nil {
		return 0, fmt.Errorf("allocate rps number: %w", err)
	}
	return number, nil
}

// conflictOrMissing distinguishes a lost CAS race from a row that does
// not exist at all.
func (r *Repository) conflictOrMissing(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check invoice existence: %w", err)
	}
	if !exists {
		return invoice.ErrNotFound
	}
	return invoice.ErrStatusConflict
}

func scanInvoice(row pgx.Row) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	var serviceAmount, taxBase, taxRate, deductions string
	var certificateID *uuid.UUID

	err := row.Scan(
		&inv.ID,
		&inv.IssuerID,
		&inv.RPSNumber,
		&inv.RPSSeries,
		&inv.RPSType,
		&inv.NFSeNumber,
		&inv.VerificationCode,
		&inv.IssuedAt,
		&serviceAmount,
		&taxBase,
		&taxRate,
		&deductions,
		&inv.ServiceCode,
		&inv.ServiceDescr,
		&inv.ClientRef,
		&inv.Status,
		&inv.CancelReason,
		&inv.CancelledAt,
		&inv.SettingsID,
		&certificateID,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if inv.ServiceAmount, err = decimal.NewFromString(serviceAmount); err != nil {
		return nil, fmt.Errorf("parse service_amount: %w", err)
	}
	if inv.TaxBase, err = decimal.NewFromString(taxBase); err != nil {
		return nil, fmt.Errorf("parse tax_base: %w", err)
	}
	if inv.TaxRate, err = decimal.NewFromString(taxRate); err != nil {
		return nil, fmt.Errorf("parse tax_rate: %w", err)
	}
	if inv.Deductions, err = decimal.NewFromString(deductions); err != nil {
		return nil, fmt.Errorf("parse deductions: %w", err)
	}
	if certificateID != nil {
		inv.CertificateID = *certificateID
	}

	return &inv, nil
}
