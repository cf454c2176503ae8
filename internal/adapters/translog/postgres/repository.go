// Package postgres persists the append-only transmission log.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"gestaoplus/ms_nfse_core/internal/core/translog"
)

// Repository implements the translog.Repository interface using PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepository creates a new PostgreSQL transmission log repository.
func NewRepository(pool *pgxpool.Pool, log *slog.Logger) translog.Repository {
	return &Repository{pool: pool, log: log}
}

// Append persists one log entry. There is no update path; the table is
// append-only by contract.
func (r *Repository) Append(ctx context.Context, entry translog.Entry) error {
	if r.log != nil {
		r.log.Debug("Appending transmission log entry",
			"invoice_id", entry.InvoiceID,
			"correlation_id", entry.CorrelationID,
			"stage", entry.Stage,
			"status", entry.Status,
		)
	}

	query := `
		INSERT INTO transmission_log (
			invoice_id, correlation_id, stage, status, message,
			request_payload, response_payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var requestPayload, responsePayload any
	if len(entry.RequestPayload) > 0 {
		requestPayload = entry.RequestPayload
	}
	if len(entry.ResponsePayload) > 0 {
		responsePayload = entry.ResponsePayload
	}

	_, err := r.pool.Exec(ctx, query,
		entry.InvoiceID,
		entry.CorrelationID,
		entry.Stage,
		entry.Status,
		entry.Message,
		requestPayload,
		responsePayload,
		entry.CreatedAt,
	)
	if err != nil {
		if r.log != nil {
			r.log.Error("Failed to insert transmission log entry",
				"invoice_id", entry.InvoiceID,
				"stage", entry.Stage,
				"status", entry.Status,
				"error", err,
			)
		}
		return fmt.Errorf("insert transmission log entry: %w", err)
	}

	return nil
}

// FindByInvoiceID retrieves the full audit trail of an invoice, newest
// first.
func (r *Repository) FindByInvoiceID(ctx context.Context, invoiceID uuid.UUID) ([]translog.Entry, error) {
	query := `
		SELECT id, invoice_id, correlation_id, stage, status, message,
		       request_payload, response_payload, created_at
		FROM transmission_log
		WHERE invoice_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("query transmission log: %w", err)
	}
	defer rows.Close()

	var entries []translog.Entry
	for rows.Next() {
		var entry translog.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.InvoiceID,
			&entry.CorrelationID,
			&entry.Stage,
			&entry.Status,
			&entry.Message,
			&entry.RequestPayload,
			&entry.ResponsePayload,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transmission log entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return entries, nil
}
