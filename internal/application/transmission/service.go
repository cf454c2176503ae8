package transmission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gestaoplus/ms_nfse_core/internal/adapters/sefaz"
	"gestaoplus/ms_nfse_core/internal/core/certificate"
	"gestaoplus/ms_nfse_core/internal/core/invoice"
	"gestaoplus/ms_nfse_core/internal/core/settings"
	"gestaoplus/ms_nfse_core/internal/core/translog"
	infractx "gestaoplus/ms_nfse_core/internal/infrastructure/context"
)

// AuthorityClient is the transport contract against the municipal
// endpoint. Tests plug in fakes returning scripted responses.
type AuthorityClient interface {
	Send(ctx context.Context, op sefaz.Operation, messageXML string) ([]byte, error)
}

// ClientProvider yields the transport client for an issuer's
// configured environment.
type ClientProvider func(env settings.Environment) AuthorityClient

// DocumentSigner signs one request document.
type DocumentSigner interface {
	Sign(plainXML string) (string, error)
}

// SignerFactory opens a certificate container for signing.
type SignerFactory func(container []byte, passphrase string) (DocumentSigner, error)

// Notifier is triggered after an invoice reaches authorized. It runs
// asynchronously and best-effort; its failures never touch invoice
// state.
type Notifier interface {
	InvoiceAuthorized(ctx context.Context, inv *invoice.Invoice)
}

// Service is the invoice state machine. It owns the lifecycle, decides
// legal transitions, persists state plus audit entries, and drives the
// builder, signer, transport and parser in sequence. Every state
// change goes through the repository's CAS guard, so concurrent
// attempts on the same invoice serialize to exactly one winner.
type Service struct {
	invoices  invoice.Repository
	settings  settings.Repository
	certs     certificate.Repository
	logbook   translog.Repository
	builder   *sefaz.Builder
	clientFor ClientProvider
	newSigner SignerFactory
	notifier  Notifier
	log       *slog.Logger
	now       func() time.Time
}

// Options wires the service's collaborators.
type Options struct {
	Invoices     invoice.Repository
	Settings     settings.Repository
	Certificates certificate.Repository
	Logbook      translog.Repository
	ClientFor    ClientProvider
	NewSigner    SignerFactory // defaults to the PKCS#12 signer
	Notifier     Notifier      // optional
	Logger       *slog.Logger
	Now          func() time.Time // defaults to time.Now
}

func NewService(opts Options) *Service {
	if opts.NewSigner == nil {
		opts.NewSigner = func(container []byte, passphrase string) (DocumentSigner, error) {
			return sefaz.NewSigner(container, passphrase)
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		invoices:  opts.Invoices,
		settings:  opts.Settings,
		certs:     opts.Certificates,
		logbook:   opts.Logbook,
		builder:   sefaz.NewBuilder(),
		clientFor: opts.ClientFor,
		newSigner: opts.NewSigner,
		notifier:  opts.Notifier,
		log:       opts.Logger,
		now:       opts.Now,
	}
}

// Outcome is the flat result the HTTP layer turns into the response
// body. Authority error detail stays in the transmission log.
type Outcome struct {
	InvoiceID        uuid.UUID
	Status           invoice.Status
	NFSeNumber       string
	VerificationCode string
}

// Transmit runs draft → processing → {authorized, rejected} for one
// invoice. A network failure after the request left the transport
// leaves the invoice in processing; only CheckStatus may move it on.
func (s *Service) Transmit(ctx context.Context, invoiceID uuid.UUID) (*Outcome, error) {
	inv, st, cert, err := s.loadWorkset(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	switch inv.Status {
	case invoice.StatusDraft:
	case invoice.StatusProcessing:
		return nil, fmt.Errorf("%w: transmission already in progress, run a status check", ErrAlreadyInProgressOrTerminal)
	case invoice.StatusAuthorized:
		return nil, fmt.Errorf("%w: invoice already authorized", ErrAlreadyInProgressOrTerminal)
	default:
		return nil, fmt.Errorf("%w: invoice is %s", ErrAlreadyInProgressOrTerminal, inv.Status)
	}

	if err := s.checkConfiguration(ctx, inv, st, cert, translog.StageTransmit); err != nil {
		return nil, err
	}

	if err := s.invoices.TransitionStatus(ctx, inv.ID, invoice.StatusDraft, invoice.StatusProcessing); err != nil {
		if errors.Is(err, invoice.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: another transmission won the race", ErrAlreadyInProgressOrTerminal)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	s.appendLog(ctx, inv.ID, translog.StageTransmit, translog.StatusProcessing,
		fmt.Sprintf("transmission started, RPS %s/%d", inv.RPSSeries, inv.RPSNumber), nil, nil)

	plain, err := s.builder.BuildEnvioLoteRPS(inv, st)
	if err != nil {
		s.reject(ctx, inv.ID, translog.StageTransmit, err.Error(), nil, nil)
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	signed, err := s.sign(ctx, inv.ID, translog.StageTransmit, cert, plain)
	if err != nil {
		return nil, err
	}

	body, err := s.clientFor(st.Environment).Send(ctx, sefaz.OpEnvioLoteRPS, signed)
	if err != nil {
		return nil, s.handleTransportError(ctx, inv.ID, translog.StageTransmit, signed, body, err)
	}

	result, err := sefaz.ParseResponse(body)
	if err != nil {
		s.reject(ctx, inv.ID, translog.StageTransmit, err.Error(), []byte(signed), body)
		return nil, fmt.Errorf("%w: %v", ErrAuthorityRejection, err)
	}

	if !result.Accepted {
		s.reject(ctx, inv.ID, translog.StageTransmit, "authority rejected the RPS batch: "+result.ErrorText(), []byte(signed), body)
		return nil, fmt.Errorf("%w: %s", ErrAuthorityRejection, result.ErrorText())
	}

	if err := s.invoices.RecordAuthorization(ctx, inv.ID, result.NFSeNumber, result.VerificationCode); err != nil {
		// Authority accepted but the local update failed; the log
		// entry is the proof of divergence until a status check heals
		// the row.
		s.appendLog(ctx, inv.ID, translog.StageTransmit, translog.StatusError,
			"authority accepted but local state update failed: "+err.Error(), []byte(signed), body)
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	s.appendLog(ctx, inv.ID, translog.StageTransmit, translog.StatusSuccess,
		fmt.Sprintf("authority accepted, NFS-e %s verification code %s", result.NFSeNumber, result.VerificationCode),
		[]byte(signed), body)

	s.notifyAsync(ctx, inv, result)

	return &Outcome{
		InvoiceID:        inv.ID,
		Status:           invoice.StatusAuthorized,
		NFSeNumber:       result.NFSeNumber,
		VerificationCode: result.VerificationCode,
	}, nil
}

// Cancel runs authorized → cancelled through a signed cancellation
// round trip addressed by the authority-assigned number.
func (s *Service) Cancel(ctx context.Context, invoiceID uuid.UUID, reason string) (*Outcome, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: cancellationReason is required", ErrValidation)
	}

	inv, st, cert, err := s.loadWorkset(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	switch inv.Status {
	case invoice.StatusAuthorized:
	case invoice.StatusCancelled:
		return nil, fmt.Errorf("%w: invoice already cancelled", ErrAlreadyInProgressOrTerminal)
	default:
		return nil, fmt.Errorf("%w: only authorized invoices can be cancelled, invoice is %s", ErrAlreadyInProgressOrTerminal, inv.Status)
	}

	if err := s.checkConfiguration(ctx, inv, st, cert, translog.StageCancel); err != nil {
		return nil, err
	}

	plain, err := s.builder.BuildCancelamento(inv, st)
	if err != nil {
		s.appendLog(ctx, inv.ID, translog.StageCancel, translog.StatusError, err.Error(), nil, nil)
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	signed, err := s.sign(ctx, inv.ID, translog.StageCancel, cert, plain)
	if err != nil {
		return nil, err
	}

	body, err := s.clientFor(st.Environment).Send(ctx, sefaz.OpCancelamentoNFe, signed)
	if err != nil {
		if isAmbiguousTransport(err) {
			s.appendLog(ctx, inv.ID, translog.StageCancel, translog.StatusError,
				"transport failure during cancellation, authority outcome unknown: "+err.Error(), []byte(signed), body)
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		s.appendLog(ctx, inv.ID, translog.StageCancel, translog.StatusError, err.Error(), []byte(signed), body)
		return nil, fmt.Errorf("%w: %v", ErrAuthorityRejection, err)
	}

	result, err := sefaz.ParseResponse(body)
	if err != nil {
		s.appendLog(ctx, inv.ID, translog.StageCancel, translog.StatusError, err.Error(), []byte(signed), body)
		return nil, fmt.Errorf("%w: %v", ErrAuthorityRejection, err)
	}
	if !result.Accepted {
		s.appendLog(ctx, inv.ID, translog.StageCancel, translog.StatusError,
			"authority refused the cancellation: "+result.ErrorText(), []byte(signed), body)
		return nil, fmt.Errorf("%w: %s", ErrAuthorityRejection, result.ErrorText())
	}

	if err := s.invoices.RecordCancellation(ctx, inv.ID, reason); err != nil {
		if errors.Is(err, invoice.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: invoice already cancelled", ErrAlreadyInProgressOrTerminal)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	s.appendLog(ctx, inv.ID, translog.StageCancel, translog.StatusSuccess,
		"NFS-e "+inv.NFSeNumber+" cancelled: "+reason, []byte(signed), body)

	return &Outcome{
		InvoiceID:  inv.ID,
		Status:     invoice.StatusCancelled,
		NFSeNumber: inv.NFSeNumber,
	}, nil
}

// StatusOutcome reports both the local and the authority-side view of
// an invoice after a status query.
type StatusOutcome struct {
	InvoiceID        uuid.UUID
	Status           invoice.Status
	AuthorityKnows   bool
	NFSeNumber       string
	VerificationCode string
	Resolved         bool
}

// CheckStatus queries the authority for the invoice's RPS. For an
// invoice stuck in processing after an ambiguous timeout this is the
// only legal exit: the authority's answer decides authorized versus
// rejected, never a local guess.
func (s *Service) CheckStatus(ctx context.Context, invoiceID uuid.UUID) (*StatusOutcome, error) {
	inv, st, cert, err := s.loadWorkset(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := s.checkConfiguration(ctx, inv, st, cert, translog.StageStatusQuery); err != nil {
		return nil, err
	}

	plain, err := s.builder.BuildConsulta(inv, st)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	signed, err := s.sign(ctx, inv.ID, translog.StageStatusQuery, cert, plain)
	if err != nil {
		return nil, err
	}

	body, err := s.clientFor(st.Environment).Send(ctx, sefaz.OpConsultaNFe, signed)
	if err != nil {
		s.appendLog(ctx, inv.ID, translog.StageStatusQuery, translog.StatusError, err.Error(), []byte(signed), body)
		if isAmbiguousTransport(err) {
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrAuthorityRejection, err)
	}

	result, err := sefaz.ParseConsultaStatus(body)
	if err != nil {
		s.appendLog(ctx, inv.ID, translog.StageStatusQuery, translog.StatusError, err.Error(), []byte(signed), body)
		return nil, fmt.Errorf("%w: %v", ErrAuthorityRejection, err)
	}

	outcome := &StatusOutcome{
		InvoiceID:        inv.ID,
		Status:           inv.Status,
		AuthorityKnows:   result.Accepted,
		NFSeNumber:       result.NFSeNumber,
		VerificationCode: result.VerificationCode,
	}

	if inv.Status != invoice.StatusProcessing {
		s.appendLog(ctx, inv.ID, translog.StageStatusQuery, translog.StatusSuccess,
			fmt.Sprintf("status query answered, local status %s unchanged", inv.Status), []byte(signed), body)
		return outcome, nil
	}

	// Resolve the stuck invoice from the authority's answer.
	switch {
	case result.Accepted:
		if err := s.invoices.RecordAuthorization(ctx, inv.ID, result.NFSeNumber, result.VerificationCode); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		s.appendLog(ctx, inv.ID, translog.StageStatusQuery, translog.StatusSuccess,
			fmt.Sprintf("authority confirmed NFS-e %s, invoice authorized", result.NFSeNumber), []byte(signed), body)
		s.notifyAsync(ctx, inv, result)
		outcome.Status = invoice.StatusAuthorized
		outcome.Resolved = true

	case len(result.Errors) > 0:
		s.reject(ctx, inv.ID, translog.StageStatusQuery, "authority reported rejection: "+result.ErrorText(), []byte(signed), body)
		outcome.Status = invoice.StatusRejected
		outcome.Resolved = true

	default:
		// The authority never registered the RPS; the transmission was
		// lost before processing. Close this attempt so a new draft
		// can be issued under a fresh number.
		s.reject(ctx, inv.ID, translog.StageStatusQuery,
			"authority has no record of the RPS; resubmit as a new draft", []byte(signed), body)
		outcome.Status = invoice.StatusRejected
		outcome.Resolved = true
	}

	return outcome, nil
}

// Resubmit creates a new draft from a rejected invoice under a fresh
// RPS number. Rejected invoices are never resurrected in place because
// the RPS numbering is authority-facing and must not be replayed.
func (s *Service) Resubmit(ctx context.Context, invoiceID uuid.UUID) (*invoice.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, invoiceID)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if inv.Status != invoice.StatusRejected {
		return nil, fmt.Errorf("%w: only rejected invoices can be resubmitted, invoice is %s", ErrValidation, inv.Status)
	}

	number, err := s.invoices.NextRPSNumber(ctx, inv.IssuerID, inv.RPSSeries)
	if err != nil {
		return nil, fmt.Errorf("%w: allocate RPS number: %v", ErrInternal, err)
	}

	now := s.now()
	clone := *inv
	clone.ID = uuid.New()
	clone.RPSNumber = number
	clone.NFSeNumber = ""
	clone.VerificationCode = ""
	clone.Status = invoice.StatusDraft
	clone.CancelReason = ""
	clone.CancelledAt = nil
	clone.IssuedAt = now
	clone.CreatedAt = now
	clone.UpdatedAt = now

	if err := s.invoices.Create(ctx, &clone); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	s.appendLog(ctx, inv.ID, translog.StageResubmit, translog.StatusSuccess,
		fmt.Sprintf("resubmitted as invoice %s with RPS %s/%d", clone.ID, clone.RPSSeries, clone.RPSNumber), nil, nil)

	return &clone, nil
}

// ValidateCertificate checks an uploaded container and returns its
// identity and validity window.
func (s *Service) ValidateCertificate(ctx context.Context, container []byte, passphrase string) (*certificate.Metadata, error) {
	meta, err := sefaz.ValidateContainer(container, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return meta, nil
}

// AuditTrail returns the invoice's transmission log, newest first.
func (s *Service) AuditTrail(ctx context.Context, invoiceID uuid.UUID) ([]translog.Entry, error) {
	if _, err := s.invoices.FindByID(ctx, invoiceID); err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, invoiceID)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	entries, err := s.logbook.FindByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return entries, nil
}

// loadWorkset resolves the invoice identifier before any fallible
// stage runs, so failure handling never has to re-derive it.
func (s *Service) loadWorkset(ctx context.Context, invoiceID uuid.UUID) (*invoice.Invoice, *settings.IssuerSettings, *certificate.Certificate, error) {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			return nil, nil, nil, fmt.Errorf("%w: %s", ErrNotFound, invoiceID)
		}
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	st, err := s.settings.FindByIssuer(ctx, inv.IssuerID)
	if err != nil {
		if errors.Is(err, settings.ErrNotFound) {
			return nil, nil, nil, fmt.Errorf("%w: no settings for issuer %s", ErrConfiguration, inv.IssuerID)
		}
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	cert, err := s.certs.GetActive(ctx, inv.IssuerID)
	if err != nil {
		if errors.Is(err, certificate.ErrNotFound) {
			return nil, nil, nil, fmt.Errorf("%w: no active certificate for issuer %s", ErrConfiguration, inv.IssuerID)
		}
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	return inv, st, cert, nil
}

func (s *Service) checkConfiguration(ctx context.Context, inv *invoice.Invoice, st *settings.IssuerSettings, cert *certificate.Certificate, stage string) error {
	if err := st.Validate(); err != nil {
		s.appendLog(ctx, inv.ID, stage, translog.StatusError, err.Error(), nil, nil)
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if !cert.ValidAt(s.now()) {
		msg := fmt.Sprintf("certificate expired or not yet valid (window %s to %s)",
			cert.ValidFrom.Format(time.RFC3339), cert.ValidUntil.Format(time.RFC3339))
		s.appendLog(ctx, inv.ID, stage, translog.StatusError, msg, nil, nil)
		return fmt.Errorf("%w: %s", ErrConfiguration, msg)
	}
	return nil
}

// sign opens the container and signs the document; on failure the
// invoice is rejected because signing problems are never retryable.
func (s *Service) sign(ctx context.Context, invoiceID uuid.UUID, stage string, cert *certificate.Certificate, plain string) (string, error) {
	signer, err := s.newSigner(cert.Container, cert.Passphrase)
	if err != nil {
		s.failSigning(ctx, invoiceID, stage, err)
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	signed, err := signer.Sign(plain)
	if err != nil {
		s.failSigning(ctx, invoiceID, stage, err)
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}

func (s *Service) failSigning(ctx context.Context, invoiceID uuid.UUID, stage string, err error) {
	if stage == translog.StageTransmit {
		s.reject(ctx, invoiceID, stage, err.Error(), nil, nil)
		return
	}
	s.appendLog(ctx, invoiceID, stage, translog.StatusError, err.Error(), nil, nil)
}

func (s *Service) handleTransportError(ctx context.Context, invoiceID uuid.UUID, stage, signed string, body []byte, err error) error {
	if isAmbiguousTransport(err) {
		// The request may have reached the authority: never guess an
		// outcome, leave the invoice in processing.
		s.appendLog(ctx, invoiceID, stage, translog.StatusError,
			"transport failure, authority outcome unknown: "+err.Error(), []byte(signed), body)
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	// The authority answered with a non-success status.
	s.reject(ctx, invoiceID, stage, err.Error(), []byte(signed), body)
	return fmt.Errorf("%w: %v", ErrAuthorityRejection, err)
}

func isAmbiguousTransport(err error) bool {
	return errors.Is(err, sefaz.ErrNetwork) || errors.Is(err, sefaz.ErrCircuitOpen)
}

// reject moves processing → rejected and records the verbatim failure
// detail.
func (s *Service) reject(ctx context.Context, invoiceID uuid.UUID, stage, message string, request, response []byte) {
	if err := s.invoices.TransitionStatus(ctx, invoiceID, invoice.StatusProcessing, invoice.StatusRejected); err != nil {
		s.log.Error("failed to mark invoice rejected", "invoice_id", invoiceID, "error", err)
	}
	s.appendLog(ctx, invoiceID, stage, translog.StatusError, message, request, response)
}

// appendLog writes one audit entry. A failed write never aborts the
// workflow; it is reported loudly instead.
func (s *Service) appendLog(ctx context.Context, invoiceID uuid.UUID, stage, status, message string, request, response []byte) {
	entry := translog.Entry{
		InvoiceID:       invoiceID,
		CorrelationID:   infractx.GetCorrelationID(ctx),
		Stage:           stage,
		Status:          status,
		Message:         message,
		RequestPayload:  request,
		ResponsePayload: response,
		CreatedAt:       s.now(),
	}
	if err := s.logbook.Append(ctx, entry); err != nil {
		s.log.Error("failed to append transmission log entry",
			"invoice_id", invoiceID,
			"stage", stage,
			"status", status,
			"error", err,
		)
	}
}

func (s *Service) notifyAsync(ctx context.Context, inv *invoice.Invoice, result *sefaz.Result) {
	if s.notifier == nil {
		return
	}

	authorized := *inv
	authorized.Status = invoice.StatusAuthorized
	authorized.NFSeNumber = result.NFSeNumber
	authorized.VerificationCode = result.VerificationCode

	notifyCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("notification dispatch panicked", "invoice_id", authorized.ID, "panic", r)
			}
		}()
		s.notifier.InvoiceAuthorized(notifyCtx, &authorized)
	}()
}
