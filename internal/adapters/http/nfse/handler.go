// Package nfse bridges HTTP traffic with the transmission application
// service.
package nfse

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"gestaoplus/ms_nfse_core/internal/application/transmission"
	ctxutil "gestaoplus/ms_nfse_core/internal/infrastructure/context"
	httperrors "gestaoplus/ms_nfse_core/internal/infrastructure/http"
)

// Handler exposes the invoice transmission workflow over HTTP.
type Handler struct {
	service *transmission.Service
	log     *slog.Logger
}

// NewHandler creates a new NFS-e HTTP handler.
func NewHandler(service *transmission.Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Routes mounts the handler's endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{invoiceId}/transmit", h.Transmit)
	r.Post("/{invoiceId}/cancel", h.Cancel)
	r.Post("/{invoiceId}/status", h.CheckStatus)
	r.Post("/{invoiceId}/resubmit", h.Resubmit)
	r.Get("/{invoiceId}/log", h.AuditTrail)
	r.Post("/certificates/validate", h.ValidateCertificate)
	return r
}

// TransmitResponse is the success body for transmit and cancel calls.
// The protocol field carries the authority verification code under the
// name callers code against.
type TransmitResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	InvoiceID        string `json:"invoiceId"`
	InvoiceStatus    string `json:"invoiceStatus"`
	NFSeNumber       string `json:"nfseNumber,omitempty"`
	VerificationCode string `json:"verificationCode,omitempty"`
	Protocol         string `json:"protocol,omitempty"`
}

// Transmit handles POST /api/v1/nfse/{invoiceId}/transmit requests.
func (h *Handler) Transmit(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.invoiceID(w, r)
	if !ok {
		return
	}

	outcome, err := h.service.Transmit(r.Context(), invoiceID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, TransmitResponse{
		Success:          true,
		Message:          "NFS-e autorizada",
		InvoiceID:        outcome.InvoiceID.String(),
		InvoiceStatus:    string(outcome.Status),
		NFSeNumber:       outcome.NFSeNumber,
		VerificationCode: outcome.VerificationCode,
		Protocol:         outcome.VerificationCode,
	})
}

// CancelRequest carries the mandatory cancellation reason.
type CancelRequest struct {
	CancellationReason string `json:"cancellationReason"`
}

// Cancel handles POST /api/v1/nfse/{invoiceId}/cancel requests.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.invoiceID(w, r)
	if !ok {
		return
	}

	var reqBody CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Erro de Validação", []string{"o corpo da requisição não é válido"}, h.log)
		return
	}

	outcome, err := h.service.Cancel(r.Context(), invoiceID, reqBody.CancellationReason)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, TransmitResponse{
		Success:       true,
		Message:       "NFS-e cancelada",
		InvoiceID:     outcome.InvoiceID.String(),
		InvoiceStatus: string(outcome.Status),
		NFSeNumber:    outcome.NFSeNumber,
	})
}

// StatusResponse reports both the local and authority-side view.
type StatusResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	InvoiceID        string `json:"invoiceId"`
	InvoiceStatus    string `json:"invoiceStatus"`
	AuthorityKnows   bool   `json:"authorityKnows"`
	Resolved         bool   `json:"resolved"`
	NFSeNumber       string `json:"nfseNumber,omitempty"`
	VerificationCode string `json:"verificationCode,omitempty"`
}

// CheckStatus handles POST /api/v1/nfse/{invoiceId}/status requests.
func (h *Handler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.invoiceID(w, r)
	if !ok {
		return
	}

	outcome, err := h.service.CheckStatus(r.Context(), invoiceID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Success:          true,
		Message:          "consulta concluída",
		InvoiceID:        outcome.InvoiceID.String(),
		InvoiceStatus:    string(outcome.Status),
		AuthorityKnows:   outcome.AuthorityKnows,
		Resolved:         outcome.Resolved,
		NFSeNumber:       outcome.NFSeNumber,
		VerificationCode: outcome.VerificationCode,
	})
}

// ResubmitResponse returns the freshly created draft.
type ResubmitResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	NewInvoiceID string `json:"newInvoiceId"`
	RPSSeries    string `json:"rpsSeries"`
	RPSNumber    int64  `json:"rpsNumber"`
}

// Resubmit handles POST /api/v1/nfse/{invoiceId}/resubmit requests.
func (h *Handler) Resubmit(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.invoiceID(w, r)
	if !ok {
		return
	}

	clone, err := h.service.Resubmit(r.Context(), invoiceID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ResubmitResponse{
		Success:      true,
		Message:      "novo rascunho criado",
		NewInvoiceID: clone.ID.String(),
		RPSSeries:    clone.RPSSeries,
		RPSNumber:    clone.RPSNumber,
	})
}

// LogEntry is one audit trail item in the response.
type LogEntry struct {
	ID            int64     `json:"id"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Stage         string    `json:"stage"`
	Status        string    `json:"status"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"createdAt"`
}

// AuditTrailResponse lists the audit trail, newest first.
type AuditTrailResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Total   int        `json:"total"`
	Data    []LogEntry `json:"data"`
}

// AuditTrail handles GET /api/v1/nfse/{invoiceId}/log requests. Raw
// request/response payloads stay in the database; the endpoint reports
// the narrative only.
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.invoiceID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.AuditTrail(r.Context(), invoiceID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	data := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		data = append(data, LogEntry{
			ID:            e.ID,
			CorrelationID: e.CorrelationID,
			Stage:         e.Stage,
			Status:        e.Status,
			Message:       e.Message,
			CreatedAt:     e.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, AuditTrailResponse{
		Success: true,
		Message: "histórico recuperado",
		Total:   len(data),
		Data:    data,
	})
}

// ValidateCertificateRequest carries a base64 PKCS#12 container.
type ValidateCertificateRequest struct {
	Container  string `json:"container"`
	Passphrase string `json:"passphrase"`
}

// ValidateCertificateResponse reports the container's identity and
// validity window.
type ValidateCertificateResponse struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	SubjectDN  string    `json:"subjectDn"`
	IssuerDN   string    `json:"issuerDn"`
	ValidFrom  time.Time `json:"validFrom"`
	ValidUntil time.Time `json:"validUntil"`
}

// ValidateCertificate handles POST /api/v1/nfse/certificates/validate.
func (h *Handler) ValidateCertificate(w http.ResponseWriter, r *http.Request) {
	var reqBody ValidateCertificateRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Erro de Validação", []string{"o corpo da requisição não é válido"}, h.log)
		return
	}
	if reqBody.Container == "" {
		httperrors.WriteError(w, http.StatusBadRequest, "Erro de Validação", []string{"container é obrigatório"}, h.log)
		return
	}

	container, err := base64.StdEncoding.DecodeString(reqBody.Container)
	if err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Erro de Validação", []string{"container deve ser base64 válido"}, h.log)
		return
	}

	meta, err := h.service.ValidateCertificate(r.Context(), container, reqBody.Passphrase)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ValidateCertificateResponse{
		Success:    true,
		Message:    "certificado válido",
		SubjectDN:  meta.SubjectDN,
		IssuerDN:   meta.IssuerDN,
		ValidFrom:  meta.ValidFrom,
		ValidUntil: meta.ValidUntil,
	})
}

func (h *Handler) invoiceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "invoiceId")
	id, err := uuid.Parse(raw)
	if err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Erro de Validação", []string{"invoiceId deve ser um UUID válido"}, h.log)
		return uuid.Nil, false
	}
	return id, true
}

// handleError maps workflow errors to HTTP status codes. Every
// business-rule failure is a 400 with a per-kind message; 500 is
// reserved for internal failure. A transport failure rides the same 400
// with an explicit warning: the authority's outcome is unknown and the
// caller must run a status check instead of retrying the transmit.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	correlationID := ctxutil.GetCorrelationID(r.Context())

	statusCode := http.StatusBadRequest
	var message string

	switch {
	case errors.Is(err, transmission.ErrNotFound):
		message = "Fatura não encontrada"
	case errors.Is(err, transmission.ErrValidation):
		message = "Erro de Validação"
	case errors.Is(err, transmission.ErrConfiguration):
		message = "Erro de Configuração"
	case errors.Is(err, transmission.ErrSigning):
		message = "Erro de Assinatura"
	case errors.Is(err, transmission.ErrAlreadyInProgressOrTerminal):
		message = "Estado da fatura não permite a operação"
	case errors.Is(err, transmission.ErrAuthorityRejection):
		message = "Rejeitado pela prefeitura"
	case errors.Is(err, transmission.ErrTransport):
		message = "Falha de comunicação com a prefeitura; execute uma consulta de status antes de retransmitir"
	default:
		statusCode = http.StatusInternalServerError
		message = "Erro Interno do Servidor"
	}

	httperrors.WriteError(w, statusCode, message, []string{err.Error()}, h.log)

	logAttrs := []any{
		"error", err,
		"status_code", statusCode,
		"method", r.Method,
		"path", r.URL.Path,
	}
	if correlationID != "" {
		logAttrs = append(logAttrs, "correlation_id", correlationID)
	}

	if statusCode >= http.StatusInternalServerError {
		h.log.Error("Request failed", logAttrs...)
	} else {
		h.log.Warn("Request failed", logAttrs...)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
