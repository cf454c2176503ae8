package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"gestaoplus/ms_nfse_core/internal/adapters/sefaz"
	"gestaoplus/ms_nfse_core/internal/core/certificate"
	"gestaoplus/ms_nfse_core/internal/core/invoice"
	"gestaoplus/ms_nfse_core/internal/core/settings"
	"gestaoplus/ms_nfse_core/internal/core/translog"
)

// FakeInvoiceRepository is an in-memory invoice.Repository with the
// same check-and-set transition semantics as the postgres adapter.
type FakeInvoiceRepository struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*invoice.Invoice
	nextRPS  int64
}

func NewFakeInvoiceRepository() *FakeInvoiceRepository {
	return &FakeInvoiceRepository{
		invoices: make(map[uuid.UUID]*invoice.Invoice),
		nextRPS:  1,
	}
}

// Put seeds an invoice without going through Create.
func (r *FakeInvoiceRepository) Put(inv *invoice.Invoice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *inv
	r.invoices[inv.ID] = &cp
	if inv.RPSNumber >= r.nextRPS {
		r.nextRPS = inv.RPSNumber + 1
	}
}

// Get returns a copy of the stored invoice, or nil.
func (r *FakeInvoiceRepository) Get(id uuid.UUID) *invoice.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil
	}
	cp := *inv
	return &cp
}

func (r *FakeInvoiceRepository) FindByID(_ context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	inv := r.Get(id)
	if inv == nil {
		return nil, invoice.ErrNotFound
	}
	return inv, nil
}

func (r *FakeInvoiceRepository) Create(_ context.Context, inv *invoice.Invoice) error {
	r.Put(inv)
	return nil
}

func (r *FakeInvoiceRepository) TransitionStatus(_ context.Context, id uuid.UUID, from, to invoice.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return invoice.ErrNotFound
	}
	if inv.Status != from {
		return invoice.ErrStatusConflict
	}
	inv.Status = to
	return nil
}

func (r *FakeInvoiceRepository) RecordAuthorization(_ context.Context, id uuid.UUID, nfseNumber, verificationCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return invoice.ErrNotFound
	}
	if inv.Status != invoice.StatusProcessing {
		return invoice.ErrStatusConflict
	}
	inv.Status = invoice.StatusAuthorized
	inv.NFSeNumber = nfseNumber
	inv.VerificationCode = verificationCode
	return nil
}

func (r *FakeInvoiceRepository) RecordCancellation(_ context.Context, id uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return invoice.ErrNotFound
	}
	if inv.Status != invoice.StatusAuthorized {
		return invoice.ErrStatusConflict
	}
	now := time.Now()
	inv.Status = invoice.StatusCancelled
	inv.CancelReason = reason
	inv.CancelledAt = &now
	return nil
}

func (r *FakeInvoiceRepository) NextRPSNumber(_ context.Context, _, _ string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.nextRPS
	r.nextRPS++
	return n, nil
}

var _ invoice.Repository = (*FakeInvoiceRepository)(nil)

// FakeSettingsRepository is an in-memory settings.Repository.
type FakeSettingsRepository struct {
	mu       sync.Mutex
	byIssuer map[string]*settings.IssuerSettings
}

func NewFakeSettingsRepository() *FakeSettingsRepository {
	return &FakeSettingsRepository{byIssuer: make(map[string]*settings.IssuerSettings)}
}

func (r *FakeSettingsRepository) Put(st *settings.IssuerSettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *st
	r.byIssuer[st.IssuerID] = &cp
}

func (r *FakeSettingsRepository) FindByIssuer(_ context.Context, issuerID string) (*settings.IssuerSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.byIssuer[issuerID]
	if !ok {
		return nil, settings.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

var _ settings.Repository = (*FakeSettingsRepository)(nil)

// FakeCertificateRepository is an in-memory certificate.Repository.
type FakeCertificateRepository struct {
	mu       sync.Mutex
	byIssuer map[string]*certificate.Certificate
}

func NewFakeCertificateRepository() *FakeCertificateRepository {
	return &FakeCertificateRepository{byIssuer: make(map[string]*certificate.Certificate)}
}

func (r *FakeCertificateRepository) Put(cert *certificate.Certificate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cert
	r.byIssuer[cert.IssuerID] = &cp
}

func (r *FakeCertificateRepository) GetActive(_ context.Context, issuerID string) (*certificate.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cert, ok := r.byIssuer[issuerID]
	if !ok || !cert.Active {
		return nil, certificate.ErrNotFound
	}
	cp := *cert
	return &cp, nil
}

var _ certificate.Repository = (*FakeCertificateRepository)(nil)

// FakeTranslogRepository collects appended entries in memory.
type FakeTranslogRepository struct {
	mu      sync.Mutex
	entries []translog.Entry
}

func NewFakeTranslogRepository() *FakeTranslogRepository {
	return &FakeTranslogRepository{}
}

func (r *FakeTranslogRepository) Append(_ context.Context, entry translog.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, entry)
	return nil
}

func (r *FakeTranslogRepository) FindByInvoiceID(_ context.Context, invoiceID uuid.UUID) ([]translog.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []translog.Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].InvoiceID == invoiceID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

// Entries returns a copy of everything appended, in append order.
func (r *FakeTranslogRepository) Entries() []translog.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]translog.Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

var _ translog.Repository = (*FakeTranslogRepository)(nil)

// ScriptedAuthorityClient returns pre-programmed responses and records
// every call.
type ScriptedAuthorityClient struct {
	mu        sync.Mutex
	Responses []ScriptedResponse
	Calls     []ScriptedCall
}

type ScriptedResponse struct {
	Body []byte
	Err  error
}

type ScriptedCall struct {
	Operation sefaz.Operation
	Message   string
}

func (c *ScriptedAuthorityClient) Send(_ context.Context, op sefaz.Operation, messageXML string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, ScriptedCall{Operation: op, Message: messageXML})
	if len(c.Responses) == 0 {
		return nil, nil
	}
	next := c.Responses[0]
	if len(c.Responses) > 1 {
		c.Responses = c.Responses[1:]
	}
	return next.Body, next.Err
}

// CallCount returns how many calls reached the fake authority.
func (c *ScriptedAuthorityClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}
