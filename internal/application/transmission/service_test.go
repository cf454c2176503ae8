package transmission

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gestaoplus/ms_nfse_core/internal/adapters/sefaz"
	"gestaoplus/ms_nfse_core/internal/core/certificate"
	"gestaoplus/ms_nfse_core/internal/core/invoice"
	"gestaoplus/ms_nfse_core/internal/core/settings"
	"gestaoplus/ms_nfse_core/internal/core/translog"
	"gestaoplus/ms_nfse_core/internal/testutil"
)

const acceptedBody = `<RetornoEnvioLoteRPS xmlns="http://www.prefeitura.sp.gov.br/nfe">
  <Cabecalho Versao="1"><Sucesso>true</Sucesso></Cabecalho>
  <ChaveNFeRPS>
    <ChaveNFe>
      <InscricaoPrestador>39616924</InscricaoPrestador>
      <NumeroNFe>12345</NumeroNFe>
      <CodigoVerificacao>ABCD1234</CodigoVerificacao>
    </ChaveNFe>
  </ChaveNFeRPS>
</RetornoEnvioLoteRPS>`

const rejectedBody = `<RetornoEnvioLoteRPS xmlns="http://www.prefeitura.sp.gov.br/nfe">
  <Cabecalho Versao="1"><Sucesso>false</Sucesso></Cabecalho>
  <Erro>
    <Codigo>1304</Codigo>
    <Descricao>Inscricao municipal nao autorizada a emitir NFS-e.</Descricao>
  </Erro>
</RetornoEnvioLoteRPS>`

const cancelAcceptedBody = `<RetornoCancelamentoNFe xmlns="http://www.prefeitura.sp.gov.br/nfe">
  <Cabecalho Versao="1"><Sucesso>true</Sucesso></Cabecalho>
  <ChaveNFe>
    <InscricaoPrestador>39616924</InscricaoPrestador>
    <NumeroNFe>12345</NumeroNFe>
  </ChaveNFe>
</RetornoCancelamentoNFe>`

const cancelRefusedBody = `<RetornoCancelamentoNFe xmlns="http://www.prefeitura.sp.gov.br/nfe">
  <Cabecalho Versao="1"><Sucesso>false</Sucesso></Cabecalho>
  <Erro>
    <Codigo>1</Codigo>
    <Descricao>NFS-e ja cancelada.</Descricao>
  </Erro>
</RetornoCancelamentoNFe>`

const consultaNoRecordBody = `<RetornoConsulta xmlns="http://www.prefeitura.sp.gov.br/nfe">
  <Cabecalho Versao="1"><Sucesso>true</Sucesso></Cabecalho>
</RetornoConsulta>`

type fakeDocSigner struct{}

func (fakeDocSigner) Sign(plainXML string) (string, error) {
	return "<!--signed-->" + plainXML, nil
}

type captureNotifier struct {
	ch chan *invoice.Invoice
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{ch: make(chan *invoice.Invoice, 4)}
}

func (n *captureNotifier) InvoiceAuthorized(_ context.Context, inv *invoice.Invoice) {
	n.ch <- inv
}

func (n *captureNotifier) wait(t *testing.T) *invoice.Invoice {
	t.Helper()
	select {
	case inv := <-n.ch:
		return inv
	case <-time.After(2 * time.Second):
		t.Fatal("notification never arrived")
		return nil
	}
}

type fixture struct {
	invoices *testutil.FakeInvoiceRepository
	settings *testutil.FakeSettingsRepository
	certs    *testutil.FakeCertificateRepository
	logbook  *testutil.FakeTranslogRepository
	client   *testutil.ScriptedAuthorityClient
	notifier *captureNotifier
	service  *Service
}

func newFixture(t *testing.T, signErr error) *fixture {
	t.Helper()

	f := &fixture{
		invoices: testutil.NewFakeInvoiceRepository(),
		settings: testutil.NewFakeSettingsRepository(),
		certs:    testutil.NewFakeCertificateRepository(),
		logbook:  testutil.NewFakeTranslogRepository(),
		client:   &testutil.ScriptedAuthorityClient{},
		notifier: newCaptureNotifier(),
	}

	f.service = NewService(Options{
		Invoices:     f.invoices,
		Settings:     f.settings,
		Certificates: f.certs,
		Logbook:      f.logbook,
		ClientFor: func(settings.Environment) AuthorityClient {
			return f.client
		},
		NewSigner: func([]byte, string) (DocumentSigner, error) {
			if signErr != nil {
				return nil, signErr
			}
			return fakeDocSigner{}, nil
		},
		Notifier: f.notifier,
		Logger:   testutil.NewNullLogger(),
	})

	f.settings.Put(&settings.IssuerSettings{
		IssuerID:              "issuer-1",
		MunicipalRegistration: "39616924",
		CNPJ:                  "12345678000195",
		TaxRegime:             "T",
		DocumentType:          "RPS",
		SchemaVersion:         "1",
		Environment:           settings.EnvironmentHomologation,
		DefaultServiceCode:    "02496",
	})
	f.certs.Put(&certificate.Certificate{
		ID:         uuid.New(),
		IssuerID:   "issuer-1",
		Container:  []byte("pkcs12-container"),
		Passphrase: "senha",
		SubjectDN:  "CN=ACME SERVICOS LTDA:12345678000195",
		ValidFrom:  time.Now().Add(-time.Hour),
		ValidUntil: time.Now().Add(365 * 24 * time.Hour),
		Kind:       certificate.KindA1,
		Active:     true,
	})

	return f
}

func (f *fixture) seedInvoice(status invoice.Status) *invoice.Invoice {
	inv := &invoice.Invoice{
		ID:            uuid.New(),
		IssuerID:      "issuer-1",
		RPSNumber:     42,
		RPSSeries:     "A",
		RPSType:       "RPS",
		IssuedAt:      time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		ServiceAmount: decimal.RequireFromString("1500.00"),
		TaxBase:       decimal.RequireFromString("1500.00"),
		TaxRate:       decimal.RequireFromString("0.05"),
		Deductions:    decimal.Zero,
		ServiceCode:   "02496",
		ServiceDescr:  "Consultoria em sistemas",
		ClientRef:     "98765432000188",
		Status:        status,
	}
	if status == invoice.StatusAuthorized {
		inv.NFSeNumber = "12345"
		inv.VerificationCode = "ABCD1234"
	}
	f.invoices.Put(inv)
	return inv
}

func TestService_Transmit_Accepted(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.seedInvoice(invoice.StatusDraft)
	f.client.Responses = []testutil.ScriptedResponse{{Body: []byte(acceptedBody)}}

	outcome, err := f.service.Transmit(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Status != invoice.StatusAuthorized {
		t.Errorf("outcome status = %s, want authorized", outcome.Status)
	}
	if outcome.NFSeNumber != "12345" || outcome.VerificationCode != "ABCD1234" {
		t.Errorf("unexpected outcome %+v", outcome)
	}

	stored := f.invoices.Get(inv.ID)
	if stored.Status != invoice.StatusAuthorized {
		t.Errorf("stored status = %s, want authorized", stored.Status)
	}
	if stored.VerificationCode != "ABCD1234" {
		t.Errorf("verification code = %q, want ABCD1234", stored.VerificationCode)
	}

	entries := f.logbook.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Status != translog.StatusProcessing {
		t.Errorf("first entry status = %s, want processing", entries[0].Status)
	}
	if entries[1].Status != translog.StatusSuccess {
		t.Errorf("second entry status = %s, want success", entries[1].Status)
	}
	if len(entries[1].RequestPayload) == 0 || len(entries[1].ResponsePayload) == 0 {
		t.Error("success entry must capture both payloads")
	}

	notified := f.notifier.wait(t)
	if notified.NFSeNumber != "12345" {
		t.Errorf("notified invoice NFSeNumber = %q", notified.NFSeNumber)
	}
}

func TestService_Transmit_WrongPassphrase(t *testing.T) {
	f := newFixture(t, sefaz.ErrInvalidPassphrase)
	inv := f.seedInvoice(invoice.StatusDraft)

	_, err := f.service.Transmit(context.Background(), inv.ID)
	if !errors.Is(err, ErrSigning) {
		t.Fatalf("expected ErrSigning, got %v", err)
	}

	if got := f.invoices.Get(inv.ID).Status; got != invoice.StatusRejected {
		t.Errorf("status = %s, want rejected", got)
	}
	if f.client.CallCount() != 0 {
		t.Error("no network call may happen after a signing failure")
	}

	entries := f.logbook.Entries()
	last := entries[len(entries)-1]
	if last.Status != translog.StatusError || !strings.Contains(last.Message, "passphrase") {
		t.Errorf("expected error entry mentioning the passphrase, got %+v", last)
	}
}

func TestService_Transmit_TransportTimeout(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.seedInvoice(invoice.StatusDraft)
	f.client.Responses = []testutil.ScriptedResponse{{Err: sefaz.ErrNetwork}}

	_, err := f.service.Transmit(context.Background(), inv.ID)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}

	// Ambiguous outcome: the invoice must stay in processing.
	if got := f.invoices.Get(inv.ID).Status; got != invoice.StatusProcessing {
		t.Errorf("status = %s, want processing", got)
	}

	entries := f.logbook.Entries()
	last := entries[len(entries)-1]
	if last.Status != translog.StatusError || !strings.Contains(last.Message, "outcome unknown") {
		t.Errorf("expected ambiguous transport entry, got %+v", last)
	}
}

func TestService_Transmit_AuthorityRejection(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.seedInvoice(invoice.StatusDraft)
	f.client.Responses = []testutil.ScriptedResponse{{Body: []byte(rejectedBody)}}

	_, err := f.service.Transmit(context.Background(), inv.ID)
	if !errors.Is(err, ErrAuthorityRejection) {
		t.Fatalf("expected ErrAuthorityRejection, got %v", err)
	}

	if got := f.invoices.Get(inv.ID).Status; got != invoice.StatusRejected {
		t.Errorf("status = %s, want rejected", got)
	}

	// The authority's own text is preserved verbatim.
	entries := f.logbook.Entries()
	last := entries[len(entries)-1]
	if !strings.Contains(last.Message, "Inscricao municipal nao autorizada a emitir NFS-e.") {
		t.Errorf("authority error text not preserved: %q", last.Message)
	}
}

func TestService_Transmit_UnparsableResponse(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.seedInvoice(invoice.StatusDraft)
	f.client.Responses = []testutil.ScriptedResponse{{Body: []byte("<html>gateway error</html>")}}

	_, err := f.service.Transmit(context.Background(), inv.ID)
	if !errors.Is(err, ErrAuthorityRejection) {
		t.Fatalf("expected ErrAuthorityRejection, got %v", err)
	}
	if got := f.invoices.Get(inv.ID).Status; got != invoice.StatusRejected {
		t.Errorf("status = %s, want rejected", got)
	}
}

func TestService_Transmit_NotDraft(t *testing.T) {
	for _, status := range []invoice.Status{
		invoice.StatusProcessing,
		invoice.StatusAuthorized,
		invoice.StatusRejected,
		invoice.StatusCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, nil)
			inv := f.seedInvoice(status)

			_, err := f.service.Transmit(context.Background(), inv.ID)
			if !errors.Is(err, ErrAlreadyInProgressOrTerminal) {
				t.Errorf("expected ErrAlreadyInProgressOrTerminal, got %v", err)
			}
			if f.client.CallCount() != 0 {
				t.Error("no authority call may happen")
			}
		})
	}
}

func TestService_Transmit_ConfigurationFailures(t *testing.T) {
	t.Run("invalid settings", func(t *testing.T) {
		f := newFixture(t, nil)
		inv := f.seedInvoice(invoice.StatusDraft)
		f.settings.Put(&settings.IssuerSettings{IssuerID: "issuer-1"})

		_, err := f.service.Transmit(context.Background(), inv.ID)
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("expired certificate", func(t *testing.T) {
		f := newFixture(t, nil)
		inv := f.seedInvoice(invoice.StatusDraft)
		f.certs.Put(&certificate.Certificate{
			IssuerID:   "issuer-1",
			Container:  []byte("c"),
			ValidFrom:  time.Now().Add(-48 * time.Hour),
			ValidUntil: time.Now().Add(-24 * time.Hour),
			Active:     true,
		})

		_, err := f.service.Transmit(context.Background(), inv.ID)
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
		if f.client.CallCount() != 0 {
			t.Error("no authority call may happen with an expired certificate")
		}
	})

	t.Run("missing certificate", func(t *testing.T) {
		f := newFixture(t, nil)
		inv := f.seedInvoice(invoice.StatusDraft)
		f.certs.Put(&certificate.Certificate{IssuerID: "issuer-1", Active: false})

		_, err := f.service.Transmit(context.Background(), inv.ID)
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})
}

// A configuration failure is logged under the stage of the operation
// that hit it, not blanket-attributed to transmission.
func TestService_ConfigurationFailure_LogsCallerStage(t *testing.T) {
	expireCert := func(f *fixture) {
		f.certs.Put(&certificate.Certificate{
			IssuerID:   "issuer-1",
			Container:  []byte("c"),
			ValidFrom:  time.Now().Add(-48 * time.Hour),
			ValidUntil: time.Now().Add(-24 * time.Hour),
			Active:     true,
		})
	}

	t.Run("cancel", func(t *testing.T) {
		f := newFixture(t, nil)
		inv := f.seedInvoice(invoice.StatusAuthorized)
		expireCert(f)

		_, err := f.service.Cancel(context.Background(), inv.ID, "erro de digitação")
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}

		entries := f.logbook.Entries()
		if len(entries) == 0 {
			t.Fatal("expected a log entry for the configuration failure")
		}
		if got := entries[len(entries)-1].Stage; got != translog.StageCancel {
			t.Errorf("log stage = %q, want %q", got, translog.StageCancel)
		}
	})

	t.Run("status query", func(t *testing.T) {
		f := newFixture(t, nil)
		inv := f.seedInvoice(invoice.StatusProcessing)
		expireCert(f)

		_, err := f.service.CheckStatus(context.Background(), inv.ID)
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}

		entries := f.logbook.Entries()
		if len(entries) == 0 {
			t.Fatal("expected a log entry for the configuration failure")
		}
		if got := entries[len(entries)-1].Stage; got != translog.StageStatusQuery {
			t.Errorf("log stage = %q, want %q", got, translog.StageStatusQuery)
		}
	})
}

func TestService_Transmit_ConcurrentAttempts(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.seedInvoice(invoice.StatusDraft)
	f.client.Responses = []testutil.ScriptedResponse{{Body: []byte(acceptedBody)}}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Transmit(context.Background(), inv.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrAlreadyInProgressOrTerminal):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 || conflicts != 1 {
		t.Errorf("expected exactly one winner and one conflict, got %d/%d", successes, conflicts)
	}
}

func TestService_Cancel(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.seedInvoice(invoice.StatusAuthorized)
	f.client.Responses = []testutil.ScriptedResponse{{Body: []byte(cancelAcceptedBody)}}

	outcome, err := f.service.Cancel(context.Background(), inv.ID, "erro de digitação")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != invoice.StatusCancelled {
		t.Errorf("outcome status = %s, want cancelled", outcome.Status)
	}

	stored := f.invoices.Get(inv.ID)
	if stored.Status != invoice.StatusCancelled {
		t.Errorf("stored status = %s, want cancelled", stored.Status)
	}
	if stored.CancelReason != "erro de digitação" {
		t.Errorf("cancel reason = %q", stored.CancelReason)
	}
	if stored.CancelledAt == nil {
		t.Error("cancellation timestamp missing")
	}

	entries := f.logbook.Entries()
	last := entries[len(entries)-1]
	if last.Stage != translog.StageCancel || last.Status != translog.StatusSuccess {
		t.Errorf("unexpected cancel log entry %+v", last)
	}

	// Second attempt must fail as already cancelled.
	_, err = f.service.Cancel(context.Background(), inv.ID, "de novo")
	if !errors.Is(err, ErrAlreadyInProgressOrTerminal) {
		t.Errorf("expected ErrAlreadyInProgressOrTerminal on double cancel, got %v", err)
	}
}

func TestService_Cancel_MissingReason(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.seedInvoice(invoice.StatusAuthorized)

	_, err := f.service.Cancel(context.Background(), inv.ID, "  ")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestService_Cancel_OnlyAuthorized(t *testing.T) {
	for _, status := range []invoice.Status{
		invoice.StatusDraft,
		invoice.StatusProcessing,
		invoice.StatusRejected,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, nil)
			inv := f.seedInvoice(status)

			_, err := f.service.Cancel(context.Background(), inv.ID, "motivo")
			if !errors.Is(err, ErrAlreadyInProgressOrTerminal) {
				t.Errorf("expected ErrAlreadyInProgressOrTerminal, got %v", err)
			}
		})
	}
}

func TestService_Cancel_AuthorityRefuses(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.seedInvoice(invoice.StatusAuthorized)
	f.client.Responses = []testutil.ScriptedResponse{{Body: []byte(cancelRefusedBody)}}

	_, err := f.service.Cancel(context.Background(), inv.ID, "motivo")
	if !errors.Is(err, ErrAuthorityRejection) {
		t.Fatalf("expected ErrAuthorityRejection, got %v", err)
	}
	if got := f.invoices.Get(inv.ID).Status; got != invoice.StatusAuthorized {
		t.Errorf("status = %s, refused cancellation must not change state", got)
	}
}

func TestService_CheckStatus_ResolvesToAuthorized(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.seedInvoice(invoice.StatusProcessing)
	f.client.Responses = []testutil.ScriptedResponse{{Body: []byte(acceptedBody)}}

	outcome, err := f.service.CheckStatus(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Resolved || outcome.Status != invoice.StatusAuthorized {
		t.Errorf("unexpected outcome %+v", outcome)
	}
	if got := f.invoices.Get(inv.ID).Status; got != invoice.StatusAuthorized {
		t.Errorf("stored status = %s, want authorized", got)
	}
	f.notifier.wait(t)
}

func TestService_CheckStatus_ResolvesToRejected(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.seedInvoice(invoice.StatusProcessing)
	f.client.Responses = []testutil.ScriptedResponse{{Body: []byte(rejectedBody)}}

	outcome, err := f.service.CheckStatus(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Resolved || outcome.Status != invoice.StatusRejected {
		t.Errorf("unexpected outcome %+v", outcome)
	}
	if got := f.invoices.Get(inv.ID).Status; got != invoice.StatusRejected {
		t.Errorf("stored status = %s, want rejected", got)
	}
}

func TestService_CheckStatus_NoAuthorityRecord(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.seedInvoice(invoice.StatusProcessing)
	f.client.Responses = []testutil.ScriptedResponse{{Body: []byte(consultaNoRecordBody)}}

	outcome, err := f.service.CheckStatus(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != invoice.StatusRejected || outcome.AuthorityKnows {
		t.Errorf("unexpected outcome %+v", outcome)
	}

	entries := f.logbook.Entries()
	last := entries[len(entries)-1]
	if !strings.Contains(last.Message, "no record") {
		t.Errorf("expected no-record message, got %q", last.Message)
	}
}

func TestService_CheckStatus_LeavesSettledInvoiceAlone(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.seedInvoice(invoice.StatusAuthorized)
	f.client.Responses = []testutil.ScriptedResponse{{Body: []byte(acceptedBody)}}

	outcome, err := f.service.CheckStatus(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Resolved {
		t.Error("a settled invoice must not be resolved again")
	}
	if got := f.invoices.Get(inv.ID).Status; got != invoice.StatusAuthorized {
		t.Errorf("stored status = %s, want authorized", got)
	}
}

func TestService_Resubmit(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.seedInvoice(invoice.StatusRejected)

	clone, err := f.service.Resubmit(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if clone.ID == inv.ID {
		t.Error("resubmission must create a new invoice")
	}
	if clone.RPSNumber == inv.RPSNumber {
		t.Error("resubmission must allocate a fresh RPS number")
	}
	if clone.Status != invoice.StatusDraft {
		t.Errorf("clone status = %s, want draft", clone.Status)
	}
	if clone.NFSeNumber != "" || clone.VerificationCode != "" {
		t.Error("clone must not carry authority-assigned fields")
	}
}

func TestService_Resubmit_OnlyRejected(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.seedInvoice(invoice.StatusDraft)

	_, err := f.service.Resubmit(context.Background(), inv.ID)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestService_ValidateCertificate_BadContainer(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.ValidateCertificate(context.Background(), []byte("garbage"), "pw")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestService_AuditTrail(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.seedInvoice(invoice.StatusDraft)
	f.client.Responses = []testutil.ScriptedResponse{{Body: []byte(acceptedBody)}}

	if _, err := f.service.Transmit(context.Background(), inv.ID); err != nil {
		t.Fatalf("transmit: %v", err)
	}

	entries, err := f.service.AuditTrail(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}

	_, err = f.service.AuditTrail(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Transmit_UnknownInvoice(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.Transmit(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
