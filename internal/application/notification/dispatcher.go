// Package notification turns an authorized invoice into an e-mail with
// the DANFSE PDF attached. Everything here is best-effort: a failed
// render, upload or delivery is logged and dropped, it never touches
// invoice state.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gestaoplus/ms_nfse_core/internal/core/invoice"
	"gestaoplus/ms_nfse_core/internal/core/notification"
	"gestaoplus/ms_nfse_core/internal/core/settings"
	"gestaoplus/ms_nfse_core/internal/core/storage"
)

// Renderer builds the DANFSE PDF for an authorized invoice.
type Renderer interface {
	Render(inv *invoice.Invoice, st *settings.IssuerSettings) ([]byte, error)
}

// Dispatcher consumes authorized invoices through a small worker pool
// and pushes one notification per invoice. It satisfies the
// transmission service's Notifier contract.
type Dispatcher struct {
	settings   settings.Repository
	renderer   Renderer
	blobs      storage.BlobStore
	sink       notification.Sink
	recipients []string
	jobTimeout time.Duration
	log        *slog.Logger

	workerCount int
	jobChan     chan *invoice.Invoice
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	startOnce   sync.Once
	stopOnce    sync.Once
}

// Options wires the dispatcher's collaborators.
type Options struct {
	Settings   settings.Repository
	Renderer   Renderer
	Blobs      storage.BlobStore
	Sink       notification.Sink
	Recipients []string
	Workers    int           // defaults to 2
	JobTimeout time.Duration // defaults to 30s
	Logger     *slog.Logger
}

func NewDispatcher(opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		settings:    opts.Settings,
		renderer:    opts.Renderer,
		blobs:       opts.Blobs,
		sink:        opts.Sink,
		recipients:  opts.Recipients,
		jobTimeout:  opts.JobTimeout,
		log:         opts.Logger,
		workerCount: opts.Workers,
		jobChan:     make(chan *invoice.Invoice, opts.Workers*2),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the workers. Safe to call once; Stop drains them.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.workerCount; i++ {
			d.wg.Add(1)
			go d.worker()
		}
	})
}

// Stop shuts the pool down gracefully, letting in-flight jobs finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.jobChan)
		d.wg.Wait()
		d.cancel()
	})
}

// InvoiceAuthorized enqueues a notification for an invoice that just
// reached authorized. When the queue is full or the pool is stopped the
// job is dropped with a log line; the audit trail already holds the
// authorization proof.
func (d *Dispatcher) InvoiceAuthorized(_ context.Context, inv *invoice.Invoice) {
	select {
	case d.jobChan <- inv:
	case <-d.ctx.Done():
		d.log.Warn("notification dropped, dispatcher stopped", "invoice_id", inv.ID)
	default:
		d.log.Warn("notification dropped, queue full", "invoice_id", inv.ID, "nfse_number", inv.NFSeNumber)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for inv := range d.jobChan {
		ctx, cancel := context.WithTimeout(context.Background(), d.jobTimeout)
		d.dispatch(ctx, inv)
		cancel()
	}
}

// dispatch renders, uploads and sends. A failed render or upload
// degrades to an e-mail without attachment instead of losing the
// notification entirely.
func (d *Dispatcher) dispatch(ctx context.Context, inv *invoice.Invoice) {
	if len(d.recipients) == 0 {
		d.log.Warn("no notification recipients configured", "invoice_id", inv.ID)
		return
	}

	st, err := d.settings.FindByIssuer(ctx, inv.IssuerID)
	if err != nil {
		d.log.Error("notification failed, issuer settings unavailable", "invoice_id", inv.ID, "error", err)
		return
	}

	var attachmentURL string
	data, err := d.renderer.Render(inv, st)
	if err != nil {
		d.log.Error("DANFSE render failed, sending without attachment", "invoice_id", inv.ID, "error", err)
	} else {
		key := fmt.Sprintf("nfse/%s/%s.pdf", inv.IssuerID, inv.NFSeNumber)
		attachmentURL, err = d.blobs.Put(ctx, key, "application/pdf", data)
		if err != nil {
			d.log.Error("DANFSE upload failed, sending without attachment", "invoice_id", inv.ID, "error", err)
			attachmentURL = ""
		}
	}

	msg := notification.Message{
		To:      d.recipients,
		Subject: fmt.Sprintf("NFS-e %s autorizada", inv.NFSeNumber),
		Body: fmt.Sprintf(
			"A NFS-e %s (código de verificação %s) referente ao RPS %s/%d foi autorizada pela prefeitura.",
			inv.NFSeNumber, inv.VerificationCode, inv.RPSSeries, inv.RPSNumber),
		AttachmentURL: attachmentURL,
	}
	if err := d.sink.Send(ctx, msg); err != nil {
		d.log.Error("notification delivery failed", "invoice_id", inv.ID, "nfse_number", inv.NFSeNumber, "error", err)
		return
	}

	d.log.Info("notification delivered", "invoice_id", inv.ID, "nfse_number", inv.NFSeNumber, "with_attachment", attachmentURL != "")
}
