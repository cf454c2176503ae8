package notification

import "context"

// Message is one outbound e-mail about an authorized invoice.
type Message struct {
	To            []string
	Subject       string
	Body          string
	AttachmentURL string
}

// Sink is the fire-and-forget e-mail delivery contract. Failures are
// logged by the dispatcher and never affect invoice state.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}
