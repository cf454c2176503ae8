package transmission

import "errors"

// Closed error taxonomy of the transmission workflow. Callers branch
// on kind with errors.Is, never on message substrings. The HTTP layer
// maps each kind to a status code and a terse user-visible message;
// full technical detail lives only in the transmission log.
var (
	// ErrNotFound indicates the referenced invoice does not exist.
	ErrNotFound = errors.New("invoice not found")

	// ErrValidation indicates bad or missing caller input. Not written
	// to the transmission log.
	ErrValidation = errors.New("validation failed")

	// ErrConfiguration indicates issuer settings or certificate are
	// incomplete, invalid or expired. Logged.
	ErrConfiguration = errors.New("issuer configuration invalid")

	// ErrSigning indicates a certificate or passphrase problem. Logged
	// and never retryable; a human must intervene.
	ErrSigning = errors.New("signing failed")

	// ErrTransport indicates a network failure with an unknown
	// authority-side outcome. The invoice stays in processing and the
	// caller must run a status check before anything else.
	ErrTransport = errors.New("transport failure, outcome unknown")

	// ErrAuthorityRejection indicates the authority returned a
	// structured rejection. The authority's own error text is
	// preserved verbatim in the transmission log.
	ErrAuthorityRejection = errors.New("authority rejected the request")

	// ErrAlreadyInProgressOrTerminal indicates the guarded status
	// transition found the invoice in a state that forbids the
	// requested operation.
	ErrAlreadyInProgressOrTerminal = errors.New("invoice already in progress or in a terminal state")

	// ErrInternal indicates an unexpected failure. Surfaced without
	// sensitive payload detail.
	ErrInternal = errors.New("internal error")
)
