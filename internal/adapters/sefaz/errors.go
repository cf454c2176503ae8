package sefaz

import "errors"

// Builder errors.
var (
	// ErrMalformedInput indicates a required field is absent or fails a
	// format check. Caller's fault, never transmitted.
	ErrMalformedInput = errors.New("malformed request input")
)

// Signer errors. All are non-retryable: a human must fix the
// certificate or passphrase, blind retry can never succeed.
var (
	ErrInvalidPassphrase = errors.New("certificate passphrase is invalid")
	ErrCorruptContainer  = errors.New("certificate container is not parseable")
	ErrMissingKeyOrCert  = errors.New("certificate container has no usable key or certificate")
)

// Transport errors.
var (
	// ErrNetwork covers connection failures and timeouts. The request
	// may or may not have reached the authority; the caller must
	// re-check status instead of resubmitting.
	ErrNetwork = errors.New("network failure contacting authority")

	// ErrHTTPStatus covers non-2xx answers. Never retried automatically
	// since the authority may have partially processed the request.
	ErrHTTPStatus = errors.New("authority returned non-success HTTP status")

	// ErrCircuitOpen is returned while the breaker holds requests back
	// after repeated transport failures.
	ErrCircuitOpen = errors.New("authority circuit breaker is open")
)

// Parser errors.
var (
	// ErrUnparsableResponse indicates the response body carries no
	// known success or error marker. Surfaced, never guessed around.
	ErrUnparsableResponse = errors.New("authority response is not parseable")

	// ErrInvalidCertificate indicates an uploaded container failed
	// validation.
	ErrInvalidCertificate = errors.New("certificate is invalid")
)
