package protocol

import "errors"

// Sentinel errors for wire codec operations. Callers classify with errors.Is.
var (
	// ErrTruncated indicates a datagram was shorter than its declared layout.
	ErrTruncated = errors.New("protocol: truncated record")

	// ErrUnknownTag indicates the leading type tag did not match any known record kind.
	ErrUnknownTag = errors.New("protocol: unknown record tag")

	// ErrEmptyPayload indicates a data fragment carried zero payload bytes.
	ErrEmptyPayload = errors.New("protocol: empty fragment payload")

	// ErrInvalidFragCount indicates frag_cnt was zero.
	ErrInvalidFragCount = errors.New("protocol: fragment count must be at least 1")

	// ErrFragIndexOutOfRange indicates frag_id was not less than frag_cnt.
	ErrFragIndexOutOfRange = errors.New("protocol: fragment index out of range")

	// ErrPayloadTooLarge indicates a fragment payload exceeded the configured MTU budget.
	ErrPayloadTooLarge = errors.New("protocol: fragment payload exceeds max payload size")

	// ErrTrailingBytes indicates a parsed record did not consume the entire datagram.
	ErrTrailingBytes = errors.New("protocol: trailing bytes after record")
)
