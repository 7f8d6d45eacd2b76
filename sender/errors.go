package sender

import "errors"

var (
	// ErrCodecFailure indicates the configured encoder returned an error.
	// Per the propagation policy, this is fatal.
	ErrCodecFailure = errors.New("sender: encoder failed to compress frame")

	// ErrWouldBlock indicates the socket's send buffer is full.
	ErrWouldBlock = errors.New("sender: send would block")
)
