package receiver

import "errors"

var (
	// ErrFrameTypeMismatch indicates a fragment's declared frame type
	// conflicts with the type already recorded for that frame id.
	ErrFrameTypeMismatch = errors.New("receiver: fragment frame type does not match existing frame")

	// ErrFragCountMismatch indicates a fragment's declared fragment count
	// conflicts with the count already recorded for that frame id.
	ErrFragCountMismatch = errors.New("receiver: fragment count does not match existing frame")

	// ErrNotComplete indicates ConsumeNextFrame was called before
	// NextFrameComplete confirmed the frontier frame was ready.
	ErrNotComplete = errors.New("receiver: next frame is not yet complete")
)
