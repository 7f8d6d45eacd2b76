package capture

import "errors"

var (
	// ErrUnsupportedResolution indicates no tier accommodates the requested
	// width/height.
	ErrUnsupportedResolution = errors.New("capture: unsupported resolution")

	// ErrUnsupportedFPS indicates the requested frame rate is not in the
	// allowed set, or exceeds the resolution's tier cap.
	ErrUnsupportedFPS = errors.New("capture: unsupported frame rate")

	// ErrSourceExhausted indicates a finite source (e.g. a file replayer)
	// has no more frames.
	ErrSourceExhausted = errors.New("capture: source exhausted")
)
