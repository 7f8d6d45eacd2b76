// Package preview implements the default in-repo preview sink: it converts
// decoded YUV420P frames to RGB and optionally scales them to a display
// size, exposing the latest converted frame under a dedicated mutex for a
// separate preview-rendering thread to read (spec §5).
//
// The spec treats the preview renderer as an external collaborator
// specified only by interface; this is a reference implementation good
// enough to drive that interface without a windowing dependency.
package preview

import (
	"fmt"
	"sync"
)

// Sink converts and buffers scaled RGB frames for a preview thread. It
// implements receiver.Sink.
type Sink struct {
	srcWidth, srcHeight int
	dstWidth, dstHeight int

	mu  sync.Mutex
	rgb []byte
	seq uint64
}

// New creates a sink that converts srcWidth×srcHeight YUV420P frames to RGB
// scaled to dstWidth×dstHeight. Pass dstWidth==srcWidth && dstHeight==srcHeight
// for no resampling.
func New(srcWidth, srcHeight, dstWidth, dstHeight int) *Sink {
	return &Sink{
		srcWidth:  srcWidth,
		srcHeight: srcHeight,
		dstWidth:  dstWidth,
		dstHeight: dstHeight,
	}
}

// WriteFrame implements receiver.Sink: converts one YUV420P frame to RGB,
// scales it if the destination size differs, and publishes it as the
// latest frame under the sink's mutex. Last-writer-wins, matching the
// preview path semantics the spec leaves underspecified on tearing.
func (s *Sink) WriteFrame(raw []byte) error {
	want := s.srcWidth * s.srcHeight * 3 / 2
	if len(raw) != want {
		return fmt.Errorf("preview: expected %d bytes for %dx%d YUV420P, got %d", want, s.srcWidth, s.srcHeight, len(raw))
	}

	rgb := yuv420ToRGB(raw, s.srcWidth, s.srcHeight)
	if s.dstWidth != s.srcWidth || s.dstHeight != s.srcHeight {
		rgb = scaleRGB(rgb, s.srcWidth, s.srcHeight, s.dstWidth, s.dstHeight)
	}

	s.mu.Lock()
	s.rgb = rgb
	s.seq++
	s.mu.Unlock()

	return nil
}

// Snapshot returns the most recently written RGB frame and its sequence
// number, or ok=false if no frame has been written yet.
func (s *Sink) Snapshot() (rgb []byte, seq uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rgb == nil {
		return nil, 0, false
	}
	out := make([]byte, len(s.rgb))
	copy(out, s.rgb)
	return out, s.seq, true
}

// Dimensions returns the sink's output frame size.
func (s *Sink) Dimensions() (width, height int) {
	return s.dstWidth, s.dstHeight
}
