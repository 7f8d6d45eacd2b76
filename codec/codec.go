// Package codec defines the glue interfaces between the transport layer and
// an opaque frame compressor/decompressor, plus a reference implementation
// good enough to exercise the rest of the pipeline end to end.
//
// The transport packages (sender, receiver) depend only on Encoder and
// Decoder; swapping in a real hardware or library-backed codec means
// implementing these two interfaces, nothing more.
package codec

import "github.com/opd-ai/prism-video/protocol"

// Encoder compresses raw frames into opaque byte blobs, deciding for itself
// when to emit a self-contained key frame versus a predecessor-dependent
// delta frame.
type Encoder interface {
	// Compress consumes one raw frame and returns its compressed form plus
	// the frame type the sender must record on every fragment.
	Compress(raw []byte) ([]byte, protocol.FrameType, error)

	// SetTargetBitrate updates the encoder's target bitrate in kbps,
	// effective starting with the next call to Compress.
	SetTargetBitrate(kbps uint32)
}

// Decoder reverses Encoder: one compressed blob in, exactly one raw frame
// out.
type Decoder interface {
	Decode(compressed []byte) ([]byte, error)
}
