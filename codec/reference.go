package codec

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/prism-video/protocol"
)

// defaultKeyFrameInterval is the fallback cadence when no bitrate has been
// negotiated yet: every 30th frame is a key frame.
const defaultKeyFrameInterval = 30

// ReferenceCodec is a lightweight, dependency-free byte-oriented codec
// implementing Encoder and Decoder. It compresses raw frames with run-length
// encoding — cheap, allocation-light, and fully reversible — and derives its
// key-frame cadence from the negotiated target bitrate the same way a real
// encoder would trade key-frame frequency for bandwidth.
//
// It is not intended to compete with a production video codec; it exists so
// the rest of the pipeline (fragmentation, reassembly, resync) has a real
// encode/decode round trip to exercise in tests and in the reference CLIs.
type ReferenceCodec struct {
	mu             sync.Mutex
	targetBitrate  uint32
	keyInterval    int
	framesSinceKey int
}

// NewReferenceCodec creates a codec with the given initial target bitrate in
// kbps.
func NewReferenceCodec(initialBitrateKbps uint32) *ReferenceCodec {
	c := &ReferenceCodec{}
	c.SetTargetBitrate(initialBitrateKbps)
	return c
}

// SetTargetBitrate implements Encoder. Higher bitrates buy more frequent key
// frames since the link can afford the extra bytes; lower bitrates stretch
// the cadence to conserve bandwidth.
func (c *ReferenceCodec) SetTargetBitrate(kbps uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.targetBitrate = kbps
	switch {
	case kbps == 0:
		c.keyInterval = defaultKeyFrameInterval
	case kbps < 500:
		c.keyInterval = 60
	case kbps < 2000:
		c.keyInterval = 30
	default:
		c.keyInterval = 15
	}

	logrus.WithFields(logrus.Fields{
		"function":     "ReferenceCodec.SetTargetBitrate",
		"kbps":         kbps,
		"key_interval": c.keyInterval,
	}).Debug("updated key frame cadence")
}

// Compress implements Encoder.
func (c *ReferenceCodec) Compress(raw []byte) ([]byte, protocol.FrameType, error) {
	c.mu.Lock()
	frameType := protocol.FrameDelta
	if c.framesSinceKey == 0 {
		frameType = protocol.FrameKey
	}
	c.framesSinceKey++
	if c.framesSinceKey >= c.keyInterval {
		c.framesSinceKey = 0
	}
	c.mu.Unlock()

	return runLengthEncode(raw), frameType, nil
}

// Decode implements Decoder.
func (c *ReferenceCodec) Decode(compressed []byte) ([]byte, error) {
	return runLengthDecode(compressed)
}

// runLengthEncode packs runs as 3-byte (byte, count) records with count
// encoded as a fixed two-byte big-endian value; runs longer than 0xFFFF are
// split across several records.
func runLengthEncode(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}

	out := make([]byte, 0, len(raw)/2+2)
	i := 0
	for i < len(raw) {
		b := raw[i]
		run := 1
		for i+run < len(raw) && raw[i+run] == b && run < 0xFFFF {
			run++
		}
		out = append(out, b, byte(run>>8), byte(run))
		i += run
	}
	return out
}

func runLengthDecode(compressed []byte) ([]byte, error) {
	if len(compressed)%3 != 0 {
		return nil, fmt.Errorf("codec: malformed run-length stream (%d bytes)", len(compressed))
	}

	var out []byte
	for i := 0; i < len(compressed); i += 3 {
		b := compressed[i]
		run := int(compressed[i+1])<<8 | int(compressed[i+2])
		for j := 0; j < run; j++ {
			out = append(out, b)
		}
	}
	return out, nil
}
