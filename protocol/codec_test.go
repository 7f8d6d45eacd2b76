package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragmentSerializeParseRoundTrip(t *testing.T) {
	frag, err := NewFragment(7, FrameKey, 1, 3, 0, 123456, []byte("hello fragment"))
	require.NoError(t, err)

	wire := frag.Serialize()
	rec, err := Parse(wire)
	require.NoError(t, err)
	require.NotNil(t, rec.Fragment)

	assert.Equal(t, frag.FrameID, rec.Fragment.FrameID)
	assert.Equal(t, frag.Type, rec.Fragment.Type)
	assert.Equal(t, frag.FragID, rec.Fragment.FragID)
	assert.Equal(t, frag.FragCnt, rec.Fragment.FragCnt)
	assert.Equal(t, frag.RTX, rec.Fragment.RTX)
	assert.Equal(t, frag.SendTS, rec.Fragment.SendTS)
	assert.Equal(t, frag.Payload, rec.Fragment.Payload)
}

func TestAckSerializeParseRoundTrip(t *testing.T) {
	ack := &Ack{FrameID: 42, FragID: 5, SendTS: 999}
	rec, err := Parse(ack.Serialize())
	require.NoError(t, err)
	require.NotNil(t, rec.Ack)
	assert.Equal(t, ack, rec.Ack)
}

func TestConfigSerializeParseRoundTrip(t *testing.T) {
	cfg := &Config{Width: 1920, Height: 1080, FPS: 60, TargetBitrate: 5000}
	rec, err := Parse(cfg.Serialize())
	require.NoError(t, err)
	require.NotNil(t, rec.Config)
	assert.Equal(t, cfg, rec.Config)
}

func TestNewFragmentValidatesInvariants(t *testing.T) {
	tests := []struct {
		name    string
		fragID  uint16
		fragCnt uint16
		payload []byte
		wantErr error
	}{
		{"zero frag count", 0, 0, []byte{1}, ErrInvalidFragCount},
		{"frag id equal to count", 3, 3, []byte{1}, ErrFragIndexOutOfRange},
		{"frag id beyond count", 5, 3, []byte{1}, ErrFragIndexOutOfRange},
		{"empty payload", 0, 1, nil, ErrEmptyPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFragment(1, FrameKey, tt.fragID, tt.fragCnt, 0, 0, tt.payload)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseUnknownTag(t *testing.T) {
	_, err := Parse([]byte{0xFF, 1, 2, 3})
	assert.ErrorIs(t, err, ErrUnknownTag)
}

func TestParseTruncated(t *testing.T) {
	frag, err := NewFragment(1, FrameKey, 0, 1, 0, 1, []byte("abc"))
	require.NoError(t, err)
	wire := frag.Serialize()

	_, err = Parse(wire[:len(wire)-2])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestParseEmptyBuffer(t *testing.T) {
	_, err := Parse(nil)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestMaxPayloadSize(t *testing.T) {
	got := MaxPayloadSize(DefaultMTU)
	assert.Equal(t, DefaultMTU-28-fragmentHeaderSize, got)
	assert.Greater(t, got, 0)
}

func TestSplitPayloadRoundTrip(t *testing.T) {
	blob := bytes.Repeat([]byte{0xAB}, 3000)
	chunks := SplitPayload(blob, 1000)
	require.Len(t, chunks, 3)

	var rebuilt []byte
	for _, c := range chunks {
		rebuilt = append(rebuilt, c...)
	}
	assert.Equal(t, blob, rebuilt)
}

func TestSplitPayloadExactMultiple(t *testing.T) {
	blob := bytes.Repeat([]byte{1}, 6)
	chunks := SplitPayload(blob, 2)
	assert.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Len(t, c, 2)
	}
}

func TestSplitPayloadSingleChunk(t *testing.T) {
	blob := []byte("small")
	chunks := SplitPayload(blob, 1000)
	assert.Len(t, chunks, 1)
	assert.Equal(t, blob, chunks[0])
}
