package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlagsAcceptsValidArguments(t *testing.T) {
	cfg, err := parseFlags([]string{"9000", "-w", "1280", "-h", "720", "-r", "120"})
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.port)
	assert.Equal(t, 1280, cfg.width)
	assert.Equal(t, 720, cfg.height)
	assert.Equal(t, 120, cfg.fps)
}

func TestParseFlagsRejectsMissingPort(t *testing.T) {
	_, err := parseFlags([]string{"-w", "1280", "-h", "720", "-r", "120"})
	assert.Error(t, err)
}

func TestParseFlagsRejectsNonNumericPort(t *testing.T) {
	_, err := parseFlags([]string{"not-a-port", "-w", "1280", "-h", "720", "-r", "120"})
	assert.Error(t, err)
}

func TestParseFlagsRejectsMissingRequiredFlags(t *testing.T) {
	_, err := parseFlags([]string{"9000", "-w", "1280", "-h", "720"})
	assert.Error(t, err)
}

func TestParseFlagsDefaultsPatternFramesToUnbounded(t *testing.T) {
	cfg, err := parseFlags([]string{"9000", "-w", "1280", "-h", "720", "-r", "120"})
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.patternFrames)
}
