// Package capture defines the raw-frame producer boundary: the YUV420P
// frame type, resolution/frame-rate validation, and the interface a camera
// or synthetic source implements to feed the sender's frame ring.
package capture

import "fmt"

// Frame is one raw planar YUV420P image, tightly packed with no padding
// between rows or planes.
type Frame struct {
	Width, Height int
	Data          []byte
}

// YUV420Size returns the byte size of a tightly-packed YUV420P frame at the
// given dimensions: one luma byte per pixel plus two quarter-resolution
// chroma planes.
func YUV420Size(width, height int) int {
	return width * height * 3 / 2
}

// Source produces raw frames for the sender's capture goroutine to push
// into the frame ring. Implementations may be a camera device, a test
// pattern generator, or a file replayer.
type Source interface {
	// NextFrame blocks until a frame is available, or returns an error if
	// the source is exhausted or has failed.
	NextFrame() (Frame, error)

	// Close releases any underlying device or file handle.
	Close() error
}

// Tier bounds the maximum frame rate supported at or below a resolution.
type Tier struct {
	MaxWidth, MaxHeight int
	MaxFPS              int
}

// tiers is the resolution ladder a session is validated against, in
// ascending order. A requested resolution matches the first tier it fits
// within on both axes.
var tiers = []Tier{
	{1280, 720, 120},
	{1920, 1080, 60},
	{2000, 1500, 50},
	{3840, 2160, 20},
	{4000, 3000, 14},
	{8000, 6000, 3},
}

// allowedFPS lists the only frame rates a session may request, independent
// of resolution; a resolution's tier further caps which of these are legal.
var allowedFPS = []int{120, 60, 50, 20, 14, 3}

// ValidateResolutionAndFPS reports whether width/height/fps form a
// supported combination, and if not, an error describing which check
// failed.
func ValidateResolutionAndFPS(width, height, fps int) error {
	tierMax := 0
	for _, tier := range tiers {
		if width <= tier.MaxWidth && height <= tier.MaxHeight {
			tierMax = tier.MaxFPS
			break
		}
	}
	if tierMax == 0 {
		return fmt.Errorf("%w: %dx%d", ErrUnsupportedResolution, width, height)
	}

	for _, allowed := range allowedFPS {
		if fps == allowed && fps <= tierMax {
			return nil
		}
	}
	return fmt.Errorf("%w: %dfps for %dx%d (max %dfps)", ErrUnsupportedFPS, fps, width, height, tierMax)
}
