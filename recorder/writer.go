// Package recorder implements the optional YUV4MPEG2 file writer the
// receiver uses to persist decoded frames to disk (spec §6 "Persisted
// state"). It implements receiver.Sink, mirroring how preview.Sink does,
// so a receiver loop can fan a decoded frame out to either or both without
// depending on either package directly.
package recorder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrDiskFull is returned by WriteFrame when the underlying file write
// fails with what looks like an out-of-space condition. Per spec §7 this
// is not treated as a generic fatal codec error: the caller is expected to
// terminate capture gracefully, as if SIGINT had been received.
var ErrDiskFull = errors.New("recorder: disk full")

// Writer appends decoded YUV420P frames to a YUV4MPEG2 file.
type Writer struct {
	width, height, fps int

	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	header bool
	closed bool
}

// New creates a Writer that will persist width×height frames at the given
// fps to path, creating or truncating the file immediately. The YUV4MPEG2
// header is written on the first successful WriteFrame call, not at
// construction, so a Writer that is created but never fed a frame leaves
// an empty file.
func New(path string, width, height, fps int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "New",
			"path":     path,
			"error":    err.Error(),
		}).Error("failed to create recording file")
		return nil, fmt.Errorf("recorder: create %s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"path":     path,
		"width":    width,
		"height":   height,
		"fps":      fps,
	}).Info("recording started")

	return &Writer{
		width:  width,
		height: height,
		fps:    fps,
		file:   f,
		buf:    bufio.NewWriter(f),
	}, nil
}

// WriteFrame implements receiver.Sink. It writes the YUV4MPEG2 stream
// header on the first call, then a FRAME record containing the raw
// YUV420P planes in Y, U, V row-major order.
func (w *Writer) WriteFrame(raw []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("recorder: writer closed")
	}

	want := w.width * w.height * 3 / 2
	if len(raw) != want {
		return fmt.Errorf("recorder: expected %d bytes for %dx%d YUV420P, got %d", want, w.width, w.height, len(raw))
	}

	if !w.header {
		if err := w.writeHeader(); err != nil {
			return w.classify(err)
		}
		w.header = true
	}

	if _, err := w.buf.WriteString("FRAME\n"); err != nil {
		return w.classify(err)
	}
	if _, err := w.buf.Write(raw); err != nil {
		return w.classify(err)
	}
	if err := w.buf.Flush(); err != nil {
		return w.classify(err)
	}
	return nil
}

func (w *Writer) writeHeader() error {
	header := fmt.Sprintf("YUV4MPEG2 W%d H%d F%d:1 Ip A128:117\n", w.width, w.height, w.fps)
	_, err := w.buf.WriteString(header)
	return err
}

// classify maps a write failure to ErrDiskFull when the OS reports the
// filesystem is out of space, per spec §7's distinct "disk full" error
// kind. Other I/O errors are wrapped with context so the caller can treat
// them as an ordinary fatal error.
func (w *Writer) classify(err error) error {
	if isDiskFull(err) {
		logrus.WithFields(logrus.Fields{
			"function": "WriteFrame",
			"error":    err.Error(),
		}).Warn("disk full while recording, terminating capture")
		return ErrDiskFull
	}
	return fmt.Errorf("recorder: write frame: %w", err)
}

// Close flushes and closes the underlying file. Safe to call once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var flushErr error
	if w.buf != nil {
		flushErr = w.buf.Flush()
	}
	closeErr := w.file.Close()

	logrus.WithFields(logrus.Fields{
		"function": "Close",
	}).Info("recording closed")

	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

var _ io.Closer = (*Writer)(nil)
