package capture

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/prism-video/ring"
)

// Pump runs the capture thread (spec §5 "Capture thread (parallel)"): it
// repeatedly pulls a frame from src and produces it into r, until ctx is
// cancelled or src is exhausted. It is meant to run in its own goroutine,
// independent of the sender's cooperative event loop, matching the spec's
// two-thread capture/loop split.
//
// Cancellation is checked between frame acquisitions rather than
// mid-acquisition, mirroring the process-wide atomic flag the original
// implementation checks at the same granularity (spec §9
// "SIGINT-as-control-flow").
func Pump(ctx context.Context, src Source, r *ring.Ring) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, err := src.NextFrame()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Pump",
				"error":    err.Error(),
			}).Info("capture source exhausted, stopping pump")
			return err
		}

		if dropped := r.Produce(frame.Data); dropped {
			logrus.WithFields(logrus.Fields{
				"function": "Pump",
				"drops":    r.Drops(),
			}).Warn("frame ring overflow, dropped newest frame")
		}
	}
}
