// Package rtt implements the smoothed round-trip-time estimator that drives
// the sender's retransmission timeout, following the same EWMA shape as TCP
// (Jacobson/Karels): srtt tracks the mean, rttvar tracks mean deviation, and
// RTO is derived from both with a floor to avoid spurious retransmits on a
// quiet, low-jitter link.
package rtt

import (
	"sync"
	"time"
)

const (
	// alpha weights how quickly srtt follows new samples.
	alpha = 1.0 / 8.0
	// beta weights how quickly rttvar follows new deviation samples.
	beta = 1.0 / 4.0
	// MinRTO is the floor below which the estimator will never report a
	// retransmission timeout, regardless of how tight the measured RTT is.
	MinRTO = 20 * time.Millisecond
)

// Estimator tracks smoothed RTT and derives a retransmission timeout from
// it. The zero value is not usable; construct with NewEstimator.
type Estimator struct {
	mu sync.Mutex

	initialized bool
	srtt        time.Duration
	rttvar      time.Duration

	initialRTO time.Duration
}

// NewEstimator creates an estimator that reports initialRTO until the first
// sample arrives.
func NewEstimator(initialRTO time.Duration) *Estimator {
	if initialRTO < MinRTO {
		initialRTO = MinRTO
	}
	return &Estimator{initialRTO: initialRTO}
}

// Sample folds a new round-trip-time measurement into the estimate.
func (e *Estimator) Sample(sample time.Duration) {
	if sample < 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		e.srtt = sample
		e.rttvar = sample / 2
		e.initialized = true
		return
	}

	delta := e.srtt - sample
	if delta < 0 {
		delta = -delta
	}
	e.rttvar = e.rttvar + time.Duration(beta*float64(delta-e.rttvar))
	e.srtt = e.srtt + time.Duration(alpha*float64(sample-e.srtt))
}

// RTO returns the current retransmission timeout: srtt + 4*rttvar, floored
// at MinRTO. Before any sample has been recorded it returns the estimator's
// configured initial RTO.
func (e *Estimator) RTO() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return e.initialRTO
	}

	rto := e.srtt + 4*e.rttvar
	if rto < MinRTO {
		return MinRTO
	}
	return rto
}

// SRTT returns the current smoothed RTT, or zero if no sample has arrived.
func (e *Estimator) SRTT() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.srtt
}
