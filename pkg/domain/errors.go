package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFeedTimeout is matched by every *FeedTimeoutError.
	ErrFeedTimeout = errors.New("feed timeout")

	// ErrIdentificationParse is returned when the recognizer output cannot be decoded.
	ErrIdentificationParse = errors.New("identification output could not be parsed")

	// ErrIdentificationFailure is returned when the recognizer reports an explicit error.
	ErrIdentificationFailure = errors.New("identification failed")

	// ErrDispenseFault is returned when an actuator command fails during dispense.
	ErrDispenseFault = errors.New("dispense actuation fault")

	// ErrConfigPersist is returned when counters or criteria cannot be written.
	ErrConfigPersist = errors.New("persist failed")

	// ErrInvalidBin is returned for bin numbers outside 1..BinCount or without a gate.
	ErrInvalidBin = errors.New("invalid bin")

	// ErrRunning is returned by operations that require the sorter to be stopped.
	ErrRunning = errors.New("sorter is running")

	// ErrStopTimeout is returned when the worker did not exit within the stop deadline.
	ErrStopTimeout = errors.New("timed out waiting for sorter to stop")

	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
)

// FeedTimeoutError reports which wait of the feed sequencer expired.
type FeedTimeoutError struct {
	Phase FeedPhase
}

func (e *FeedTimeoutError) Error() string {
	return fmt.Sprintf("feed timeout: %s", e.Phase)
}

// Is makes errors.Is(err, ErrFeedTimeout) true for any phase.
func (e *FeedTimeoutError) Is(target error) bool {
	return target == ErrFeedTimeout
}
