package agent

import "errors"

var (
	// ErrInvalidConfig is returned by NewObsBuilder for unusable settings.
	ErrInvalidConfig = errors.New("invalid encoder configuration")

	// ErrRosterOverflow is returned when a snapshot holds more players than the
	// builder was configured for. The encoder never truncates.
	ErrRosterOverflow = errors.New("roster exceeds configured maximum players")

	// ErrUnknownObserver is returned when the observer is not in the snapshot.
	ErrUnknownObserver = errors.New("observer not present in snapshot")

	// ErrActionSize is returned when the previous action is not ActionDim long.
	ErrActionSize = errors.New("previous action has wrong length")
)
