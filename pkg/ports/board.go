package ports

import "github.com/aretw0/cardsort/pkg/domain"

// Board is the actuator/sensor port.
// Calls are synchronous and expected to complete in well under a millisecond.
type Board interface {
	// ReadLevel returns the raw level of an input pin.
	ReadLevel(pin int) (domain.Level, error)

	// WriteLevel drives an output pin.
	WriteLevel(pin int, level domain.Level) error

	// Step writes one stepper pattern row, pattern[i] going to pins[i].
	Step(pins []int, pattern []domain.Level) error

	// SetServoAngle moves a servo to the given angle (0-180 degrees).
	SetServoAngle(pin int, degrees float64) error

	// ReleaseServo stops the holding pulse of a servo.
	ReleaseServo(pin int) error
}
