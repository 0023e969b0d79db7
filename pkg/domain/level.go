package domain

// Level is a digital pin level.
type Level uint8

const (
	Low  Level = 0
	High Level = 1
)

// Invert returns the opposite level.
func (l Level) Invert() Level {
	if l == High {
		return Low
	}
	return High
}

// SensorReading is one poll of a feed sensor.
type SensorReading struct {
	Pin       int   `json:"pin"`
	Raw       Level `json:"raw"`
	Triggered bool  `json:"triggered"`
}
