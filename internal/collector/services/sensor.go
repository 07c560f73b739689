package services

import "context"

// Sensor is one source of memory measurements. Collect returns the sensor's
// own sample type; the collector asserts it.
type Sensor interface {
	Name() string
	Collect(ctx context.Context) (any, error)
}
