package ports

import (
	"context"

	"pmbr/domain/trial"
)

// DeviceCount is the number of joysticks the task uses
const DeviceCount = 2

// DeviceSample is one device's state at a poll.
type DeviceSample struct {
	Direction   trial.Direction `json:"direction"`
	Magnitude   float64         `json:"magnitude"` // normalized deflection, 0 at rest, 1 at full push
	TimestampMs int64           `json:"timestamp_ms"`
}

// Frame is what one poll returns: one sample per device.
type Frame struct {
	Devices [DeviceCount]DeviceSample
}

// InputPort is polled once per frame by the session runner
type InputPort interface {
	// Poll returns the current state of both devices, timestamped on the session clock
	Poll(ctx context.Context) (Frame, error)
}
