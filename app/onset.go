package app

import (
	"sort"

	"pmbr/domain/trial"
	"pmbr/ports"
)

// DeviceOnset is a threshold crossing on one device, stamped on the session clock.
type DeviceOnset struct {
	Device      int
	Direction   trial.Direction
	TimestampMs int64
}

// OnsetDetector turns per-frame deflection magnitudes into movement onset events. A
// device fires once on crossing the threshold and re-arms only after returning below
// half of it, so a held deflection is a single movement.
type OnsetDetector struct {
	threshold float64
	release   float64
	fullPush  float64
	armed     [ports.DeviceCount]bool
}

// NewOnsetDetector creates a detector with every device disarmed until it is seen at rest.
// fullPush is the magnitude at which a movement counts as complete.
func NewOnsetDetector(threshold, fullPush float64) *OnsetDetector {
	return &OnsetDetector{threshold: threshold, release: threshold / 2, fullPush: fullPush}
}

// Reset disarms all devices; called at trial start so movement carried over from the
// previous trial is not taken as a new onset.
func (d *OnsetDetector) Reset() {
	for i := range d.armed {
		d.armed[i] = false
	}
}

// Detect consumes one frame and returns every onset in it, earliest first. Ties on
// timestamp are broken by device index.
func (d *OnsetDetector) Detect(frame ports.Frame) []DeviceOnset {
	var onsets []DeviceOnset
	for i, s := range frame.Devices {
		if !d.armed[i] {
			if s.Magnitude < d.release {
				d.armed[i] = true
			}
			continue
		}
		if s.Magnitude < d.threshold {
			continue
		}
		d.armed[i] = false
		onsets = append(onsets, DeviceOnset{Device: i, Direction: s.Direction, TimestampMs: s.TimestampMs})
	}
	sort.SliceStable(onsets, func(a, b int) bool {
		return onsets[a].TimestampMs < onsets[b].TimestampMs
	})
	return onsets
}

// FullPush reports the sample time at which device reaches full deflection in frame.
func (d *OnsetDetector) FullPush(frame ports.Frame, device int) (int64, bool) {
	if device < 0 || device >= len(frame.Devices) {
		return 0, false
	}
	s := frame.Devices[device]
	if s.Magnitude < d.fullPush {
		return 0, false
	}
	return s.TimestampMs, true
}
