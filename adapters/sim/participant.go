package sim

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"pmbr/domain/trial"
	"pmbr/ports"
)

// Profile shapes the simulated participant's behaviour. Times are milliseconds.
type Profile struct {
	PrimeLatencyMs int64   `json:"prime_latency_ms"`
	ProbeRTMs      int64   `json:"probe_rt_ms"`
	PMBRSlowingMs  int64   `json:"pmbr_slowing_ms"` // added when the probe repeats the primed direction
	JitterMs       int64   `json:"jitter_ms"`       // uniform +/- on every latency
	HoldMs         int64   `json:"hold_ms"`
	MovementTimeMs int64   `json:"movement_time_ms"` // onset to full push; 0 jumps straight to full
	ErrorRate      float64 `json:"error_rate"`       // probe pushed the wrong way
	MissRate       float64 `json:"miss_rate"`        // probe not answered
	FalseAlarmRate float64 `json:"false_alarm_rate"` // response to a no-go cue
}

// DefaultProfile is a well-behaved participant with a visible PMBR slowing
func DefaultProfile() Profile {
	return Profile{
		PrimeLatencyMs: 300,
		ProbeRTMs:      320,
		PMBRSlowingMs:  40,
		JitterMs:       30,
		HoldMs:         150,
		MovementTimeMs: 90,
		ErrorRate:      0.03,
		MissRate:       0.02,
		FalseAlarmRate: 0.1,
	}
}

// DeterministicProfile never errs and never varies; used where exact timings matter
func DeterministicProfile() Profile {
	return Profile{PrimeLatencyMs: 300, ProbeRTMs: 300, HoldMs: 100}
}

const rampFloor = 0.1

type plannedMovement struct {
	device    int
	direction trial.Direction
	startMs   int64
	holdMs    int64
}

// Participant is a joystick pair operated by a simulated person. It sits between the
// engine and the real display: it watches display commands to decide when to move and
// forwards every command to the wrapped display.
type Participant struct {
	mu      sync.Mutex
	inner   ports.DisplayPort
	clock   ports.Clock
	rng     *rand.Rand
	profile Profile

	prime   *trial.Direction
	planned []plannedMovement
}

// NewParticipant creates a participant; inner may be nil
func NewParticipant(profile Profile, clock ports.Clock, rng *rand.Rand, inner ports.DisplayPort) *Participant {
	return &Participant{inner: inner, clock: clock, rng: rng, profile: profile}
}

// Poll implements ports.InputPort
func (p *Participant) Poll(ctx context.Context) (ports.Frame, error) {
	if err := ctx.Err(); err != nil {
		return ports.Frame{}, err
	}
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	var frame ports.Frame
	for i := range frame.Devices {
		frame.Devices[i].TimestampMs = now
	}
	for _, m := range p.planned {
		if now >= m.startMs && now < m.startMs+m.holdMs {
			frame.Devices[m.device] = ports.DeviceSample{Direction: m.direction, Magnitude: p.magnitude(now - m.startMs), TimestampMs: now}
		}
	}
	return frame, nil
}

func (p *Participant) ShowFixation() {
	p.reset()
	if p.inner != nil {
		p.inner.ShowFixation()
	}
}

func (p *Participant) ShowPrime(direction trial.Direction) {
	p.reset()
	p.mu.Lock()
	p.prime = direction.Ptr()
	p.plan(0, direction, p.profile.PrimeLatencyMs)
	p.mu.Unlock()
	if p.inner != nil {
		p.inner.ShowPrime(direction)
	}
}

func (p *Participant) ShowCue(direction *trial.Direction) {
	p.mu.Lock()
	switch {
	case direction == nil:
		if p.chance(p.profile.FalseAlarmRate) {
			p.plan(1, trial.DirectionLeft, p.profile.ProbeRTMs)
		}
	case p.chance(p.profile.MissRate):
	default:
		dir := *direction
		rt := p.profile.ProbeRTMs
		if p.prime != nil && *p.prime == dir {
			rt += p.profile.PMBRSlowingMs
		}
		if p.chance(p.profile.ErrorRate) {
			dir = dir.Opposite()
		}
		p.plan(1, dir, rt)
	}
	p.mu.Unlock()
	if p.inner != nil {
		p.inner.ShowCue(direction)
	}
}

func (p *Participant) ClearScreen() {
	if p.inner != nil {
		p.inner.ClearScreen()
	}
}

func (p *Participant) ShowFeedback(outcome trial.Outcome) {
	p.reset()
	if p.inner != nil {
		p.inner.ShowFeedback(outcome)
	}
}

func (p *Participant) ShowCountdown(secondsLeft int, label string) {
	if p.inner != nil {
		p.inner.ShowCountdown(secondsLeft, label)
	}
}

func (p *Participant) ShowBlockSummary(block int, meanRTMs float64) {
	if p.inner != nil {
		p.inner.ShowBlockSummary(block, meanRTMs)
	}
}

// plan schedules a movement latencyMs from now; caller holds mu
func (p *Participant) plan(device int, direction trial.Direction, latencyMs int64) {
	if p.profile.JitterMs > 0 && p.rng != nil {
		latencyMs += p.rng.Int63n(2*p.profile.JitterMs+1) - p.profile.JitterMs
	}
	if latencyMs < 1 {
		latencyMs = 1
	}
	hold := p.profile.HoldMs
	if hold <= 0 {
		hold = 100
	}
	p.planned = append(p.planned, plannedMovement{
		device:    device,
		direction: direction,
		startMs:   p.clock.Now() + latencyMs,
		holdMs:    hold,
	})
}

// magnitude ramps linearly from rampFloor to full deflection over MovementTimeMs
func (p *Participant) magnitude(elapsedMs int64) float64 {
	if p.profile.MovementTimeMs <= 0 {
		return 1
	}
	m := rampFloor + (1-rampFloor)*float64(elapsedMs)/float64(p.profile.MovementTimeMs)
	return math.Min(m, 1)
}

// chance draws against rate; caller holds mu
func (p *Participant) chance(rate float64) bool {
	if rate <= 0 || p.rng == nil {
		return false
	}
	return p.rng.Float64() < rate
}

func (p *Participant) reset() {
	p.mu.Lock()
	p.prime = nil
	p.planned = p.planned[:0]
	p.mu.Unlock()
}
