package testkit

import (
	"context"
	"fmt"
	"sync"

	"pmbr/domain/trial"
	"pmbr/ports"
)

// FakeClock advances a fixed step on every NextFrame. It never sleeps.
type FakeClock struct {
	mu   sync.Mutex
	now  int64
	step int64
}

// NewFakeClock creates a clock at 0 that advances stepMs per frame
func NewFakeClock(stepMs int64) *FakeClock {
	if stepMs <= 0 {
		stepMs = 1
	}
	return &FakeClock{step: stepMs}
}

func (c *FakeClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) NextFrame(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now += c.step
	c.mu.Unlock()
	return nil
}

// Set moves the clock to an absolute time
func (c *FakeClock) Set(ms int64) {
	c.mu.Lock()
	c.now = ms
	c.mu.Unlock()
}

// Movement is a scripted deflection of one device held over [StartMs, StartMs+HoldMs).
type Movement struct {
	Device    int
	Direction trial.Direction
	StartMs   int64
	HoldMs    int64
}

// ScriptedInput replays movements against the session clock.
type ScriptedInput struct {
	clock     ports.Clock
	movements []Movement

	// FailAtMs makes Poll fail once the clock reaches it, when positive
	FailAtMs int64
	Polls    int
}

// NewScriptedInput creates an input port that reads time from clock
func NewScriptedInput(clock ports.Clock, movements ...Movement) *ScriptedInput {
	return &ScriptedInput{clock: clock, movements: movements}
}

// Add appends movements to the script
func (s *ScriptedInput) Add(movements ...Movement) {
	s.movements = append(s.movements, movements...)
}

func (s *ScriptedInput) Poll(ctx context.Context) (ports.Frame, error) {
	s.Polls++
	now := s.clock.Now()
	if s.FailAtMs > 0 && now >= s.FailAtMs {
		return ports.Frame{}, fmt.Errorf("joystick disconnected at %dms", now)
	}

	var frame ports.Frame
	for i := range frame.Devices {
		frame.Devices[i].TimestampMs = now
	}
	for _, m := range s.movements {
		if now >= m.StartMs && now < m.StartMs+m.HoldMs {
			frame.Devices[m.Device] = ports.DeviceSample{Direction: m.Direction, Magnitude: 1, TimestampMs: now}
		}
	}
	return frame, nil
}

// Frame builds a single frame at ts. Devices not listed are at rest.
func Frame(ts int64, deflections map[int]trial.Direction) ports.Frame {
	var f ports.Frame
	for i := range f.Devices {
		f.Devices[i].TimestampMs = ts
	}
	for dev, dir := range deflections {
		f.Devices[dev] = ports.DeviceSample{Direction: dir, Magnitude: 1, TimestampMs: ts}
	}
	return f
}

// DisplayEvent is one call on the RecordingDisplay
type DisplayEvent struct {
	Kind      string
	Direction *trial.Direction
	Outcome   trial.Outcome
	Seconds   int
	Label     string
	Block     int
	MeanRT    float64
	AtMs      int64
}

// RecordingDisplay keeps every display call with the clock time it happened at.
type RecordingDisplay struct {
	mu     sync.Mutex
	clock  ports.Clock
	Events []DisplayEvent
}

// NewRecordingDisplay creates a display that stamps events from clock; clock may be nil
func NewRecordingDisplay(clock ports.Clock) *RecordingDisplay {
	return &RecordingDisplay{clock: clock}
}

func (d *RecordingDisplay) add(e DisplayEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.clock != nil {
		e.AtMs = d.clock.Now()
	}
	d.Events = append(d.Events, e)
}

func (d *RecordingDisplay) ShowFixation() { d.add(DisplayEvent{Kind: "fixation"}) }

func (d *RecordingDisplay) ShowPrime(direction trial.Direction) {
	d.add(DisplayEvent{Kind: "prime", Direction: direction.Ptr()})
}

func (d *RecordingDisplay) ShowCue(direction *trial.Direction) {
	d.add(DisplayEvent{Kind: "cue", Direction: direction})
}

func (d *RecordingDisplay) ClearScreen() { d.add(DisplayEvent{Kind: "clear"}) }

func (d *RecordingDisplay) ShowFeedback(outcome trial.Outcome) {
	d.add(DisplayEvent{Kind: "feedback", Outcome: outcome})
}

func (d *RecordingDisplay) ShowCountdown(secondsLeft int, label string) {
	d.add(DisplayEvent{Kind: "countdown", Seconds: secondsLeft, Label: label})
}

func (d *RecordingDisplay) ShowBlockSummary(block int, meanRTMs float64) {
	d.add(DisplayEvent{Kind: "block-summary", Block: block, MeanRT: meanRTMs})
}

// Of returns the events of one kind, in call order
func (d *RecordingDisplay) Of(kind string) []DisplayEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []DisplayEvent
	for _, e := range d.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// MemoryRecorder keeps recorded trials in memory. FailOn makes Record fail for the
// listed trial indices.
type MemoryRecorder struct {
	mu      sync.Mutex
	Specs   []trial.TrialSpec
	Results []trial.TrialResult
	FailOn  map[int]error
}

// NewMemoryRecorder creates an empty recorder
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{FailOn: make(map[int]error)}
}

func (r *MemoryRecorder) Record(ctx context.Context, result trial.TrialResult, spec trial.TrialSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.FailOn[spec.Index]; ok {
		return err
	}
	r.Specs = append(r.Specs, spec)
	r.Results = append(r.Results, result)
	return nil
}

// Len is the number of successfully recorded trials
func (r *MemoryRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Results)
}

// RecordingTrigger keeps every code sent
type RecordingTrigger struct {
	mu    sync.Mutex
	Codes []ports.TriggerCode
}

func (t *RecordingTrigger) Send(code ports.TriggerCode) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Codes = append(t.Codes, code)
	return nil
}

// Count returns how many times code was sent
func (t *RecordingTrigger) Count(code ports.TriggerCode) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.Codes {
		if c == code {
			n++
		}
	}
	return n
}
