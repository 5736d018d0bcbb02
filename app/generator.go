package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"pmbr/domain/core"
	"pmbr/domain/session"
	"pmbr/domain/trial"
	"pmbr/ports"
)

const sequenceStream = "trial-sequence"

// Generator builds the full, ordered trial list for a session by block randomization.
type Generator struct {
	rngPort    ports.RNGPort
	directions []trial.Direction
	blocks     int

	baseDelayMs     int64
	delayJitterMs   int64
	interTrialMinMs int64
	interTrialMaxMs int64
}

// NewGenerator creates a generator for the timing and direction settings in cfg
func NewGenerator(cfg session.Config, rngPort ports.RNGPort) *Generator {
	return &Generator{
		rngPort:         rngPort,
		directions:      append([]trial.Direction(nil), cfg.Directions...),
		blocks:          cfg.Blocks,
		baseDelayMs:     cfg.BaseDelayMs,
		delayJitterMs:   cfg.DelayJitterMs,
		interTrialMinMs: cfg.InterTrialMinMs,
		interTrialMaxMs: cfg.InterTrialMaxMs,
	}
}

// DesignBlock returns one randomization block: every condition in its required multiplicity
func DesignBlock(mode trial.SessionMode) []trial.Condition {
	if mode == trial.ModePractice {
		return []trial.Condition{trial.ConditionIpsilateral, trial.ConditionContralateral, trial.ConditionSingle}
	}
	return trial.AllConditions()
}

// Generate returns the trial sequence for mode. Practice sessions have a fixed length and
// ignore trialCount. A nil seed draws one from the wall clock.
func (g *Generator) Generate(ctx context.Context, mode trial.SessionMode, trialCount int, seed *int64) ([]trial.TrialSpec, error) {
	design := DesignBlock(mode)
	blocks := g.blocks

	switch mode {
	case trial.ModePractice:
		trialCount = session.PracticeTrialCount
		blocks = 1
	case trial.ModeStandard:
		if trialCount <= 0 {
			return nil, core.NewInvalidConfigError("trial_count", "must be positive")
		}
		if trialCount%len(design) != 0 {
			return nil, core.NewInvalidConfigError("trial_count",
				fmt.Sprintf("%d is not a multiple of the %d-condition design block", trialCount, len(design)))
		}
	default:
		return nil, core.NewInvalidConfigError("session_mode", fmt.Sprintf("unknown mode %q", mode))
	}
	if blocks < 1 || trialCount%blocks != 0 {
		return nil, core.NewInvalidConfigError("blocks", fmt.Sprintf("%d trials cannot be split into %d blocks", trialCount, blocks))
	}
	if len(g.directions) == 0 {
		return nil, core.NewInvalidConfigError("directions", "at least one response direction is required")
	}

	s := time.Now().UnixNano()
	if seed != nil {
		s = *seed
	}
	rng, err := g.rngPort.SeededStream(ctx, sequenceStream, s)
	if err != nil {
		return nil, fmt.Errorf("failed to create sequence stream: %w", err)
	}

	conditions := make([]trial.Condition, 0, trialCount)
	for len(conditions) < trialCount {
		block := append([]trial.Condition(nil), design...)
		rng.Shuffle(len(block), func(i, j int) { block[i], block[j] = block[j], block[i] })
		conditions = append(conditions, block...)
	}

	firstDirections := g.balancedDirections(rng, conditions)
	delays := shuffledSpread(rng, g.baseDelayMs, g.baseDelayMs+g.delayJitterMs, trialCount)
	interTrials := shuffledSpread(rng, g.interTrialMinMs, g.interTrialMaxMs, trialCount)
	perBlock := trialCount / blocks

	specs := make([]trial.TrialSpec, trialCount)
	for i, c := range conditions {
		spec := trial.TrialSpec{
			Index:         i,
			Block:         i/perBlock + 1,
			Condition:     c,
			TargetDelayMs: delays[i],
			InterTrialMs:  interTrials[i],
		}
		d := firstDirections[i]
		switch c {
		case trial.ConditionIpsilateral:
			spec.Direction1, spec.Direction2 = d.Ptr(), d.Ptr()
		case trial.ConditionContralateral:
			spec.Direction1, spec.Direction2 = d.Ptr(), d.Opposite().Ptr()
		case trial.ConditionSingle:
			spec.Direction2 = d.Ptr()
		case trial.ConditionCatch:
			spec.Direction1 = d.Ptr()
		}
		specs[i] = spec
	}
	return specs, nil
}

// balancedDirections assigns each trial its leading direction so that every condition
// sees the configured directions as evenly as its count allows.
func (g *Generator) balancedDirections(rng *rand.Rand, conditions []trial.Condition) []trial.Direction {
	positions := make(map[trial.Condition][]int)
	for i, c := range conditions {
		positions[c] = append(positions[c], i)
	}

	out := make([]trial.Direction, len(conditions))
	for _, c := range trial.AllConditions() {
		idx := positions[c]
		pool := make([]trial.Direction, len(idx))
		for i := range pool {
			pool[i] = g.directions[i%len(g.directions)]
		}
		rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		for k, pos := range idx {
			out[pos] = pool[k]
		}
	}
	return out
}

// shuffledSpread returns n evenly spaced millisecond values from lo to hi, shuffled.
// Every session of the same length therefore has the same total duration.
func shuffledSpread(rng *rand.Rand, lo, hi int64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		if n == 1 {
			out[i] = lo
			continue
		}
		out[i] = lo + (hi-lo)*int64(i)/int64(n-1)
	}
	rng.Shuffle(n, func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
