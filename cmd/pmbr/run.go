package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pmbr/adapters/console"
	"pmbr/adapters/csvlog"
	"pmbr/adapters/realtime"
	"pmbr/adapters/sim"
	"pmbr/app"
	"pmbr/domain/core"
	"pmbr/domain/session"
	"pmbr/domain/trial"
	"pmbr/internal"
	"pmbr/internal/config"
	"pmbr/internal/monitor"
	"pmbr/ports"
)

type runOptions struct {
	participant int
	sessionNo   int
	runNo       int
	mode        string
	trials      int
	seed        int64
	profile     string
	monitorPort string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a practice or standard session against the simulated participant",
		Long: `Run a session with the configuration from .env, PMBR_CONFIG and PMBR_* variables.
Flags override the loaded values. Ctrl-C aborts after the current frame; trials already
resolved stay recorded.

Example: pmbr run --participant 12 --mode standard --trials 80 --seed -1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg, opts); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSession(ctx, cfg, opts.profile)
		},
	}

	cmd.Flags().IntVar(&opts.participant, "participant", 0, "Participant ID")
	cmd.Flags().IntVar(&opts.sessionNo, "session", 1, "Session number")
	cmd.Flags().IntVar(&opts.runNo, "run", 1, "Run number")
	cmd.Flags().StringVar(&opts.mode, "mode", "standard", "Session mode: practice or standard")
	cmd.Flags().IntVar(&opts.trials, "trials", 80, "Standard session trial count (multiple of 4)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Random seed; 0 uses the clock, -1 uses the participant ID")
	cmd.Flags().StringVar(&opts.profile, "profile", "default", "Simulated participant: default or deterministic")
	cmd.Flags().StringVar(&opts.monitorPort, "monitor-port", "", "Serve the live monitor on this port")

	return cmd
}

// applyRunFlags lets explicitly set flags win over the loaded configuration
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, opts runOptions) error {
	flags := cmd.Flags()
	if flags.Changed("participant") {
		cfg.Participant.ID = core.ParticipantID(opts.participant)
	}
	if flags.Changed("session") {
		cfg.Participant.Session = opts.sessionNo
	}
	if flags.Changed("run") {
		cfg.Participant.Run = opts.runNo
	}
	if flags.Changed("mode") {
		mode, err := trial.ParseSessionMode(opts.mode)
		if err != nil {
			return err
		}
		cfg.Session.Mode = mode
	}
	if flags.Changed("trials") {
		cfg.Session.TrialCount = opts.trials
	}
	if flags.Changed("seed") {
		seed := opts.seed
		cfg.Session.Seed = &seed
	}
	if flags.Changed("monitor-port") {
		cfg.Server.MonitorPort = opts.monitorPort
	}
	if cfg.Participant.ID < 0 || cfg.Participant.Session < 1 || cfg.Participant.Run < 1 {
		return core.NewInvalidConfigError("participant", "id must be non-negative, session and run at least 1")
	}
	return cfg.Session.Validate()
}

func simProfile(name string) (sim.Profile, error) {
	switch name {
	case "default":
		return sim.DefaultProfile(), nil
	case "deterministic":
		return sim.DeterministicProfile(), nil
	}
	return sim.Profile{}, fmt.Errorf("unknown participant profile %q", name)
}

func runSession(ctx context.Context, cfg *config.Config, profileName string) error {
	profile, err := simProfile(profileName)
	if err != nil {
		return err
	}

	c, err := openContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Shutdown()
	logger := c.Logger

	rngAdapter := c.RNG
	seed := cfg.Session.ResolveSeed(cfg.Participant.ID, time.Now())
	specs, err := app.NewGenerator(cfg.Session, rngAdapter).
		Generate(ctx, cfg.Session.Mode, cfg.Session.TrialCount, &seed)
	if err != nil {
		return err
	}
	manifest, err := session.NewManifest(cfg.Participant, cfg.Session, seed, specs)
	if err != nil {
		return err
	}

	repo := c.SessionRepo
	if err := repo.CreateSession(ctx, manifest); err != nil {
		return fmt.Errorf("failed to store session manifest: %w", err)
	}

	dbWriter, err := c.TrialWriter(manifest.SessionID)
	if err != nil {
		return err
	}
	sinks := []ports.TrialRecorder{dbWriter}
	// practice runs are not part of the participant's data files
	if cfg.Session.Mode == trial.ModeStandard {
		files, err := csvlog.Open(cfg.Storage.DataDir, manifest)
		if err != nil {
			return err
		}
		if err := files.WriteParams(manifest); err != nil {
			return err
		}
		sinks = append(sinks, files)
		logger.Info("writing trials to %s", files.RunsPath())
	}

	clock := realtime.NewFrameClock(cfg.Session.FrameInterval())
	defer clock.Stop()

	stream, err := rngAdapter.SeededStream(ctx, "participant", seed)
	if err != nil {
		return err
	}
	participant := sim.NewParticipant(profile, clock, stream, console.NewDisplay(logger))

	runner, err := app.NewSessionRunner(cfg.Session, app.RunnerDeps{
		Input:    participant,
		Display:  participant,
		Recorder: app.NewMultiRecorder(sinks...),
		Trigger:  console.NewTrigger(logger),
		Clock:    clock,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if port := cfg.Server.MonitorPort; port != "" {
		mon := monitor.New(logger)
		runner.AddObserver(mon)
		monCtx, cancelMonitor := context.WithCancel(context.Background())
		defer cancelMonitor()
		go func() {
			if err := mon.Serve(monCtx, ":"+port); err != nil {
				logger.Error("monitor stopped: %v", err)
			}
		}()
	}

	summary, runErr := runner.Run(ctx, manifest, specs)

	// the run context may already be cancelled; bookkeeping still has to land
	if err := repo.CompleteSession(context.Background(), manifest.SessionID, summary.Status); err != nil {
		logger.Error("failed to record session status: %v", err)
	}
	if err := config.SaveLastParams(config.LastParamsPath(cfg.Storage.DataDir), cfg.Participant, cfg.Session.Mode); err != nil {
		logger.Warn("failed to save last parameters: %v", err)
	}

	fallback := saveUnwritten(cfg.Storage.DataDir, summary, logger)
	printSummary(summary, fallback)
	if runErr != nil && core.IsAbort(runErr) {
		return nil
	}
	return runErr
}

// saveUnwritten puts trials that a sink rejected into a per-session CSV next to the
// participant's runs file. It returns the file path, or "" when nothing was written.
func saveUnwritten(dataDir string, s *app.Summary, logger *internal.Logger) string {
	if len(s.Unwritten) == 0 {
		return ""
	}
	path, err := csvlog.WriteFallback(dataDir, &s.Manifest, s.Unwritten)
	if err != nil {
		logger.Error("failed to save %d unwritten trial(s): %v", len(s.Unwritten), err)
		return ""
	}
	logger.Warn("%d unwritten trial(s) saved to %s", len(s.Unwritten), path)
	return path
}

func printSummary(s *app.Summary, fallback string) {
	counts := make(map[trial.Outcome]int)
	for _, r := range s.Records {
		counts[r.Outcome]++
	}
	fmt.Printf("Session %s: %s, %d trials\n", s.Manifest.SessionID, s.Status, len(s.Records))
	for _, o := range []trial.Outcome{trial.OutcomeCorrect, trial.OutcomeTooSlow, trial.OutcomeWrongDirection, trial.OutcomeNoResponse, trial.OutcomePremature} {
		fmt.Printf("  %-16s %d\n", o, counts[o])
	}
	if s.Estimate.Samples > 0 {
		fmt.Printf("  RT estimate      %.0f ms (sd %.0f, n=%d)\n",
			s.Estimate.MeanRT, math.Sqrt(s.Estimate.VarianceRT), s.Estimate.Samples)
	}
	if n := len(s.Unwritten); n > 0 && fallback != "" {
		fmt.Printf("  %d trial(s) could not be written; saved to %s\n", n, fallback)
	} else if n > 0 {
		fmt.Printf("  %d trial(s) could not be written; see log\n", n)
	}
}
