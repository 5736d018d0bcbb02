package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pmbr/adapters/csvlog"
	"pmbr/adapters/excel"
	"pmbr/adapters/rng"
	"pmbr/app"
	"pmbr/domain/core"
	"pmbr/domain/session"
	"pmbr/domain/trial"
	"pmbr/internal/config"
	"pmbr/internal/migration"
	"pmbr/internal/report"
)

func newGenerateCmd() *cobra.Command {
	var mode string
	var trials int
	var seed int64
	var participant int

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print the trial sequence a seed produces, with its fingerprint",
		Long: `Generate the trial list without running it. The same seed and parameters always
print the same sequence hash.

Example: pmbr generate --mode standard --trials 40 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := session.DefaultConfig()
			m, err := trial.ParseSessionMode(mode)
			if err != nil {
				return err
			}
			cfg.Mode = m
			cfg.TrialCount = trials
			if cmd.Flags().Changed("seed") {
				cfg.Seed = &seed
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			resolved := cfg.ResolveSeed(core.ParticipantID(participant), time.Now())
			specs, err := app.NewGenerator(cfg, rng.NewSeededAdapter()).
				Generate(cmd.Context(), cfg.Mode, cfg.TrialCount, &resolved)
			if err != nil {
				return err
			}

			lines := make([]string, len(specs))
			for i, s := range specs {
				lines[i] = s.Line()
				fmt.Println(lines[i])
			}
			fmt.Printf("seed %d, %d trials, sequence %s\n", resolved, len(specs), core.ComputeSequenceHash(lines))
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "standard", "Session mode: practice or standard")
	cmd.Flags().IntVar(&trials, "trials", 80, "Standard session trial count (multiple of 4)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed; 0 uses the clock, -1 uses the participant ID")
	cmd.Flags().IntVar(&participant, "participant", 0, "Participant ID for --seed -1")

	return cmd
}

func newSessionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c, err := openContainer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			sessions, err := c.SessionRepo.ListSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, m := range sessions {
				fmt.Printf("%s  participant %-4d S%d R%d  %-8s %-8s %3d trials  %s\n",
					m.SessionID, m.Participant, m.SessionNo, m.RunNo, m.Mode, m.Status, m.TrialCount, m.StartedAt)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum sessions to list (0 for all)")
	return cmd
}

func newReportCmd() *cobra.Command {
	var format string
	var out string
	var merge []string

	cmd := &cobra.Command{
		Use:   "report <session-id>",
		Short: "Render a session report as markdown or HTML",
		Long: `Render a session report from the database. --merge adds trials kept in a runs CSV,
an unwritten-trials CSV or an exported workbook; rows of other sessions are ignored.

Example: pmbr report 0190c7f2-... --merge data/Subject_12/S_12_PMBR_unwritten_0190c7f2-....csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, records, err := loadSession(cmd.Context(), args[0], merge)
			if err != nil {
				return err
			}
			if out == "" {
				return report.Write(os.Stdout, format, m, records)
			}
			return writeReportFile(out, format, m, records)
		},
	}

	cmd.Flags().StringVar(&format, "format", "md", "Report format: md or html")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to this file instead of stdout")
	cmd.Flags().StringSliceVar(&merge, "merge", nil, "CSV or .xlsx trial files to merge with the stored trials")
	return cmd
}

func newExportCmd() *cobra.Command {
	var outDir string
	var merge []string

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write the session workbook and HTML report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, records, err := loadSession(cmd.Context(), args[0], merge)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0755); err != nil {
				return err
			}

			base := fmt.Sprintf("S_%d_PMBR_%s", int(m.Participant), m.SessionID)
			workbook := filepath.Join(outDir, base+".xlsx")
			page := filepath.Join(outDir, base+".html")

			var g errgroup.Group
			g.Go(func() error {
				return excel.NewWorkbookWriter(excel.DefaultExportConfig(workbook)).Write(m, records)
			})
			g.Go(func() error {
				return writeReportFile(page, "html", m, records)
			})
			if err := g.Wait(); err != nil {
				return err
			}

			fmt.Printf("wrote %s\nwrote %s\n", workbook, page)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "exports", "Output directory")
	cmd.Flags().StringSliceVar(&merge, "merge", nil, "CSV or .xlsx trial files to merge with the stored trials")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and list applied versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c, err := openContainer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			versions, err := migration.AppliedVersions(cmd.Context(), c.DB)
			if err != nil {
				return err
			}
			fmt.Printf("%s database at %s, schema versions %v\n", cfg.Storage.Driver, cfg.Storage.URL, versions)
			return nil
		},
	}
}

func loadSession(ctx context.Context, rawID string, merge []string) (*session.Manifest, []trial.Record, error) {
	id, err := core.ParseSessionID(rawID)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	c, err := openContainer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	defer c.Shutdown()

	repo := c.SessionRepo
	m, err := repo.GetSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	records, err := repo.ListTrials(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	for _, path := range merge {
		extra, err := readRecordFile(path)
		if err != nil {
			return nil, nil, err
		}
		records = mergeRecords(id, records, extra)
	}
	return m, records, nil
}

// readRecordFile loads trials from a runs-format CSV or an exported workbook
func readRecordFile(path string) ([]trial.Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return csvlog.ReadRuns(path)
	case ".xlsx":
		return excel.ReadTrials(path)
	}
	return nil, fmt.Errorf("%s: expected a .csv or .xlsx file", path)
}

// mergeRecords adds the trials of session id from extra that base does not already
// hold, and returns them ordered by trial index.
func mergeRecords(id core.SessionID, base, extra []trial.Record) []trial.Record {
	seen := make(map[int]bool, len(base))
	for _, r := range base {
		seen[r.TrialIndex] = true
	}
	merged := append([]trial.Record(nil), base...)
	for _, r := range extra {
		if r.SessionID != id || seen[r.TrialIndex] {
			continue
		}
		seen[r.TrialIndex] = true
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].TrialIndex < merged[j].TrialIndex })
	return merged
}

func writeReportFile(path, format string, m *session.Manifest, records []trial.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.Write(f, format, m, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
