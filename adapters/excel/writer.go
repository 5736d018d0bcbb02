package excel

import (
	"fmt"
	"log"
	"time"

	"github.com/xuri/excelize/v2"

	"pmbr/domain/session"
	"pmbr/domain/trial"
	"pmbr/internal/analysis"
)

// WorkbookWriter exports a session's trials and summaries to an .xlsx file
type WorkbookWriter struct {
	config ExportConfig
}

// NewWorkbookWriter creates a writer for config
func NewWorkbookWriter(config ExportConfig) *WorkbookWriter {
	return &WorkbookWriter{config: config}
}

// Write builds the workbook for m and records and saves it
func (w *WorkbookWriter) Write(m *session.Manifest, records []trial.Record) error {
	start := time.Now()
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetTrials); err != nil {
		return fmt.Errorf("failed to name trials sheet: %w", err)
	}
	if err := writeRow(f, SheetTrials, 1, stringsToCells(trial.RecordHeader)); err != nil {
		return err
	}
	for i, rec := range records {
		if err := writeRow(f, SheetTrials, i+2, recordCells(rec)); err != nil {
			return err
		}
	}

	if w.config.IncludeSummary {
		summary := analysis.Summarize(records)
		if err := writeConditions(f, summary); err != nil {
			return err
		}
		if err := writeEffect(f, m, summary); err != nil {
			return err
		}
	}

	if err := f.SaveAs(w.config.FilePath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	log.Printf("[WorkbookWriter] %s written in %.2fms (%d trials)",
		w.config.FilePath, float64(time.Since(start).Nanoseconds())/1e6, len(records))
	return nil
}

func writeConditions(f *excelize.File, summary *analysis.SessionSummary) error {
	if _, err := f.NewSheet(SheetConditions); err != nil {
		return err
	}
	header := []interface{}{"condition", "trials", "accuracy", "rt_samples", "mean_rt_ms", "median_rt_ms", "sd_rt_ms", "p90_rt_ms"}
	if err := writeRow(f, SheetConditions, 1, header); err != nil {
		return err
	}
	for i, c := range summary.Conditions {
		row := []interface{}{string(c.Condition), c.Trials, c.Accuracy, c.RTSamples, c.MeanRT, c.MedianRT, c.SDRT, c.P90RT}
		if err := writeRow(f, SheetConditions, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeEffect(f *excelize.File, m *session.Manifest, summary *analysis.SessionSummary) error {
	if _, err := f.NewSheet(SheetEffect); err != nil {
		return err
	}
	rows := [][]interface{}{
		{"session_id", m.SessionID.String()},
		{"participant_id", int(m.Participant)},
		{"mode", string(m.Mode)},
		{"seed", m.Seed},
		{"trials", summary.Trials},
		{"accuracy", summary.Accuracy},
		{"mean_rt_ms", summary.MeanRT},
	}
	if e := summary.Effect; e != nil {
		rows = append(rows,
			[]interface{}{"ipsilateral_mean_rt_ms", e.IpsilateralMeanRT},
			[]interface{}{"contralateral_mean_rt_ms", e.ContralateralMeanRT},
			[]interface{}{"pmbr_effect_ms", e.EffectMs},
			[]interface{}{"t_statistic", e.TStatistic},
			[]interface{}{"degrees_of_freedom", e.DegreesOfFreedom},
			[]interface{}{"p_value", e.PValue},
			[]interface{}{"cohens_d", e.CohensD},
		)
	} else {
		rows = append(rows, []interface{}{"pmbr_effect_ms", "NA"})
	}
	for i, row := range rows {
		if err := writeRow(f, SheetEffect, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func stringsToCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// recordCells keeps numbers numeric so the sheet sorts and charts correctly
func recordCells(r trial.Record) []interface{} {
	optional := func(v *int64) interface{} {
		if v == nil {
			return "NA"
		}
		return *v
	}
	return []interface{}{
		r.SessionID.String(),
		r.TrialIndex,
		r.Block,
		string(r.Condition),
		trial.FormatDirection(r.Direction1),
		trial.FormatDirection(r.Direction2),
		r.TargetDelayMs,
		r.AppliedDelayMs,
		optional(r.Movement1OnsetMs),
		optional(r.Movement2OnsetMs),
		optional(r.GoCueMs),
		optional(r.DeadlineMs),
		string(r.Outcome),
		optional(r.MeasuredRTMs),
		optional(r.Movement2EndMs),
		optional(r.MovementTimeMs),
	}
}
