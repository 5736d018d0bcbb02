package csvlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"pmbr/domain/core"
	"pmbr/domain/session"
	"pmbr/domain/trial"
)

// Writer appends a participant's trials and session parameters to two CSV files under
// <dataDir>/Subject_<id>/. Each file gets its header when it is created and only rows
// afterwards, so repeated sessions of one participant accumulate in the same files.
type Writer struct {
	mu          sync.Mutex
	sessionID   core.SessionID
	participant session.Participant
	runsPath    string
	paramsPath  string
}

// RunsHeader prefixes the record columns with the participant bookkeeping
var RunsHeader = append([]string{"participant_id", "session", "run"}, trial.RecordHeader...)

// ParamsHeader is the column order of the session parameters file
var ParamsHeader = []string{
	"session_id", "participant_id", "session", "run", "mode", "seed",
	"trial_count", "sequence_hash", "started_at", "config",
}

// Open prepares the participant directory for the session in m
func Open(dataDir string, m *session.Manifest) (*Writer, error) {
	dir := SubjectDir(dataDir, m.Participant)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create subject directory: %w", err)
	}
	prefix := fmt.Sprintf("S_%d_PMBR_", int(m.Participant))
	return &Writer{
		sessionID:   m.SessionID,
		participant: session.Participant{ID: m.Participant, Session: m.SessionNo, Run: m.RunNo},
		runsPath:    filepath.Join(dir, prefix+"runs.csv"),
		paramsPath:  filepath.Join(dir, prefix+"task_params.csv"),
	}, nil
}

// SubjectDir is where a participant's files live
func SubjectDir(dataDir string, id core.ParticipantID) string {
	return filepath.Join(dataDir, fmt.Sprintf("Subject_%d", int(id)))
}

// RunsPath is the trial file
func (w *Writer) RunsPath() string { return w.runsPath }

// ParamsPath is the session parameters file
func (w *Writer) ParamsPath() string { return w.paramsPath }

// WriteParams appends the session's manifest row
func (w *Writer) WriteParams(m *session.Manifest) error {
	row := []string{
		m.SessionID.String(),
		strconv.Itoa(int(m.Participant)),
		strconv.Itoa(m.SessionNo),
		strconv.Itoa(m.RunNo),
		string(m.Mode),
		strconv.FormatInt(m.Seed, 10),
		strconv.Itoa(m.TrialCount),
		m.SequenceHash.String(),
		m.StartedAt.String(),
		m.ConfigJSON,
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return appendRow(w.paramsPath, ParamsHeader, row)
}

// Record implements ports.TrialRecorder
func (w *Writer) Record(ctx context.Context, result trial.TrialResult, spec trial.TrialSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := trial.NewRecord(w.sessionID, spec, result)
	row := append([]string{
		strconv.Itoa(int(w.participant.ID)),
		strconv.Itoa(w.participant.Session),
		strconv.Itoa(w.participant.Run),
	}, rec.Row()...)

	w.mu.Lock()
	defer w.mu.Unlock()
	return appendRow(w.runsPath, RunsHeader, row)
}

// appendRow opens path for append, writes header first if the file is new, and syncs
// before returning so a crash loses at most the trial in flight.
func appendRow(path string, header, row []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// FallbackPath is where trials that no sink accepted are kept for session m
func FallbackPath(dataDir string, m *session.Manifest) string {
	return filepath.Join(SubjectDir(dataDir, m.Participant),
		fmt.Sprintf("S_%d_PMBR_unwritten_%s.csv", int(m.Participant), m.SessionID))
}

// WriteFallback writes records to a fresh runs-format file at FallbackPath, so the
// trials a failed recorder dropped can be merged back with ReadRuns.
func WriteFallback(dataDir string, m *session.Manifest, records []trial.Record) (string, error) {
	path := FallbackPath(dataDir, m)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create subject directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(RunsHeader); err != nil {
		return "", err
	}
	for _, rec := range records {
		row := append([]string{
			strconv.Itoa(int(m.Participant)),
			strconv.Itoa(m.SessionNo),
			strconv.Itoa(m.RunNo),
		}, rec.Row()...)
		if err := cw.Write(row); err != nil {
			return "", err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", err
	}
	return path, f.Sync()
}

// ReadRuns loads every row of a runs file back into records
func ReadRuns(path string) ([]trial.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	records := make([]trial.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(RunsHeader) {
			return nil, fmt.Errorf("row %d: expected %d columns, got %d", i+2, len(RunsHeader), len(row))
		}
		rec, err := trial.ParseRow(row[3:])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
