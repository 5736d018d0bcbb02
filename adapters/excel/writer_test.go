package excel

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pmbr/domain/session"
	"pmbr/domain/trial"
)

func sampleRecords(m *session.Manifest) []trial.Record {
	var out []trial.Record
	add := func(c trial.Condition, rt int64) {
		cue, moved := int64(1500), rt/4
		end := cue + rt + moved
		rec := trial.Record{SessionID: m.SessionID, TrialIndex: len(out), Block: 1, Condition: c,
			TargetDelayMs: 650, AppliedDelayMs: 650, GoCueMs: &cue, Outcome: trial.OutcomeCorrect, MeasuredRTMs: &rt,
			Movement2EndMs: &end, MovementTimeMs: &moved}
		out = append(out, rec)
	}
	for _, rt := range []int64{370, 380, 360} {
		add(trial.ConditionIpsilateral, rt)
	}
	for _, rt := range []int64{320, 330, 325} {
		add(trial.ConditionContralateral, rt)
	}
	out = append(out, trial.Record{SessionID: m.SessionID, TrialIndex: len(out), Block: 1,
		Condition: trial.ConditionCatch, Direction1: trial.DirectionLeft.Ptr(), Outcome: trial.OutcomeNoResponse})
	return out
}

func TestWorkbookWriter_WriteAndReadBack(t *testing.T) {
	m, err := session.NewManifest(session.Participant{ID: 3, Session: 1, Run: 1}, session.DefaultConfig(), 3, nil)
	require.NoError(t, err)
	records := sampleRecords(m)
	path := filepath.Join(t.TempDir(), "session.xlsx")

	require.NoError(t, NewWorkbookWriter(DefaultExportConfig(path)).Write(m, records))

	got, err := ReadTrials(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)
	require.NotNil(t, got[0].MovementTimeMs)
	assert.Equal(t, int64(92), *got[0].MovementTimeMs)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetTrials, SheetConditions, SheetEffect}, f.GetSheetList())

	effect, err := f.GetRows(SheetEffect)
	require.NoError(t, err)
	var found bool
	for _, row := range effect {
		if row[0] == "pmbr_effect_ms" {
			found = true
			assert.Equal(t, "45", row[1])
		}
	}
	assert.True(t, found)
}

func TestWorkbookWriter_TrialsOnly(t *testing.T) {
	m, err := session.NewManifest(session.Participant{ID: 3}, session.DefaultConfig(), 3, nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "trials.xlsx")

	require.NoError(t, NewWorkbookWriter(ExportConfig{FilePath: path}).Write(m, sampleRecords(m)))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetTrials}, f.GetSheetList())
}

func TestReadTrials_MissingFile(t *testing.T) {
	_, err := ReadTrials(filepath.Join(t.TempDir(), "nope.xlsx"))
	assert.Error(t, err)
}
