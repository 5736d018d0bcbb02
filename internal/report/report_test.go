package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmbr/domain/session"
	"pmbr/domain/trial"
)

func testManifest(t *testing.T) *session.Manifest {
	t.Helper()
	m, err := session.NewManifest(session.Participant{ID: 12, Session: 2, Run: 1}, session.DefaultConfig(), 12, nil)
	require.NoError(t, err)
	return m
}

func rec(c trial.Condition, o trial.Outcome, rt int64) trial.Record {
	r := trial.Record{Condition: c, Outcome: o}
	if rt > 0 {
		r.MeasuredRTMs = &rt
	}
	return r
}

func pairedRecords() []trial.Record {
	return []trial.Record{
		rec(trial.ConditionIpsilateral, trial.OutcomeCorrect, 370),
		rec(trial.ConditionIpsilateral, trial.OutcomeCorrect, 380),
		rec(trial.ConditionIpsilateral, trial.OutcomeCorrect, 360),
		rec(trial.ConditionContralateral, trial.OutcomeCorrect, 320),
		rec(trial.ConditionContralateral, trial.OutcomeCorrect, 330),
		rec(trial.ConditionContralateral, trial.OutcomeCorrect, 325),
		rec(trial.ConditionSingle, trial.OutcomeTooSlow, 900),
		rec(trial.ConditionCatch, trial.OutcomeNoResponse, 0),
	}
}

func TestMarkdown(t *testing.T) {
	m := testManifest(t)
	md := Markdown(m, pairedRecords())

	assert.True(t, strings.HasPrefix(md, "# PMBR session report: participant 12"))
	assert.Contains(t, md, "| Session / run | 2 / 1 |")
	assert.Contains(t, md, string(m.SequenceHash))
	assert.Contains(t, md, "| too-slow | 1 |")
	assert.Contains(t, md, "| premature | 0 |")
	assert.Contains(t, md, "| ipsilateral-pair | 3 | 100.0% | 370.0 |")
	assert.Contains(t, md, "| single-movement-control | 1 | 0.0% | NA |")
	assert.Contains(t, md, "**+45.0 ms**")
	assert.Contains(t, md, "n=3")
}

func TestMarkdown_NoEffect(t *testing.T) {
	md := Markdown(testManifest(t), []trial.Record{
		rec(trial.ConditionIpsilateral, trial.OutcomeCorrect, 400),
	})
	assert.Contains(t, md, "Not enough correct ipsilateral and contralateral trials")
	assert.NotContains(t, md, "Welch t(")
}

func TestHTML(t *testing.T) {
	out := string(HTML(testManifest(t), pairedRecords()))

	assert.Contains(t, out, "<title>PMBR participant 12</title>")
	assert.Contains(t, out, "<h2")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<strong>+45.0 ms</strong>")
}

func TestWrite(t *testing.T) {
	m := testManifest(t)
	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{format: "md", want: "## PMBR effect"},
		{format: "HTML", want: "<html"},
		{format: "pdf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			err := Write(&buf, tt.format, m, pairedRecords())
			if tt.wantErr {
				assert.Error(t, err)
				assert.Zero(t, buf.Len())
				return
			}
			require.NoError(t, err)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
