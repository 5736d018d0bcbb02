package monitor

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmbr/domain/session"
	"pmbr/domain/trial"
	"pmbr/internal"
)

func startedMonitor(t *testing.T) (*Monitor, *session.Manifest) {
	t.Helper()
	m := New(internal.NewNopLogger())
	t.Cleanup(m.Close)

	manifest, err := session.NewManifest(session.Participant{ID: 5, Session: 1, Run: 1}, session.DefaultConfig(), 5, nil)
	require.NoError(t, err)
	manifest.TrialCount = 40
	m.SessionStarted(*manifest)
	return m, manifest
}

func correct(m *session.Manifest, index int, rt int64) trial.Record {
	return trial.Record{SessionID: m.SessionID, TrialIndex: index, Condition: trial.ConditionSingle,
		Outcome: trial.OutcomeCorrect, MeasuredRTMs: &rt}
}

func TestMonitor_Status(t *testing.T) {
	m, manifest := startedMonitor(t)
	m.TrialResolved(correct(manifest, 0, 300))
	m.TrialResolved(correct(manifest, 1, 340))
	m.TrialResolved(trial.Record{SessionID: manifest.SessionID, TrialIndex: 2, Outcome: trial.OutcomeNoResponse})

	rec := httptest.NewRecorder()
	m.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, manifest.SessionID.String(), status.SessionID)
	assert.Equal(t, 5, status.Participant)
	assert.Equal(t, 40, status.TrialsTotal)
	assert.Equal(t, 3, status.TrialsDone)
	assert.Equal(t, 2, status.Outcomes[trial.OutcomeCorrect])
	require.NotNil(t, status.MeanRT)
	assert.InDelta(t, 320.0, *status.MeanRT, 1e-9)
	require.NotNil(t, status.LastTrial)
	assert.Equal(t, 2, status.LastTrial.TrialIndex)

	m.SessionEnded(session.StatusAborted)
	assert.Equal(t, session.StatusAborted, m.Snapshot().Status)
}

func TestMonitor_TrialsSince(t *testing.T) {
	m, manifest := startedMonitor(t)
	for i := 0; i < 5; i++ {
		m.TrialResolved(correct(manifest, i, 300))
	}

	tests := []struct {
		query string
		code  int
		count int
	}{
		{"/trials", http.StatusOK, 5},
		{"/trials?since=3", http.StatusOK, 2},
		{"/trials?since=10", http.StatusOK, 0},
		{"/trials?since=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			m.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.query, nil))
			require.Equal(t, tt.code, rec.Code)
			if tt.code != http.StatusOK {
				return
			}
			var records []trial.Record
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
			assert.Len(t, records, tt.count)
		})
	}
}

func TestMonitor_EventStream(t *testing.T) {
	m, manifest := startedMonitor(t)
	srv := httptest.NewServer(m.Router())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return m.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	m.TrialResolved(correct(manifest, 0, 310))

	reader := bufio.NewReader(resp.Body)
	var eventType string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "event: ") {
			eventType = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			var event Event
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
			assert.Equal(t, "trial", eventType)
			assert.Equal(t, manifest.SessionID.String(), event.SessionID)
			return
		}
	}
}
