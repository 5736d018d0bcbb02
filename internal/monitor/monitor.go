package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pmbr/domain/session"
	"pmbr/domain/trial"
	"pmbr/internal"
	"pmbr/internal/analysis"
)

// Monitor keeps a copy of the running session for the operator's screen. It is a
// ports.SessionObserver; the HTTP side only ever reads the copy under the lock.
type Monitor struct {
	mu       sync.RWMutex
	manifest *session.Manifest
	records  []trial.Record
	status   session.Status
	updated  time.Time

	hub    *Hub
	logger *internal.Logger
}

// Status is the /status payload
type Status struct {
	SessionID   string                `json:"session_id,omitempty"`
	Participant int                   `json:"participant_id"`
	Mode        trial.SessionMode     `json:"mode,omitempty"`
	Status      session.Status        `json:"status,omitempty"`
	TrialsTotal int                   `json:"trials_total"`
	TrialsDone  int                   `json:"trials_done"`
	Outcomes    map[trial.Outcome]int `json:"outcomes"`
	MeanRT      *float64              `json:"mean_rt_ms"`
	LastTrial   *trial.Record         `json:"last_trial,omitempty"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// New creates an idle monitor
func New(logger *internal.Logger) *Monitor {
	return &Monitor{hub: NewHub(logger), logger: logger}
}

func (m *Monitor) SessionStarted(manifest session.Manifest) {
	m.mu.Lock()
	m.manifest = &manifest
	m.records = nil
	m.status = manifest.Status
	m.updated = time.Now()
	m.mu.Unlock()
	m.hub.Broadcast(Event{Type: "session-started", SessionID: manifest.SessionID.String(), Data: manifest})
}

func (m *Monitor) TrialResolved(rec trial.Record) {
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.updated = time.Now()
	m.mu.Unlock()
	m.hub.Broadcast(Event{Type: "trial", SessionID: rec.SessionID.String(), Data: rec})
}

func (m *Monitor) SessionEnded(status session.Status) {
	m.mu.Lock()
	m.status = status
	m.updated = time.Now()
	id := ""
	if m.manifest != nil {
		id = m.manifest.SessionID.String()
	}
	m.mu.Unlock()
	m.hub.Broadcast(Event{Type: "session-ended", SessionID: id, Data: status})
}

// Snapshot returns the current status
func (m *Monitor) Snapshot() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Status{
		Status:     m.status,
		TrialsDone: len(m.records),
		Outcomes:   make(map[trial.Outcome]int),
		UpdatedAt:  m.updated,
	}
	if m.manifest != nil {
		s.SessionID = m.manifest.SessionID.String()
		s.Participant = int(m.manifest.Participant)
		s.Mode = m.manifest.Mode
		s.TrialsTotal = m.manifest.TrialCount
	}
	for _, r := range m.records {
		s.Outcomes[r.Outcome]++
	}
	if mean, ok := analysis.MeanProbeRT(m.records); ok {
		s.MeanRT = &mean
	}
	if n := len(m.records); n > 0 {
		last := m.records[n-1]
		s.LastTrial = &last
	}
	return s
}

// Trials returns the records from index since onwards
func (m *Monitor) Trials(since int) []trial.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if since < 0 {
		since = 0
	}
	if since >= len(m.records) {
		return []trial.Record{}
	}
	return append([]trial.Record(nil), m.records[since:]...)
}

// Router serves /status, /trials?since=N and the /events stream
func (m *Monitor) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, m.Snapshot())
	})
	r.Get("/trials", func(w http.ResponseWriter, r *http.Request) {
		since := 0
		if v := r.URL.Query().Get("since"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be an integer"})
				return
			}
			since = n
		}
		writeJSON(w, http.StatusOK, m.Trials(since))
	})
	r.Handle("/events", m.hub)
	return r
}

// Serve listens on addr until ctx is cancelled
func (m *Monitor) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: m.Router(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		m.logger.Info("monitor listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		m.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Close stops the event hub
func (m *Monitor) Close() {
	m.hub.Close()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
