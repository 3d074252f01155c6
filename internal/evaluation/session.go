package evaluation

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// RowError records why a row could not be evaluated.
type RowError struct {
	Row    int    `yaml:"row"`
	Reason string `yaml:"reason"`
	Err    error  `yaml:"-"`
}

func (e *RowError) Error() string { return fmt.Sprintf("row %d: %s", e.Row, e.Reason) }

func (e *RowError) Unwrap() error { return e.Err }

// Session accumulates the results of one evaluation run.
type Session struct {
	ID        string
	Started   time.Time
	Finished  time.Time
	Rows      int
	Total     float64
	Count     int
	Decisions map[string]int
	// Confusion counts true outcome -> chosen action.
	Confusion map[string]map[string]int
	Errors    []RowError
}

func newSession(rows int) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Started:   time.Now(),
		Rows:      rows,
		Decisions: make(map[string]int),
		Confusion: make(map[string]map[string]int),
	}
}

// Mean is the average realized utility over evaluated rows.
func (s *Session) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Total / float64(s.Count)
}

func (s *Session) Skipped() int { return len(s.Errors) }

func (s *Session) record(r *rowResult) {
	if r.err != nil {
		s.Errors = append(s.Errors, RowError{Row: r.row, Reason: r.err.Error(), Err: r.err})
		return
	}
	s.Total += r.utility
	s.Count++
	s.Decisions[r.action]++
	if s.Confusion[r.outcome] == nil {
		s.Confusion[r.outcome] = make(map[string]int)
	}
	s.Confusion[r.outcome][r.action]++
}

// Report is the serialized summary of a Session.
type Report struct {
	SessionID    string                    `yaml:"session_id"`
	Started      time.Time                 `yaml:"started"`
	Duration     string                    `yaml:"duration"`
	Rows         int                       `yaml:"rows"`
	Evaluated    int                       `yaml:"evaluated"`
	Skipped      int                       `yaml:"skipped"`
	TotalUtility float64                   `yaml:"total_utility"`
	MeanUtility  float64                   `yaml:"mean_utility"`
	Decisions    map[string]int            `yaml:"decisions"`
	Confusion    map[string]map[string]int `yaml:"confusion"`
	Errors       []RowError                `yaml:"errors,omitempty"`
}

func (s *Session) Report() Report {
	return Report{
		SessionID:    s.ID,
		Started:      s.Started,
		Duration:     s.Finished.Sub(s.Started).Round(time.Millisecond).String(),
		Rows:         s.Rows,
		Evaluated:    s.Count,
		Skipped:      s.Skipped(),
		TotalUtility: s.Total,
		MeanUtility:  s.Mean(),
		Decisions:    s.Decisions,
		Confusion:    s.Confusion,
		Errors:       s.Errors,
	}
}

// WriteReport encodes the session report as YAML.
func (s *Session) WriteReport(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s.Report()); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// WriteReportFile writes the YAML report to path, creating parent
// directories.
func (s *Session) WriteReportFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	// #nosec G304 -- the report path is user-provided by design
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := s.WriteReport(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// DecisionNames returns the chosen actions in sorted order.
func (s *Session) DecisionNames() []string {
	names := make([]string, 0, len(s.Decisions))
	for name := range s.Decisions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
