package generator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"reqdoc/internal/diag"
)

type ReportSignal struct {
	Code     string `json:"code"`
	Stage    string `json:"stage"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
}

type StageMetric struct {
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	StartedAt  string             `json:"started_at"`
	FinishedAt string             `json:"finished_at"`
	DurationMS int64              `json:"duration_ms"`
	Counters   map[string]float64 `json:"counters,omitempty"`
	Notes      []string           `json:"notes,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type ReportSummary struct {
	StageCount        int            `json:"stage_count"`
	FailedStages      int            `json:"failed_stages"`
	TestFiles         int            `json:"test_files"`
	Requirements      int            `json:"requirements"`
	SignalsBySeverity map[string]int `json:"signals_by_severity"`
}

// RunReport records what happened while documenting one group.
type RunReport struct {
	Version     string         `json:"version"`
	RunID       string         `json:"run_id"`
	Group       string         `json:"group"`
	Language    string         `json:"language"`
	Commit      string         `json:"commit,omitempty"`
	GeneratedAt string         `json:"generated_at"`
	Outputs     []string       `json:"outputs,omitempty"`
	Stages      []StageMetric  `json:"stages"`
	Signals     []ReportSignal `json:"signals,omitempty"`
	Summary     ReportSummary  `json:"summary"`
}

type StageHandle struct {
	name    string
	started time.Time
}

func NewRunReport(group, language string) *RunReport {
	return &RunReport{
		Version:     "v1",
		RunID:       uuid.New().String(),
		Group:       group,
		Language:    language,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Stages:      []StageMetric{},
		Signals:     []ReportSignal{},
	}
}

func (r *RunReport) BeginStage(name string) StageHandle {
	return StageHandle{name: strings.TrimSpace(name), started: time.Now().UTC()}
}

func (r *RunReport) EndStage(h StageHandle, counters map[string]float64, err error) {
	if r == nil || h.name == "" {
		return
	}
	finished := time.Now().UTC()
	m := StageMetric{
		Name:       h.name,
		Status:     "ok",
		StartedAt:  h.started.Format(time.RFC3339Nano),
		FinishedAt: finished.Format(time.RFC3339Nano),
		DurationMS: finished.Sub(h.started).Milliseconds(),
		Counters:   cleanCounters(counters),
	}
	if err != nil {
		m.Status = "error"
		m.Error = err.Error()
	}
	r.Stages = append(r.Stages, m)
}

// AddDiagnostics turns every diagnostic into a warning signal.
func (r *RunReport) AddDiagnostics(items []diag.Diagnostic) {
	for _, d := range items {
		r.AddSignal(ReportSignal{
			Code:     d.Code,
			Stage:    d.Stage,
			Severity: "warning",
			Message:  d.Message,
			File:     d.File,
			Line:     d.Line,
		})
	}
}

func (r *RunReport) AddSignal(s ReportSignal) {
	if r == nil {
		return
	}
	s.Code = strings.TrimSpace(s.Code)
	s.Stage = strings.TrimSpace(s.Stage)
	s.Severity = strings.ToLower(strings.TrimSpace(s.Severity))
	s.Message = strings.TrimSpace(s.Message)
	if s.Code == "" || s.Stage == "" || s.Severity == "" || s.Message == "" {
		return
	}
	r.Signals = append(r.Signals, s)
}

func (r *RunReport) Finalize(testFiles, requirements int) {
	if r == nil {
		return
	}
	r.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	severityCount := map[string]int{
		"critical": 0,
		"warning":  0,
		"info":     0,
	}
	sort.SliceStable(r.Signals, func(i, j int) bool {
		pi := signalPriority(r.Signals[i].Severity)
		pj := signalPriority(r.Signals[j].Severity)
		if pi == pj {
			return r.Signals[i].Stage < r.Signals[j].Stage
		}
		return pi > pj
	})
	for _, s := range r.Signals {
		severityCount[s.Severity]++
	}

	failed := 0
	for _, st := range r.Stages {
		if st.Status != "ok" {
			failed++
		}
	}

	r.Summary = ReportSummary{
		StageCount:        len(r.Stages),
		FailedStages:      failed,
		TestFiles:         testFiles,
		Requirements:      requirements,
		SignalsBySeverity: severityCount,
	}
}

// Save writes the report as indented JSON. Finalize must be called first.
func (r *RunReport) Save(path string) error {
	if r == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

func cleanCounters(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func signalPriority(severity string) int {
	switch severity {
	case "critical":
		return 3
	case "warning":
		return 2
	default:
		return 1
	}
}
