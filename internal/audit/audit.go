// Package audit persists the per-run artifact trail: every pipeline stage
// writes its input or output snapshot into the run directory so a rejected or
// aborted run can be reconstructed after the fact.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ndjc/forge/internal/contract"
	"github.com/ndjc/forge/internal/lint"
	"github.com/ndjc/forge/internal/materialize"
	"github.com/ndjc/forge/internal/plan"
	"github.com/ndjc/forge/internal/validate"
)

// Artifact file names, ordered by pipeline stage.
const (
	FileContract    = "01_contract.json"
	FilePlan        = "02_plan.json"
	FileViolations  = "plan-violations.json"
	FileApplyResult = "03_apply_result.json"
	FileSummary     = "04_summary.json"
	FileEvents      = "events.ndjson"
)

// Summary is the terminal record of a run.
type Summary struct {
	RunID                string           `json:"runId"`
	Status               string           `json:"status"`
	Template             string           `json:"template,omitempty"`
	PackageID            string           `json:"packageId,omitempty"`
	Issues               []validate.Issue `json:"issues,omitempty"`
	LintCritical         int              `json:"lintCritical"`
	LintWarnings         int              `json:"lintWarnings"`
	CriticalReplacements int              `json:"criticalReplacements"`
	OutDir               string           `json:"outDir,omitempty"`
	StartedAt            time.Time        `json:"startedAt"`
	FinishedAt           time.Time        `json:"finishedAt"`
	Error                string           `json:"error,omitempty"`
}

// Event is one line of the run's event stream.
type Event struct {
	Time    time.Time `json:"time"`
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
	Detail  any       `json:"detail,omitempty"`
}

// Trail writes artifacts for a single run. Safe for concurrent event
// emission; artifact writes happen once per stage from the pipeline
// goroutine.
type Trail struct {
	dir string
	log *zap.Logger

	mu     sync.Mutex
	events *os.File
}

// NewTrail creates the run directory and opens the event stream.
func NewTrail(runsDir, runID string, log *zap.Logger) (*Trail, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dir := filepath.Join(runsDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create run dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, FileEvents), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open event stream: %w", err)
	}
	return &Trail{dir: dir, log: log.With(zap.String("runId", runID)), events: f}, nil
}

// Dir returns the run's artifact directory.
func (t *Trail) Dir() string { return t.dir }

// Close flushes and closes the event stream.
func (t *Trail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.events == nil {
		return nil
	}
	err := t.events.Close()
	t.events = nil
	return err
}

// Emit appends one event line. Event loss is logged, never fatal: audit
// failures must not take the pipeline down mid-run.
func (t *Trail) Emit(stage, message string, detail any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.events == nil {
		return
	}
	line, err := json.Marshal(Event{Time: time.Now().UTC(), Stage: stage, Message: message, Detail: detail})
	if err != nil {
		t.log.Warn("event not recorded", zap.Error(err))
		return
	}
	if _, err := t.events.Write(append(line, '\n')); err != nil {
		t.log.Warn("event not recorded", zap.Error(err))
	}
}

// WriteContract snapshots the received contract before any processing.
func (t *Trail) WriteContract(ct *contract.Contract) error {
	return t.writeJSON(FileContract, ct)
}

// WritePlan snapshots the compiled (and sanitized) plan.
func (t *Trail) WritePlan(p *plan.Plan) error {
	return t.writeJSON(FilePlan, p)
}

// WriteLintReport persists the gate report regardless of outcome.
func (t *Trail) WriteLintReport(r *lint.Report) error {
	return t.writeJSON(FileViolations, r)
}

// WriteApplyResult persists the materializer's audit result. Written even
// when the run aborts, so the evidence of the abort survives.
func (t *Trail) WriteApplyResult(r *materialize.ApplyResult) error {
	return t.writeJSON(FileApplyResult, r)
}

// WriteSummary persists the terminal run record.
func (t *Trail) WriteSummary(s *Summary) error {
	return t.writeJSON(FileSummary, s)
}

func (t *Trail) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("audit: marshal %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(t.dir, name), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("audit: write %s: %w", name, err)
	}
	return nil
}

// ReadSummary loads a run summary back from disk.
func ReadSummary(runsDir, runID string) (*Summary, error) {
	raw, err := os.ReadFile(filepath.Join(runsDir, runID, FileSummary))
	if err != nil {
		return nil, fmt.Errorf("audit: read summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("audit: decode summary: %w", err)
	}
	return &s, nil
}
