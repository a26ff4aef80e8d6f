// Package pipeline drives a contract through validation, compilation,
// sanitization, the lint gate and materialization, persisting the audit
// trail and ledger row at every stage boundary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ndjc/forge/internal/audit"
	"github.com/ndjc/forge/internal/compile"
	"github.com/ndjc/forge/internal/contract"
	"github.com/ndjc/forge/internal/ledger"
	"github.com/ndjc/forge/internal/lint"
	"github.com/ndjc/forge/internal/materialize"
	"github.com/ndjc/forge/internal/rate"
	"github.com/ndjc/forge/internal/registry"
	"github.com/ndjc/forge/internal/sanitize"
	"github.com/ndjc/forge/internal/validate"
)

var (
	// ErrRejected wraps validator rejection.
	ErrRejected = errors.New("pipeline: contract rejected")

	// ErrRateLimited is returned when run admission is exhausted.
	ErrRateLimited = errors.New("pipeline: run limit reached")
)

// Options assembles a pipeline.
type Options struct {
	Registry     *registry.Registry
	Limits       validate.Limits
	Gate         lint.Options
	TemplatesDir string
	RunsDir      string
	WorkDir      string
	Ledger       *ledger.Ledger // optional
	Limiter      *rate.Limiter  // optional
	Log          *zap.Logger
}

// Outcome is the result of one run.
type Outcome struct {
	RunID   string
	Status  string
	Summary *audit.Summary
	OutDir  string
}

// Pipeline is safe for concurrent Run calls.
type Pipeline struct {
	reg       *registry.Registry
	validator *validate.Validator
	compiler  *compile.Compiler
	gate      lint.Options
	mat       *materialize.Materializer
	runsDir   string
	led       *ledger.Ledger
	limiter   *rate.Limiter
	log       *zap.Logger
}

// New wires the pipeline stages together.
func New(opts Options) *Pipeline {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.Default()
	}
	return &Pipeline{
		reg:       reg,
		validator: validate.New(reg, opts.Limits, log),
		compiler:  compile.New(reg, compile.Options{AllowCompanionCode: opts.Gate.AllowCompanionCode}, log),
		gate:      opts.Gate,
		mat:       materialize.New(opts.TemplatesDir, opts.WorkDir, reg.Critical, log),
		runsDir:   opts.RunsDir,
		led:       opts.Ledger,
		limiter:   opts.Limiter,
		log:       log,
	}
}

// Run processes one contract end to end. The returned outcome carries the
// terminal status even when err is non-nil; err reports why the run did not
// complete.
func (pl *Pipeline) Run(ctx context.Context, ct *contract.Contract) (*Outcome, error) {
	if pl.limiter != nil && !pl.limiter.Allow() {
		return nil, ErrRateLimited
	}
	if ct.Metadata.RunID == "" {
		ct.Metadata.RunID = uuid.NewString()
	}
	runID := ct.Metadata.RunID
	log := pl.log.With(zap.String("runId", runID))

	trail, err := audit.NewTrail(pl.runsDir, runID, log)
	if err != nil {
		return nil, err
	}
	defer trail.Close()

	started := time.Now().UTC()
	sum := &audit.Summary{
		RunID: runID, Template: ct.Metadata.Template,
		PackageID: ct.Metadata.PackageID, StartedAt: started,
	}
	if pl.led != nil {
		if err := pl.led.Begin(ledger.Run{
			RunID: runID, Template: ct.Metadata.Template,
			PackageID: ct.Metadata.PackageID, Mode: ct.Metadata.Mode,
			StartedAt: started,
		}); err != nil {
			return nil, err
		}
	}

	outcome, err := pl.run(ctx, ct, trail, sum)

	sum.Status = outcome.Status
	sum.FinishedAt = time.Now().UTC()
	if err != nil {
		sum.Error = err.Error()
	}
	if werr := trail.WriteSummary(sum); werr != nil {
		log.Warn("summary not persisted", zap.Error(werr))
	}
	if pl.led != nil {
		if lerr := pl.led.Finish(runID, outcome.Status, sum.CriticalReplacements, err); lerr != nil {
			log.Warn("ledger not updated", zap.Error(lerr))
		}
	}
	outcome.Summary = sum
	return outcome, err
}

func (pl *Pipeline) run(ctx context.Context, ct *contract.Contract, trail *audit.Trail, sum *audit.Summary) (*Outcome, error) {
	runID := ct.Metadata.RunID
	outcome := &Outcome{RunID: runID, Status: ledger.StatusFailed}

	if err := trail.WriteContract(ct); err != nil {
		return outcome, err
	}
	if err := ctx.Err(); err != nil {
		return outcome, err
	}

	res := pl.validator.Check(ct)
	sum.Issues = res.Issues
	trail.Emit("validate", "contract checked", map[string]any{"ok": res.OK, "issues": len(res.Issues)})
	if !res.OK {
		outcome.Status = ledger.StatusRejected
		return outcome, fmt.Errorf("%w: %d issue(s)", ErrRejected, len(res.Issues))
	}

	p, err := pl.compiler.Compile(ct)
	if err != nil {
		outcome.Status = ledger.StatusRejected
		return outcome, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	trail.Emit("compile", "plan compiled", nil)

	sanIssues := sanitize.Apply(p, sanitize.Options{EmptiedBlockIsError: pl.gate.FailClose}, pl.log)
	sum.Issues = append(sum.Issues, sanIssues...)
	if len(sanIssues) > 0 {
		trail.Emit("sanitize", "blocks relocated", map[string]int{"issues": len(sanIssues)})
	}
	for _, is := range sanIssues {
		if is.Severity == validate.SevCritical {
			outcome.Status = ledger.StatusRejected
			return outcome, fmt.Errorf("%w: %s", ErrRejected, is.Code)
		}
	}
	if err := trail.WritePlan(p); err != nil {
		return outcome, err
	}

	report := lint.Run(p, pl.gate, pl.log)
	report.RunID = runID
	sum.LintCritical = report.Critical
	sum.LintWarnings = report.Warnings
	if err := trail.WriteLintReport(report); err != nil {
		return outcome, err
	}
	trail.Emit("lint", "gate evaluated", map[string]int{"critical": report.Critical, "warnings": report.Warnings})
	if err := report.Err(pl.gate.FailClose); err != nil {
		outcome.Status = ledger.StatusLintFailed
		return outcome, err
	}
	if err := ctx.Err(); err != nil {
		return outcome, err
	}

	result, err := pl.mat.Apply(runID, p)
	if result != nil {
		sum.CriticalReplacements = result.CriticalReplacements
		if werr := trail.WriteApplyResult(result); werr != nil {
			pl.log.Warn("apply result not persisted", zap.Error(werr))
		}
	}
	if err != nil {
		if errors.Is(err, materialize.ErrNoCriticalReplacements) {
			outcome.Status = ledger.StatusAborted
		}
		return outcome, err
	}
	trail.Emit("materialize", "plan applied", map[string]int{
		"replacements": result.TotalReplacements(),
		"critical":     result.CriticalReplacements,
	})

	outcome.Status = ledger.StatusCompleted
	outcome.OutDir = pl.mat.OutDir(runID)
	sum.OutDir = outcome.OutDir
	return outcome, nil
}

// RunBatch processes contracts concurrently, at most workers at a time.
// Failed runs do not cancel their siblings; each slot of the returned
// outcome slice matches its input, with a nil entry when admission failed.
func (pl *Pipeline) RunBatch(ctx context.Context, cts []*contract.Contract, workers int) ([]*Outcome, error) {
	if workers <= 0 {
		workers = 4
	}
	outcomes := make([]*Outcome, len(cts))
	errs := make([]error, len(cts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ct := range cts {
		g.Go(func() error {
			outcomes[i], errs[i] = pl.Run(ctx, ct)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, errors.Join(errs...)
}
