package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"reqdoc/internal/config"
	"reqdoc/internal/crawler"
	"reqdoc/internal/diag"
	"reqdoc/internal/extractor"
	"reqdoc/internal/generator"
	"reqdoc/internal/git"
	"reqdoc/internal/profile"
	"reqdoc/internal/section"
	"reqdoc/internal/storage"
)

type Outcome string

const (
	Generated Outcome = "generated"
	Skipped   Outcome = "skipped"
	Failed    Outcome = "failed"
)

// SkipError explains why a group produced no documents.
type SkipError struct {
	Group   string
	Reasons []string
	Failed  bool  // the group is misconfigured or its repository unusable
	Err     error // underlying cause, if any
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skipping group %q: %s", e.Group, strings.Join(e.Reasons, "; "))
}

func (e *SkipError) Unwrap() error { return e.Err }

// GroupResult summarizes one group of a run.
type GroupResult struct {
	Group        string
	Outcome      Outcome
	Reason       string
	TestFiles    int
	Requirements int
	Documents    *generator.Result
	ReportPath   string
	Diagnostics  []diag.Diagnostic
}

// ScanResult is what a group yields before any document is rendered.
type ScanResult struct {
	Files        []string
	Requirements []*extractor.Requirement
	Sections     []*section.Section
	Diagnostics  []diag.Diagnostic
}

type plan struct {
	group     config.Group
	profile   profile.Profile
	extractor *extractor.Extractor
	files     []string
}

type Option func(*Runner)

// WithStore records every generated group in s.
func WithStore(s storage.Store) Option {
	return func(r *Runner) { r.store = s }
}

// Runner processes documentation groups one after another.
type Runner struct {
	cfg    *config.Config
	logger *zap.Logger
	store  storage.Store
}

func NewRunner(cfg *config.Config, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunAll processes every configured group in file order. Only cancellation
// stops the run; group failures are reported in the results.
func (r *Runner) RunAll(ctx context.Context) ([]*GroupResult, error) {
	return r.run(ctx, r.cfg.Groups)
}

// RunGroups processes the named groups in the given order.
func (r *Runner) RunGroups(ctx context.Context, names []string) ([]*GroupResult, error) {
	groups := make([]config.Group, 0, len(names))
	for _, name := range names {
		g, ok := r.cfg.Group(name)
		if !ok {
			return nil, fmt.Errorf("group %q is not configured", name)
		}
		groups = append(groups, g)
	}
	return r.run(ctx, groups)
}

func (r *Runner) run(ctx context.Context, groups []config.Group) ([]*GroupResult, error) {
	results := make([]*GroupResult, 0, len(groups))
	for _, g := range groups {
		res, err := r.RunGroup(ctx, g)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// RunGroup documents a single group. The returned error is non-nil only
// when ctx is done.
func (r *Runner) RunGroup(ctx context.Context, g config.Group) (*GroupResult, error) {
	logger := r.logger.With(zap.String("group", g.Name))
	d := diag.NewCollector(logger)
	res := &GroupResult{Group: g.Name}
	report := generator.NewRunReport(g.Name, g.Language)

	if g.Language != "" {
		logger.Info(fmt.Sprintf("Creating %s documentation", g.Language))
	}

	stage := report.BeginStage("discover")
	p, err := r.prepare(ctx, g, d, logger)
	if err != nil {
		report.EndStage(stage, nil, err)
		res.Diagnostics = d.Items()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var skip *SkipError
		res.Outcome, res.Reason = Failed, err.Error()
		if errors.As(err, &skip) {
			res.Reason = strings.Join(skip.Reasons, "; ")
			if !skip.Failed {
				res.Outcome = Skipped
			}
		}
		if res.Outcome == Failed {
			logger.Error("Error creating documentation", zap.Error(err))
		}
		return res, nil
	}
	res.TestFiles = len(p.files)
	report.EndStage(stage, map[string]float64{"test_files": float64(len(p.files))}, nil)

	stage = report.BeginStage("extract")
	reqs, err := r.extract(ctx, p, d, logger)
	if err != nil {
		return nil, err
	}
	report.EndStage(stage, map[string]float64{"requirements": float64(len(reqs))}, nil)

	stage = report.BeginStage("classify")
	sections := classify(g, reqs, d)
	res.Requirements = section.Count(sections)
	report.EndStage(stage, map[string]float64{"retained": float64(res.Requirements)}, nil)

	stage = report.BeginStage("generate")
	gen := generator.NewGenerator(logger, d, generator.Options{Debug: r.cfg.Debug, OutputDir: r.cfg.OutputDir})
	docs, err := gen.Generate(g, sections)
	report.EndStage(stage, nil, err)
	res.Diagnostics = d.Items()
	if err != nil {
		logger.Error("Error creating documentation", zap.Error(err))
		res.Outcome, res.Reason = Failed, err.Error()
		return res, nil
	}
	res.Documents = docs
	res.Outcome = Generated
	report.Outputs = []string{docs.RequirementsPath, docs.VerificationPath}

	r.recordGit(ctx, g, report, logger)

	if r.store != nil {
		stage = report.BeginStage("store")
		err := r.store.SaveRun(ctx, traceRun(report, g, sections))
		report.EndStage(stage, nil, err)
		if err != nil {
			logger.Warn("Failed to save trace snapshot", zap.Error(err))
		}
	}

	report.AddDiagnostics(d.Items())
	report.Finalize(res.TestFiles, res.Requirements)
	res.ReportPath = filepath.Join(filepath.Dir(docs.RequirementsPath), g.Name+".report.json")
	if err := report.Save(res.ReportPath); err != nil {
		logger.Warn("Failed to write run report", zap.Error(err))
		res.ReportPath = ""
	}
	return res, nil
}

// Scan runs discovery, extraction and classification without writing
// anything.
func (r *Runner) Scan(ctx context.Context, g config.Group) (*ScanResult, error) {
	logger := r.logger.With(zap.String("group", g.Name))
	d := diag.NewCollector(logger)

	p, err := r.prepare(ctx, g, d, logger)
	if err != nil {
		return nil, err
	}
	reqs, err := r.extract(ctx, p, d, logger)
	if err != nil {
		return nil, err
	}
	sections := classify(g, reqs, d)
	return &ScanResult{
		Files:        p.files,
		Requirements: reqs,
		Sections:     sections,
		Diagnostics:  d.Items(),
	}, nil
}

func (r *Runner) prepare(ctx context.Context, g config.Group, d *diag.Collector, logger *zap.Logger) (*plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	skip := func(code string, failed bool, cause error, reasons ...string) error {
		for _, msg := range reasons {
			d.Report(diag.Diagnostic{Code: code, Stage: "config", Message: msg})
		}
		return &SkipError{Group: g.Name, Reasons: reasons, Failed: failed, Err: cause}
	}

	if strings.TrimSpace(g.Language) == "" {
		return nil, skip(diag.MissingConfig, false, nil,
			fmt.Sprintf("No language specified for group '%s'. Skipping.", g.Name))
	}

	if err := g.Validate(); err != nil {
		var missing *config.MissingFieldsError
		if errors.As(err, &missing) {
			return nil, skip(diag.MissingConfig, false, err, missing.Messages()...)
		}
		return nil, skip(diag.InvalidConfig, true, err, err.Error())
	}

	prof, err := profile.Lookup(g.Language)
	if err != nil {
		return nil, skip(diag.UnsupportedLanguage, true, err, err.Error())
	}

	if g.RepoPath == "" {
		return nil, skip(diag.MissingConfig, false, nil,
			fmt.Sprintf("No repo_path specified for repo '%s'.", g.Name))
	}

	ext, err := extractor.NewExtractor(prof, g.Parser, d)
	if err != nil {
		return nil, &SkipError{Group: g.Name, Reasons: []string{err.Error()}, Failed: true, Err: err}
	}

	c, err := crawler.NewCrawler(prof, g.Exclude)
	if err != nil {
		return nil, &SkipError{Group: g.Name, Reasons: []string{err.Error()}, Failed: true, Err: err}
	}
	files, err := c.FindTestFiles(g.RepoPath)
	if err != nil {
		err = fmt.Errorf("scan %s: %w", g.RepoPath, err)
		return nil, &SkipError{Group: g.Name, Reasons: []string{err.Error()}, Failed: true, Err: err}
	}
	if len(files) == 0 {
		return nil, skip(diag.NoTestFiles, false, nil,
			fmt.Sprintf("No test files found for %s in %s", prof.Name, g.RepoPath))
	}
	logger.Info(fmt.Sprintf("Found %d test files for %s", len(files), prof.Name))

	return &plan{group: g, profile: prof, extractor: ext, files: files}, nil
}

func (r *Runner) extract(ctx context.Context, p *plan, d *diag.Collector, logger *zap.Logger) ([]*extractor.Requirement, error) {
	var reqs []*extractor.Requirement
	for _, path := range p.files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Debug("Processing test file", zap.String("file", filepath.Base(path)))
		found, err := p.extractor.ExtractFromFile(path)
		if err != nil {
			d.Report(diag.Diagnostic{
				Code:    diag.UnreadableFile,
				Stage:   "extract",
				Message: err.Error(),
				File:    path,
			})
			continue
		}
		reqs = append(reqs, found...)
	}
	logger.Info(fmt.Sprintf("Found %d requirements from %d test files.", len(reqs), len(p.files)))
	return reqs, nil
}

func classify(g config.Group, reqs []*extractor.Requirement, d *diag.Collector) []*section.Section {
	sections := section.FromConfig(g)
	section.Assign(reqs, sections)
	return section.Finalize(sections, d)
}

// recordGit notes the scanned commit and any uncommitted changes. Repositories
// outside git are not an error.
func (r *Runner) recordGit(ctx context.Context, g config.Group, report *generator.RunReport, logger *zap.Logger) {
	commit, err := git.HeadCommit(ctx, g.RepoPath)
	if err != nil {
		logger.Debug("Commit unknown", zap.Error(err))
		return
	}
	report.Commit = commit

	modified, err := git.ModifiedFiles(ctx, g.RepoPath)
	if err != nil || len(modified) == 0 {
		return
	}
	report.AddSignal(generator.ReportSignal{
		Code:     "uncommitted_changes",
		Stage:    "git",
		Severity: "info",
		Message:  fmt.Sprintf("%d files differ from commit %s", len(modified), commit),
	})
}

func traceRun(report *generator.RunReport, g config.Group, sections []*section.Section) *storage.Run {
	run := &storage.Run{
		ID:       report.RunID,
		Group:    g.Name,
		Tag:      g.Tag,
		Language: g.Language,
		Commit:   report.Commit,
	}
	for _, s := range sections {
		if !s.Rendered() {
			continue
		}
		for _, req := range s.Requirements {
			run.Requirements = append(run.Requirements, storage.TracedRequirement{
				Number:        req.Number,
				Section:       s.Name,
				Text:          req.Text,
				OriginalText:  req.OriginalText,
				File:          req.File,
				Line:          req.Line,
				Steps:         req.Steps,
				Verifications: req.Verifications,
			})
		}
	}
	return run
}
