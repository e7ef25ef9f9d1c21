// Package diag collects the non-fatal anomalies of a documentation run.
// Every diagnostic is logged as a warning and kept for the run report.
package diag

import (
	"fmt"

	"go.uber.org/zap"
)

// Diagnostic codes.
const (
	StepWithoutRequirement         = "step_without_requirement"
	VerificationWithoutRequirement = "verification_without_requirement"
	MissingVerifications           = "missing_verifications"
	EmptySection                   = "empty_section"
	MissingConfig                  = "missing_config"
	InvalidConfig                  = "invalid_config"
	UnsupportedLanguage            = "unsupported_language"
	NoTestFiles                    = "no_test_files"
	UnreadableFile                 = "unreadable_file"
)

type Diagnostic struct {
	Code    string `json:"code"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

func (d Diagnostic) String() string {
	if d.File == "" {
		return d.Message
	}
	return fmt.Sprintf("%s:%d: %s", d.File, d.Line, d.Message)
}

// Collector is not safe for concurrent use; a run is sequential.
type Collector struct {
	logger *zap.Logger
	items  []Diagnostic
}

func NewCollector(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{logger: logger}
}

// Report logs d and records it. A nil collector drops the diagnostic.
func (c *Collector) Report(d Diagnostic) {
	if c == nil {
		return
	}
	fields := []zap.Field{zap.String("code", d.Code), zap.String("stage", d.Stage)}
	if d.File != "" {
		fields = append(fields, zap.String("file", d.File), zap.Int("line", d.Line))
	}
	c.logger.Warn(d.Message, fields...)
	c.items = append(c.items, d)
}

func (c *Collector) Items() []Diagnostic {
	if c == nil {
		return nil
	}
	return c.items
}

// Count returns how many diagnostics carry code.
func (c *Collector) Count(code string) int {
	n := 0
	for _, d := range c.Items() {
		if d.Code == code {
			n++
		}
	}
	return n
}
