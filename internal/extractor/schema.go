package extractor

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"reqdoc/internal/normalize"
)

// Requirement is one test's requirement statement with the step and
// verification annotations found inside it.
type Requirement struct {
	OriginalText  string   `json:"original_text"` // Text as captured from the test source
	Text          string   `json:"text"`          // Normalized, readable sentence
	Steps         []string `json:"steps"`         // "S<n>: ..." annotations, source order
	Verifications []string `json:"verifications"` // "V<n>: ..." annotations
	File          string   `json:"file"`          // Path of the test file
	Filename      string   `json:"filename"`      // Base name of File
	Line          int      `json:"line"`          // 1-based line of the requirement marker
	Number        int      `json:"number"`        // Assigned when documents are rendered
}

// NewRequirement normalizes original once; Text is never recomputed.
func NewRequirement(file string, line int, original string) *Requirement {
	return &Requirement{
		OriginalText: original,
		Text:         normalize.Normalize(original),
		File:         file,
		Filename:     filepath.Base(file),
		Line:         line,
	}
}

// Location renders "filename:line".
func (r *Requirement) Location() string {
	return fmt.Sprintf("%s:%d", r.Filename, r.Line)
}

// SortVerifications orders verifications by the number in their "V<n>:" tag.
// Steps are left untouched.
func (r *Requirement) SortVerifications() {
	sort.SliceStable(r.Verifications, func(i, j int) bool {
		return tagNumber(r.Verifications[i]) < tagNumber(r.Verifications[j])
	})
}

// tagNumber parses the index of "V12: text". Malformed tags sort last.
func tagNumber(annotation string) int {
	tag, _, _ := strings.Cut(annotation, ":")
	tag = strings.TrimSpace(tag)
	if len(tag) < 2 {
		return math.MaxInt
	}
	n, err := strconv.Atoi(tag[1:])
	if err != nil {
		return math.MaxInt
	}
	return n
}
