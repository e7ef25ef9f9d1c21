package extractor

// Strategy turns the contents of one test file into requirements, in file order.
type Strategy interface {
	Extract(path string, source []byte) ([]*Requirement, error)
}

// Parser modes accepted in configuration.
const (
	ModeRegex  = "regex"
	ModeSyntax = "syntax"
)
