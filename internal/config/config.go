package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrMissingFields = errors.New("missing required configuration")

// Config is the parsed configuration file. Groups keep file order.
type Config struct {
	Groups []Group

	// Run-wide settings, taken from the environment or CLI flags.
	Debug     bool
	OutputDir string
	DBPath    string
}

// Group is one documentation group: a language, a repository and the
// sections its requirements are sorted into.
type Group struct {
	Name            string          `yaml:"-"`
	Language        string          `yaml:"language"`
	Tag             string          `yaml:"tag"`
	ReqTemplatePath string          `yaml:"req_template_path"`
	VerTemplatePath string          `yaml:"ver_template_path"`
	ReqOutputName   string          `yaml:"req_output_name"`
	VerOutputName   string          `yaml:"ver_output_name"`
	RepoPath        string          `yaml:"repo_path"`
	Parser          string          `yaml:"parser"`  // "regex" (default) or "syntax"
	Exclude         []string        `yaml:"exclude"` // doublestar globs relative to repo_path
	Sections        []SectionConfig `yaml:"sections"`
	Ignore          []string        `yaml:"ignore"`

	invalid error // schema or decode failure, reported by Validate
}

type SectionConfig struct {
	DisplayName string   `yaml:"display_name"`
	Filenames   []string `yaml:"filenames"`
	PathKey     string   `yaml:"path_key"`
}

// MissingFieldsError lists every required field a group lacks.
type MissingFieldsError struct {
	Group  string
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("group %q is missing %s", e.Group, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Unwrap() error { return ErrMissingFields }

// Messages renders one line per missing field.
func (e *MissingFieldsError) Messages() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, fmt.Sprintf("No %s specified for repo '%s'.", f, e.Group))
	}
	return out
}

// Validate checks the fields needed to render documents, then the shape of
// the group as read from the file. The language and repo_path are checked
// separately by the caller.
func (g Group) Validate() error {
	var missing []string
	if g.Tag == "" {
		missing = append(missing, "tag")
	}
	if g.ReqTemplatePath == "" {
		missing = append(missing, "req_template_path")
	}
	if g.VerTemplatePath == "" {
		missing = append(missing, "ver_template_path")
	}
	if g.ReqOutputName == "" {
		missing = append(missing, "req_output_name")
	}
	if g.VerOutputName == "" {
		missing = append(missing, "ver_output_name")
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Group: g.Name, Fields: missing}
	}
	if g.invalid != nil {
		return &InvalidGroupError{Group: g.Name, Err: g.invalid}
	}
	return nil
}

// Group returns the group called name.
func (c *Config) Group(name string) (Group, bool) {
	for _, g := range c.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s file not found: %w", path, err)
	}

	cfg, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s file could not be parsed: %w", path, err)
	}

	// 3. Override with Environment Variables if present
	if v := os.Getenv("REQDOC_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("REQDOC_DEBUG: %w", err)
		}
		cfg.Debug = debug
	}
	if v := os.Getenv("REQDOC_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("REQDOC_DB"); v != "" {
		cfg.DBPath = v
	}

	return cfg, nil
}

// Parse decodes a configuration document. Top-level entries that are not
// mappings are skipped. A group that does not match the group schema is
// kept and fails its own Validate, so the other groups still run.
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if doc.Kind == 0 {
		return cfg, nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("unexpected document structure")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level must be a mapping, got %s", kindName(root.Kind))
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if value.Kind != yaml.MappingNode {
			continue
		}
		var g Group
		decodeErr := value.Decode(&g)
		g.Name = key.Value
		if err := validateGroupNode(value); err != nil {
			g.invalid = err
		} else if decodeErr != nil {
			g.invalid = decodeErr
		}
		cfg.Groups = append(cfg.Groups, g)
	}
	return cfg, nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "node"
}
