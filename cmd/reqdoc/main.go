package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reqdoc/internal/config"
	"reqdoc/internal/generator"
	"reqdoc/internal/normalize"
	"reqdoc/internal/pipeline"
	"reqdoc/internal/profile"
	"reqdoc/internal/storage"
)

type app struct {
	configPath string
	debug      bool
	verbose    bool
	outputDir  string
	dbPath     string

	logger *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "reqdoc",
		Short: "Generate requirements and verification documents from test annotations",
		Long: `reqdoc scans the test files of each configured documentation group,
collects the requirement named by every test together with its
"S<n>:" step and "V<n>:" verification comments, and renders a
requirements document and a verification test protocol.

Run without a subcommand to generate documents for every group.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(a.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.generate(cmd, nil)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "config.yaml", "Path to the configuration file")
	flags.BoolVar(&a.debug, "debug", false, "Append the source file and line to every requirement")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&a.outputDir, "output-dir", "", "Write documents here instead of <template dir>/Outputs")
	flags.StringVar(&a.dbPath, "db", "", "Record a traceability snapshot of each run in this SQLite database")

	root.AddCommand(
		&cobra.Command{
			Use:   "generate [group...]",
			Short: "Generate documents for the named groups, or all groups",
			RunE:  a.generate,
		},
		&cobra.Command{
			Use:   "scan <group>",
			Short: "List the test files and requirements of a group without writing documents",
			Args:  cobra.ExactArgs(1),
			RunE:  a.scan,
		},
		&cobra.Command{
			Use:   "history <group>",
			Short: "List the runs recorded for a group in the --db database",
			Args:  cobra.ExactArgs(1),
			RunE:  a.history,
		},
		&cobra.Command{
			Use:   "languages",
			Short: "List the supported languages",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				for _, name := range profile.Names() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
			},
		},
		newNormalizeCmd(),
		newPreviewCmd(),
	)
	return root
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// loadConfig applies the command line over the file and environment.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.debug {
		cfg.Debug = true
	}
	if a.outputDir != "" {
		cfg.OutputDir = a.outputDir
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	return cfg, nil
}

func (a *app) generate(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	var opts []pipeline.Option
	if cfg.DBPath != "" {
		store, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open trace database: %w", err)
		}
		defer store.Close()
		opts = append(opts, pipeline.WithStore(store))
	}

	runner := pipeline.NewRunner(cfg, a.logger, opts...)
	a.logger.Info("Processing configured groups", zap.String("config", a.configPath))

	var results []*pipeline.GroupResult
	if len(args) == 0 {
		results, err = runner.RunAll(cmd.Context())
	} else {
		results, err = runner.RunGroups(cmd.Context(), args)
	}
	printResults(cmd.OutOrStdout(), results)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Outcome == pipeline.Failed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d groups failed", failed, len(results))
	}
	return nil
}

func printResults(w io.Writer, results []*pipeline.GroupResult) {
	for _, res := range results {
		switch res.Outcome {
		case pipeline.Generated:
			fmt.Fprintf(w, "%s: %d requirements from %d test files\n", res.Group, res.Requirements, res.TestFiles)
			fmt.Fprintf(w, "  %s\n  %s\n", res.Documents.RequirementsPath, res.Documents.VerificationPath)
			if len(res.Diagnostics) > 0 {
				fmt.Fprintf(w, "  %d warnings, see %s\n", len(res.Diagnostics), res.ReportPath)
			}
		default:
			fmt.Fprintf(w, "%s: %s (%s)\n", res.Group, res.Outcome, res.Reason)
		}
	}
}

func (a *app) scan(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	g, ok := cfg.Group(args[0])
	if !ok {
		return fmt.Errorf("group %q is not configured", args[0])
	}

	res, err := pipeline.NewRunner(cfg, a.logger).Scan(cmd.Context(), g)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Test files (%d):\n", len(res.Files))
	for _, f := range res.Files {
		fmt.Fprintf(w, "  %s\n", f)
	}
	for _, s := range res.Sections {
		if len(s.Requirements) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s (%d)\n", s.Name, len(s.Requirements))
		for _, r := range s.Requirements {
			fmt.Fprintf(w, "  %-40s %s\n", r.Location(), r.Text)
			if cfg.Debug {
				for _, line := range append(append([]string{}, r.Steps...), r.Verifications...) {
					fmt.Fprintf(w, "      %s\n", line)
				}
			}
		}
	}
	return nil
}

func (a *app) history(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if cfg.DBPath == "" {
		return errors.New("no trace database configured, pass --db or set REQDOC_DB")
	}
	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(cmd.Context(), args[0], 20)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No runs recorded for %s\n", args[0])
		return nil
	}
	latest, err := store.LatestRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, run := range runs {
		commit := run.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		fmt.Fprintf(w, "%s  %s  %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"), run.ID, commit)
	}
	fmt.Fprintf(w, "\nLatest run documents %d requirements\n", len(latest.Requirements))
	return nil
}

func newNormalizeCmd() *cobra.Command {
	var passes bool
	cmd := &cobra.Command{
		Use:   "normalize <test name>",
		Short: "Print the sentence a test name is turned into",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.Join(args, " ")
			if strings.TrimSpace(raw) == "" {
				return errors.New("test name is empty")
			}
			w := cmd.OutOrStdout()
			if passes {
				split := normalize.SplitCamel(raw)
				substituted := normalize.Substitute(split)
				fmt.Fprintf(w, "split:      %q\n", split)
				fmt.Fprintf(w, "substitute: %q\n", substituted)
				fmt.Fprintf(w, "clean:      %q\n", normalize.Clean(substituted))
			}
			fmt.Fprintln(w, normalize.Normalize(raw))
			return nil
		},
	}
	cmd.Flags().BoolVar(&passes, "passes", false, "Show the result of every normalization pass")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	var (
		sectionName string
		width       int
	)
	cmd := &cobra.Command{
		Use:   "preview <document.md>",
		Short: "Render a generated document in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			content := string(data)
			if sectionName != "" {
				content = generator.FindSection(generator.SplitDocument(args[0], content), sectionName)
				if content == "" {
					return fmt.Errorf("no section matching %q in %s", sectionName, args[0])
				}
			}
			out, err := generator.Preview(content, width)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&sectionName, "section", "", "Only render sections whose title contains this text")
	cmd.Flags().IntVar(&width, "width", 80, "Word wrap width")
	return cmd
}
