// Package runner ties record ingestion, rule evaluation, and match
// dispatch together: it loads the rule table, constructs the record
// source and match sink, then drives records through every validated
// rule until the source is exhausted.
package runner

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	sifterr "github.com/rulesift/rulesift/pkg/errors"
	"github.com/rulesift/rulesift/pkg/logging"
	"github.com/rulesift/rulesift/pkg/rule"
	"github.com/rulesift/rulesift/pkg/sink"
	"github.com/rulesift/rulesift/pkg/source"
)

// Entry is one attempted rule. Rule is nil when the source text failed
// to read, parse, or validate; such entries never match. The table is
// built once at startup and read-only thereafter.
type Entry struct {
	Name string
	Rule *rule.Rule
}

// Report is one row of the check-only report
type Report struct {
	Name  string
	Valid bool
}

// Options configures a run
type Options struct {
	RulePaths  []string
	InputPaths []string
	OutputPath string
	Overwrite  bool

	// Fs is the filesystem all rule, input, and output files live on
	Fs afero.Fs
	// Stdin is the interactive record stream used when no input paths
	// are supplied
	Stdin io.Reader
	// Stdout is the interactive match stream used when no output path
	// is supplied
	Stdout io.Writer
}

// LoadRules reads and compiles every rule path into the rule table.
// Per-rule failures are recorded as invalid entries and logged, never
// fatal; the only fatal condition is a path whose base name cannot
// serve as a display and routing name.
func LoadRules(fsys afero.Fs, paths []string) ([]Entry, error) {
	logger := logging.GetLogger("runner")

	entries := make([]Entry, 0, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		if name == "." || name == ".." || name == string(filepath.Separator) {
			return nil, sifterr.Newf(sifterr.ErrRuleName, "rule path %q does not yield a usable rule name", path)
		}

		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Unable to read rule file")
			entries = append(entries, Entry{Name: name})
			continue
		}

		compiled, err := rule.Load(data)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Unable to compile rule")
			entries = append(entries, Entry{Name: name})
			continue
		}
		if !compiled.Validate() {
			logger.Warn().Str("path", path).Msg("Rule failed validation against its own examples")
			entries = append(entries, Entry{Name: name})
			continue
		}

		entries = append(entries, Entry{Name: name, Rule: compiled})
	}
	return entries, nil
}

// Check loads every rule and reports (name, valid) per attempted rule
// without touching inputs or outputs
func Check(opts Options) ([]Report, error) {
	entries, err := LoadRules(opts.Fs, opts.RulePaths)
	if err != nil {
		return nil, err
	}
	reports := make([]Report, 0, len(entries))
	for _, e := range entries {
		reports = append(reports, Report{Name: e.Name, Valid: e.Rule != nil})
	}
	return reports, nil
}

// Run executes the full pipeline. Startup failures (unusable rule name,
// no validated rules, unopenable initial input, output creation) return
// before any record is processed; per-record failures are logged and
// skipped; a sink write failure aborts immediately.
func Run(opts Options) error {
	logger := logging.GetLogger("runner")

	entries, err := LoadRules(opts.Fs, opts.RulePaths)
	if err != nil {
		return err
	}

	validated := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Rule != nil {
			validated = append(validated, e)
		}
	}
	if len(opts.RulePaths) > 0 && len(validated) == 0 {
		return sifterr.Newf(sifterr.ErrNoValidRules,
			"no rule could be validated from: %s", strings.Join(opts.RulePaths, ", "))
	}
	logger.Info().Int("attempted", len(entries)).Int("validated", len(validated)).Msg("Rule table loaded")

	src, err := openSource(opts)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	snk, err := openSink(opts, validated)
	if err != nil {
		return err
	}
	defer func() { _ = snk.Close() }()

	var records, skipped, matches int
	for {
		record, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Error().Err(err).Msg("Skipping record")
			skipped++
			continue
		}
		records++

		for _, e := range validated {
			if e.Rule.Matches(record) {
				if err := snk.Write(record, e.Name); err != nil {
					return err
				}
				matches++
			}
		}
	}

	logger.Info().
		Int("records", records).
		Int("skipped", skipped).
		Int("matches", matches).
		Msg("Processing complete")
	return nil
}

func openSource(opts Options) (source.Source, error) {
	if len(opts.InputPaths) > 0 {
		return source.NewFileChain(opts.Fs, opts.InputPaths)
	}
	return source.NewStream(opts.Stdin), nil
}

func openSink(opts Options, validated []Entry) (sink.Sink, error) {
	if opts.OutputPath == "" {
		return sink.NewStream(opts.Stdout), nil
	}
	names := make([]string, 0, len(validated))
	for _, e := range validated {
		names = append(names, e.Name)
	}
	return sink.OpenFileSet(opts.Fs, opts.OutputPath, names, opts.Overwrite)
}
