// Package rulesift wires the command-line surface: flag parsing, config
// defaults, and rendering of the check report. All real work happens in
// pkg/runner.
package rulesift

import (
	"io"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/rulesift/rulesift/internal/version"
	"github.com/rulesift/rulesift/pkg/config"
	"github.com/rulesift/rulesift/pkg/logging"
	"github.com/rulesift/rulesift/pkg/runner"
	"github.com/rulesift/rulesift/pkg/style"
)

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	var (
		verbosity  int
		rulePaths  []string
		inputPaths []string
		outputPath string
		overwrite  bool
		check      bool
	)

	rootCmd := &cobra.Command{
		Use:   "rulesift",
		Short: "Match rules against newline-delimited JSON records",
		Long: `rulesift streams JSON records (one value per line) from stdin or from
input files, evaluates each record against a set of YAML matching rules,
and routes every match to stdout, a single output file, or one file per
rule inside an output directory.`,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load()
			if err != nil {
				cfg = &config.Config{}
				logging.SetupLogger(verbosity)
				log.Warn().Err(err).Msg("Failed to load configuration, using built-in defaults")
				return
			}
			if !cmd.Flags().Changed("verbose") {
				verbosity = cfg.Logging.Verbosity
			}
			if !cmd.Flags().Changed("overwrite") {
				overwrite = cfg.Output.Overwrite
			}
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := runner.Options{
				RulePaths:  rulePaths,
				InputPaths: inputPaths,
				OutputPath: outputPath,
				Overwrite:  overwrite,
				Fs:         afero.NewOsFs(),
				Stdin:      cmd.InOrStdin(),
				Stdout:     cmd.OutOrStdout(),
			}

			if check {
				reports, err := runner.Check(opts)
				if err != nil {
					return err
				}
				return renderCheckReport(cmd.OutOrStdout(), reports)
			}
			return runner.Run(opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		DisableAutoGenTag: true,
	}

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.Flags().StringArrayVarP(&rulePaths, "rules", "r", nil, "Path to a rule file (repeatable)")
	rootCmd.Flags().StringArrayVarP(&inputPaths, "input", "i", nil, "Path to an input file (repeatable; stdin when omitted)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write matches here; an existing directory gets one file per rule")
	rootCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Truncate existing output files instead of failing")
	rootCmd.Flags().BoolVar(&check, "check", false, "Validate rules, print a report, and exit without processing")

	rootCmd.AddCommand(newGenConfigCmd())

	return rootCmd
}

// renderCheckReport prints one row per attempted rule
func renderCheckReport(w io.Writer, reports []runner.Report) error {
	data := pterm.TableData{{"Rule", "Valid"}}
	for _, r := range reports {
		verdict := style.Valid.Render("true")
		if !r.Valid {
			verdict = style.Invalid.Render("false")
		}
		data = append(data, []string{r.Name, verdict})
	}
	return pterm.DefaultTable.WithWriter(w).WithHasHeader().WithData(data).Render()
}

func newGenConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genconfig",
		Short: "Print a starter configuration file with defaults commented out",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := config.GenerateConfigContent()
			if err != nil {
				return err
			}
			cmd.Println(content)
			return nil
		},
	}
}

// Execute runs the root command; exported for main
func Execute() error {
	return NewRootCmd().Execute()
}
