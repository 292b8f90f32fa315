package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/MacroPower/qsync/pkg/stress"
	"github.com/MacroPower/qsync/pkg/stresstui"
)

const (
	runDesc = `This command runs stress scenarios against the synchronizers and
reports whether every invariant held.
`
	runExample = `  qsync run [flags]
  # Run every scenario with the default settings
  qsync run

  # Run two scenarios with fair locks and more contention
  qsync run --scenario mutex --scenario rwlock --fair --goroutines 32

  # Load settings from a file and print the report as JSON
  qsync run --config stress.yaml --output json
`
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRunFailed       = errors.New("stress run failed")
)

// NewRunCmd returns the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run stress scenarios",
		Long:    runDesc,
		Example: runExample,
		Args:    cobra.NoArgs,
		RunE:    runStress,
	}

	defaults := stress.DefaultConfig()

	cmd.Flags().StringP("config", "c", "", "Path to a YAML stress config")
	cmd.Flags().StringArrayP("scenario", "s", nil, "Scenario to run, may be repeated (default all)")
	cmd.Flags().IntP("goroutines", "g", defaults.Goroutines, "Goroutines contending in each scenario")
	cmd.Flags().IntP("iterations", "n", defaults.Iterations, "Iterations performed by each goroutine")
	cmd.Flags().Bool("fair", defaults.Fair, "Use fair locks and semaphores")
	cmd.Flags().Duration("timeout", defaults.Timeout, "Timeout for each scenario")
	cmd.Flags().StringP("output", "o", string(stress.OutputText), "Report format (text, json, yaml)")
	cmd.Flags().BoolP("quiet", "q", false, "Run in quiet mode")

	if err := cmd.MarkFlagFilename("config", "yaml", "yml"); err != nil {
		panic(err)
	}

	return cmd
}

func runStress(cc *cobra.Command, _ []string) error {
	var merr error

	flags := cc.Flags()
	configPath, err := flags.GetString("config")
	if err != nil {
		merr = multierror.Append(merr, err)
	}
	outputString, err := flags.GetString("output")
	if err != nil {
		merr = multierror.Append(merr, err)
	}
	output, err := stress.ParseOutputFormat(outputString)
	if err != nil {
		merr = multierror.Append(merr, err)
	}
	logLevel, err := flags.GetString("log_level")
	if err != nil {
		merr = multierror.Append(merr, err)
	}
	quiet, err := flags.GetBool("quiet")
	if err != nil {
		merr = multierror.Append(merr, err)
	}

	cfg := stress.DefaultConfig()
	if configPath != "" {
		cfg, err = stress.LoadConfig(configPath)
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	if err := applyFlags(cc, &cfg); err != nil {
		merr = multierror.Append(merr, err)
	}

	if merr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, merr)
	}

	stdout := cc.OutOrStdout()
	interactive := !quiet && output == stress.OutputText && isTerminal(stdout)

	var (
		report *stress.Report
		runErr error
	)

	if interactive {
		tui, err := stresstui.NewStressTUI(stdout, logLevel)
		if err != nil {
			return fmt.Errorf("failed to create tui: %w", err)
		}

		report, runErr = tui.Run(cc.Context(), stress.NewRunner(cfg, tui.Logger()))
	} else {
		report, runErr = stress.NewRunner(cfg, slog.Default()).Run(cc.Context())
	}

	if errors.Is(runErr, stresstui.ErrCancelled) {
		return fmt.Errorf("%w: %w", ErrRunFailed, runErr)
	}

	if report != nil && len(report.Results) > 0 {
		err := stress.Render(stdout, report, stress.RenderOpts{
			Format: output,
			Color:  isTerminal(stdout),
		})
		if err != nil {
			return fmt.Errorf("render report: %w", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("%w: %w", ErrRunFailed, runErr)
	}

	return nil
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cc *cobra.Command, cfg *stress.Config) error {
	var merr error

	flags := cc.Flags()

	if flags.Changed("scenario") {
		scenarios, err := flags.GetStringArray("scenario")
		if err != nil {
			merr = multierror.Append(merr, err)
		}

		cfg.Scenarios = scenarios
	}

	if flags.Changed("goroutines") {
		goroutines, err := flags.GetInt("goroutines")
		if err != nil {
			merr = multierror.Append(merr, err)
		}

		cfg.Goroutines = goroutines
	}

	if flags.Changed("iterations") {
		iterations, err := flags.GetInt("iterations")
		if err != nil {
			merr = multierror.Append(merr, err)
		}

		cfg.Iterations = iterations
	}

	if flags.Changed("fair") {
		fair, err := flags.GetBool("fair")
		if err != nil {
			merr = multierror.Append(merr, err)
		}

		cfg.Fair = fair
	}

	if flags.Changed("timeout") {
		timeout, err := flags.GetDuration("timeout")
		if err != nil {
			merr = multierror.Append(merr, err)
		}

		cfg.Timeout = timeout
	}

	return merr
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)

	return ok && isatty.IsTerminal(f.Fd())
}
