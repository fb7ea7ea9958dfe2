package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/t77yq/worksched/internal/flow"
	"github.com/t77yq/worksched/internal/model"
	"github.com/t77yq/worksched/internal/report"
	"github.com/t77yq/worksched/internal/scheduler"
)

type options struct {
	file    string
	verbose bool
}

type planOptions struct {
	tempo       string
	granularity string
	flow        string
	preview     bool
	json        bool
	agendas     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "schedctl",
		Short:         "Compute work schedules from a YAML inputs file.",
		Long:          `schedctl places the tasks of a project onto the availability of its workers and reports whether the plan meets its target and drop-dead dates.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.file, "file", "f", "", "Path to the scheduling inputs YAML file.")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log engine progress to stderr.")
	_ = root.MarkPersistentFlagRequired("file")

	root.AddCommand(newPlanCmd(opts))
	root.AddCommand(newValidateCmd(opts))
	root.AddCommand(newSuggestCmd(opts))
	return root
}

func newPlanCmd(opts *options) *cobra.Command {
	popts := &planOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute and print a schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(opts.verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			inputs, err := loadInputs(opts.file)
			if err != nil {
				return err
			}
			if err := popts.apply(&inputs); err != nil {
				return err
			}

			engine := scheduler.NewEngine(scheduler.DefaultEngineConfig(), logger)
			result, err := engine.Compute(inputs)
			if err != nil {
				return fmt.Errorf("[%s] %w", scheduler.ErrorKind(err), err)
			}

			out := cmd.OutOrStdout()
			if popts.json {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			loc, err := location(inputs.Timezone)
			if err != nil {
				return err
			}
			report.WriteText(out, result, loc)
			if popts.agendas {
				for _, agenda := range report.BuildAgendas(result) {
					fmt.Fprintln(out)
					report.WriteAgenda(out, agenda, loc)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&popts.tempo, "tempo", "", "Estimate tempo: fast_track, steady or extended.")
	cmd.Flags().StringVar(&popts.granularity, "granularity", "", "Planning quantum: quick, standard or detailed.")
	cmd.Flags().StringVar(&popts.flow, "flow", "", "Add flow edges: single_piece_flow or batch_flow.")
	cmd.Flags().BoolVar(&popts.preview, "preview", false, "Compute a preview for every remediation suggestion.")
	cmd.Flags().BoolVar(&popts.json, "json", false, "Print the result as JSON.")
	cmd.Flags().BoolVar(&popts.agendas, "agendas", false, "Print one agenda per worker after the report.")
	return cmd
}

func (p *planOptions) apply(inputs *model.SchedulingInputs) error {
	if p.tempo != "" {
		inputs.Tempo = model.Tempo(p.tempo)
	}
	if p.granularity != "" {
		inputs.Granularity = model.Granularity(p.granularity)
	}
	if p.flow != "" {
		method := model.FlowMethod(p.flow)
		if method != model.FlowSinglePiece && method != model.FlowBatch {
			return fmt.Errorf("unknown flow method %q", p.flow)
		}
		inputs.FlowMethod = method
		inputs.Tasks = flow.Apply(inputs.Tasks, method)
	}
	if p.preview {
		inputs.PreviewRemediations = true
	}
	return nil
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check inputs and the dependency graph without scheduling.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(opts.verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			inputs, err := loadInputs(opts.file)
			if err != nil {
				return err
			}

			engine := scheduler.NewEngine(scheduler.DefaultEngineConfig(), logger)
			graph, err := engine.Validate(inputs)
			if err != nil {
				return fmt.Errorf("[%s] %w", scheduler.ErrorKind(err), err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "OK: %d tasks, %d workers\n", graph.TaskCount(), len(inputs.Workers))
			for i, id := range graph.Order {
				fmt.Fprintf(out, "%3d. %s\n", i+1, id)
			}
			return nil
		},
	}
}

func newSuggestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest",
		Short: "List the remediation changes that apply to the inputs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(opts.verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			inputs, err := loadInputs(opts.file)
			if err != nil {
				return err
			}

			engine := scheduler.NewEngine(scheduler.DefaultEngineConfig(), logger)
			suggestions, err := engine.Suggestions(inputs)
			if err != nil {
				return fmt.Errorf("[%s] %w", scheduler.ErrorKind(err), err)
			}

			out := cmd.OutOrStdout()
			if len(suggestions) == 0 {
				fmt.Fprintln(out, "No remediation applies.")
				return nil
			}
			for _, s := range suggestions {
				fmt.Fprintf(out, "%-14s %s: %s\n", s.Kind, s.Title, s.Description)
			}
			return nil
		},
	}
}

// loadInputs reads the inputs file. A missing planning start means now.
func loadInputs(path string) (model.SchedulingInputs, error) {
	var inputs model.SchedulingInputs
	if path == "" {
		return inputs, fmt.Errorf("an inputs file is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return inputs, fmt.Errorf("could not read file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, &inputs); err != nil {
		return inputs, fmt.Errorf("could not parse YAML from '%s': %w", path, err)
	}
	if inputs.PlanningStart.IsZero() {
		inputs.PlanningStart = time.Now()
	}
	return inputs, nil
}

func location(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", tz, err)
	}
	return loc, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
