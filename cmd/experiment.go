package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/zoning-cli/internal/experiment"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/scorer"
	"github.com/sells-group/zoning-cli/internal/store"
	"github.com/sells-group/zoning-cli/pkg/notion"
)

var (
	expName        string
	expDescription string
	expHypothesis  string
	expPromptFile  string
	expModel       string
	expTemperature float64
	expMaxTokens   int
	expBaseline    bool

	expMinTests int
	expLimit    int

	expRunDoc    string
	expRunAll    bool
	expRunBatch  bool
	expRunReport bool
)

var experimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Manage and evaluate prompt experiments",
}

var experimentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new prompt experiment",
	RunE: func(cmd *cobra.Command, args []string) error {
		if expName == "" {
			return eris.New("--name is required")
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		promptText := ""
		if expPromptFile != "" {
			data, err := readPromptFile(expPromptFile)
			if err != nil {
				return err
			}
			promptText = data
		}

		temp := expTemperature
		if temp == 0 {
			temp = model.DefaultTemperature
		}
		maxTokens := expMaxTokens
		if maxTokens == 0 {
			maxTokens = model.DefaultMaxTokens
		}

		now := time.Now().UTC()
		exp := &model.PromptExperiment{
			ID:            uuid.NewString(),
			Name:          expName,
			Description:   expDescription,
			Hypothesis:    expHypothesis,
			PromptText:    promptText,
			PromptVersion: 1,
			LLMModel:      expModel,
			Temperature:   temp,
			MaxTokens:     maxTokens,
			IsBaseline:    expBaseline,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := st.CreateExperiment(ctx, exp); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created experiment %s (%s)\n", exp.Name, exp.ID)
		return nil
	},
}

var experimentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List experiments ranked by accuracy",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		exps, err := st.ListExperiments(ctx, store.ExperimentFilter{
			MinTests: expMinTests,
			Limit:    expLimit,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, e := range exps {
			flags := ""
			if e.IsBaseline {
				flags += " baseline"
			}
			if e.IsActive {
				flags += " active"
			}
			fmt.Fprintf(out, "%s  %-30s  tests=%-4d accuracy=%.3f%s\n",
				e.ID, truncate(e.Name, 30), e.TotalTests, e.AvgAccuracy, flags)
		}
		fmt.Fprintf(out, "%d experiments\n", len(exps))
		return nil
	},
}

var experimentToggleCmd = &cobra.Command{
	Use:   "toggle <experiment-id>",
	Short: "Flip an experiment's active flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		exp, err := st.GetExperiment(ctx, args[0])
		if err != nil {
			return err
		}
		if exp == nil {
			return eris.Errorf("experiment %s not found", args[0])
		}

		if err := st.SetExperimentActive(ctx, exp.ID, !exp.IsActive); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s active=%t\n", exp.Name, !exp.IsActive)
		return nil
	},
}

var experimentRunCmd = &cobra.Command{
	Use:   "run <experiment-id>",
	Short: "Evaluate an experiment against ground truth",
	Long:  "Runs the experiment's prompt against one ground-truth document (--doc), or all of them (--all), optionally through the Anthropic batch API (--batch).",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("extract"); err != nil {
			return err
		}
		if expRunDoc == "" && !expRunAll {
			return eris.New("either --doc or --all is required")
		}

		ctx := cmd.Context()
		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sc := scorer.New(scorer.Config{TolerancePercent: cfg.Scorer.TolerancePercent})
		evaluator := experiment.New(env.Store, env.Pipeline, sc, env.Calc, cfg.Batch.MaxConcurrentDocs)
		out := cmd.OutOrStdout()

		if expRunDoc != "" {
			res, err := evaluator.RunTest(ctx, args[0], expRunDoc)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "test %s  success=%t zones=%d overall=%.3f zone=%.3f field=%.3f cost=$%.4f\n",
				res.ID, res.Success, res.ParsedZonesCount,
				res.Scores.Overall, res.Scores.Zone, res.Scores.Field, res.CostUSD)
			return nil
		}

		var outcome *experiment.BatchOutcome
		if expRunBatch {
			outcome, err = evaluator.RunAllBatch(ctx, env.LLM, args[0])
		} else {
			outcome, err = evaluator.RunAll(ctx, args[0])
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "batch %s  tests=%d failures=%d\n",
			outcome.BatchID, len(outcome.Results), outcome.Failures)
		fmt.Fprintf(out, "averages: overall=%.3f zone=%.3f field=%.3f location=%.3f\n",
			outcome.Averages.Overall, outcome.Averages.Zone,
			outcome.Averages.Field, outcome.Averages.Location)
		fmt.Fprintf(out, "total cost: $%.4f\n", outcome.TotalCostUSD)

		if expRunReport {
			if cfg.Notion.Token == "" || cfg.Notion.ResultsDB == "" {
				return eris.New("notion token and results_db are required for --report")
			}
			exp, err := env.Store.GetExperiment(ctx, args[0])
			if err != nil {
				return err
			}
			reporter := experiment.NewNotionReporter(notion.NewClient(cfg.Notion.Token), cfg.Notion.ResultsDB)
			if err := reporter.PublishSummary(ctx, exp, outcome); err != nil {
				return err
			}
			fmt.Fprintln(out, "summary published to notion")
		}
		return nil
	},
}

func readPromptFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "read prompt file %s", path)
	}
	return string(data), nil
}

func init() {
	experimentCreateCmd.Flags().StringVar(&expName, "name", "", "experiment name (required)")
	experimentCreateCmd.Flags().StringVar(&expDescription, "description", "", "what this experiment changes")
	experimentCreateCmd.Flags().StringVar(&expHypothesis, "hypothesis", "", "expected effect")
	experimentCreateCmd.Flags().StringVar(&expPromptFile, "prompt-file", "", "file holding the prompt text (empty uses the built-in prompt)")
	experimentCreateCmd.Flags().StringVar(&expModel, "model", "", "model override")
	experimentCreateCmd.Flags().Float64Var(&expTemperature, "temperature", 0, "sampling temperature")
	experimentCreateCmd.Flags().IntVar(&expMaxTokens, "max-tokens", 0, "response token cap")
	experimentCreateCmd.Flags().BoolVar(&expBaseline, "baseline", false, "mark as the baseline experiment")

	experimentListCmd.Flags().IntVar(&expMinTests, "min-tests", 0, "only experiments with at least this many tests")
	experimentListCmd.Flags().IntVar(&expLimit, "limit", 50, "maximum experiments to list")

	experimentRunCmd.Flags().StringVar(&expRunDoc, "doc", "", "ground-truth document ID to test against")
	experimentRunCmd.Flags().BoolVar(&expRunAll, "all", false, "test against every ground-truth document")
	experimentRunCmd.Flags().BoolVar(&expRunBatch, "batch", false, "use the Anthropic batch API (half price, slower)")
	experimentRunCmd.Flags().BoolVar(&expRunReport, "report", false, "publish the batch summary to Notion")

	experimentCmd.AddCommand(experimentCreateCmd, experimentListCmd, experimentToggleCmd, experimentRunCmd)
	rootCmd.AddCommand(experimentCmd)
}
