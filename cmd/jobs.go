package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/resilience"
	"github.com/sells-group/zoning-cli/internal/store"
)

var (
	jobsStatus string
	jobsTown   string
	jobsLimit  int
	retryLimit int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect extraction jobs and the dead letter queue",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List extraction jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		jobs, err := st.ListJobs(ctx, store.JobFilter{
			Status: model.JobStatus(jobsStatus),
			Town:   jobsTown,
			Limit:  jobsLimit,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, j := range jobs {
			fmt.Fprintf(out, "%s  %-10s  %-24s  %-16s  zones=%d cost=$%.4f\n",
				j.ID, j.Status, truncate(j.Filename, 24), truncate(j.Town, 16), j.ZonesSaved, j.CostUSD)
		}
		fmt.Fprintf(out, "%d jobs\n", len(jobs))
		return nil
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return err
		}
		if job == nil {
			return eris.Errorf("job %s not found", args[0])
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

var jobsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show aggregate job counts and cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		s, err := st.SummarizeJobs(ctx)
		if err != nil {
			return err
		}
		dlqCount, err := st.CountDLQ(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "total:       %d\n", s.Total)
		fmt.Fprintf(out, "pending:     %d\n", s.Pending)
		fmt.Fprintf(out, "processing:  %d\n", s.Processing)
		fmt.Fprintf(out, "completed:   %d\n", s.Completed)
		fmt.Fprintf(out, "failed:      %d\n", s.Failed)
		fmt.Fprintf(out, "zones saved: %d (duplicates skipped: %d, corrections: %d)\n",
			s.ZonesSaved, s.DuplicatesSkipped, s.Corrections)
		fmt.Fprintf(out, "total cost:  $%.4f\n", s.TotalCostUSD)
		fmt.Fprintf(out, "dlq entries: %d\n", dlqCount)
		return nil
	},
}

var jobsRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-run transient failures from the dead letter queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Store.DequeueDLQ(ctx, resilience.DLQFilter{
			ErrorType: "transient",
			Limit:     retryLimit,
		})
		if err != nil {
			return eris.Wrap(err, "dequeue dlq")
		}

		out := cmd.OutOrStdout()
		var retried, succeeded int
		for _, entry := range entries {
			if !entry.CanRetry() {
				continue
			}
			retried++

			job := entry.Job
			if err := env.Pipeline.Rerun(ctx, &job); err != nil {
				zap.L().Warn("dlq retry failed",
					zap.String("job_id", job.ID),
					zap.Int("retry_count", entry.RetryCount+1),
					zap.Error(err),
				)
				next := time.Now().UTC().Add(backoffFor(entry.RetryCount + 1))
				if ierr := env.Store.IncrementDLQRetry(ctx, entry.ID, next, err.Error()); ierr != nil {
					zap.L().Error("increment dlq retry", zap.String("id", entry.ID), zap.Error(ierr))
				}
				continue
			}

			succeeded++
			if err := env.Store.RemoveDLQ(ctx, entry.ID); err != nil {
				zap.L().Error("remove dlq entry", zap.String("id", entry.ID), zap.Error(err))
			}
			fmt.Fprintf(out, "%s  recovered  zones=%d\n", job.ID, job.ZonesSaved)
		}

		fmt.Fprintf(out, "retried %d, recovered %d\n", retried, succeeded)
		return nil
	},
}

// backoffFor spaces DLQ retries out: 1m, 2m, 4m, ...
func backoffFor(attempt int) time.Duration {
	d := time.Minute
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func init() {
	jobsListCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status (pending|processing|completed|failed)")
	jobsListCmd.Flags().StringVar(&jobsTown, "town", "", "filter by town")
	jobsListCmd.Flags().IntVar(&jobsLimit, "limit", 50, "maximum jobs to list")
	jobsRetryCmd.Flags().IntVar(&retryLimit, "limit", 20, "maximum entries to retry")

	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd, jobsSummaryCmd, jobsRetryCmd)
	rootCmd.AddCommand(jobsCmd)
}
