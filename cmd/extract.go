package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/zoning-cli/internal/extractor"
	"github.com/sells-group/zoning-cli/internal/fetch"
	"github.com/sells-group/zoning-cli/internal/workflow"
)

var (
	extractTown    string
	extractCounty  string
	extractState   string
	extractDurable bool
)

// extractableExtensions are the document types the pipeline accepts when
// walking a directory.
var extractableExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

var extractCmd = &cobra.Command{
	Use:   "extract <file-or-directory>",
	Short: "Extract zoning requirements from an ordinance document",
	Long:  "Runs the extraction pipeline over a single document, or over every document in a directory with bounded concurrency.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		ctx := cmd.Context()

		target := args[0]
		if isRemote(target) {
			path, err := downloadOrdinance(ctx, target)
			if err != nil {
				return err
			}
			target = path
		}

		info, err := os.Stat(target)
		if err != nil {
			return eris.Wrapf(err, "stat %s", target)
		}

		if extractDurable {
			return extractDurably(cmd, info, target)
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if !info.IsDir() {
			return extractOne(cmd, env, target)
		}

		paths, err := collectDocuments(target)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return eris.Errorf("no extractable documents in %s", target)
		}
		zap.L().Info("extracting directory",
			zap.String("dir", target),
			zap.Int("documents", len(paths)),
			zap.Int("max_concurrent", cfg.Batch.MaxConcurrentDocs),
		)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Batch.MaxConcurrentDocs)
		for _, path := range paths {
			g.Go(func() error {
				// Individual document failures are already recorded on the
				// job and parked in the DLQ; don't abort the batch.
				if err := extractOne(cmd, env, path); err != nil {
					zap.L().Error("document failed", zap.String("path", path), zap.Error(err))
				}
				return gctx.Err()
			})
		}
		return g.Wait()
	},
}

func extractOne(cmd *cobra.Command, env *pipelineEnv, path string) error {
	job, err := env.Pipeline.Run(cmd.Context(), extractor.Request{
		FilePath: path,
		Town:     extractTown,
		County:   extractCounty,
		State:    extractState,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  zones=%d duplicates=%d corrections=%d cost=$%.4f\n",
		job.ID, job.Status, job.ZonesSaved, job.DuplicatesSkipped, job.Corrections, job.CostUSD)
	return nil
}

// extractDurably hands the documents to the Temporal task queue instead of
// running them in-process; the worker command picks them up.
func extractDurably(cmd *cobra.Command, info os.FileInfo, path string) error {
	if cfg.Temporal.HostPort == "" || cfg.Temporal.TaskQueue == "" {
		return eris.New("temporal host_port and task_queue are required for --durable")
	}

	ctx := cmd.Context()
	c, err := workflow.Dial(cfg.Temporal)
	if err != nil {
		return err
	}
	defer c.Close()

	paths := []string{path}
	if info.IsDir() {
		paths, err = collectDocuments(path)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for _, p := range paths {
		run, err := workflow.StartExtraction(ctx, c, cfg.Temporal.TaskQueue, extractor.Request{
			FilePath: p,
			Town:     extractTown,
			County:   extractCounty,
			State:    extractState,
		})
		if err != nil {
			return eris.Wrapf(err, "start workflow for %s", p)
		}
		fmt.Fprintf(out, "%s  queued  workflow=%s\n", filepath.Base(p), run.GetID())
	}
	fmt.Fprintf(out, "%d documents queued\n", len(paths))
	return nil
}

func isRemote(arg string) bool {
	for _, scheme := range []string{"http://", "https://", "ftp://"} {
		if strings.HasPrefix(arg, scheme) {
			return true
		}
	}
	return false
}

// downloadOrdinance fetches a remote document to a temp file so the rest of
// the pipeline only ever sees local paths.
func downloadOrdinance(ctx context.Context, rawURL string) (string, error) {
	resolver := fetch.NewResolver(cfg.Fetch)
	body, err := resolver.Download(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	name := filepath.Base(rawURL)
	if name == "" || name == "." || name == "/" {
		name = "ordinance.txt"
	}
	path := filepath.Join(os.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	n, err := io.Copy(f, body)
	if err != nil {
		return "", eris.Wrapf(err, "download %s", rawURL)
	}
	zap.L().Info("ordinance downloaded",
		zap.String("url", rawURL),
		zap.String("path", path),
		zap.Int64("bytes", n),
	)
	return path, nil
}

func collectDocuments(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if extractableExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "walk %s", dir)
	}
	return paths, nil
}

func init() {
	extractCmd.Flags().StringVar(&extractTown, "town", "", "override extracted town")
	extractCmd.Flags().StringVar(&extractCounty, "county", "", "override extracted county")
	extractCmd.Flags().StringVar(&extractState, "state", "", "override extracted state")
	extractCmd.Flags().BoolVar(&extractDurable, "durable", false, "queue documents on Temporal instead of extracting in-process")
	rootCmd.AddCommand(extractCmd)
}
