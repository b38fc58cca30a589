package workflow

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/config"
	"github.com/sells-group/zoning-cli/internal/extractor"
)

// Dial connects to the Temporal frontend described by cfg.
func Dial(cfg config.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    zapAdapter{l: zap.S()},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "workflow: dial temporal at %s", cfg.HostPort)
	}
	return c, nil
}

// RunWorker serves the extraction task queue until ctx is cancelled.
func RunWorker(ctx context.Context, c client.Client, cfg config.TemporalConfig, pipeline *extractor.Pipeline) error {
	w := worker.New(c, cfg.TaskQueue, worker.Options{})
	w.RegisterWorkflow(ExtractDocumentWorkflow)
	w.RegisterActivity(NewActivities(pipeline))

	zap.L().Info("workflow: worker started",
		zap.String("task_queue", cfg.TaskQueue),
		zap.String("namespace", cfg.Namespace),
	)

	stop := make(chan interface{})
	go func() {
		<-ctx.Done()
		close(stop)
	}()

	if err := w.Run(stop); err != nil {
		return eris.Wrap(err, "workflow: worker run")
	}
	return nil
}

// StartExtraction enqueues one document for durable processing and returns
// the workflow run handle without waiting for completion.
func StartExtraction(ctx context.Context, c client.Client, taskQueue string, req extractor.Request) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("extract-%s", req.Filename),
		TaskQueue: taskQueue,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, ExtractDocumentWorkflowName, req)
	if err != nil {
		return nil, eris.Wrapf(err, "workflow: start extraction for %s", req.Filename)
	}
	return run, nil
}

// zapAdapter bridges the Temporal SDK logger onto the global zap logger.
type zapAdapter struct {
	l *zap.SugaredLogger
}

func (z zapAdapter) Debug(msg string, keyvals ...interface{}) { z.l.Debugw(msg, keyvals...) }
func (z zapAdapter) Info(msg string, keyvals ...interface{})  { z.l.Infow(msg, keyvals...) }
func (z zapAdapter) Warn(msg string, keyvals ...interface{})  { z.l.Warnw(msg, keyvals...) }
func (z zapAdapter) Error(msg string, keyvals ...interface{}) { z.l.Errorw(msg, keyvals...) }
