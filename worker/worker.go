package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/toolbind/config"
	"github.com/zero-day-ai/toolbind/queue"
	"github.com/zero-day-ai/toolbind/tool"
	"github.com/zero-day-ai/toolbind/toolerr"
)

// Options configures the worker behavior.
type Options struct {
	// RedisURL is the Redis connection string (e.g., "redis://localhost:6379").
	// Ignored when Client is set.
	RedisURL string

	// Client is an already connected queue client. Run does not close it.
	Client queue.Client

	// ToolName is the queue name served. Defaults to the descriptor id.
	ToolName string

	// Concurrency is the number of worker goroutines to start.
	// If 0, uses the worker section of Config or the default (4).
	Concurrency int

	// ShutdownTimeout is the time to wait for in-flight builds on shutdown.
	// If 0, uses Config or the default (30s).
	ShutdownTimeout time.Duration

	// HeartbeatInterval is the time between health heartbeats.
	// If 0, uses Config or the default (10s).
	HeartbeatInterval time.Duration

	// Logger is the structured logger for worker operations.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// Config is the worker section of toolbind.yaml, if any.
	Config *config.WorkerConfig
}

// Run serves a tool descriptor from its Redis queue until ctx is cancelled.
//
// Configuration priority (highest to lowest):
//  1. Explicit Options values (if non-zero)
//  2. toolbind.yaml worker section
//  3. Default values
//
// Run registers the tool, increments its worker count, keeps a heartbeat and
// starts Concurrency goroutines. Each goroutine pops a work item, builds the
// job order with the descriptor and publishes the Result on the job's results
// channel. Build failures are published as error results; they never stop the
// worker.
//
// On cancellation Run waits up to ShutdownTimeout for in-flight builds, then
// decrements the worker count and returns nil.
func Run(ctx context.Context, d *tool.Descriptor, opts Options) error {
	opts = applyConfig(opts)
	if opts.ToolName == "" {
		opts.ToolName = d.ID()
	}
	if opts.ToolName == "" {
		return errors.New("tool name is required: set Options.ToolName or the document id")
	}

	workerID := generateWorkerID()
	logger := opts.Logger.With(
		"tool", opts.ToolName,
		"worker_id", workerID,
	)

	client := opts.Client
	if client == nil {
		logger.Info("connecting to redis", "redis_url", opts.RedisURL)
		rc, err := queue.NewRedisClient(queue.RedisOptions{URL: opts.RedisURL})
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer rc.Close()
		client = rc
	}

	meta := toolMeta(opts.ToolName, d)
	if err := client.RegisterTool(ctx, meta); err != nil {
		logger.Error("failed to register tool", "error", err)
		return fmt.Errorf("failed to register tool: %w", err)
	}
	logger.Info("tool registered", "inputs", meta.Inputs, "base_command", meta.BaseCommand)

	if err := client.IncrementWorkerCount(ctx, opts.ToolName); err != nil {
		logger.Error("failed to increment worker count", "error", err)
	}
	defer func() {
		// ctx is already cancelled here
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cleanupCancel()
		if err := client.DecrementWorkerCount(cleanupCtx, opts.ToolName); err != nil {
			logger.Error("failed to decrement worker count", "error", err)
		}
	}()

	if err := client.Heartbeat(ctx, opts.ToolName); err != nil {
		logger.Warn("initial heartbeat failed", "error", err)
	}
	go runHeartbeat(ctx, client, opts.ToolName, opts.HeartbeatInterval, logger)

	var wg sync.WaitGroup
	queueName := queue.QueueKey(opts.ToolName)
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func(workerNum int) {
			defer wg.Done()
			workerLoop(ctx, workerNum, d, client, queueName, workerID, logger)
		}(i)
	}

	logger.Info("worker started",
		"workers", opts.Concurrency,
		"queue", queueName,
	)

	<-ctx.Done()
	logger.Info("context cancelled, initiating graceful shutdown")

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		logger.Info("worker shutdown complete")
	case <-time.After(opts.ShutdownTimeout):
		logger.Warn("worker shutdown timeout exceeded", "timeout", opts.ShutdownTimeout)
	}

	return nil
}

// runHeartbeat sends periodic heartbeats to maintain tool health status.
// It stops when the context is cancelled.
func runHeartbeat(ctx context.Context, client queue.Client, toolName string, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("heartbeat stopped")
			return
		case <-ticker.C:
			if err := client.Heartbeat(ctx, toolName); err != nil {
				logger.Debug("heartbeat failed", "error", err)
			}
		}
	}
}

// workerLoop pops work items, builds them and publishes results until the
// context is cancelled.
func workerLoop(ctx context.Context, workerNum int, d *tool.Descriptor, client queue.Client, queueName, workerID string, logger *slog.Logger) {
	logger = logger.With("worker_num", workerNum)
	logger.Debug("worker loop started", "queue", queueName)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker loop stopped", "reason", "context_cancelled")
			return
		default:
		}

		item, err := client.Pop(ctx, queueName)
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("worker loop stopped", "reason", "context_error")
				return
			}
			logger.Error("failed to pop work item", "error", err)
			continue
		}

		// Pop timed out
		if item == nil {
			continue
		}

		logger.Info("received work item",
			"job_id", item.JobID,
			"index", item.Index,
			"total", item.Total,
		)

		// The build finishes even if shutdown starts meanwhile.
		result := processWorkItem(context.WithoutCancel(ctx), d, *item, workerID, logger)

		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := client.Publish(pubCtx, queue.ResultsChannel(item.JobID), result); err != nil {
			logger.Error("failed to publish result", "job_id", item.JobID, "error", err)
		}
		cancel()
	}
}

// processWorkItem builds a single work item. A result is always returned;
// failures are carried in ErrorCode and Error.
func processWorkItem(ctx context.Context, d *tool.Descriptor, item queue.WorkItem, workerID string, logger *slog.Logger) queue.Result {
	result := queue.Result{
		JobID:     item.JobID,
		Index:     item.Index,
		WorkerID:  workerID,
		StartedAt: time.Now().UnixMilli(),
	}
	fail := func(err error) queue.Result {
		result.ErrorCode = toolerr.CodeOf(err)
		result.Error = err.Error()
		result.CompletedAt = time.Now().UnixMilli()
		logger.Warn("build failed",
			"job_id", item.JobID,
			"index", item.Index,
			"error_code", result.ErrorCode,
			"error", err,
		)
		return result
	}

	if err := item.IsValid(); err != nil {
		return fail(toolerr.New("worker", "process", toolerr.ErrCodeParseError, "invalid work item").WithCause(err))
	}

	jobOrder, err := tool.ParseJobOrder([]byte(item.JobOrderJSON))
	if err != nil {
		return fail(err)
	}

	job, err := d.Build(withRemoteParent(ctx, item), jobOrder)
	if err != nil {
		return fail(err)
	}

	result.BuildID = job.ID.String()
	result.Argv = job.Argv()
	result.Files = job.Files
	result.CompletedAt = time.Now().UnixMilli()

	logger.Info("work item completed",
		"job_id", item.JobID,
		"index", item.Index,
		"build_id", result.BuildID,
		"duration_ms", result.CompletedAt-result.StartedAt,
	)

	return result
}

// withRemoteParent makes the submitter's span, if carried by the item, the
// parent of the build span.
func withRemoteParent(ctx context.Context, item queue.WorkItem) context.Context {
	if item.TraceID == "" || item.SpanID == "" {
		return ctx
	}
	traceID, err := trace.TraceIDFromHex(item.TraceID)
	if err != nil {
		return ctx
	}
	spanID, err := trace.SpanIDFromHex(item.SpanID)
	if err != nil {
		return ctx
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return trace.ContextWithRemoteSpanContext(ctx, sc)
}

// toolMeta describes the served descriptor for discovery.
func toolMeta(name string, d *tool.Descriptor) queue.ToolMeta {
	meta := queue.ToolMeta{
		Name:        name,
		Description: d.Description(),
		BaseCommand: d.BaseCommand(),
	}
	for _, f := range d.InputSchema().Fields {
		meta.Inputs = append(meta.Inputs, f.Name)
	}
	return meta
}

// generateWorkerID creates a unique identifier for this worker instance.
// Uses hostname + PID + UUID for uniqueness.
func generateWorkerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d-%s", hostname, os.Getpid(), uuid.New().String()[:8])
}

// applyConfig fills unset Options from the worker config and defaults.
func applyConfig(opts Options) Options {
	if opts.Concurrency <= 0 {
		opts.Concurrency = opts.Config.GetConcurrency()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = opts.Config.GetShutdownTimeout()
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = opts.Config.GetHeartbeatInterval()
	}
	if opts.RedisURL == "" {
		opts.RedisURL = "redis://localhost:6379"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts
}
