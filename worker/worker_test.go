package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zero-day-ai/toolbind/config"
	"github.com/zero-day-ai/toolbind/queue"
	"github.com/zero-day-ai/toolbind/tool"
	"github.com/zero-day-ai/toolbind/toolerr"
)

func echoDescriptor(t *testing.T, opts ...tool.Option) *tool.Descriptor {
	t.Helper()
	d, err := tool.New(map[string]any{
		"@context":    tool.ContextMarker,
		"id":          "echo",
		"description": "print a message",
		"baseCommand": "echo",
		"inputs": []any{
			map[string]any{"port": "#message", "type": "string", "binding": map[string]any{"position": 1}},
			map[string]any{"port": "#file", "type": []any{"null", "File"}, "binding": map[string]any{"position": 2}},
		},
		"outputs": []any{},
	}, opts...)
	require.NoError(t, err)
	return d
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *queue.RedisClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := queue.NewRedisClient(queue.RedisOptions{URL: fmt.Sprintf("redis://%s", mr.Addr())})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func workItem(jobID, jobOrder string) queue.WorkItem {
	return queue.WorkItem{
		JobID:        jobID,
		Total:        1,
		Tool:         "echo",
		JobOrderJSON: jobOrder,
		SubmittedAt:  time.Now().UnixMilli(),
	}
}

func TestProcessWorkItem(t *testing.T) {
	d := echoDescriptor(t)

	tests := []struct {
		name     string
		item     queue.WorkItem
		wantArgv []string
		wantCode string
	}{
		{
			name:     "builds argv",
			item:     workItem("job-1", `{"message": "hi"}`),
			wantArgv: []string{"echo", "hi"},
		},
		{
			name:     "includes files",
			item:     workItem("job-2", `{"message": "hi", "file": {"path": "/tmp/x"}}`),
			wantArgv: []string{"echo", "hi", "/tmp/x"},
		},
		{
			name:     "malformed json",
			item:     workItem("job-3", `{"message": `),
			wantCode: toolerr.ErrCodeParseError,
		},
		{
			name:     "schema mismatch",
			item:     workItem("job-4", `{"message": 7}`),
			wantCode: toolerr.ErrCodeSchemaMismatch,
		},
		{
			name:     "invalid work item",
			item:     workItem("job-5", ""),
			wantCode: toolerr.ErrCodeParseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := processWorkItem(context.Background(), d, tt.item, "worker-1", newTestLogger())

			assert.Equal(t, tt.item.JobID, result.JobID)
			assert.Equal(t, "worker-1", result.WorkerID)
			assert.GreaterOrEqual(t, result.CompletedAt, result.StartedAt)
			require.NoError(t, result.IsValid())

			if tt.wantCode != "" {
				assert.True(t, result.HasError())
				assert.Equal(t, tt.wantCode, result.ErrorCode)
				assert.Empty(t, result.Argv)
				return
			}
			assert.False(t, result.HasError(), result.Error)
			assert.Equal(t, tt.wantArgv, result.Argv)
			assert.NotEmpty(t, result.BuildID)
		})
	}
}

func TestProcessWorkItem_Files(t *testing.T) {
	d := echoDescriptor(t)
	result := processWorkItem(context.Background(), d,
		workItem("job-1", `{"message": "hi", "file": {"path": "/tmp/x", "size": 3}}`),
		"worker-1", newTestLogger())

	require.False(t, result.HasError(), result.Error)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "/tmp/x", result.Files[0].(map[string]any)["path"])
}

func TestProcessWorkItem_RemoteParent(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	d := echoDescriptor(t, tool.WithTracer(tp.Tracer("test")))

	item := workItem("job-1", `{"message": "hi"}`)
	item.TraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	item.SpanID = "00f067aa0ba902b7"
	result := processWorkItem(context.Background(), d, item, "worker-1", newTestLogger())
	require.False(t, result.HasError(), result.Error)

	bad := workItem("job-2", `{"message": "hi"}`)
	bad.TraceID = "not-hex"
	bad.SpanID = "00f067aa0ba902b7"
	result = processWorkItem(context.Background(), d, bad, "worker-1", newTestLogger())
	require.False(t, result.HasError(), result.Error)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, item.TraceID, spans[0].SpanContext.TraceID().String())
	assert.Equal(t, item.SpanID, spans[0].Parent.SpanID().String())
	assert.True(t, spans[0].Parent.IsRemote())
	assert.False(t, spans[1].Parent.IsValid())
}

func TestToolMeta(t *testing.T) {
	meta := toolMeta("echo", echoDescriptor(t))
	assert.Equal(t, queue.ToolMeta{
		Name:        "echo",
		Description: "print a message",
		BaseCommand: []string{"echo"},
		Inputs:      []string{"message", "file"},
	}, meta)
	assert.NoError(t, meta.IsValid())
}

func TestGenerateWorkerID(t *testing.T) {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	prefix := fmt.Sprintf("%s-%d-", host, os.Getpid())

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		id := generateWorkerID()
		assert.False(t, seen[id], "duplicate worker id %s", id)
		seen[id] = true
		require.True(t, strings.HasPrefix(id, prefix), id)
		assert.Len(t, strings.TrimPrefix(id, prefix), 8)
	}
}

func TestApplyConfig(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want Options
	}{
		{
			name: "defaults",
			opts: Options{},
			want: Options{Concurrency: 4, ShutdownTimeout: 30 * time.Second, HeartbeatInterval: 10 * time.Second},
		},
		{
			name: "config section",
			opts: Options{Config: &config.WorkerConfig{Concurrency: 2, ShutdownTimeout: "5s", HeartbeatInterval: "1s"}},
			want: Options{Concurrency: 2, ShutdownTimeout: 5 * time.Second, HeartbeatInterval: time.Second},
		},
		{
			name: "explicit options win",
			opts: Options{
				Concurrency:     8,
				ShutdownTimeout: time.Minute,
				Config:          &config.WorkerConfig{Concurrency: 2, ShutdownTimeout: "5s"},
			},
			want: Options{Concurrency: 8, ShutdownTimeout: time.Minute, HeartbeatInterval: 10 * time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyConfig(tt.opts)
			assert.Equal(t, tt.want.Concurrency, got.Concurrency)
			assert.Equal(t, tt.want.ShutdownTimeout, got.ShutdownTimeout)
			assert.Equal(t, tt.want.HeartbeatInterval, got.HeartbeatInterval)
			assert.Equal(t, "redis://localhost:6379", got.RedisURL)
			assert.NotNil(t, got.Logger)
		})
	}
}

func TestRunHeartbeat(t *testing.T) {
	mr, client := setupTestRedis(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runHeartbeat(ctx, client, "echo", 10*time.Millisecond, newTestLogger())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return mr.Exists(queue.HealthKey("echo"))
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("heartbeat did not stop")
	}
}

func TestWorkerLoop_ContextCancellation(t *testing.T) {
	_, client := setupTestRedis(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	finished := make(chan struct{})
	go func() {
		workerLoop(ctx, 0, echoDescriptor(t), client, queue.QueueKey("echo"), "worker-1", newTestLogger())
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after context cancellation")
	}
}

func TestRun_Integration(t *testing.T) {
	mr, client := setupTestRedis(t)
	d := echoDescriptor(t)

	results, err := client.Subscribe(context.Background(), queue.ResultsChannel("job-1"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() {
		runErr <- Run(ctx, d, Options{
			Client:            client,
			Concurrency:       2,
			HeartbeatInterval: 20 * time.Millisecond,
			ShutdownTimeout:   5 * time.Second,
			Logger:            newTestLogger(),
		})
	}()

	require.Eventually(t, func() bool {
		n, err := client.GetWorkerCount(context.Background(), "echo")
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	tools, err := client.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, []string{"message", "file"}, tools[0].Inputs)
	assert.True(t, mr.Exists(queue.HealthKey("echo")))

	for i, order := range []string{`{"message": "hi"}`, `{"message": false}`} {
		item := workItem("job-1", order)
		item.Index = i
		item.Total = 2
		require.NoError(t, client.Push(context.Background(), queue.QueueKey("echo"), item))
	}

	got := make(map[int]queue.Result)
	timeout := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case r := <-results:
			got[r.Index] = r
		case <-timeout:
			t.Fatalf("received %d of 2 results", len(got))
		}
	}
	assert.Equal(t, []string{"echo", "hi"}, got[0].Argv)
	assert.Equal(t, toolerr.ErrCodeSchemaMismatch, got[1].ErrorCode)
	assert.Equal(t, got[0].WorkerID, got[1].WorkerID)

	cancel()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	n, err := client.GetWorkerCount(context.Background(), "echo")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// failingClient rejects registration.
type failingClient struct {
	queue.Client
	mu    sync.Mutex
	calls []string
}

func (f *failingClient) RegisterTool(ctx context.Context, meta queue.ToolMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "register:"+meta.Name)
	return errors.New("read only replica")
}

func TestRun_RegistrationFailure(t *testing.T) {
	fc := &failingClient{}
	err := Run(context.Background(), echoDescriptor(t), Options{Client: fc, Logger: newTestLogger()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to register tool")
	assert.Equal(t, []string{"register:echo"}, fc.calls)
}

func TestRun_RequiresToolName(t *testing.T) {
	d, err := tool.New(map[string]any{
		"@context":    tool.ContextMarker,
		"baseCommand": "true",
		"inputs":      []any{},
		"outputs":     []any{},
	})
	require.NoError(t, err)

	err = Run(context.Background(), d, Options{Client: &failingClient{}, Logger: newTestLogger()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool name is required")
}
