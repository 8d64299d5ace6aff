package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a miniredis instance and returns a connected RedisClient.
func setupTestClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := NewRedisClient(RedisOptions{
		URL:            fmt.Sprintf("redis://%s", mr.Addr()),
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client, mr
}

func TestNewRedisClient(t *testing.T) {
	t.Run("successful connection", func(t *testing.T) {
		mr := miniredis.RunT(t)

		client, err := NewRedisClient(RedisOptions{URL: fmt.Sprintf("redis://%s", mr.Addr())})
		require.NoError(t, err)
		require.NotNil(t, client)
		defer client.Close()
	})

	t.Run("connection failure", func(t *testing.T) {
		_, err := NewRedisClient(RedisOptions{
			URL:            "redis://127.0.0.1:1",
			ConnectTimeout: 100 * time.Millisecond,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to Redis")
	})

	t.Run("invalid URL", func(t *testing.T) {
		_, err := NewRedisClient(RedisOptions{URL: "invalid://url"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse Redis URL")
	})
}

func TestPushPop(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		client, _ := setupTestClient(t)
		ctx := context.Background()

		item := validWorkItem()
		require.NoError(t, client.Push(ctx, QueueKey("echo"), item))

		popped, err := client.Pop(ctx, QueueKey("echo"))
		require.NoError(t, err)
		require.NotNil(t, popped)
		assert.Equal(t, item, *popped)
	})

	t.Run("multiple items FIFO order", func(t *testing.T) {
		client, _ := setupTestClient(t)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			item := validWorkItem()
			item.JobID = fmt.Sprintf("job-%d", i)
			item.Index = i
			item.Total = 5
			require.NoError(t, client.Push(ctx, QueueKey("echo"), item))
		}

		for i := 0; i < 5; i++ {
			popped, err := client.Pop(ctx, QueueKey("echo"))
			require.NoError(t, err)
			require.NotNil(t, popped)
			assert.Equal(t, fmt.Sprintf("job-%d", i), popped.JobID)
			assert.Equal(t, i, popped.Index)
		}
	})

	t.Run("pop blocks until data arrives", func(t *testing.T) {
		client, _ := setupTestClient(t)
		ctx := context.Background()

		resultChan := make(chan *WorkItem, 1)
		errChan := make(chan error, 1)
		go func() {
			item, err := client.Pop(ctx, "delayed-queue")
			if err != nil {
				errChan <- err
				return
			}
			resultChan <- item
		}()

		time.Sleep(100 * time.Millisecond)

		item := validWorkItem()
		item.JobID = "delayed-job"
		require.NoError(t, client.Push(ctx, "delayed-queue", item))

		select {
		case got := <-resultChan:
			require.NotNil(t, got)
			assert.Equal(t, "delayed-job", got.JobID)
		case err := <-errChan:
			t.Fatalf("unexpected error: %v", err)
		case <-time.After(2 * time.Second):
			t.Fatal("Pop did not return after item was pushed")
		}
	})

	t.Run("pop rejects malformed payload", func(t *testing.T) {
		client, mr := setupTestClient(t)

		_, err := mr.Lpush("bad-queue", "not json")
		require.NoError(t, err)

		_, err = client.Pop(context.Background(), "bad-queue")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal work item")
	})

	t.Run("pop times out on empty queue", func(t *testing.T) {
		client, _ := setupTestClient(t)

		start := time.Now()
		item, err := client.Pop(context.Background(), "empty-queue")
		require.NoError(t, err)
		assert.Nil(t, item)
		assert.GreaterOrEqual(t, time.Since(start), PopTimeout/2)
	})
}

func TestPublishSubscribe(t *testing.T) {
	t.Run("delivers results", func(t *testing.T) {
		client, _ := setupTestClient(t)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		channel := ResultsChannel("job-123")
		results, err := client.Subscribe(ctx, channel)
		require.NoError(t, err)

		want := Result{
			JobID:       "job-123",
			BuildID:     "b-1",
			Argv:        []string{"echo", "hi"},
			Files:       []any{map[string]any{"path": "/tmp/a"}},
			WorkerID:    "worker-1",
			StartedAt:   1,
			CompletedAt: 2,
		}
		require.NoError(t, client.Publish(ctx, channel, want))

		select {
		case got := <-results:
			assert.Equal(t, want, got)
		case <-ctx.Done():
			t.Fatal("timed out waiting for result")
		}
	})

	t.Run("skips payloads that are not results", func(t *testing.T) {
		client, mr := setupTestClient(t)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		channel := ResultsChannel("job-9")
		results, err := client.Subscribe(ctx, channel)
		require.NoError(t, err)

		mr.Publish(channel, "garbage")
		require.NoError(t, client.Publish(ctx, channel, Result{JobID: "job-9", Error: "boom"}))

		select {
		case got := <-results:
			assert.Equal(t, "job-9", got.JobID)
			assert.True(t, got.HasError())
		case <-ctx.Done():
			t.Fatal("timed out waiting for result")
		}
	})

	t.Run("channel closes on cancellation", func(t *testing.T) {
		client, _ := setupTestClient(t)
		ctx, cancel := context.WithCancel(context.Background())

		results, err := client.Subscribe(ctx, ResultsChannel("job-1"))
		require.NoError(t, err)
		cancel()

		select {
		case _, ok := <-results:
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("result channel was not closed")
		}
	})
}

func TestRegisterToolAndList(t *testing.T) {
	t.Run("register and list", func(t *testing.T) {
		client, mr := setupTestClient(t)
		ctx := context.Background()

		require.NoError(t, client.RegisterTool(ctx, ToolMeta{
			Name:        "wc",
			Description: "count words",
			BaseCommand: []string{"wc", "-w"},
			Inputs:      []string{"file"},
			WorkerCount: 2,
		}))
		require.NoError(t, client.RegisterTool(ctx, ToolMeta{
			Name:        "echo",
			BaseCommand: []string{"echo"},
			Inputs:      []string{"message"},
		}))

		members, err := mr.Members(AvailableKey)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"echo", "wc"}, members)
		assert.Equal(t, `["wc","-w"]`, mr.HGet(MetaKey("wc"), "base_command"))

		tools, err := client.ListTools(ctx)
		require.NoError(t, err)
		require.Len(t, tools, 2)
		assert.Equal(t, "echo", tools[0].Name)
		assert.Equal(t, ToolMeta{
			Name:        "wc",
			Description: "count words",
			BaseCommand: []string{"wc", "-w"},
			Inputs:      []string{"file"},
			WorkerCount: 2,
		}, tools[1])
	})

	t.Run("re-registering overwrites metadata", func(t *testing.T) {
		client, _ := setupTestClient(t)
		ctx := context.Background()

		require.NoError(t, client.RegisterTool(ctx, ToolMeta{Name: "echo", BaseCommand: []string{"echo"}}))
		require.NoError(t, client.RegisterTool(ctx, ToolMeta{Name: "echo", BaseCommand: []string{"echo", "-n"}}))

		tools, err := client.ListTools(ctx)
		require.NoError(t, err)
		require.Len(t, tools, 1)
		assert.Equal(t, []string{"echo", "-n"}, tools[0].BaseCommand)
	})

	t.Run("list tools when none registered", func(t *testing.T) {
		client, _ := setupTestClient(t)

		tools, err := client.ListTools(context.Background())
		require.NoError(t, err)
		assert.Empty(t, tools)
	})

	t.Run("skips tools without metadata", func(t *testing.T) {
		client, mr := setupTestClient(t)

		_, err := mr.SAdd(AvailableKey, "ghost")
		require.NoError(t, err)

		tools, err := client.ListTools(context.Background())
		require.NoError(t, err)
		assert.Empty(t, tools)
	})

	t.Run("skips tools with unreadable metadata", func(t *testing.T) {
		client, mr := setupTestClient(t)
		ctx := context.Background()

		for _, name := range []string{"bad-base", "bad-inputs", "wc"} {
			require.NoError(t, client.RegisterTool(ctx, ToolMeta{
				Name:        name,
				BaseCommand: []string{"wc", "-w"},
				Inputs:      []string{"file"},
			}))
		}
		mr.HSet(MetaKey("bad-base"), "base_command", "[not json")
		mr.HSet(MetaKey("bad-inputs"), "inputs", "{")

		tools, err := client.ListTools(ctx)
		require.NoError(t, err)
		require.Len(t, tools, 1)
		assert.Equal(t, "wc", tools[0].Name)
		assert.Equal(t, []string{"wc", "-w"}, tools[0].BaseCommand)
	})
}

func TestMetaHash_ToolMeta(t *testing.T) {
	h, err := toHash(ToolMeta{Name: "wc", BaseCommand: []string{"wc"}, Inputs: []string{"file"}, WorkerCount: 2})
	require.NoError(t, err)

	meta, err := h.toolMeta()
	require.NoError(t, err)
	assert.Equal(t, ToolMeta{Name: "wc", BaseCommand: []string{"wc"}, Inputs: []string{"file"}, WorkerCount: 2}, meta)

	h.BaseCommand = "nope"
	_, err = h.toolMeta()
	assert.ErrorContains(t, err, "base_command of tool wc")
}

func TestHeartbeat(t *testing.T) {
	t.Run("sets key with TTL", func(t *testing.T) {
		client, mr := setupTestClient(t)

		require.NoError(t, client.Heartbeat(context.Background(), "echo"))
		assert.True(t, mr.Exists(HealthKey("echo")))
		assert.Equal(t, HeartbeatTTL, mr.TTL(HealthKey("echo")))
	})

	t.Run("expires without refresh", func(t *testing.T) {
		client, mr := setupTestClient(t)

		require.NoError(t, client.Heartbeat(context.Background(), "echo"))
		mr.FastForward(HeartbeatTTL + time.Second)
		assert.False(t, mr.Exists(HealthKey("echo")))
	})

	t.Run("refresh extends TTL", func(t *testing.T) {
		client, mr := setupTestClient(t)
		ctx := context.Background()

		require.NoError(t, client.Heartbeat(ctx, "echo"))
		mr.FastForward(15 * time.Second)
		require.NoError(t, client.Heartbeat(ctx, "echo"))
		mr.FastForward(20 * time.Second)
		assert.True(t, mr.Exists(HealthKey("echo")))

		mr.FastForward(15 * time.Second)
		assert.False(t, mr.Exists(HealthKey("echo")))
	})
}

func TestWorkerCount(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	count, err := client.GetWorkerCount(ctx, "echo")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for i := 0; i < 3; i++ {
		require.NoError(t, client.IncrementWorkerCount(ctx, "echo"))
	}
	require.NoError(t, client.DecrementWorkerCount(ctx, "echo"))

	count, err = client.GetWorkerCount(ctx, "echo")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, mr.Set(WorkersKey("broken"), "many"))
	_, err = client.GetWorkerCount(ctx, "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid worker count value")
}

func TestKeyNames(t *testing.T) {
	assert.Equal(t, "toolbind:echo:queue", QueueKey("echo"))
	assert.Equal(t, "toolbind:echo:meta", MetaKey("echo"))
	assert.Equal(t, "toolbind:echo:health", HealthKey("echo"))
	assert.Equal(t, "toolbind:echo:workers", WorkersKey("echo"))
	assert.Equal(t, "results:job-1", ResultsChannel("job-1"))
}

func TestClose(t *testing.T) {
	client, _ := setupTestClient(t)
	require.NoError(t, client.Close())

	err := client.Heartbeat(context.Background(), "echo")
	assert.Error(t, err)
}
