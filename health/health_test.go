package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/toolbind/queue"
	"github.com/zero-day-ai/toolbind/tool"
)

func TestBinaryCheck(t *testing.T) {
	tests := []struct {
		name   string
		binary string
		want   string
	}{
		{"existing binary sh", "sh", StatusHealthy},
		{"non-existent binary", "this-binary-definitely-does-not-exist-12345", StatusDegraded},
		{"empty binary name", "", StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := BinaryCheck(tt.binary)
			assert.Equal(t, tt.want, status.Status, status.Message)
			assert.Equal(t, "binary", status.Name)
			assert.NotEmpty(t, status.Message)
		})
	}
}

func TestFileCheck(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "tool.yaml")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name    string
		path    string
		want    string
		message string
	}{
		{"file", file, StatusHealthy, "file '" + file + "' exists"},
		{"directory", dir, StatusHealthy, "directory '" + dir + "' exists"},
		{"missing", filepath.Join(dir, "missing"), StatusUnhealthy, "does not exist"},
		{"empty", "", StatusUnhealthy, "path cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := FileCheck(tt.path)
			assert.Equal(t, tt.want, status.Status)
			assert.Contains(t, status.Message, tt.message)
		})
	}
}

func TestNetworkCheck(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	port := listener.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.True(t, NetworkCheck(ctx, "127.0.0.1", port).IsHealthy())
	assert.True(t, NetworkCheck(nil, "127.0.0.1", port).IsHealthy()) //nolint:staticcheck

	tests := []struct {
		name string
		host string
		port int
	}{
		{"empty host", "", 80},
		{"port zero", "127.0.0.1", 0},
		{"port too large", "127.0.0.1", 70000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, NetworkCheck(ctx, tt.host, tt.port).IsUnhealthy())
		})
	}
}

func TestRedisURLCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	status := RedisURLCheck(ctx, fmt.Sprintf("redis://%s", mr.Addr()))
	assert.True(t, status.IsHealthy(), status.Message)
	assert.Equal(t, "redis", status.Name)

	addr := mr.Addr()
	mr.Close()
	assert.True(t, RedisURLCheck(ctx, "redis://"+addr).IsUnhealthy())

	assert.True(t, RedisURLCheck(ctx, "http://localhost:6379").IsUnhealthy())
	assert.True(t, RedisURLCheck(ctx, "redis://localhost:port").IsUnhealthy())
}

func TestWorkersCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := queue.NewRedisClient(queue.RedisOptions{URL: fmt.Sprintf("redis://%s", mr.Addr())})
	require.NoError(t, err)
	defer client.Close()
	ctx := context.Background()

	assert.True(t, WorkersCheck(ctx, client, "echo").IsDegraded())

	require.NoError(t, client.IncrementWorkerCount(ctx, "echo"))
	status := WorkersCheck(ctx, client, "echo")
	assert.True(t, status.IsHealthy())
	assert.Equal(t, "1 worker(s) serve 'echo'", status.Message)

	require.NoError(t, mr.Set(queue.WorkersKey("broken"), "x"))
	assert.True(t, WorkersCheck(ctx, client, "broken").IsUnhealthy())
}

func TestToolChecks(t *testing.T) {
	d, err := tool.New(map[string]any{
		"@context":    tool.ContextMarker,
		"baseCommand": []any{"sh", "-c"},
		"inputs":      []any{},
		"outputs":     []any{},
	})
	require.NoError(t, err)

	checks := ToolChecks(d)
	require.Len(t, checks, 1)
	assert.True(t, checks[0].IsHealthy())
	assert.Contains(t, checks[0].Message, "'sh'")
}

func TestCombine(t *testing.T) {
	ok := healthy("a", "ok")
	slow := degraded("b", "slow", nil)
	down := unhealthy("c", "down", nil)

	tests := []struct {
		name    string
		checks  []Status
		want    string
		message string
	}{
		{"empty", nil, StatusHealthy, "no checks provided"},
		{"all healthy", []Status{ok, ok}, StatusHealthy, "all 2 check(s) passed"},
		{"degraded wins over healthy", []Status{ok, slow}, StatusDegraded, "1 check(s) degraded"},
		{"unhealthy wins", []Status{ok, slow, down, down}, StatusUnhealthy, "2 check(s) failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Combine(tt.checks...)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, tt.message, got.Message)
		})
	}

	got := Combine(ok, down, Status{Status: StatusUnhealthy})
	assert.Equal(t, []string{"down", "unnamed check"}, got.Details["failed_checks"])
}
