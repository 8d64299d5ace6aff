package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/zero-day-ai/toolbind/queue"
	"github.com/zero-day-ai/toolbind/tool"
)

const (
	StatusHealthy = "healthy"
	// StatusDegraded means argument lists can still be built but not run or served.
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Status is the outcome of one or more checks.
type Status struct {
	// Name identifies the check, e.g. "binary", "redis".
	Name string `json:"name,omitempty"`

	// Status is one of the Status* constants.
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func (s Status) IsHealthy() bool   { return s.Status == StatusHealthy }
func (s Status) IsDegraded() bool  { return s.Status == StatusDegraded }
func (s Status) IsUnhealthy() bool { return s.Status == StatusUnhealthy }

func healthy(name, message string) Status {
	return Status{Name: name, Status: StatusHealthy, Message: message}
}

func degraded(name, message string, details map[string]any) Status {
	return Status{Name: name, Status: StatusDegraded, Message: message, Details: details}
}

func unhealthy(name, message string, details map[string]any) Status {
	return Status{Name: name, Status: StatusUnhealthy, Message: message, Details: details}
}

// BinaryCheck looks name up on PATH. A missing binary is degraded.
func BinaryCheck(name string) Status {
	if name == "" {
		return unhealthy("binary", "binary name cannot be empty", nil)
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return degraded("binary",
			fmt.Sprintf("binary '%s' not found in PATH", name),
			map[string]any{
				"binary": name,
				"error":  err.Error(),
			},
		)
	}

	return healthy("binary", fmt.Sprintf("binary '%s' found at %s", name, path))
}

// FileCheck reports whether path exists.
func FileCheck(path string) Status {
	if path == "" {
		return unhealthy("file", "path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return unhealthy("file",
				fmt.Sprintf("path '%s' does not exist", path),
				map[string]any{"path": path},
			)
		}
		return unhealthy("file",
			fmt.Sprintf("failed to stat path '%s'", path),
			map[string]any{
				"path":  path,
				"error": err.Error(),
			},
		)
	}

	fileType := "file"
	if info.IsDir() {
		fileType = "directory"
	}
	return healthy("file", fmt.Sprintf("%s '%s' exists", fileType, path))
}

// NetworkCheck opens and closes a TCP connection to host:port.
// A nil ctx gets a five second timeout.
func NetworkCheck(ctx context.Context, host string, port int) Status {
	if host == "" {
		return unhealthy("network", "host cannot be empty", nil)
	}
	if port <= 0 || port > 65535 {
		return unhealthy("network",
			fmt.Sprintf("invalid port number: %d", port),
			map[string]any{"port": port},
		)
	}

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return unhealthy("network",
			fmt.Sprintf("failed to connect to %s", address),
			map[string]any{
				"host":  host,
				"port":  port,
				"error": err.Error(),
			},
		)
	}
	conn.Close()

	return healthy("network", fmt.Sprintf("successfully connected to %s", address))
}

// RedisURLCheck dials the host and port of a redis:// or rediss:// URL.
func RedisURLCheck(ctx context.Context, rawURL string) Status {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
		return unhealthy("redis", fmt.Sprintf("invalid Redis URL %q", rawURL), nil)
	}
	port := 6379
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return unhealthy("redis", fmt.Sprintf("invalid Redis port %q", p), nil)
		}
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}

	s := NetworkCheck(ctx, host, port)
	s.Name = "redis"
	return s
}

// WorkersCheck reports whether any worker serves toolName. No workers is
// degraded: submitted job orders wait in the queue.
func WorkersCheck(ctx context.Context, client queue.Client, toolName string) Status {
	n, err := client.GetWorkerCount(ctx, toolName)
	if err != nil {
		return unhealthy("workers",
			fmt.Sprintf("failed to read worker count for '%s'", toolName),
			map[string]any{"tool": toolName, "error": err.Error()},
		)
	}
	if n <= 0 {
		return degraded("workers",
			fmt.Sprintf("no workers serve '%s'", toolName),
			map[string]any{"tool": toolName, "workers": n},
		)
	}
	return healthy("workers", fmt.Sprintf("%d worker(s) serve '%s'", n, toolName))
}

// ToolChecks checks what a tool document needs at run time: the base
// command's binary.
func ToolChecks(d *tool.Descriptor) []Status {
	base := d.BaseCommand()
	if len(base) == 0 {
		return []Status{degraded("binary", "tool has no base command", nil)}
	}
	return []Status{BinaryCheck(base[0])}
}

// Combine folds checks into one Status; the worst status wins. Details
// count each status and name the checks that failed or degraded.
func Combine(checks ...Status) Status {
	if len(checks) == 0 {
		return healthy("", "no checks provided")
	}

	byStatus := map[string][]string{}
	for _, c := range checks {
		label := c.Message
		if label == "" {
			label = "unnamed check"
		}
		byStatus[c.Status] = append(byStatus[c.Status], label)
	}
	bad, weak := byStatus[StatusUnhealthy], byStatus[StatusDegraded]
	details := map[string]any{
		"total":     len(checks),
		"unhealthy": len(bad),
		"degraded":  len(weak),
		"healthy":   len(byStatus[StatusHealthy]),
	}

	switch {
	case len(bad) > 0:
		details["failed_checks"] = bad
		return unhealthy("", fmt.Sprintf("%d check(s) failed", len(bad)), details)
	case len(weak) > 0:
		details["degraded_checks"] = weak
		return degraded("", fmt.Sprintf("%d check(s) degraded", len(weak)), details)
	}
	return healthy("", fmt.Sprintf("all %d check(s) passed", len(checks)))
}
