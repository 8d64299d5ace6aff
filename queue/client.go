package queue

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Jobs moves work items from submitters to workers.
type Jobs interface {
	// Push appends item to the head of queue (LPUSH).
	Push(ctx context.Context, queue string, item WorkItem) error

	// Pop takes the oldest item from queue (BRPOP). It waits at most
	// PopTimeout and returns a nil item when nothing arrived.
	Pop(ctx context.Context, queue string) (*WorkItem, error)
}

// Results carries build results back to the submitter.
type Results interface {
	Publish(ctx context.Context, channel string, result Result) error

	// Subscribe delivers results published on channel until ctx is done.
	// The subscription is active when Subscribe returns.
	Subscribe(ctx context.Context, channel string) (<-chan Result, error)
}

// Registry tracks which tools are served and by how many workers.
type Registry interface {
	RegisterTool(ctx context.Context, meta ToolMeta) error
	ListTools(ctx context.Context) ([]ToolMeta, error)

	// Heartbeat marks the tool alive for HeartbeatTTL.
	Heartbeat(ctx context.Context, toolName string) error

	GetWorkerCount(ctx context.Context, toolName string) (int, error)
	IncrementWorkerCount(ctx context.Context, toolName string) error
	DecrementWorkerCount(ctx context.Context, toolName string) error
}

// Client is everything a worker or submitter needs from the backend.
type Client interface {
	Jobs
	Results
	Registry
	Close() error
}

// RedisOptions configures the Redis connection. Zero values get defaults.
type RedisOptions struct {
	// URL is a redis:// or rediss:// URL. Default "redis://localhost:6379".
	URL string

	TLS *tls.Config

	// ConnectTimeout also bounds the initial PING. Default 5s.
	ConnectTimeout time.Duration

	// ReadTimeout must exceed PopTimeout. Default 30s.
	ReadTimeout time.Duration

	// Default 5s.
	WriteTimeout time.Duration
}

func (o RedisOptions) withDefaults() RedisOptions {
	if o.URL == "" {
		o.URL = "redis://localhost:6379"
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 5 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	return o
}

// RedisClient is the go-redis implementation of Client.
type RedisClient struct {
	rdb *redis.Client
}

var _ Client = (*RedisClient)(nil)

// NewRedisClient connects and pings the server before returning.
func NewRedisClient(opts RedisOptions) (*RedisClient, error) {
	opts = opts.withDefaults()

	ro, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if opts.TLS != nil {
		ro.TLSConfig = opts.TLS
	}
	ro.DialTimeout = opts.ConnectTimeout
	ro.ReadTimeout = opts.ReadTimeout
	ro.WriteTimeout = opts.WriteTimeout

	rdb := redis.NewClient(ro)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", ro.Addr, err)
	}

	return &RedisClient{rdb: rdb}, nil
}

// Push adds item to queue; Pop returns items in push order.
func (c *RedisClient) Push(ctx context.Context, queue string, item WorkItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode work item %s/%d: %w", item.JobID, item.Index, err)
	}
	if err := c.rdb.LPush(ctx, queue, payload).Err(); err != nil {
		return fmt.Errorf("push to %s: %w", queue, err)
	}
	return nil
}

// Pop removes the oldest item of queue, waiting at most PopTimeout.
func (c *RedisClient) Pop(ctx context.Context, queue string) (*WorkItem, error) {
	popped, err := c.rdb.BRPop(ctx, PopTimeout, queue).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("pop from %s: %w", queue, err)
	}

	// [key, value]
	if len(popped) != 2 {
		return nil, fmt.Errorf("pop from %s: BRPOP returned %d elements", queue, len(popped))
	}

	item := new(WorkItem)
	if err := json.Unmarshal([]byte(popped[1]), item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal work item from %s: %w", queue, err)
	}
	return item, nil
}

// Publish sends result to channel.
func (c *RedisClient) Publish(ctx context.Context, channel string, result Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result %s/%d: %w", result.JobID, result.Index, err)
	}
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of results published on channel, closed when ctx ends.
func (c *RedisClient) Subscribe(ctx context.Context, channel string) (<-chan Result, error) {
	sub := c.rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", channel, err)
	}

	out := make(chan Result)
	go forwardResults(ctx, sub, out)
	return out, nil
}

// forwardResults decodes messages into out until ctx ends or the
// subscription closes. Payloads that are not results are dropped.
func forwardResults(ctx context.Context, sub *redis.PubSub, out chan<- Result) {
	defer close(out)
	defer sub.Close()

	msgs := sub.Channel()
	for {
		var msg *redis.Message
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			msg = m
		}

		var r Result
		if json.Unmarshal([]byte(msg.Payload), &r) != nil {
			continue
		}
		select {
		case out <- r:
		case <-ctx.Done():
			return
		}
	}
}

// metaHash is the flat form of ToolMeta stored with HSET. Slices are JSON.
type metaHash struct {
	Name        string `redis:"name"`
	Description string `redis:"description"`
	BaseCommand string `redis:"base_command"`
	Inputs      string `redis:"inputs"`
	WorkerCount int    `redis:"worker_count"`
}

func toHash(meta ToolMeta) (metaHash, error) {
	base, err := json.Marshal(meta.BaseCommand)
	if err != nil {
		return metaHash{}, err
	}
	inputs, err := json.Marshal(meta.Inputs)
	if err != nil {
		return metaHash{}, err
	}
	return metaHash{
		Name:        meta.Name,
		Description: meta.Description,
		BaseCommand: string(base),
		Inputs:      string(inputs),
		WorkerCount: meta.WorkerCount,
	}, nil
}

func (h metaHash) toolMeta() (ToolMeta, error) {
	meta := ToolMeta{Name: h.Name, Description: h.Description, WorkerCount: h.WorkerCount}
	if err := json.Unmarshal([]byte(h.BaseCommand), &meta.BaseCommand); err != nil {
		return ToolMeta{}, fmt.Errorf("base_command of tool %s: %w", h.Name, err)
	}
	if err := json.Unmarshal([]byte(h.Inputs), &meta.Inputs); err != nil {
		return ToolMeta{}, fmt.Errorf("inputs of tool %s: %w", h.Name, err)
	}
	return meta, nil
}

// RegisterTool stores meta and adds the tool to AvailableKey in one
// transaction.
func (c *RedisClient) RegisterTool(ctx context.Context, meta ToolMeta) error {
	h, err := toHash(meta)
	if err != nil {
		return fmt.Errorf("encode metadata of tool %s: %w", meta.Name, err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, MetaKey(meta.Name), h)
		p.SAdd(ctx, AvailableKey, meta.Name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("register tool %s: %w", meta.Name, err)
	}
	return nil
}

// ListTools returns registered tools sorted by name. Tools whose metadata
// hash is missing or unreadable are left out.
func (c *RedisClient) ListTools(ctx context.Context) ([]ToolMeta, error) {
	names, err := c.rdb.SMembers(ctx, AvailableKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	sort.Strings(names)

	tools := make([]ToolMeta, 0, len(names))
	for _, name := range names {
		cmd := c.rdb.HGetAll(ctx, MetaKey(name))
		if fields, err := cmd.Result(); err != nil || len(fields) == 0 {
			continue
		}
		var h metaHash
		if err := cmd.Scan(&h); err != nil {
			continue
		}
		meta, err := h.toolMeta()
		if err != nil {
			continue
		}
		tools = append(tools, meta)
	}
	return tools, nil
}

// Heartbeat sets HealthKey(toolName) with a HeartbeatTTL expiry.
func (c *RedisClient) Heartbeat(ctx context.Context, toolName string) error {
	if err := c.rdb.Set(ctx, HealthKey(toolName), "ok", HeartbeatTTL).Err(); err != nil {
		return fmt.Errorf("heartbeat for %s: %w", toolName, err)
	}
	return nil
}

// GetWorkerCount is zero for a tool no worker has ever served.
func (c *RedisClient) GetWorkerCount(ctx context.Context, toolName string) (int, error) {
	n, err := c.rdb.Get(ctx, WorkersKey(toolName)).Int()
	var numErr *strconv.NumError
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case errors.As(err, &numErr):
		return 0, fmt.Errorf("invalid worker count value for %s: %w", toolName, err)
	case err != nil:
		return 0, fmt.Errorf("read worker count of %s: %w", toolName, err)
	}
	return n, nil
}

// IncrementWorkerCount adds one to WorkersKey(toolName).
func (c *RedisClient) IncrementWorkerCount(ctx context.Context, toolName string) error {
	return c.addWorkers(ctx, toolName, 1)
}

// DecrementWorkerCount subtracts one from WorkersKey(toolName).
func (c *RedisClient) DecrementWorkerCount(ctx context.Context, toolName string) error {
	return c.addWorkers(ctx, toolName, -1)
}

func (c *RedisClient) addWorkers(ctx context.Context, toolName string, delta int64) error {
	if err := c.rdb.IncrBy(ctx, WorkersKey(toolName), delta).Err(); err != nil {
		return fmt.Errorf("update worker count of %s by %d: %w", toolName, delta, err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisClient) Close() error {
	return c.rdb.Close()
}

const (
	// PopTimeout bounds a single blocking Pop so callers can observe cancellation.
	PopTimeout = time.Second

	// HeartbeatTTL is how long a tool stays healthy after its last heartbeat.
	HeartbeatTTL = 30 * time.Second

	// AvailableKey is the set of registered tool names.
	AvailableKey = "toolbind:tools"
)

// QueueKey is the list of pending work items of a tool.
func QueueKey(toolName string) string { return key("toolbind", toolName, "queue") }

// MetaKey is the ToolMeta hash of a tool.
func MetaKey(toolName string) string { return key("toolbind", toolName, "meta") }

// HealthKey is the heartbeat key of a tool.
func HealthKey(toolName string) string { return key("toolbind", toolName, "health") }

// WorkersKey is the live worker counter of a tool.
func WorkersKey(toolName string) string { return key("toolbind", toolName, "workers") }

// ResultsChannel is the pub/sub channel results of a job are published on.
func ResultsChannel(jobID string) string { return key("results", jobID) }

func key(parts ...string) string {
	return strings.Join(parts, ":")
}
