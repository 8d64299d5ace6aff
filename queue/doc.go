// Package queue provides Redis-based work queue primitives for distributed
// argument-list builds.
//
// Submitters push job orders onto a tool's queue, workers holding the tool's
// descriptor pop and build them, and results flow back through Redis pub/sub.
//
// # Core Components
//
// Client combines three narrower interfaces: Jobs (Push/Pop), Results
// (Publish/Subscribe) and Registry (tool registration, heartbeats and
// worker counts). RedisClient implements all of them.
//
// WorkItem: A job order serialized as JSON, addressed to a tool.
//
// Result: The built argument list of a WorkItem, or the error code and message
// of a failed build.
//
// ToolMeta: Metadata about a served tool for discovery.
//
// # Redis Key Schema
//
//   - toolbind:<name>:queue - List for work items (LPUSH/BRPOP)
//   - toolbind:<name>:meta - Hash for tool metadata
//   - toolbind:<name>:health - String with HeartbeatTTL for heartbeat
//   - toolbind:<name>:workers - Integer counter for active workers
//   - toolbind:tools - Set of all registered tool names
//   - results:<jobID> - Pub/Sub channel for job results
//
// # Usage
//
//	client, err := queue.NewRedisClient(queue.RedisOptions{
//		URL: "redis://localhost:6379",
//	})
//
//	results, err := client.Subscribe(ctx, queue.ResultsChannel(jobID))
//	err = client.Push(ctx, queue.QueueKey("echo"), queue.WorkItem{
//		JobID:        jobID,
//		Total:        1,
//		Tool:         "echo",
//		JobOrderJSON: `{"message":"hi"}`,
//		SubmittedAt:  time.Now().UnixMilli(),
//	})
//	for result := range results {
//		fmt.Println(result.Argv)
//	}
//
// RedisClient is safe for concurrent use by multiple goroutines.
package queue
