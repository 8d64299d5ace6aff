// Package worker serves a tool descriptor from a Redis work queue.
//
// Submitters push job orders onto toolbind:<name>:queue; each worker goroutine
// pops one, builds its argument list with the shared descriptor and publishes
// a queue.Result on results:<jobID>. Rejected job orders are published as
// results carrying the toolerr code, so the submitter always hears back.
//
//	doc, _ := tool.LoadDocument("echo.yaml")
//	d, _ := tool.New(doc)
//	err := worker.Run(ctx, d, worker.Options{
//		RedisURL:    "redis://localhost:6379",
//		Concurrency: 4,
//	})
//
// Run blocks until ctx is cancelled. While running it registers the tool's
// metadata, keeps the health key alive and tracks the active worker count.
// A WorkItem carrying trace and span ids makes the build span a child of the
// submitter's span.
package worker
