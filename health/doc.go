// Package health provides the checks behind "toolbind doctor".
//
// Each check returns a Status that is healthy, degraded or unhealthy:
//
//   - BinaryCheck: the base command's binary is on PATH
//   - FileCheck: a file or directory exists
//   - NetworkCheck / RedisURLCheck: a TCP endpoint accepts connections
//   - WorkersCheck: at least one worker serves a tool
//   - Combine: aggregate checks, worst status wins
//
// Usage:
//
//	checks := append(health.ToolChecks(d), health.RedisURLCheck(ctx, url))
//	overall := health.Combine(checks...)
//	if overall.IsUnhealthy() {
//		log.Printf("doctor: %s", overall.Message)
//	}
package health
