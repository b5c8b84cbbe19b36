// Callisto is a rate-limiting and concurrent-dispatch core for outbound
// AI generation calls.
//
// It provides:
//   - Named rate limiters (token bucket, fixed window, sliding window, leaky bucket)
//   - A dispatcher with retry, exponential backoff, and failure classification
//   - Concurrent batch dispatch under a bounded concurrency budget
//   - Dispatch outcome history (in-memory or SQLite)
//
// Usage:
//
//	# Validate a configuration file
//	callisto validate --config config.yaml
//
//	# List configured limiters
//	callisto limiters --config config.yaml
//
//	# Run a synthetic load through the configured limiters
//	callisto bench --config config.yaml --tasks 100 --concurrency 8
//
//	# Query recorded dispatch outcomes
//	callisto history --config config.yaml --failures --limit 50
//
//	# Show version information
//	callisto version
package main

func main() {
	Execute()
}
