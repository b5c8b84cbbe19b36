// Package history records dispatch outcomes for later inspection.
//
// # Overview
//
// The Recorder accepts one record per completed dispatch and writes it to
// a Backend asynchronously: recording never blocks a dispatch, and records
// are dropped (and counted) rather than queued unboundedly when the buffer
// is full.
//
// Two backends are provided:
//
//   - MemoryBackend: bounded in-process ring, for tests and short-lived
//     processes
//   - SQLiteBackend: durable file-backed store with WAL mode
//
// History covers dispatch outcomes only. Limiter counters are process
// memory and reset on restart; they are deliberately never persisted.
package history
