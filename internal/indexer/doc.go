// Package indexer schedules discovery passes that feed the ingestion
// pipeline.
//
// The Scheduler runs its first pass shortly after start and every later
// pass a fixed interval after the previous one finished. Each pass uses:
//   - the native discoverer (Spotlight, Windows Search) when the platform
//     has one, unrestricted while cold and limited to recent changes once
//     warm;
//   - a fallback walk over well-known user directories, bounded by a short
//     timeout, while the scheduler is cold or nothing has been found yet.
//
// The scheduler turns warm after the first native discovery pass
// completes. Platforms without a native discoverer stay cold and rely on
// the walk on every pass.
//
// ParallelWalker walks several roots concurrently over afero and stops as
// soon as its context ends, releasing all goroutines.
package indexer
