// Package memory sizes the Go soft memory limit from the container limit
// and gates ingestion when the heap nears it.
//
// [ConfigureFromEnv] reads GOMEMLIMIT, MEMORY_LIMIT and MEMORY_RATIO and
// should run before the store is opened. A [Monitor] samples the heap and
// blocks [Monitor.Wait] callers while usage is above the critical mark, so
// a large scan cannot grow the ingest backlog without bound.
package memory
