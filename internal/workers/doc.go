/*
Package workers sizes worker pools from the CPUs actually available to the
process.

runtime.NumCPU reports host CPUs, while GOMAXPROCS follows container CPU
limits, so all helpers derive their counts from GOMAXPROCS:

	workers.ForCPU(8)   // 1 per CPU, at most 8
	workers.ForIO(16)   // 2 per CPU, at most 16
	workers.ForMixed(12) // 1.5 per CPU, at most 12

Ingestion is I/O bound (stat calls, catalog lookups, store writes), so the
ingest pipeline sizes its pool with ForIO. Operators can pin the count with
the INGEST_WORKERS environment variable, or through configuration with
Resolve:

	n := workers.Resolve(cfg.IngestWorkers, 32)

All functions are safe for concurrent use.
*/
package workers
