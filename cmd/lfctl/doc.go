// Command lfctl is the operator CLI for the local files addon.
//
// Server commands talk to a running instance over HTTP:
//
//	lfctl stats              index, scanner and pipeline counters
//	lfctl rescan             start a scan pass now
//
// Database commands open the sqlite index directly and should be run while
// the server is stopped, or at least idle:
//
//	lfctl db status          schema version and record counts
//	lfctl db vacuum          compact the database file
//	lfctl db lookup tt0133093 [season episode]
//
// The server URL comes from --server or LOCALFILES_URL (default
// http://localhost:3033). The database path comes from --db or DATA_DIR.
// Output is a table on a terminal and JSON otherwise; --json forces JSON.
package main
