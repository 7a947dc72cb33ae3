// Package database provides the SQLite backend of the local files index.
//
// Each index namespace is a two column table (key, value) exposed as a
// Table that implements index.KV:
//   - files: path -> JSON FileRecord
//   - meta: canonical episode key -> JSON path set
//
// A metadata table keeps scheduler state such as the last scan pass.
// The schema is versioned with golang-migrate from the embedded SQL files in
// the migrations package. The database runs in WAL mode with a busy timeout
// so concurrent ingestion workers can read and write safely.
package database
