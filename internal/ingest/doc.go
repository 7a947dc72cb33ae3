// Package ingest turns candidate paths into index records.
//
// Ingester.Ingest runs one candidate through every step: filter, torrent
// expansion, dedupe against the index, identity parsing, strict canonical
// id resolution and the final record plus inverted index writes. A path
// that already has a record, tombstoned or not, is never processed again.
//
// Pipeline runs the same steps as channel connected stages:
//
//	Submit -> queue -> filter -> expand -> ingest workers
//
// The ingest stage is a bounded worker pool. Errors are logged and counted
// per outcome; they never stop the pipeline.
package ingest
