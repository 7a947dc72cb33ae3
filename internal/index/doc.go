// Package index maintains the two mappings of the local catalog over a
// pair of key-value namespaces:
//
//   - files: path -> FileRecord, written once per path
//   - meta:  canonical episode key -> InvertedEntry, the set of paths
//
// Records are never deleted and inverted membership is never retracted.
// Updates to one inverted key are serialized with a keyed Locker so that
// concurrent merges cannot lose members.
//
// Backends implement KV. The SQLite backend lives in internal/database,
// the Redis backend in internal/redisstore and MemKV serves tests.
package index
