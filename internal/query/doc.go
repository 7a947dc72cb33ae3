// Package query answers addon lookups against the index: stream.find turns
// a canonical episode key into playable descriptors and meta.find forwards
// a catalog query restricted to the ids present locally.
package query
