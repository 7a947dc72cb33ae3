// Package mediatypes provides the candidate filter and shared media type
// definitions for the local files index.
//
// This package exists as a dependency-free foundation that can be imported by other
// packages without creating import cycles. It contains primitive types, constants,
// and pure utility functions with no external dependencies beyond the standard library.
//
// # Candidate Filter
//
// A discovered path is worth processing when its extension is one of
// .mkv, .avi, .mp4, .mov or .torrent (case-insensitive) and it does not
// contain the streaming cache directory name:
//
//	f := mediatypes.NewFilter("stremio-cache")
//	if f.IsInteresting(path) {
//	    // hand to the ingestion pipeline
//	}
//
// The filter is pure: no I/O and no side effects.
//
// # Media Types
//
// MediaType is the catalog classification produced by identity parsing.
// Only movies and series are catalogable:
//
//	mediatypes.MediaTypeMovie.Catalogable()  // true
//	mediatypes.MediaTypeExtra.Catalogable()  // false
package mediatypes
