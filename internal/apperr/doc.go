// Package apperr classifies failures into the four kinds the index and
// query paths act on:
//
//   - Transient: an external collaborator (resolver, discovery, catalog)
//     hiccuped. Logged and treated as "no result".
//   - Malformed: input that cannot be processed (undecodable torrent
//     bytes, unstattable path, bad request body). The candidate is dropped.
//   - NotFound: a store miss. Always a valid outcome, never logged as an error.
//   - Internal: an unexpected store failure. Surfaced to query callers as an
//     opaque internal failure.
//
// Errors carry the operation that produced them and wrap the cause, so
// errors.Is and errors.As work against both the kind sentinels and the
// underlying error.
package apperr
