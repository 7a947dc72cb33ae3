// Package resolver maps a parsed identity to a canonical catalog identifier
// (an IMDb style "tt" id).
//
// CatalogResolver queries a cinemeta compatible search endpoint:
//
//	GET {base}/catalog/{type}/top/search={name}.json
//
// Strict requests accept only a candidate whose normalized name equals the
// query and whose release year matches when a year is known. Non-strict
// requests pick the candidate with the highest Jaro-Winkler similarity
// above MinSimilarity. Results, including misses, are cached per request.
package resolver
