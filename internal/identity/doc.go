// Package identity derives a structured identity (title, year, media type,
// season and episodes) from a file path and its display name.
//
// The default FilenameParser works on tokens: bracketed noise and release
// tags are stripped, a delimited year is used as a title breakpoint, and
// SxxEyy, 1x02 and "Episode N" markers select the series type. When the
// file name alone yields no usable title the parent directory is tried,
// which covers files inside torrent packs named "ep01.mkv".
package identity
