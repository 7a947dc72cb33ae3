// Package torrent expands .torrent containers into virtual file candidates.
//
// A Decoder turns raw container bytes into Meta (info-hash, trackers and the
// file table). The default MetainfoDecoder uses anacrolix/torrent/metainfo.
// An Expander then yields one Seed per file, each carrying a synthetic path
// (the container path joined with the in-torrent path) and the SwarmInfo
// needed to address the file in the swarm.
//
// Decoding is all-or-nothing: malformed bytes yield an apperr.ErrMalformed
// error and no seeds.
package torrent
