// Package handlers provides the HTTP surface of the local files addon.
//
// It includes handlers for:
//   - The addon protocol: JSON-RPC over POST, the stremioget GET form and
//     the manifest
//   - A REST form of stream lookups
//   - Index stats and manual rescans
//   - Health checks and version information
package handlers
