// Package tugmath embeds the browser shell served by cmd/tugmath.
package tugmath

import "embed"

// WebFS holds the static assets under web/.
//
//go:embed web
var WebFS embed.FS
