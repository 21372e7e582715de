package assets

import "embed"

// Files contains the stylesheet and script served alongside the search page.
//
//go:embed *.css *.js
var Files embed.FS
