// Package readme embeds the project README for the "readme" command.
package readme

import _ "embed"

// Content is the README text.
//
//go:embed README.md
var Content string
