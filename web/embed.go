// Package web embeds the HTML templates and static assets served by the
// HTTP server, so the binary runs without files on disk.
package web

import "embed"

//go:embed templates
var TemplatesFS embed.FS

//go:embed static
var StaticFS embed.FS
