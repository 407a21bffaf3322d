// Package web holds the templates and static files of the portal, compiled into the binary.
package web

import "embed"

// Templates contains layouts/, pages/ and partials/
//
//go:embed templates
var Templates embed.FS

// Static is served under /static/
//
//go:embed static
var Static embed.FS
