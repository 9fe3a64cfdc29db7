// Package assets provides the stylesheets, scripts and page template embedded
// into every rendered document.
package assets

import (
	_ "embed"
)

// DocumentTemplate is the html/template source of a standalone document
//
//go:embed document.html.tmpl
var DocumentTemplate string

// ScreenCSS styles documents on screen and in print
//
//go:embed screen.css
var ScreenCSS string

// PaginateJS lays out #source blocks into pages once the document has loaded
//
//go:embed paginate.js
var PaginateJS string
