// Package static embeds the dashboard page and its assets.
package static

import (
	"embed"
	"io/fs"
)

//go:embed index.html css js
var assets embed.FS

// GetFS returns index.html, css/dashboard.css and js/dashboard.js.
func GetFS() fs.FS {
	return assets
}
