//go:build ui

package ui

import (
	"embed"
	"io/fs"
)

//go:embed all:dist
var distFS embed.FS

// DistFS returns the embedded admin console filesystem rooted at dist/.
// Returns nil error on success.
func DistFS() (fs.FS, error) {
	return fs.Sub(distFS, "dist")
}
