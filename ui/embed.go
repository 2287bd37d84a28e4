// Package ui provides the dashboard's embedded static assets.
package ui

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// assets holds the browser-side files served under /assets/.
//
//go:embed assets/*
var assets embed.FS

var contentTypes = map[string]string{
	".js":  "application/javascript; charset=utf-8",
	".css": "text/css; charset=utf-8",
	".svg": "image/svg+xml",
}

// Handler serves the embedded assets. Mount it with the /assets/ prefix
// stripped. Directory listings and missing files are 404s.
func Handler() http.Handler {
	fsys, err := fs.Sub(assets, "assets")
	if err != nil {
		panic("failed to get assets subdirectory: " + err.Error())
	}

	fileServer := http.FileServer(http.FS(fsys))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" || name == "." {
			http.NotFound(w, r)
			return
		}
		if info, err := fs.Stat(fsys, name); err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		if ct, ok := contentTypes[path.Ext(name)]; ok {
			w.Header().Set("Content-Type", ct)
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		fileServer.ServeHTTP(w, r)
	})
}
