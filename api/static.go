package api

import (
	"net/http"
	"os"
	"path/filepath"
)

// staticHandler serves the client bundle from dir, falling back to
// index.html so client-side routes resolve.
func staticHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.NotFound(w, r)
			return
		}

		path := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			fs.ServeHTTP(w, r)
			return
		}

		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err != nil {
			http.Error(w, "index file not found", http.StatusNotFound)
			return
		}
		http.ServeFile(w, r, index)
	})
}
