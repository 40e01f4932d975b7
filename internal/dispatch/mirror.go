package dispatch

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
)

// Mirror is a local copy of framework resources.
type Mirror interface {
	http.Handler

	// Exists reports whether a regular file is present at the escaped URL
	// path p.
	Exists(ctx context.Context, p string) bool
}

// DirMirror serves a mirror from a directory on disk. Requests are served
// by their URL path, which the caller rewrites to the mirror path first.
type DirMirror struct {
	root  string
	files http.Handler
}

// NewDirMirror returns a mirror rooted at dir. It fails if dir is not a
// readable directory.
func NewDirMirror(dir string) (*DirMirror, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "mirror", Path: dir, Err: os.ErrInvalid}
	}
	return &DirMirror{root: dir, files: http.FileServer(http.Dir(dir))}, nil
}

// Root returns the mirror directory.
func (m *DirMirror) Root() string { return m.root }

// Exists implements Mirror.
func (m *DirMirror) Exists(ctx context.Context, p string) bool {
	if ctx.Err() != nil {
		return false
	}
	name, err := url.PathUnescape(p)
	if err != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(m.root, filepath.FromSlash(path.Clean("/"+name))))
	return err == nil && info.Mode().IsRegular()
}

// ServeHTTP implements http.Handler.
func (m *DirMirror) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.files.ServeHTTP(w, r)
}
