// Package upload implements the browser-based file-uploader app from
// spec.md §1: "static assets plus CRUD on a directory — trivial once the
// core exists". It is deliberately out of the core's scope and built
// entirely from internal/handlers' Handler SDK and internal/httpcore's
// Response constructors, reusing the same webdav.FileSystem interface the
// WebDAV handler uses so both surfaces see one consistent upload
// directory.
package upload

import (
	"context"
	"embed"
	"io"
	"os"
	"sort"
	"time"

	"github.com/embedwebd/httpd/internal/handlers"
	"github.com/embedwebd/httpd/internal/httpcore"
	"github.com/embedwebd/httpd/webdav"
)

//go:embed index.html
var assets embed.FS

// FileEntry is one row of the GET /files JSON listing.
type FileEntry struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	IsDir   bool      `json:"isDir"`
	ModTime time.Time `json:"modTime"`
}

// Handler serves the uploader page, accepts uploads and lists the
// directory, all against a single webdav.FileSystem root.
type Handler struct {
	FS         webdav.FileSystem
	FormField  string // multipart control name carrying the uploaded file; defaults to "file"
}

// NewHandler builds an upload Handler rooted at fs.
func NewHandler(fs webdav.FileSystem) *Handler {
	return &Handler{FS: fs, FormField: "file"}
}

// Register installs the three routes into reg.
func (h *Handler) Register(reg *handlers.Registry) {
	reg.Register(handlers.Entry{Match: handlers.PathMatcher("GET", "/"), Kind: httpcore.KindBase, Process: h.index})
	reg.Register(handlers.Entry{Match: handlers.PathMatcher("POST", "/upload"), Kind: httpcore.KindMultipartForm, Process: h.upload})
	reg.Register(handlers.Entry{Match: handlers.PathMatcher("GET", "/files"), Kind: httpcore.KindBase, Process: h.list})
}

func (h *Handler) index(req *httpcore.Request) (*httpcore.Response, error) {
	data, err := assets.ReadFile("index.html")
	if err != nil {
		return nil, httpcore.NewHTTPError(500, "embedded uploader asset missing", err)
	}
	return httpcore.NewDataResponse(data, "text/html; charset=utf-8"), nil
}

func (h *Handler) upload(req *httpcore.Request) (*httpcore.Response, error) {
	field := h.FormField
	if field == "" {
		field = "file"
	}
	part, ok := req.FirstFileForControlName(field)
	if !ok {
		return nil, httpcore.NewHTTPError(400, "missing uploaded file part", nil)
	}
	f, err := os.Open(part.TempPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := "/" + part.Filename
	_, created, err := h.FS.Create(context.Background(), name, io.NopCloser(f), &webdav.CreateOptions{})
	if err != nil {
		return nil, err
	}
	resp := httpcore.NewResponse()
	if created {
		resp.StatusCode = 201
	} else {
		resp.StatusCode = 204
	}
	return resp, nil
}

func (h *Handler) list(req *httpcore.Request) (*httpcore.Response, error) {
	children, err := h.FS.ReadDir(context.Background(), "/", false)
	if err != nil {
		return nil, err
	}
	entries := make([]FileEntry, 0, len(children))
	for _, c := range children {
		entries = append(entries, FileEntry{Name: c.Path, Size: c.Size, IsDir: c.IsDir, ModTime: c.ModTime})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return httpcore.NewJSONResponse(entries)
}
