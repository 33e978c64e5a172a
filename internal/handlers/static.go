package handlers

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/embedwebd/httpd/internal/httpcore"
)

// ServeBytes builds a ProcessFunc that always returns the given blob.
func ServeBytes(data []byte, contentType string) ProcessFunc {
	return func(req *httpcore.Request) (*httpcore.Response, error) {
		return httpcore.NewDataResponse(data, contentType), nil
	}
}

// ServeFile builds a ProcessFunc that serves a single file from disk,
// honoring the request's byte range and an optional attachment
// disposition (spec.md §4.7).
func ServeFile(path string, attachment bool) ProcessFunc {
	return func(req *httpcore.Request) (*httpcore.Response, error) {
		return httpcore.NewFileResponse(path, httpcore.FileResponseOptions{
			Range:      req.Range,
			Attachment: attachment,
		})
	}
}

// ServeDirectory builds a ProcessFunc serving files under root, joined with
// the request's path attribute captured by the caller's matcher (typically
// a regex matcher capturing the remainder of the path). If indexFilename
// is set and present in a requested directory, it is served instead of the
// generated index. Otherwise directories get a generated HTML index in
// deterministic (sorted) collation order.
func ServeDirectory(root, indexFilename string) ProcessFunc {
	return func(req *httpcore.Request) (*httpcore.Response, error) {
		rel := req.Path
		if captures, ok := req.Attributes[httpcore.AttrCaptures].(map[string]any); ok {
			if v, ok := captures["1"]; ok {
				if s, ok := v.(string); ok {
					rel = s
				}
			}
		}
		full := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
		if !strings.HasPrefix(full, filepath.Clean(root)) {
			return nil, httpcore.NewHTTPError(403, "path escapes served root", nil)
		}
		fi, err := os.Stat(full)
		if err != nil {
			return nil, httpcore.NewHTTPError(404, "not found", err)
		}
		if !fi.IsDir() {
			return httpcore.NewFileResponse(full, httpcore.FileResponseOptions{Range: req.Range})
		}
		if indexFilename != "" {
			if ifi, err := os.Stat(filepath.Join(full, indexFilename)); err == nil && !ifi.IsDir() {
				return httpcore.NewFileResponse(filepath.Join(full, indexFilename), httpcore.FileResponseOptions{})
			}
		}
		return directoryIndex(full, req.Path)
	}
}

func directoryIndex(full, reqPath string) (*httpcore.Response, error) {
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, httpcore.NewHTTPError(500, "failed to list directory", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html><html><head><title>Index of %s</title></head><body><h1>Index of %s</h1><ul>", reqPath, reqPath)
	if reqPath != "/" {
		b.WriteString(`<li><a href="../">../</a></li>`)
	}
	for _, name := range names {
		href := name
		if fi, err := os.Stat(filepath.Join(full, name)); err == nil && fi.IsDir() {
			href += "/"
		}
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, href, href)
	}
	b.WriteString("</ul></body></html>")
	return httpcore.NewHTMLResponse(b.String()), nil
}
