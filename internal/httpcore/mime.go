package httpcore

import (
	"mime"
	"path/filepath"
	"strings"
)

// builtinMIMEOverrides covers extensions the system MIME registry on some
// platforms gets wrong or omits, mirroring the teacher's "built-in
// overrides" tier in spec.md §4.2's three-tier lookup.
var builtinMIMEOverrides = map[string]string{
	"webmanifest": "application/manifest+json",
	"md":          "text/markdown; charset=utf-8",
	"woff2":       "font/woff2",
}

// lookupContentType resolves a path's content type via caller overrides,
// then built-in overrides, then the system MIME registry, defaulting to
// application/octet-stream.
func lookupContentType(path string, callerOverrides map[string]string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if callerOverrides != nil {
		if ct, ok := callerOverrides[ext]; ok {
			return ct
		}
	}
	if ct, ok := builtinMIMEOverrides[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension("." + ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
