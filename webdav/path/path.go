// Package path implements the URL/filesystem path normalization rule from
// spec.md §6: split on "/", drop "." segments, pop the preceding segment on
// "..", collapse empty segments, preserve a leading "/", drop a trailing
// "/". Kept as its own unit, mirroring the teacher pack's
// google-go-webdav/path package.
package path

import "strings"

// Normalize applies spec.md §6's path-normalization rule. It is idempotent:
// Normalize(Normalize(p)) == Normalize(p).
func Normalize(p string) string {
	leadingSlash := strings.HasPrefix(p, "/")
	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	joined := strings.Join(out, "/")
	if leadingSlash {
		return "/" + joined
	}
	return joined
}

// InTree reports whether p is subtree or lies beneath it.
func InTree(p, subtree string) bool {
	if p == subtree {
		return true
	}
	if !strings.HasSuffix(subtree, "/") {
		subtree += "/"
	}
	return strings.HasPrefix(p, subtree)
}
