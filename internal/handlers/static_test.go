package handlers

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/embedwebd/httpd/internal/httpcore"
	"github.com/stretchr/testify/require"
)

func newGetRequest(t *testing.T, rawPath string) *httpcore.Request {
	t.Helper()
	u, err := url.Parse("http://example.com" + rawPath)
	require.NoError(t, err)
	return httpcore.NewRequest(httpcore.KindBase, "GET", u, map[string]string{})
}

func TestServeBytesReturnsFixedPayload(t *testing.T) {
	process := ServeBytes([]byte("hello"), "text/plain")
	resp, err := process(newGetRequest(t, "/anything"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(readAllBody(t, resp)))
}

func TestServeFileServesWholeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("file body"), 0o644))

	process := ServeFile(path, false)
	resp, err := process(newGetRequest(t, "/a.txt"))
	require.NoError(t, err)
	require.Equal(t, "file body", string(readAllBody(t, resp)))
}

func TestServeDirectoryServesFileUnderRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("note"), 0o644))

	process := ServeDirectory(dir, "")
	req := newGetRequest(t, "/note.txt")
	req.Attributes[httpcore.AttrCaptures] = map[string]any{"1": "note.txt"}

	resp, err := process(req)
	require.NoError(t, err)
	require.Equal(t, "note", string(readAllBody(t, resp)))
}

func TestServeDirectoryGeneratesIndexListing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	process := ServeDirectory(dir, "")
	req := newGetRequest(t, "/")
	req.Attributes[httpcore.AttrCaptures] = map[string]any{"1": ""}

	resp, err := process(req)
	require.NoError(t, err)
	body := string(readAllBody(t, resp))
	require.Contains(t, body, "b.txt")
	require.Contains(t, body, "sub/")
}

func TestServeDirectoryRejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	process := ServeDirectory(dir, "")
	req := newGetRequest(t, "/escape")
	req.Attributes[httpcore.AttrCaptures] = map[string]any{"1": "../../../etc/passwd"}

	_, err := process(req)
	require.Error(t, err)
}

func TestServeDirectoryPrefersIndexFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>home</h1>"), 0o644))

	process := ServeDirectory(dir, "index.html")
	req := newGetRequest(t, "/")
	req.Attributes[httpcore.AttrCaptures] = map[string]any{"1": ""}

	resp, err := process(req)
	require.NoError(t, err)
	require.Equal(t, "<h1>home</h1>", string(readAllBody(t, resp)))
}
