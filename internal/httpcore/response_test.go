package httpcore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFileResponseFullFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	resp, err := NewFileResponse(path, FileResponseOptions{})
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, int64(11), resp.ContentLength)
	require.NotEmpty(t, resp.ETag)
	require.Contains(t, resp.ETag, ":")
}

func TestNewFileResponseByteRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i % 256)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	resp, err := NewFileResponse(path, FileResponseOptions{Range: ByteRange{Present: true, Offset: 0, Length: 100}})
	require.NoError(t, err)
	require.Equal(t, 206, resp.StatusCode)
	require.Equal(t, int64(100), resp.ContentLength)
	require.Equal(t, "bytes 0-99/1000", resp.ExtraHeaders["Content-Range"])
}

func TestNewFileResponseSuffixRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 200), 0o644))

	resp, err := NewFileResponse(path, FileResponseOptions{Range: ByteRange{Present: true, Offset: LengthUnknown, Length: 50}})
	require.NoError(t, err)
	require.Equal(t, 206, resp.StatusCode)
	require.Equal(t, "bytes 150-199/200", resp.ExtraHeaders["Content-Range"])
}

func TestNewFileResponseRejectsNonRegularFile(t *testing.T) {
	dir := t.TempDir()
	_, err := NewFileResponse(dir, FileResponseOptions{})
	require.Error(t, err)
}

func TestNewFileResponseUnsatisfiableRangeFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	_, err := NewFileResponse(path, FileResponseOptions{Range: ByteRange{Present: true, Offset: 10, Length: 5}})
	require.Error(t, err)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, 416, httpErr.Code)
}

func TestNewTemplateResponseSubstitutesSinglePass(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tpl.html")
	require.NoError(t, os.WriteFile(path, []byte("hello %name%, your code is %code%"), 0o644))

	resp, err := NewTemplateResponse(path, map[string]string{"name": "Ada", "code": "%name%"})
	require.NoError(t, err)
	data := readAll(t, resp)
	require.Equal(t, "hello Ada, your code is %name%", string(data))
}

func TestNewErrorResponseRendersTitleAndMessage(t *testing.T) {
	resp := NewErrorResponse(404, "not found", nil)
	data := readAll(t, resp)
	require.Contains(t, string(data), "HTTP Error 404")
	require.Contains(t, string(data), "not found")
}

func TestResponseSetGzipForcesChunked(t *testing.T) {
	resp := NewDataResponse([]byte("abc"), "text/plain")
	resp.SetGzip()
	require.Equal(t, LengthUnknown, resp.ContentLength)
	require.True(t, resp.UseGzip)
}

func readAll(t *testing.T, resp *Response) []byte {
	t.Helper()
	require.NoError(t, resp.Body.Open())
	defer resp.Body.Close()
	var out []byte
	for {
		chunk, err := resp.Body.Read()
		require.NoError(t, err)
		if len(chunk) == 0 {
			break
		}
		out = append(out, chunk...)
	}
	return out
}
