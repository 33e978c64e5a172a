package httpcore

import (
	"bytes"
	"mime/multipart"
	"net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildMultipartBody(t *testing.T) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("title", "hello"))
	part, err := w.CreateFormFile("upload", "note.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("file contents"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes(), w.Boundary()
}

func TestMultipartFormParsesTextAndFileParts(t *testing.T) {
	body, boundary := buildMultipartBody(t)
	u, _ := url.Parse("http://example.com/upload")
	req := NewRequest(KindMultipartForm, "POST", u, map[string]string{
		"Content-Type": `multipart/form-data; boundary="` + boundary + `"`,
	})
	require.NoError(t, req.Open())
	require.NoError(t, req.WriteBodyChunk(body))
	require.NoError(t, req.CloseBody())
	defer req.Cleanup()

	title, ok := req.FirstArgumentForControlName("title")
	require.True(t, ok)
	require.Equal(t, "hello", title)

	file, ok := req.FirstFileForControlName("upload")
	require.True(t, ok)
	require.Equal(t, "note.txt", file.Filename)
	data, err := os.ReadFile(file.TempPath)
	require.NoError(t, err)
	require.Equal(t, "file contents", string(data))
}

func TestMultipartFormMissingControlName(t *testing.T) {
	body, boundary := buildMultipartBody(t)
	u, _ := url.Parse("http://example.com/upload")
	req := NewRequest(KindMultipartForm, "POST", u, map[string]string{
		"Content-Type": `multipart/form-data; boundary="` + boundary + `"`,
	})
	require.NoError(t, req.Open())
	require.NoError(t, req.WriteBodyChunk(body))
	require.NoError(t, req.CloseBody())
	defer req.Cleanup()

	_, ok := req.FirstFileForControlName("missing")
	require.False(t, ok)
}
