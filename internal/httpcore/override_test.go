package httpcore

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newConditionalRequest(t *testing.T, method string, headers map[string]string) *Request {
	t.Helper()
	u, _ := url.Parse("http://example.com/a.txt")
	return NewRequest(KindBase, method, u, headers)
}

func TestDefaultOverrideETagMatch(t *testing.T) {
	resp := NewDataResponse([]byte("x"), "text/plain")
	resp.ETag = `"abc"`
	req := newConditionalRequest(t, "GET", map[string]string{"If-None-Match": `"abc"`})

	got := DefaultOverride(req, resp)
	require.Equal(t, 304, got.StatusCode)
	require.Equal(t, `"abc"`, got.ETag)
}

func TestDefaultOverrideNonGetMethodYields412(t *testing.T) {
	resp := NewDataResponse([]byte("x"), "text/plain")
	resp.ETag = `"abc"`
	req := newConditionalRequest(t, "PUT", map[string]string{"If-None-Match": `"abc"`})

	got := DefaultOverride(req, resp)
	require.Equal(t, 412, got.StatusCode)
}

func TestDefaultOverrideIfModifiedSince(t *testing.T) {
	resp := NewDataResponse([]byte("x"), "text/plain")
	resp.LastModified = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	req := newConditionalRequest(t, "GET", map[string]string{"If-Modified-Since": FormatRFC822(resp.LastModified)})

	got := DefaultOverride(req, resp)
	require.Equal(t, 304, got.StatusCode)
}

func TestDefaultOverridePassesThroughWithoutConditionalHeaders(t *testing.T) {
	resp := NewDataResponse([]byte("x"), "text/plain")
	resp.ETag = `"abc"`
	req := newConditionalRequest(t, "GET", map[string]string{})

	got := DefaultOverride(req, resp)
	require.Equal(t, resp, got)
}

func TestDefaultOverrideSkipsNon2xx(t *testing.T) {
	resp := NewErrorResponse(404, "missing", nil)
	resp.ETag = `"abc"`
	req := newConditionalRequest(t, "GET", map[string]string{"If-None-Match": `"abc"`})

	got := DefaultOverride(req, resp)
	require.Equal(t, 404, got.StatusCode)
}
