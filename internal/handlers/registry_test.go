package handlers

import (
	"net/url"
	"testing"

	"github.com/embedwebd/httpd/internal/httpcore"
	"github.com/stretchr/testify/require"
)

func TestRegistryMatchesMostRecentlyRegisteredEntryFirst(t *testing.T) {
	r := NewRegistry()
	r.Register(Entry{
		Match:   PathMatcher("GET", "/a"),
		Kind:    httpcore.KindBase,
		Process: ServeBytes([]byte("first"), "text/plain"),
	})
	r.Register(Entry{
		Match:   PathMatcher("GET", "/a"),
		Kind:    httpcore.KindBase,
		Process: ServeBytes([]byte("second"), "text/plain"),
	})

	handler, _, ok := r.Match("GET", "/a", nil)
	require.True(t, ok)

	u, _ := url.Parse("http://example.com/a")
	resp, err := handler.Process(httpcore.NewRequest(httpcore.KindBase, "GET", u, map[string]string{}))
	require.NoError(t, err)
	data := readAllBody(t, resp)
	require.Equal(t, "second", string(data))
}

func TestRegistryMatchReturnsFalseWhenNoEntryMatches(t *testing.T) {
	r := NewRegistry()
	r.Register(Entry{Match: PathMatcher("GET", "/a"), Process: ServeBytes(nil, "text/plain")})

	_, _, ok := r.Match("GET", "/b", nil)
	require.False(t, ok)
}

func TestRegistryExposesRegexCapturesAsAttributes(t *testing.T) {
	r := NewRegistry()
	m, err := RegexMatcher("GET", `/items/(?P<id>\d+)`)
	require.NoError(t, err)
	r.Register(Entry{Match: m, Process: ServeBytes(nil, "text/plain")})

	_, attrs, ok := r.Match("GET", "/items/7", nil)
	require.True(t, ok)
	captures, ok := attrs[httpcore.AttrCaptures].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "7", captures["id"])
}

func TestRegistryPanicsWhenRegisteringWhileRunning(t *testing.T) {
	r := NewRegistry()
	r.SetRunning(true)
	require.Panics(t, func() {
		r.Register(Entry{Match: PathMatcher("GET", "/x"), Process: ServeBytes(nil, "text/plain")})
	})
}

func readAllBody(t *testing.T, resp *httpcore.Response) []byte {
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
