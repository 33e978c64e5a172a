package httpcore

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadRequestHeadParsesLineAndHeaders(t *testing.T) {
	raw := "GET /a/b?x=1 HTTP/1.1\r\nHost: example.com\r\nX-Custom: one\r\nX-Custom: two\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	rl, headers, err := ReadRequestHead(br)
	require.NoError(t, err)
	require.Equal(t, "GET", rl.Method)
	require.Equal(t, "/a/b?x=1", rl.Target)
	require.Equal(t, "example.com", headers["Host"])
	require.Equal(t, "two", headers["X-Custom"]) // last-value-wins
}

func TestReadRequestHeadRejectsMalformedLine(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("not a request line\r\n\r\n"))
	_, _, err := ReadRequestHead(br)
	require.Error(t, err)
}

func TestCanonicalHeaderNameTitleCases(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("GET / HTTP/1.1\r\ncontent-type: text/plain\r\n\r\n"))
	_, headers, err := ReadRequestHead(br)
	require.NoError(t, err)
	require.Equal(t, "text/plain", headers["Content-Type"])
}

func TestParseRangeVariants(t *testing.T) {
	cases := []struct {
		header string
		want   ByteRange
	}{
		{"bytes=0-99", ByteRange{Present: true, Offset: 0, Length: 100}},
		{"bytes=100-", ByteRange{Present: true, Offset: 100, Length: 0}},
		{"bytes=-50", ByteRange{Present: true, Offset: LengthUnknown, Length: 50}},
		{"bytes=0-10,20-30", ByteRange{}}, // multi-range treated as no-range
		{"nonsense", ByteRange{}},
		{"", ByteRange{}},
	}
	for _, tc := range cases {
		got := ParseRange(tc.header)
		require.Equal(t, tc.want, got, "ParseRange(%q)", tc.header)
	}
}

func TestReadFixedLengthBodyDeliversExactBytes(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("hello world"))
	var got []byte
	err := ReadFixedLengthBody(br, 11, func(b []byte) error {
		got = append(got, b...)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))
}

func TestReadChunkedBodyDecodesAndIgnoresExtensions(t *testing.T) {
	raw := "5;ext=1\r\nhello\r\n6\r\n world\r\n0\r\nX-Trailer: ignored\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	var got []byte
	err := ReadChunkedBody(br, func(b []byte) error {
		got = append(got, b...)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))
}

func TestWriteChunkRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChunk(&buf, []byte("abc")))
	require.NoError(t, WriteChunk(&buf, nil))
	require.Equal(t, "3\r\nabc\r\n0\r\n\r\n", buf.String())
}

func TestParseRequestTargetDecodesPath(t *testing.T) {
	u, err := ParseRequestTarget("/a%20b?x=1", "example.com")
	require.NoError(t, err)
	require.Equal(t, "/a b", u.Path)
	require.Equal(t, "example.com", u.Host)
}
