package httpcore

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// RequestLine is the parsed first line of an HTTP/1.1 request.
type RequestLine struct {
	Method string
	Target string
	Proto  string
}

const maxHeaderLineLength = 8192
const maxHeaderLines = 256

// ReadRequestHead reads the request line and headers up to the blank line
// terminator, canonicalising header names case-insensitively with
// last-value-wins semantics (spec.md §4.4).
func ReadRequestHead(br *bufio.Reader) (RequestLine, map[string]string, error) {
	lineBytes, err := readLine(br)
	if err != nil {
		return RequestLine{}, nil, err
	}
	parts := strings.SplitN(string(lineBytes), " ", 3)
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "HTTP/") {
		return RequestLine{}, nil, fmt.Errorf("httpcore: malformed request line %q", lineBytes)
	}
	rl := RequestLine{Method: parts[0], Target: parts[1], Proto: strings.TrimSpace(parts[2])}

	headers := map[string]string{}
	for i := 0; ; i++ {
		if i > maxHeaderLines {
			return RequestLine{}, nil, fmt.Errorf("httpcore: too many header lines")
		}
		lb, err := readLine(br)
		if err != nil {
			return RequestLine{}, nil, err
		}
		if len(lb) == 0 {
			break
		}
		idx := indexByte(lb, ':')
		if idx < 0 {
			return RequestLine{}, nil, fmt.Errorf("httpcore: malformed header line %q", lb)
		}
		name := canonicalHeaderName(strings.TrimSpace(string(lb[:idx])))
		value := strings.TrimSpace(string(lb[idx+1:]))
		headers[name] = value // last-value-wins
	}
	return rl, headers, nil
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

func readLine(br *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			return nil, err
		}
		if len(line)+len(chunk) > maxHeaderLineLength {
			return nil, fmt.Errorf("httpcore: header line too long")
		}
		line = append(line, chunk...)
		if !isPrefix {
			return line, nil
		}
	}
}

// canonicalHeaderName title-cases a header name the way net/textproto does
// ("content-type" -> "Content-Type").
func canonicalHeaderName(name string) string {
	b := []byte(strings.ToLower(name))
	upperNext := true
	for i, c := range b {
		if upperNext && c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
		upperNext = c == '-'
	}
	return string(b)
}

// ParseRequestTarget parses a request target into a URL with scheme "http"
// and the given host; the URL's Path field holds the percent-decoded path.
func ParseRequestTarget(target, host string) (*url.URL, error) {
	if host == "" {
		host = "localhost"
	}
	u, err := url.ParseRequestURI(target)
	if err != nil {
		return nil, err
	}
	u.Scheme = "http"
	u.Host = host
	return u, nil
}

// ParseRange parses a "Range: bytes=..." header into a ByteRange per
// spec.md §3/§4.8. Only a single range is supported; anything else
// (missing unit, multiple ranges, malformed numbers) yields Present=false,
// which the Connection treats as "no range".
func ParseRange(header string) ByteRange {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return ByteRange{}
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return ByteRange{} // multi-range: treated as no-range per spec.md §4.8
	}
	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return ByteRange{}
	}
	startStr, endStr := spec[:dash], spec[dash+1:]
	if startStr == "" {
		// suffix range: "-N" means last N bytes
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return ByteRange{}
		}
		return ByteRange{Present: true, Offset: LengthUnknown, Length: n}
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return ByteRange{}
	}
	if endStr == "" {
		return ByteRange{Present: true, Offset: start, Length: 0}
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return ByteRange{}
	}
	return ByteRange{Present: true, Offset: start, Length: end - start + 1}
}

// ReadFixedLengthBody delivers exactly length bytes from br to sink.
func ReadFixedLengthBody(br *bufio.Reader, length int64, sink func([]byte) error) error {
	buf := make([]byte, bodyChunkSize)
	var remaining = length
	for remaining > 0 {
		want := int64(len(buf))
		if remaining < want {
			want = remaining
		}
		n, err := br.Read(buf[:want])
		if n > 0 {
			if serr := sink(buf[:n]); serr != nil {
				return serr
			}
			remaining -= int64(n)
		}
		if err != nil {
			if err == io.EOF && remaining == 0 {
				return nil
			}
			return err
		}
	}
	return nil
}

// ReadChunkedBody decodes HTTP/1.1 chunked transfer encoding, tolerating
// and ignoring chunk-extensions, and discarding the trailer, per spec.md
// §4.4.
func ReadChunkedBody(br *bufio.Reader, sink func([]byte) error) error {
	for {
		sizeLine, err := readLine(br)
		if err != nil {
			return err
		}
		sizeStr := string(sizeLine)
		if idx := strings.IndexByte(sizeStr, ';'); idx >= 0 {
			sizeStr = sizeStr[:idx] // drop chunk-extensions
		}
		size, err := strconv.ParseInt(strings.TrimSpace(sizeStr), 16, 64)
		if err != nil {
			return fmt.Errorf("httpcore: malformed chunk size %q: %w", sizeLine, err)
		}
		if size == 0 {
			// trailer: consume and discard until blank line
			for {
				tl, err := readLine(br)
				if err != nil {
					return err
				}
				if len(tl) == 0 {
					return nil
				}
			}
		}
		if err := ReadFixedLengthBody(br, size, sink); err != nil {
			return err
		}
		// consume the CRLF that terminates the chunk data
		if _, err := readLine(br); err != nil {
			return err
		}
	}
}

// WriteStatusLine writes "HTTP/1.1 <code> <reason>\r\n".
func WriteStatusLine(w io.Writer, code int) error {
	_, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", code, ReasonPhrase(code))
	return err
}

// WriteHeaderLine writes one canonical "Name: value\r\n" header line.
func WriteHeaderLine(w io.Writer, name, value string) error {
	_, err := fmt.Fprintf(w, "%s: %s\r\n", name, value)
	return err
}

// WriteChunk writes one chunked-transfer-encoding chunk (size line, data,
// trailing CRLF). A zero-length chunk is the terminating chunk.
func WriteChunk(w io.Writer, data []byte) error {
	if _, err := fmt.Fprintf(w, "%x\r\n", len(data)); err != nil {
		return err
	}
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}
