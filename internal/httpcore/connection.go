package httpcore

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// Handler is the process half of a (match, process) pair (spec.md §4.7).
// Process is invoked once the request body is fully read. Go's goroutines
// make the source's explicit "async process + completion callback" model
// redundant: Process may block on I/O freely, since each Connection
// already runs on its own goroutine (spec.md §5) and the caller is free to
// fan additional work out to its own goroutines before returning.
type Handler interface {
	Kind() RequestKind
	Process(req *Request) (*Response, error)
}

// HandlerRegistry resolves the first matching handler for a request, in
// LIFO registration order (spec.md §4.7).
type HandlerRegistry interface {
	Match(method, path string, query map[string]string) (Handler, map[string]any, bool)
}

// AuthChallenger validates credentials for the preflight hook (§4.9).
type AuthChallenger interface {
	// Authenticate returns nil on success, or an HTTPError(401) on failure;
	// ChallengeHeader supplies the WWW-Authenticate value to emit with it.
	Authenticate(header map[string]string, method, uri string) error
	ChallengeHeader() string
}

// Hooks are the per-server overridable subclassing points from spec.md
// §4.5/§9, exposed as a strategy pattern rather than a class hierarchy.
type Hooks struct {
	// Open vetoes a connection before any bytes are read. Returning false
	// closes the socket immediately.
	Open func(remote net.Addr) bool
	// RewriteRequestURL substitutes the effective URL used for matching.
	RewriteRequestURL func(u *url.URL) *url.URL
	// Preflight runs before handler dispatch; returning a non-nil response
	// short-circuits Process (used for auth).
	Preflight func(req *Request) (*Response, error)
	// Override runs between the handler response and the wire write (used
	// for conditional-GET revalidation).
	Override func(req *Request, resp *Response) *Response
	// Close is a cleanup hook; default logs a one-line verbose summary.
	Close func(summary ConnectionSummary)
}

// ConnectionSummary is passed to the Close hook once a connection finishes.
type ConnectionSummary struct {
	Method     string
	Path       string
	Status     int
	BytesSent  int64
	Duration   time.Duration
	RemoteAddr string
	Err        error
}

// ServerOptions carries the subset of the Server config (spec.md §3) that
// the Connection state machine needs directly.
type ServerOptions struct {
	ServerName               string
	AutomaticallyMapHEADToGET bool
}

// Connection drives one accepted socket through the parse -> match ->
// preflight -> process -> override -> write state machine of spec.md §4.5.
// All reads and writes for one connection are serialized on the goroutine
// that calls Serve.
type Connection struct {
	conn     net.Conn
	opts     ServerOptions
	registry HandlerRegistry
	hooks    Hooks
}

// NewConnection builds a Connection around an accepted socket.
func NewConnection(conn net.Conn, opts ServerOptions, registry HandlerRegistry, hooks Hooks) *Connection {
	if hooks.Close == nil {
		hooks.Close = defaultCloseHook
	}
	return &Connection{conn: conn, opts: opts, registry: registry, hooks: hooks}
}

func defaultCloseHook(s ConnectionSummary) {
	fields := map[string]any{
		"remote":   s.RemoteAddr,
		"method":   s.Method,
		"path":     s.Path,
		"status":   s.Status,
		"bytes":    s.BytesSent,
		"duration": s.Duration.String(),
	}
	if s.Err != nil {
		fields["error"] = s.Err.Error()
		DefaultLogger().Warn("request", fields)
		return
	}
	DefaultLogger().Info("request", fields)
}

// Serve runs the full connection lifecycle once: accept has already
// happened, so this reads exactly one request, produces exactly one
// response, and closes the socket (no keep-alive, per spec.md Non-goals).
func (c *Connection) Serve() {
	start := time.Now()
	defer c.conn.Close()

	if c.hooks.Open != nil && !c.hooks.Open(c.conn.RemoteAddr()) {
		return
	}

	summary := ConnectionSummary{RemoteAddr: c.conn.RemoteAddr().String()}
	defer func() {
		summary.Duration = time.Since(start)
		c.hooks.Close(summary)
	}()

	br := bufio.NewReaderSize(c.conn, 4096)

	rl, header, err := ReadRequestHead(br)
	if err != nil {
		c.abort(nil, 400, err, &summary)
		return
	}
	summary.Method = rl.Method

	u, err := ParseRequestTarget(rl.Target, header["Host"])
	if err != nil {
		c.abort(nil, 400, err, &summary)
		return
	}
	if c.hooks.RewriteRequestURL != nil {
		if rewritten := c.hooks.RewriteRequestURL(u); rewritten != nil {
			u = rewritten
		}
	}
	summary.Path = u.Path

	matchMethod := rl.Method
	if c.opts.AutomaticallyMapHEADToGET && matchMethod == "HEAD" {
		matchMethod = "GET"
	}

	query := map[string]string{}
	for k, v := range u.Query() {
		if len(v) > 0 {
			query[k] = v[len(v)-1]
		}
	}
	handler, captures, found := c.registry.Match(matchMethod, u.Path, query)
	if !found {
		c.abort(nil, 501, errors.New("no matching handler"), &summary)
		return
	}

	req := NewRequest(handler.Kind(), rl.Method, u, header)
	if rangeHdr, ok := header["Range"]; ok {
		req.Range = ParseRange(rangeHdr)
	}
	if captures != nil {
		req.Attributes[AttrCaptures] = captures
	}
	req.LocalAddr = c.conn.LocalAddr()
	req.RemoteAddr = c.conn.RemoteAddr()

	if err := c.readBody(br, req); err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			c.abort(req, httpErr.Code, httpErr, &summary)
		} else {
			c.abort(req, 400, err, &summary)
		}
		req.Cleanup()
		return
	}
	defer req.Cleanup()

	var resp *Response
	if c.hooks.Preflight != nil {
		resp, err = c.hooks.Preflight(req)
		if err != nil {
			c.abort(req, statusFromErr(err, 401), err, &summary)
			return
		}
	}
	if resp == nil {
		resp, err = handler.Process(req)
		if err != nil {
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) {
				c.abort(req, 500, err, &summary)
				return
			}
			resp = NewErrorResponse(httpErr.Code, httpErr.Message, httpErr.Err)
		}
		if resp == nil {
			c.abort(req, 500, errors.New("handler produced no response"), &summary)
			return
		}
	}

	if c.hooks.Override != nil {
		resp = c.hooks.Override(req, resp)
	}

	n, err := c.writeResponse(req, resp)
	summary.Status = resp.StatusCode
	summary.BytesSent = n
	summary.Err = err
}

func statusFromErr(err error, fallback int) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	return fallback
}

func (c *Connection) readBody(br *bufio.Reader, req *Request) error {
	if err := req.Open(); err != nil {
		return err
	}
	sink := req.WriteBodyChunk
	switch {
	case req.IsChunked:
		if err := ReadChunkedBody(br, sink); err != nil {
			return err
		}
	case req.ContentLength > 0:
		if err := ReadFixedLengthBody(br, req.ContentLength, sink); err != nil {
			return err
		}
	}
	if req.ContentLength != LengthUnknown && req.BytesWritten() != req.ContentLength {
		return fmt.Errorf("httpcore: declared content length %d but received %d bytes", req.ContentLength, req.BytesWritten())
	}
	return req.CloseBody()
}

func (c *Connection) abort(req *Request, status int, cause error, summary *ConnectionSummary) {
	summary.Status = status
	summary.Err = cause
	WriteStatusLine(c.conn, status)
	WriteHeaderLine(c.conn, "Connection", "Close")
	WriteHeaderLine(c.conn, "Server", c.opts.ServerName)
	WriteHeaderLine(c.conn, "Date", FormatRFC822(time.Now()))
	WriteHeaderLine(c.conn, "Content-Length", "0")
	fmt.Fprint(c.conn, "\r\n")
}

// writeResponse frames and writes the response per spec.md §4.4: mandatory
// headers, chunked transfer for unknown length, fixed Content-Length
// otherwise, with the body discarded (but still pulled) for HEAD.
func (c *Connection) writeResponse(req *Request, resp *Response) (int64, error) {
	WriteStatusLine(c.conn, resp.StatusCode)
	WriteHeaderLine(c.conn, "Connection", "Close")
	WriteHeaderLine(c.conn, "Server", c.opts.ServerName)
	WriteHeaderLine(c.conn, "Date", FormatRFC822(time.Now()))

	if resp.HasBody() {
		WriteHeaderLine(c.conn, "Content-Type", resp.ContentType)
	}
	chunked := resp.ContentLength == LengthUnknown
	if resp.HasBody() {
		if chunked {
			WriteHeaderLine(c.conn, "Transfer-Encoding", "chunked")
		} else {
			WriteHeaderLine(c.conn, "Content-Length", fmt.Sprintf("%d", resp.ContentLength))
		}
	} else {
		WriteHeaderLine(c.conn, "Content-Length", "0")
	}
	if resp.UseGzip {
		WriteHeaderLine(c.conn, "Content-Encoding", "gzip")
	}
	WriteHeaderLine(c.conn, "Cache-Control", cacheControl(resp.MaxAge))
	if !resp.LastModified.IsZero() {
		WriteHeaderLine(c.conn, "Last-Modified", FormatRFC822(resp.LastModified))
	}
	if resp.ETag != "" {
		WriteHeaderLine(c.conn, "ETag", resp.ETag)
	}
	for k, v := range resp.ExtraHeaders {
		WriteHeaderLine(c.conn, k, v)
	}
	fmt.Fprint(c.conn, "\r\n")

	discard := req.Method == "HEAD"
	var total int64
	if resp.HasBody() && resp.Body != nil {
		if err := resp.Body.Open(); err != nil {
			return total, err
		}
		defer resp.Body.Close()
		for {
			var chunk []byte
			var err error
			if ar, ok := resp.Body.(AsyncBodyReader); ok {
				done := make(chan struct{})
				ar.ReadAsync(func(data []byte, rerr error) {
					chunk, err = data, rerr
					close(done)
				})
				<-done
			} else {
				chunk, err = resp.Body.Read()
			}
			if err != nil {
				return total, err
			}
			if len(chunk) == 0 {
				if chunked {
					WriteChunk(c.conn, nil)
				}
				break
			}
			if !discard {
				if chunked {
					if err := WriteChunk(c.conn, chunk); err != nil {
						return total, err
					}
				} else if _, err := c.conn.Write(chunk); err != nil {
					return total, err
				}
			}
			total += int64(len(chunk))
		}
	}
	return total, nil
}

func cacheControl(maxAge int) string {
	if maxAge <= 0 {
		return "no-cache"
	}
	return fmt.Sprintf("max-age=%d", maxAge)
}
