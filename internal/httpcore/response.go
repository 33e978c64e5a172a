package httpcore

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Response is mutable until the Connection begins writing headers.
// hasBody ⇔ ContentType != "" (spec.md §3 invariant).
type Response struct {
	StatusCode    int
	ContentType   string
	ContentLength int64 // LengthUnknown ⇒ chunked
	MaxAge        int
	LastModified  time.Time
	ETag          string
	UseGzip       bool
	ExtraHeaders  map[string]string
	Body          BodyReader
}

// NewResponse builds an empty 200 response with no body.
func NewResponse() *Response {
	return &Response{StatusCode: 200, ContentLength: LengthUnknown, ExtraHeaders: map[string]string{}}
}

// HasBody reports whether the response carries an entity body.
func (r *Response) HasBody() bool { return r.ContentType != "" }

// SetGzip enables on-the-fly gzip encoding, which forces the content
// length to unknown (chunked framing), per spec.md §3.
func (r *Response) SetGzip() {
	r.UseGzip = true
	r.ContentLength = LengthUnknown
	if r.Body != nil {
		r.Body = NewGzipBodyReader(r.Body)
	}
}

// NewDataResponse builds a response from an in-memory byte slice.
func NewDataResponse(data []byte, contentType string) *Response {
	r := NewResponse()
	r.ContentType = contentType
	r.ContentLength = int64(len(data))
	r.Body = NewMemoryBodyReader(data)
	return r
}

// NewJSONResponse serializes v using standard JSON rules.
func NewJSONResponse(v any) (*Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return NewDataResponse(data, "application/json; charset=utf-8"), nil
}

// NewHTMLResponse wraps UTF-8 HTML bytes.
func NewHTMLResponse(html string) *Response {
	return NewDataResponse([]byte(html), "text/html; charset=utf-8")
}

// NewTemplateResponse reads templatePath as UTF-8 and substitutes each
// "%key%" occurrence with vars[key] in a single left-to-right pass with no
// recursion, per spec.md §4.2.
func NewTemplateResponse(templatePath string, vars map[string]string) (*Response, error) {
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, err
	}
	rendered := substituteTemplate(string(raw), vars)
	return NewHTMLResponse(rendered), nil
}

func substituteTemplate(tpl string, vars map[string]string) string {
	var out strings.Builder
	out.Grow(len(tpl))
	i := 0
	for i < len(tpl) {
		if tpl[i] != '%' {
			out.WriteByte(tpl[i])
			i++
			continue
		}
		end := strings.IndexByte(tpl[i+1:], '%')
		if end < 0 {
			out.WriteString(tpl[i:])
			break
		}
		key := tpl[i+1 : i+1+end]
		if val, ok := vars[key]; ok {
			out.WriteString(val)
		} else {
			out.WriteByte('%')
			out.WriteString(key)
			out.WriteByte('%')
		}
		i = i + 1 + end + 1
	}
	return out.String()
}

// FileResponseOptions configures NewFileResponse.
type FileResponseOptions struct {
	Range              ByteRange
	Attachment         bool
	AttachmentName     string
	MIMEOverrides      map[string]string // extension (no dot, lowercase) -> content type
}

// NewFileResponse builds a response streaming a filesystem path, applying
// the stat-without-following-symlink check, the three-tier MIME lookup,
// the ETag formula, and byte-range resolution from spec.md §4.2.
func NewFileResponse(path string, opts FileResponseOptions) (*Response, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return nil, NewHTTPError(404, "file not found", err)
	}
	if !fi.Mode().IsRegular() {
		return nil, NewHTTPError(404, "not a regular file", nil)
	}

	size := fi.Size()
	offset, length, partial, err := resolveRange(opts.Range, size)
	if err != nil {
		return nil, err
	}

	r := NewResponse()
	r.ContentType = lookupContentType(path, opts.MIMEOverrides)
	r.LastModified = fi.ModTime()
	r.ETag = fileETag(fi)
	r.ContentLength = length
	r.Body = NewFileBodyReader(path, offset, length)

	if opts.Attachment {
		name := opts.AttachmentName
		if name == "" {
			name = fi.Name()
		}
		r.ExtraHeaders["Content-Disposition"] = fmt.Sprintf(`attachment; filename="%s"`, name)
	}

	if partial {
		r.StatusCode = 206
		last := offset + length - 1
		if length == 0 {
			last = offset
		}
		r.ExtraHeaders["Content-Range"] = fmt.Sprintf("bytes %d-%d/%d", offset, last, size)
	}
	return r, nil
}

// resolveRange implements spec.md §4.2's byte-range resolution:
// (MAX,0) -> full file; (offset,length) -> clamp to size; (MAX,length) ->
// last `length` bytes. A clamped length of zero fails construction.
func resolveRange(rng ByteRange, size int64) (offset, length int64, partial bool, err error) {
	if !rng.Present {
		return 0, size, false, nil
	}
	switch {
	case rng.Offset == LengthUnknown && rng.Length == 0:
		return 0, size, false, nil
	case rng.Offset == LengthUnknown:
		length = rng.Length
		if length > size {
			length = size
		}
		offset = size - length
		if offset < 0 {
			offset = 0
			length = size
		}
	default:
		offset = rng.Offset
		if offset > size {
			offset = size
		}
		length = rng.Length
		if length <= 0 || offset+length > size {
			length = size - offset
		}
	}
	if length <= 0 {
		return 0, 0, false, NewHTTPError(416, "requested range not satisfiable", nil)
	}
	return offset, length, true, nil
}

// fileETag computes hex(inode) + ":" + hex(mtime-seconds) + ":" +
// hex(mtime-nanoseconds), the exact form spec.md §4.2 requires for
// byte-level compatibility with existing clients.
func fileETag(fi os.FileInfo) string {
	ino := platformInode(fi)
	mt := fi.ModTime()
	return strconv.FormatUint(ino, 16) + ":" + strconv.FormatInt(mt.Unix(), 16) + ":" + strconv.FormatInt(int64(mt.Nanosecond()), 16)
}

// NewErrorResponse renders an HTTPError as the minimal HTML error page
// with title "HTTP Error N" (spec.md §4.2/§7).
func NewErrorResponse(status int, message string, cause error) *Response {
	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html><html><head><title>HTTP Error %d</title></head><body><h1>HTTP Error %d</h1><p>%s</p>", status, status, escapeHTML(message))
	if cause != nil {
		fmt.Fprintf(&b, "<p>%s</p>", escapeHTML(cause.Error()))
	}
	b.WriteString("</body></html>")
	r := NewHTMLResponse(b.String())
	r.StatusCode = status
	return r
}

func escapeHTML(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}
