package webdav

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/embedwebd/httpd/internal/httpcore"
)

// PropfindRequest is the parsed body of a PROPFIND request: either
// "all four" known properties, or an explicit subset. Grounded in
// google-go-webdav/xml.go's propfind/ParsePropFind, simplified to the
// fixed four-property set spec.md §4.10 names instead of an open-ended
// namespace-qualified list.
type PropfindRequest struct {
	AllProp bool
	Names   map[string]bool
}

// Wants reports whether name (one of resourcetype, creationdate,
// getlastmodified, getcontentlength) was requested.
func (p PropfindRequest) Wants(name string) bool {
	return p.AllProp || p.Names[name]
}

type rawPropfindProp struct {
	Resourcetype     *struct{} `xml:"resourcetype"`
	Creationdate     *struct{} `xml:"creationdate"`
	Getlastmodified  *struct{} `xml:"getlastmodified"`
	Getcontentlength *struct{} `xml:"getcontentlength"`
}

type rawPropfind struct {
	XMLName xml.Name         `xml:"propfind"`
	AllProp *struct{}        `xml:"allprop"`
	Prop    *rawPropfindProp `xml:"prop"`
}

// ParsePropfind parses a PROPFIND request body per spec.md §4.10: an
// `<allprop>` element or the absence of a body both mean "all four"; a
// `<prop>` element names an explicit subset.
func ParsePropfind(body io.Reader) (PropfindRequest, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return PropfindRequest{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return PropfindRequest{AllProp: true}, nil
	}
	var rp rawPropfind
	if err := xml.Unmarshal(data, &rp); err != nil {
		return PropfindRequest{}, httpcore.NewHTTPError(400, "malformed PROPFIND body", err)
	}
	if rp.AllProp != nil || rp.Prop == nil {
		return PropfindRequest{AllProp: true}, nil
	}
	names := make(map[string]bool, 4)
	if rp.Prop.Resourcetype != nil {
		names["resourcetype"] = true
	}
	if rp.Prop.Creationdate != nil {
		names["creationdate"] = true
	}
	if rp.Prop.Getlastmodified != nil {
		names["getlastmodified"] = true
	}
	if rp.Prop.Getcontentlength != nil {
		names["getcontentlength"] = true
	}
	return PropfindRequest{Names: names}, nil
}

// MultistatusEntry is one <D:response> element's worth of data.
type MultistatusEntry struct {
	Href             string
	IsCollection     bool
	ContentLength    int64
	LastModified     time.Time
	CreationDate     time.Time
}

// escapeHref percent-escapes a path for use inside a <D:href> element per
// spec.md §6: the RFC 3986 reserved set plus "<&>?+" must be escaped; "/"
// is preserved as the path separator.
func escapeHref(p string) string {
	const extra = "<&>?+"
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c == '/':
			b.WriteByte(c)
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
			b.WriteByte(c)
		case c == '-' || c == '.' || c == '_' || c == '~':
			b.WriteByte(c)
		case strings.IndexByte(extra, c) >= 0:
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// BuildMultistatus renders the 207 Multi-Status document for a PROPFIND
// response. The DAV: namespace is bound to prefix D, per spec.md §6.
func BuildMultistatus(entries []MultistatusEntry, props PropfindRequest) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<D:multistatus xmlns:D="DAV:">`)
	for _, e := range entries {
		b.WriteString("<D:response>")
		fmt.Fprintf(&b, "<D:href>%s</D:href>", escapeHref(e.Href))
		b.WriteString("<D:propstat><D:prop>")
		if props.Wants("resourcetype") {
			if e.IsCollection {
				b.WriteString("<D:resourcetype><D:collection/></D:resourcetype>")
			} else {
				b.WriteString("<D:resourcetype/>")
			}
		}
		if props.Wants("creationdate") {
			fmt.Fprintf(&b, "<D:creationdate>%s</D:creationdate>", httpcore.FormatISO8601(e.CreationDate))
		}
		if props.Wants("getlastmodified") {
			fmt.Fprintf(&b, "<D:getlastmodified>%s</D:getlastmodified>", httpcore.FormatRFC822(e.LastModified))
		}
		if props.Wants("getcontentlength") && !e.IsCollection {
			fmt.Fprintf(&b, "<D:getcontentlength>%d</D:getcontentlength>", e.ContentLength)
		}
		b.WriteString("</D:prop><D:status>HTTP/1.1 200 OK</D:status></D:propstat>")
		b.WriteString("</D:response>")
	}
	b.WriteString("</D:multistatus>")
	return b.Bytes()
}

// lockRequest is the parsed body of a LOCK request.
type lockRequest struct {
	Owner string
}

type rawLockinfo struct {
	XMLName   xml.Name  `xml:"lockinfo"`
	Exclusive *struct{} `xml:"lockscope>exclusive"`
	Shared    *struct{} `xml:"lockscope>shared"`
	Write     *struct{} `xml:"locktype>write"`
	Owner     string    `xml:"owner"`
}

// ParseLockBody parses a LOCK request body per spec.md §4.10: anything
// other than exclusive/write is rejected (the caller is expected to
// answer 403); Depth is validated separately from the request header.
func ParseLockBody(body io.Reader) (lockRequest, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return lockRequest{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return lockRequest{}, httpcore.NewHTTPError(400, "LOCK requires a lockinfo body", nil)
	}
	var li rawLockinfo
	if err := xml.Unmarshal(data, &li); err != nil {
		return lockRequest{}, httpcore.NewHTTPError(400, "malformed lockinfo body", err)
	}
	if li.Exclusive == nil || li.Shared != nil || li.Write == nil {
		return lockRequest{}, httpcore.NewHTTPError(403, "only exclusive/write locks are supported", nil)
	}
	return lockRequest{Owner: li.Owner}, nil
}

// BuildLockDiscovery renders the <D:prop><D:lockdiscovery> response body
// for a successful LOCK.
func BuildLockDiscovery(href, token, owner string) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<D:prop xmlns:D="DAV:"><D:lockdiscovery><D:activelock>`)
	b.WriteString("<D:lockscope><D:exclusive/></D:lockscope>")
	b.WriteString("<D:locktype><D:write/></D:locktype>")
	b.WriteString("<D:depth>0</D:depth>")
	if owner != "" {
		fmt.Fprintf(&b, "<D:owner>%s</D:owner>", xmlEscape(owner))
	}
	fmt.Fprintf(&b, "<D:timeout>Second-%d</D:timeout>", int(lockTimeout.Seconds()))
	fmt.Fprintf(&b, "<D:locktoken><D:href>%s</D:href></D:locktoken>", xmlEscape(token))
	fmt.Fprintf(&b, "<D:lockroot><D:href>%s</D:href></D:lockroot>", escapeHref(href))
	b.WriteString("</D:activelock></D:lockdiscovery></D:prop>")
	return b.Bytes()
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
