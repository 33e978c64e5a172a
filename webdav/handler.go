package webdav

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/embedwebd/httpd/internal/handlers"
	"github.com/embedwebd/httpd/internal/httpcore"
	webdavpath "github.com/embedwebd/httpd/webdav/path"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Handler implements the RFC 4918 class-1 method set from spec.md §4.10
// over a FileSystem, registered into an internal/handlers.Registry instead
// of net/http's ServeMux. Method bodies are grounded in the teacher's
// webdav.go (now missing from the retrieval pack) by way of
// google-go-webdav/webdav.go's handleXxx split, adapted to
// internal/httpcore's Request/Response types.
type Handler struct {
	FS    FileSystem
	Locks *LockManager
}

// NewHandler builds a Handler over fs with a fresh LockManager.
func NewHandler(fs FileSystem) *Handler {
	return &Handler{FS: fs, Locks: NewLockManager()}
}

// Register installs every WebDAV method into reg.
func (h *Handler) Register(reg *handlers.Registry) {
	reg.Register(handlers.Entry{Match: handlers.MethodMatcher("OPTIONS"), Kind: httpcore.KindBase, Process: h.options})
	reg.Register(handlers.Entry{Match: handlers.MethodMatcher("GET"), Kind: httpcore.KindBase, Process: h.getOrHead})
	reg.Register(handlers.Entry{Match: handlers.MethodMatcher("HEAD"), Kind: httpcore.KindBase, Process: h.getOrHead})
	reg.Register(handlers.Entry{Match: handlers.MethodMatcher("PUT"), Kind: httpcore.KindFile, Process: h.put})
	reg.Register(handlers.Entry{Match: handlers.MethodMatcher("DELETE"), Kind: httpcore.KindBase, Process: h.delete})
	reg.Register(handlers.Entry{Match: handlers.MethodMatcher("MKCOL"), Kind: httpcore.KindData, Process: h.mkcol})
	reg.Register(handlers.Entry{Match: handlers.MethodMatcher("COPY"), Kind: httpcore.KindBase, Process: h.copy})
	reg.Register(handlers.Entry{Match: handlers.MethodMatcher("MOVE"), Kind: httpcore.KindBase, Process: h.move})
	reg.Register(handlers.Entry{Match: handlers.MethodMatcher("PROPFIND"), Kind: httpcore.KindData, Process: h.propfind})
	reg.Register(handlers.Entry{Match: handlers.MethodMatcher("LOCK"), Kind: httpcore.KindData, Process: h.lock})
	reg.Register(handlers.Entry{Match: handlers.MethodMatcher("UNLOCK"), Kind: httpcore.KindBase, Process: h.unlock})
}

func davPath(req *httpcore.Request) string {
	p := webdavpath.Normalize(req.Path)
	if p == "" {
		p = "/"
	}
	return p
}

const allowedMethods = "OPTIONS, GET, HEAD, PUT, DELETE, MKCOL, COPY, MOVE, PROPFIND, LOCK, UNLOCK"

// options answers OPTIONS with the Allow and DAV headers. The DAV
// compliance class advertises class 2 (locking) only to the macOS Finder
// client, since LOCK/UNLOCK is otherwise rejected outright (spec.md
// §4.10).
func (h *Handler) options(req *httpcore.Request) (*httpcore.Response, error) {
	resp := httpcore.NewResponse()
	resp.StatusCode = 200
	resp.ExtraHeaders["Allow"] = allowedMethods
	if IsFinderClient(req.Header["User-Agent"]) {
		resp.ExtraHeaders["DAV"] = "1, 2"
	} else {
		resp.ExtraHeaders["DAV"] = "1"
	}
	return resp, nil
}

func (h *Handler) getOrHead(req *httpcore.Request) (*httpcore.Response, error) {
	name := davPath(req)
	fi, err := h.FS.Stat(context.Background(), name)
	if err != nil {
		return nil, err
	}
	if fi.IsDir {
		resp := httpcore.NewDataResponse(nil, "text/html; charset=utf-8")
		return resp, nil
	}

	rc, err := h.FS.Open(context.Background(), name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	offset, length, partial := resolveSimpleRange(req.Range, int64(len(data)))
	resp := httpcore.NewDataResponse(data[offset:offset+length], fi.MIMEType)
	if resp.ContentType == "" {
		resp.ContentType = "application/octet-stream"
	}
	resp.LastModified = fi.ModTime
	resp.ETag = fi.ETag
	if partial {
		resp.StatusCode = 206
		resp.ExtraHeaders["Content-Range"] = fmt.Sprintf("bytes %d-%d/%d", offset, offset+length-1, len(data))
	}
	return resp, nil
}

// resolveSimpleRange mirrors httpcore's (MAX,0)/(offset,length)/(MAX,length)
// resolution rules against an in-memory buffer of the given size.
func resolveSimpleRange(rng httpcore.ByteRange, size int64) (offset, length int64, partial bool) {
	if !rng.Present {
		return 0, size, false
	}
	switch {
	case rng.Offset == httpcore.LengthUnknown && rng.Length == 0:
		return 0, size, false
	case rng.Offset == httpcore.LengthUnknown:
		length = rng.Length
		if length > size {
			length = size
		}
		offset = size - length
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
	return offset, length, true
}

func conditionalFromHeaders(req *httpcore.Request) (ifMatch, ifNoneMatch ConditionalMatch) {
	return ParseConditionalMatch(req.Header["If-Match"]), ParseConditionalMatch(req.Header["If-None-Match"])
}

// put implements PUT (spec.md §4.10): reject overwriting a collection,
// require the parent collection to exist, replace in place, 204/201 per
// whether the resource previously existed.
func (h *Handler) put(req *httpcore.Request) (*httpcore.Response, error) {
	name := davPath(req)
	if name == "/" {
		return nil, httpcore.NewHTTPError(405, "cannot PUT the root collection", nil)
	}
	if req.Range.Present {
		return nil, httpcore.NewHTTPError(400, "PUT does not support Range", nil)
	}
	f, err := os.Open(req.TempPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ifMatch, ifNoneMatch := conditionalFromHeaders(req)
	_, created, err := h.FS.Create(context.Background(), name, f, &CreateOptions{IfMatch: ifMatch, IfNoneMatch: ifNoneMatch})
	if err != nil {
		return nil, err
	}
	resp := httpcore.NewResponse()
	if created {
		resp.StatusCode = 201
	} else {
		resp.StatusCode = 204
	}
	return resp, nil
}

// delete implements DELETE: Depth must be absent or infinity.
func (h *Handler) delete(req *httpcore.Request) (*httpcore.Response, error) {
	if d, ok := req.Header["Depth"]; ok && !strings.EqualFold(d, "infinity") {
		return nil, httpcore.NewHTTPError(400, "DELETE requires Depth: infinity", nil)
	}
	name := davPath(req)
	if name == "/" {
		return nil, httpcore.NewHTTPError(403, "cannot delete the root collection", nil)
	}
	ifMatch, ifNoneMatch := conditionalFromHeaders(req)
	if err := h.FS.RemoveAll(context.Background(), name, &RemoveAllOptions{IfMatch: ifMatch, IfNoneMatch: ifNoneMatch}); err != nil {
		return nil, err
	}
	resp := httpcore.NewResponse()
	resp.StatusCode = 204
	return resp, nil
}

// mkcol implements MKCOL: a non-empty request body is rejected (415), the
// parent collection must already exist (409), and only one level is
// created at a time.
func (h *Handler) mkcol(req *httpcore.Request) (*httpcore.Response, error) {
	if len(req.Data()) > 0 {
		return nil, httpcore.NewHTTPError(415, "MKCOL does not accept a request body", nil)
	}
	name := davPath(req)
	if err := h.FS.Mkdir(context.Background(), name); err != nil {
		return nil, err
	}
	resp := httpcore.NewResponse()
	resp.StatusCode = 201
	return resp, nil
}

// destinationPath parses the Destination header per spec.md §4.10/§9(b):
// strip the scheme+host prefix using the request's Host header as the
// delimiter, percent-decode, then normalize. A relative Destination (one
// that does not contain the Host header's value) is rejected with 400.
func destinationPath(req *httpcore.Request) (string, error) {
	raw := req.Header["Destination"]
	if raw == "" {
		return "", httpcore.NewHTTPError(400, "Destination header required", nil)
	}
	host := req.Header["Host"]
	idx := strings.Index(raw, host)
	if host == "" || idx < 0 {
		return "", httpcore.NewHTTPError(400, "Destination header must be absolute and match Host", nil)
	}
	rest := raw[idx+len(host):]
	u, err := url.Parse(rest)
	if err != nil {
		return "", httpcore.NewHTTPError(400, "malformed Destination header", err)
	}
	return webdavpath.Normalize(u.Path), nil
}

func overwriteAllowed(req *httpcore.Request, defaultAllow bool) bool {
	switch strings.ToUpper(strings.TrimSpace(req.Header["Overwrite"])) {
	case "T":
		return true
	case "F":
		return false
	default:
		return defaultAllow
	}
}

// copy implements COPY. Depth must be absent or infinity.
func (h *Handler) copy(req *httpcore.Request) (*httpcore.Response, error) {
	if d, ok := req.Header["Depth"]; ok && !strings.EqualFold(d, "infinity") {
		return nil, httpcore.NewHTTPError(400, "COPY requires Depth: infinity", nil)
	}
	src := davPath(req)
	dst, err := destinationPath(req)
	if err != nil {
		return nil, err
	}
	noRecursive := req.Header["Depth"] == "0"
	created, err := h.FS.Copy(context.Background(), src, dst, &CopyOptions{
		NoOverwrite: !overwriteAllowed(req, false),
		NoRecursive: noRecursive,
	})
	if err != nil {
		return nil, err
	}
	resp := httpcore.NewResponse()
	if created {
		resp.StatusCode = 201
	} else {
		resp.StatusCode = 204
	}
	return resp, nil
}

// move implements MOVE. Per spec.md §9(a), the source's MOVE replaces the
// destination unconditionally when the caller omits Overwrite, which
// inverts RFC 4918's "forbid by default" — preserved here deliberately.
func (h *Handler) move(req *httpcore.Request) (*httpcore.Response, error) {
	src := davPath(req)
	dst, err := destinationPath(req)
	if err != nil {
		return nil, err
	}
	created, err := h.FS.Move(context.Background(), src, dst, &MoveOptions{
		NoOverwrite: !overwriteAllowed(req, true),
	})
	if err != nil {
		return nil, err
	}
	resp := httpcore.NewResponse()
	if created {
		resp.StatusCode = 201
	} else {
		resp.StatusCode = 204
	}
	return resp, nil
}

var hrefCollator = collate.New(language.Und)

// propfind implements PROPFIND: Depth 0 or 1 only, optional XML body,
// children enumerated in locale-standardized collation order for Depth 1.
func (h *Handler) propfind(req *httpcore.Request) (*httpcore.Response, error) {
	depth := req.Header["Depth"]
	if depth == "" {
		depth = "0"
	}
	if depth != "0" && depth != "1" {
		return nil, httpcore.NewHTTPError(400, "PROPFIND requires Depth: 0 or 1", nil)
	}

	name := davPath(req)
	ctx := context.Background()
	root, err := h.FS.Stat(ctx, name)
	if err != nil {
		return nil, err
	}

	var body strings.Reader
	if len(req.Data()) > 0 {
		body = *strings.NewReader(string(req.Data()))
	}
	propreq, err := ParsePropfind(&body)
	if err != nil {
		return nil, err
	}

	entries := []MultistatusEntry{entryFromInfo(name, root)}
	if depth == "1" && root.IsDir {
		children, err := h.FS.ReadDir(ctx, name, false)
		if err != nil {
			return nil, err
		}
		sort.Slice(children, func(i, j int) bool {
			return hrefCollator.CompareString(children[i].Path, children[j].Path) < 0
		})
		for _, c := range children {
			entries = append(entries, entryFromInfo(c.Path, &c))
		}
	}

	body2 := BuildMultistatus(entries, propreq)
	resp := httpcore.NewDataResponse(body2, "application/xml; charset=utf-8")
	resp.StatusCode = 207
	return resp, nil
}

func entryFromInfo(href string, fi *FileInfo) MultistatusEntry {
	if fi.IsDir && !strings.HasSuffix(href, "/") {
		href += "/"
	}
	return MultistatusEntry{
		Href:          href,
		IsCollection:  fi.IsDir,
		ContentLength: fi.Size,
		LastModified:  fi.ModTime,
		CreationDate:  fi.ModTime,
	}
}

// lock implements LOCK, restricted to the macOS Finder client. Depth must
// be 0; anything else, or a non-exclusive/non-write scope, is rejected
// with 403. No state beyond the minted token is persisted.
func (h *Handler) lock(req *httpcore.Request) (*httpcore.Response, error) {
	if !IsFinderClient(req.Header["User-Agent"]) {
		return nil, httpcore.NewHTTPError(405, "LOCK is not supported for this client", nil)
	}
	if d, ok := req.Header["Depth"]; ok && d != "0" {
		return nil, httpcore.NewHTTPError(403, "only Depth: 0 locks are supported", nil)
	}
	name := davPath(req)

	if existing := req.Header["If"]; existing != "" {
		if token := extractLockToken(existing); token != "" {
			if entry := h.Locks.Refresh(token); entry != nil {
				resp := httpcore.NewDataResponse(BuildLockDiscovery(name, entry.token, entry.owner), "application/xml; charset=utf-8")
				resp.ExtraHeaders["Lock-Token"] = entry.token
				return resp, nil
			}
		}
	}

	var body strings.Reader
	if len(req.Data()) > 0 {
		body = *strings.NewReader(string(req.Data()))
	}
	lreq, err := ParseLockBody(&body)
	if err != nil {
		return nil, err
	}
	if _, err := h.FS.Stat(context.Background(), name); err != nil {
		if _, _, createErr := h.FS.Create(context.Background(), name, io.NopCloser(strings.NewReader("")), &CreateOptions{}); createErr != nil {
			return nil, err
		}
	}
	entry := h.Locks.Create(name, lreq.Owner)
	resp := httpcore.NewDataResponse(BuildLockDiscovery(name, entry.token, entry.owner), "application/xml; charset=utf-8")
	resp.StatusCode = 200
	resp.ExtraHeaders["Lock-Token"] = "<" + entry.token + ">"
	return resp, nil
}

func extractLockToken(ifHeader string) string {
	start := strings.Index(ifHeader, "<urn:uuid:")
	if start < 0 {
		return ""
	}
	end := strings.Index(ifHeader[start:], ">")
	if end < 0 {
		return ""
	}
	return ifHeader[start+1 : start+end]
}

// unlock implements UNLOCK, restricted to the macOS Finder client.
func (h *Handler) unlock(req *httpcore.Request) (*httpcore.Response, error) {
	if !IsFinderClient(req.Header["User-Agent"]) {
		return nil, httpcore.NewHTTPError(405, "UNLOCK is not supported for this client", nil)
	}
	token := strings.Trim(req.Header["Lock-Token"], "<>")
	if token == "" {
		return nil, httpcore.NewHTTPError(400, "Lock-Token header required", nil)
	}
	h.Locks.Release(token)
	resp := httpcore.NewResponse()
	resp.StatusCode = 204
	return resp, nil
}
