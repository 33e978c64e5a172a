// Package handlers implements the Handler SDK from spec.md §4.7: method,
// exact-path and regex matchers, and static-GET helpers for serving bytes,
// files and directories. The default HEAD->GET mapping is applied by the
// httpcore Connection before it consults the registry.
package handlers

import "github.com/embedwebd/httpd/internal/httpcore"

// MatchFunc is a pure predicate evaluated for every incoming request.
// A non-nil captures map is stashed in the request's attributes under
// httpcore.AttrCaptures.
type MatchFunc func(method, path string, query map[string]string) (captures map[string]string, ok bool)

// ProcessFunc is the handler callback, invoked once the request body is
// fully read.
type ProcessFunc func(req *httpcore.Request) (*httpcore.Response, error)

// Entry is one registered (match, process) pair plus its declared request
// variant (spec.md §3 "Handler").
type Entry struct {
	Match   MatchFunc
	Kind    httpcore.RequestKind
	Process ProcessFunc
}

func (e Entry) asHandler() httpcore.Handler { return entryHandler{e} }

type entryHandler struct{ e Entry }

func (h entryHandler) Kind() httpcore.RequestKind { return h.e.Kind }
func (h entryHandler) Process(req *httpcore.Request) (*httpcore.Response, error) {
	return h.e.Process(req)
}

// Registry holds the ordered handler list and implements
// httpcore.HandlerRegistry, matching in LIFO registration order per
// spec.md §4.7.
type Registry struct {
	entries []Entry
	running bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Register adds a handler. It is a programmer error to call this while the
// owning Server is running (spec.md §4.6); SetRunning enforces that.
func (r *Registry) Register(e Entry) {
	if r.running {
		panic("handlers: cannot register a handler while the server is running")
	}
	r.entries = append(r.entries, e)
}

// SetRunning marks the registry read-only (running) or mutable (stopped).
func (r *Registry) SetRunning(running bool) { r.running = running }

// Match implements httpcore.HandlerRegistry: the most recently registered
// matching entry wins.
func (r *Registry) Match(method, path string, query map[string]string) (httpcore.Handler, map[string]any, bool) {
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		captures, ok := e.Match(method, path, query)
		if !ok {
			continue
		}
		var attrs map[string]any
		if captures != nil {
			attrs = make(map[string]any, len(captures))
			for k, v := range captures {
				attrs[k] = v
			}
		}
		return e.asHandler(), attrs, true
	}
	return nil, nil, false
}
