package auth

import "github.com/embedwebd/httpd/internal/httpcore"

// Challenger is satisfied by Basic, Digest and Both.
type Challenger interface {
	Authenticate(header map[string]string, method, uri string) error
	ChallengeHeader() string
}

// Preflight adapts a Challenger into an httpcore.Hooks.Preflight function:
// a failed Authenticate becomes a 401 response carrying the
// WWW-Authenticate challenge header (spec.md §4.5/§4.9); a nil error lets
// the request fall through to Process.
func Preflight(c Challenger) func(req *httpcore.Request) (*httpcore.Response, error) {
	return func(req *httpcore.Request) (*httpcore.Response, error) {
		if err := c.Authenticate(req.Header, req.Method, req.URL.Path); err != nil {
			resp := httpcore.NewErrorResponse(401, "authentication required", nil)
			resp.ExtraHeaders["WWW-Authenticate"] = c.ChallengeHeader()
			return resp, nil
		}
		return nil, nil
	}
}
