package auth

import "github.com/embedwebd/httpd/internal/httpcore"

// Both advertises and accepts either Basic or Digest, preferring whichever
// scheme the request's Authorization header names.
type Both struct {
	Basic  *Basic
	Digest *Digest
}

func (b *Both) ChallengeHeader() string {
	return b.Basic.ChallengeHeader() + ", " + b.Digest.ChallengeHeader()
}

func (b *Both) Authenticate(header map[string]string, method, uri string) error {
	auth := header["Authorization"]
	if len(auth) >= 6 && auth[:6] == "Basic " {
		return b.Basic.Authenticate(header, method, uri)
	}
	if len(auth) >= 7 && auth[:7] == "Digest " {
		return b.Digest.Authenticate(header, method, uri)
	}
	return httpcore.NewHTTPError(401, "authentication required", nil)
}
