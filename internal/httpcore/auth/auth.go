// Package auth implements the Basic and Digest-Access preflight
// challengers from spec.md §4.9.
package auth

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/embedwebd/httpd/internal/httpcore"
)

// Method selects which challenge(s) the server advertises.
type Method int

const (
	MethodNone Method = iota
	MethodBasic
	MethodDigest
	MethodBoth
)

// Accounts maps username to plaintext password, as configured via
// Server config's AuthenticationAccounts (spec.md §3).
type Accounts map[string]string

// Basic validates HTTP Basic credentials against a plaintext account table.
type Basic struct {
	Realm    string
	Accounts Accounts
}

func (b *Basic) ChallengeHeader() string {
	return fmt.Sprintf(`Basic realm="%s"`, b.Realm)
}

func (b *Basic) Authenticate(header map[string]string, method, uri string) error {
	auth, ok := header["Authorization"]
	if !ok || !strings.HasPrefix(auth, "Basic ") {
		return httpcore.NewHTTPError(401, "authentication required", nil)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return httpcore.NewHTTPError(401, "malformed basic credentials", err)
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok {
		return httpcore.NewHTTPError(401, "malformed basic credentials", nil)
	}
	want, ok := b.Accounts[user]
	if !ok || want != pass {
		return httpcore.NewHTTPError(401, "invalid credentials", nil)
	}
	return nil
}

// Digest validates RFC 2617 Digest-Access credentials. Accounts are stored
// internally as HA1 = MD5(user:realm:password). It keeps one server-side
// nonce, generated by NewDigest; the nonce is not rotated afterwards.
type Digest struct {
	Realm  string
	Opaque string

	mu    sync.Mutex
	ha1   map[string]string // user -> MD5(user:realm:password)
	nonce string
}

// NewDigest builds a Digest challenger, precomputing HA1 for each account.
func NewDigest(realm string, accounts Accounts) *Digest {
	d := &Digest{Realm: realm, ha1: map[string]string{}}
	d.Opaque = randomHex(16)
	d.rotateNonce()
	for user, pass := range accounts {
		d.ha1[user] = md5Hex(user + ":" + realm + ":" + pass)
	}
	return d
}

func (d *Digest) rotateNonce() {
	d.nonce = randomHex(16)
}

// Nonce returns the current server nonce (exposed for the challenge
// header and for tests).
func (d *Digest) Nonce() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nonce
}

func (d *Digest) ChallengeHeader() string {
	return fmt.Sprintf(`Digest realm="%s", nonce="%s", opaque="%s"`, d.Realm, d.Nonce(), d.Opaque)
}

func (d *Digest) Authenticate(header map[string]string, method, uri string) error {
	auth, ok := header["Authorization"]
	if !ok || !strings.HasPrefix(auth, "Digest ") {
		return httpcore.NewHTTPError(401, "authentication required", nil)
	}
	params := parseDigestParams(strings.TrimPrefix(auth, "Digest "))

	d.mu.Lock()
	ha1, known := d.ha1[params["username"]]
	nonce := d.nonce
	d.mu.Unlock()

	if !known {
		return httpcore.NewHTTPError(401, "unknown user", nil)
	}
	if params["nonce"] != nonce {
		return httpcore.NewHTTPError(401, "stale nonce", nil)
	}
	reqURI := params["uri"]
	if reqURI == "" {
		reqURI = uri
	}
	ha2 := md5Hex(method + ":" + reqURI)
	expected := md5Hex(ha1 + ":" + nonce + ":" + ha2)
	if params["response"] != expected {
		return httpcore.NewHTTPError(401, "invalid credentials", nil)
	}
	return nil
}

func parseDigestParams(s string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[kv[0]] = strings.Trim(kv[1], `"`)
	}
	return out
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}
