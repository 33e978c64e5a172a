package auth

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasicAuthenticateAcceptsCorrectCredentials(t *testing.T) {
	b := &Basic{Realm: "test", Accounts: Accounts{"alice": "secret"}}
	header := map[string]string{
		"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:secret")),
	}
	require.NoError(t, b.Authenticate(header, "GET", "/x"))
}

func TestBasicAuthenticateRejectsWrongPassword(t *testing.T) {
	b := &Basic{Realm: "test", Accounts: Accounts{"alice": "secret"}}
	header := map[string]string{
		"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:wrong")),
	}
	require.Error(t, b.Authenticate(header, "GET", "/x"))
}

func TestBasicChallengeHeaderIncludesRealm(t *testing.T) {
	b := &Basic{Realm: "myrealm"}
	require.Equal(t, `Basic realm="myrealm"`, b.ChallengeHeader())
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestDigestAuthenticateAcceptsCorrectResponse(t *testing.T) {
	d := NewDigest("realm", Accounts{"bob": "hunter2"})
	nonce := d.Nonce()

	ha1 := md5hex("bob:realm:hunter2")
	ha2 := md5hex("GET:/secret")
	response := md5hex(ha1 + ":" + nonce + ":" + ha2)

	header := map[string]string{
		"Authorization": fmt.Sprintf(`Digest username="bob", realm="realm", nonce="%s", uri="/secret", response="%s"`, nonce, response),
	}
	require.NoError(t, d.Authenticate(header, "GET", "/secret"))
}

func TestDigestAuthenticateRejectsWrongResponse(t *testing.T) {
	d := NewDigest("realm", Accounts{"bob": "hunter2"})
	nonce := d.Nonce()
	header := map[string]string{
		"Authorization": fmt.Sprintf(`Digest username="bob", realm="realm", nonce="%s", uri="/secret", response="deadbeef"`, nonce),
	}
	require.Error(t, d.Authenticate(header, "GET", "/secret"))
}

func TestDigestAuthenticateRejectsUnknownUser(t *testing.T) {
	d := NewDigest("realm", Accounts{"bob": "hunter2"})
	header := map[string]string{
		"Authorization": `Digest username="eve", realm="realm", nonce="x", uri="/secret", response="y"`,
	}
	require.Error(t, d.Authenticate(header, "GET", "/secret"))
}

func TestBothPrefersSchemeNamedInAuthorizationHeader(t *testing.T) {
	basic := &Basic{Realm: "r", Accounts: Accounts{"u": "p"}}
	digest := NewDigest("r", Accounts{"u": "p"})
	both := &Both{Basic: basic, Digest: digest}

	header := map[string]string{
		"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte("u:p")),
	}
	require.NoError(t, both.Authenticate(header, "GET", "/x"))
}
