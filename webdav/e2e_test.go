package webdav

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/embedwebd/httpd/internal/handlers"
	"github.com/embedwebd/httpd/internal/httpcore"
	"github.com/embedwebd/httpd/internal/httpcore/auth"
	"github.com/embedwebd/httpd/internal/httpserver"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type rawResponse struct {
	status  int
	headers map[string]string
	body    []byte
}

func doRequest(t *testing.T, addr, raw string) rawResponse {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(raw))
	require.NoError(t, err)

	br := bufio.NewReader(conn)
	statusLine, err := br.ReadString('\n')
	require.NoError(t, err)
	parts := strings.SplitN(strings.TrimSpace(statusLine), " ", 3)
	require.GreaterOrEqual(t, len(parts), 2)
	status, err := strconv.Atoi(parts[1])
	require.NoError(t, err)

	headers := map[string]string{}
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		k, v, ok := strings.Cut(line, ":")
		require.True(t, ok)
		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	var body []byte
	if cl, ok := headers["Content-Length"]; ok && cl != "0" {
		n, err := strconv.Atoi(cl)
		require.NoError(t, err)
		body = make([]byte, n)
		_, err = io.ReadFull(br, body)
		require.NoError(t, err)
	} else if strings.EqualFold(headers["Transfer-Encoding"], "chunked") {
		body = dechunkAll(t, br)
	}
	return rawResponse{status: status, headers: headers, body: body}
}

func dechunkAll(t *testing.T, br *bufio.Reader) []byte {
	t.Helper()
	var out []byte
	for {
		sizeLine, err := br.ReadString('\n')
		require.NoError(t, err)
		sizeLine = strings.TrimSpace(sizeLine)
		size, err := strconv.ParseInt(sizeLine, 16, 64)
		require.NoError(t, err)
		if size == 0 {
			br.ReadString('\n')
			break
		}
		chunk := make([]byte, size)
		_, err = io.ReadFull(br, chunk)
		require.NoError(t, err)
		out = append(out, chunk...)
		br.ReadString('\n')
	}
	return out
}

func startWebDAVServer(t *testing.T, configure func(cfg *httpserver.Config)) (addr string, root string) {
	t.Helper()
	root = t.TempDir()
	fs := NewLocalFileSystem(root)
	reg := handlers.NewRegistry()
	NewHandler(fs).Register(reg)

	cfg := httpserver.DefaultConfig()
	cfg.Port = 0
	cfg.BindToLocalhost = true
	if configure != nil {
		configure(&cfg)
	}

	srv := httpserver.New(cfg, reg, httpserver.Lifecycle{}, httpcore.Hooks{}, zerolog.Nop())
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	return fmt.Sprintf("127.0.0.1:%d", srv.Port()), root
}

// Scenario A: OPTIONS advertises class 1 to ordinary clients and class 1,2
// to the macOS Finder WebDAV client.
func TestScenarioOptionsAdvertisesDAVClassByUserAgent(t *testing.T) {
	addr, _ := startWebDAVServer(t, nil)

	resp := doRequest(t, addr, "OPTIONS / HTTP/1.1\r\nHost: "+addr+"\r\nUser-Agent: curl/8.0\r\n\r\n")
	require.Equal(t, 200, resp.status)
	require.Equal(t, "1", resp.headers["DAV"])

	resp2 := doRequest(t, addr, "OPTIONS / HTTP/1.1\r\nHost: "+addr+"\r\nUser-Agent: WebDAVFS/3.0\r\n\r\n")
	require.Equal(t, 200, resp2.status)
	require.Equal(t, "1, 2", resp2.headers["DAV"])
}

// Scenario B: PUT followed by GET returns the exact bytes uploaded.
func TestScenarioPutThenGetRoundTrips(t *testing.T) {
	addr, _ := startWebDAVServer(t, nil)
	payload := "hello webdav world"

	putReq := fmt.Sprintf("PUT /note.txt HTTP/1.1\r\nHost: %s\r\nContent-Length: %d\r\n\r\n%s", addr, len(payload), payload)
	put := doRequest(t, addr, putReq)
	require.Equal(t, 201, put.status)

	get := doRequest(t, addr, "GET /note.txt HTTP/1.1\r\nHost: "+addr+"\r\n\r\n")
	require.Equal(t, 200, get.status)
	require.Equal(t, payload, string(get.body))
	require.Equal(t, strconv.Itoa(len(payload)), get.headers["Content-Length"])
}

// PUT rejects a request that carries a Range header instead of silently
// truncating the upload to the requested range.
func TestScenarioPutRejectsRangeHeader(t *testing.T) {
	addr, _ := startWebDAVServer(t, nil)
	payload := "hello webdav world"

	putReq := fmt.Sprintf("PUT /ranged.txt HTTP/1.1\r\nHost: %s\r\nRange: bytes=0-3\r\nContent-Length: %d\r\n\r\n%s", addr, len(payload), payload)
	resp := doRequest(t, addr, putReq)
	require.Equal(t, 400, resp.status)

	missing := doRequest(t, addr, "GET /ranged.txt HTTP/1.1\r\nHost: "+addr+"\r\n\r\n")
	require.Equal(t, 404, missing.status)
}

// Scenario C: PROPFIND Depth:1 against a directory with one child returns a
// multi-status body naming both the collection and its child.
func TestScenarioPropfindDepthOneListsChildren(t *testing.T) {
	addr, root := startWebDAVServer(t, nil)
	require.NoError(t, writeFile(root+"/child.txt", "x"))

	resp := doRequest(t, addr, "PROPFIND / HTTP/1.1\r\nHost: "+addr+"\r\nDepth: 1\r\nContent-Length: 0\r\n\r\n")
	require.Equal(t, 207, resp.status)
	body := string(resp.body)
	require.Contains(t, body, "child.txt")
	require.Contains(t, body, "multistatus")
}

// Scenario D: a byte-range GET returns 206 with a correct Content-Range.
func TestScenarioRangeGetReturnsPartialContent(t *testing.T) {
	addr, root := startWebDAVServer(t, nil)
	require.NoError(t, writeFile(root+"/big.txt", "0123456789"))

	resp := doRequest(t, addr, "GET /big.txt HTTP/1.1\r\nHost: "+addr+"\r\nRange: bytes=2-5\r\n\r\n")
	require.Equal(t, 206, resp.status)
	require.Equal(t, "2345", string(resp.body))
	require.Equal(t, "bytes 2-5/10", resp.headers["Content-Range"])
}

// Scenario E: MOVE with a Destination header relocates the resource.
func TestScenarioMoveRelocatesResource(t *testing.T) {
	addr, root := startWebDAVServer(t, nil)
	require.NoError(t, writeFile(root+"/src.txt", "payload"))

	req := fmt.Sprintf("MOVE /src.txt HTTP/1.1\r\nHost: %s\r\nDestination: http://%s/dst.txt\r\n\r\n", addr, addr)
	resp := doRequest(t, addr, req)
	require.Equal(t, 201, resp.status)

	get := doRequest(t, addr, "GET /dst.txt HTTP/1.1\r\nHost: "+addr+"\r\n\r\n")
	require.Equal(t, 200, get.status)
	require.Equal(t, "payload", string(get.body))

	missing := doRequest(t, addr, "GET /src.txt HTTP/1.1\r\nHost: "+addr+"\r\n\r\n")
	require.Equal(t, 404, missing.status)
}

// Scenario F: Basic auth rejects requests without credentials and accepts
// the configured account.
func TestScenarioBasicAuthChallengesThenAccepts(t *testing.T) {
	addr, _ := startWebDAVServer(t, func(cfg *httpserver.Config) {
		cfg.AuthenticationMethod = httpserver.AuthBasic
		cfg.AuthenticationRealm = "dav"
		cfg.AuthenticationAccounts = auth.Accounts{"alice": "secret"}
	})

	unauth := doRequest(t, addr, "GET / HTTP/1.1\r\nHost: "+addr+"\r\n\r\n")
	require.Equal(t, 401, unauth.status)
	require.NotEmpty(t, unauth.headers["WWW-Authenticate"])

	creds := base64.StdEncoding.EncodeToString([]byte("alice:secret"))
	authed := doRequest(t, addr, "GET / HTTP/1.1\r\nHost: "+addr+"\r\nAuthorization: Basic "+creds+"\r\n\r\n")
	require.Equal(t, 200, authed.status)
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}
