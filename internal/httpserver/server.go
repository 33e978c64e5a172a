// Package httpserver implements the Server component of spec.md §4.6: a
// dual-stack listener pair, the handler registry lifecycle, and the
// didConnect/didDisconnect coalescing logic.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/embedwebd/httpd/internal/httpcore"
	"github.com/embedwebd/httpd/internal/httpcore/auth"
	"github.com/embedwebd/httpd/internal/handlers"
	"github.com/rs/zerolog"
)

// AuthenticationMethod selects which scheme(s) Preflight challenges for.
type AuthenticationMethod int

const (
	AuthNone AuthenticationMethod = iota
	AuthBasic
	AuthDigest
	AuthBoth
)

// Config enumerates the recognised Server options from spec.md §3.
type Config struct {
	Port                             int
	BindToLocalhost                  bool
	MaxPendingConnections            int
	ServerName                       string
	AutomaticallyMapHEADToGET        bool
	AuthenticationMethod             AuthenticationMethod
	AuthenticationRealm              string
	AuthenticationAccounts           auth.Accounts
	ConnectedStateCoalescingInterval time.Duration

	// BonjourName/BonjourType/BonjourTXT/RequestNATPortMapping are
	// host-platform discovery glue outside the core's scope (spec.md §1);
	// they are accepted for config-shape parity but are no-ops here beyond
	// being recorded. DispatchQueuePriority and
	// AutomaticallySuspendInBackground have no field at all.
	BonjourName           *string
	BonjourType           string
	BonjourTXT            map[string]string
	RequestNATPortMapping bool

	// ListenerWrap, when set, wraps each bound listener before accept
	// loops start — the seam the record/playback harness (spec.md §6)
	// uses to tee connections without Connection itself knowing about
	// recording.
	ListenerWrap func(net.Listener) net.Listener
}

// DefaultConfig mirrors the defaults enumerated in spec.md §3.
func DefaultConfig() Config {
	return Config{
		MaxPendingConnections:            16,
		AutomaticallyMapHEADToGET:        true,
		ConnectedStateCoalescingInterval: time.Second,
		BonjourType:                      "_http._tcp",
	}
}

// Lifecycle holds the host-facing delegate callbacks (spec.md §4.6),
// invoked synchronously from the goroutine that detects the transition.
type Lifecycle struct {
	DidStart      func()
	DidStop       func()
	DidConnect    func()
	DidDisconnect func()
}

// Server owns the listener sockets and the handler registry. Handler
// registration is only permitted while stopped.
type Server struct {
	cfg       Config
	registry  *handlers.Registry
	lifecycle Lifecycle
	hooks     httpcore.Hooks
	logger    zerolog.Logger

	mu        sync.Mutex
	running   bool
	listener4 net.Listener
	listener6 net.Listener
	port      int

	activeConns      int32
	disconnectTimer  *time.Timer
	disconnectTimerMu sync.Mutex

	wg sync.WaitGroup
}

// New builds a Server. logger is used as given (New substitutes no default
// for it) and is also installed as httpcore's process-wide default Logger.
func New(cfg Config, registry *handlers.Registry, lifecycle Lifecycle, hooks httpcore.Hooks, logger zerolog.Logger) *Server {
	if cfg.ServerName == "" {
		cfg.ServerName = "embedwebd"
	}
	if cfg.AuthenticationRealm == "" {
		cfg.AuthenticationRealm = cfg.ServerName
	}
	if cfg.MaxPendingConnections <= 0 {
		cfg.MaxPendingConnections = 16
	}
	if cfg.ConnectedStateCoalescingInterval <= 0 {
		cfg.ConnectedStateCoalescingInterval = time.Second
	}
	if hooks.Preflight == nil {
		hooks.Preflight = buildAuthPreflight(cfg)
	}
	if hooks.Override == nil {
		hooks.Override = httpcore.DefaultOverride
	}
	httpcore.SetDefaultLogger(httpcore.ZerologLogger{Logger: logger})
	return &Server{cfg: cfg, registry: registry, lifecycle: lifecycle, hooks: hooks, logger: logger}
}

func buildAuthPreflight(cfg Config) func(*httpcore.Request) (*httpcore.Response, error) {
	switch cfg.AuthenticationMethod {
	case AuthBasic:
		return auth.Preflight(&auth.Basic{Realm: cfg.AuthenticationRealm, Accounts: cfg.AuthenticationAccounts})
	case AuthDigest:
		return auth.Preflight(auth.NewDigest(cfg.AuthenticationRealm, cfg.AuthenticationAccounts))
	case AuthBoth:
		return auth.Preflight(&auth.Both{
			Basic:  &auth.Basic{Realm: cfg.AuthenticationRealm, Accounts: cfg.AuthenticationAccounts},
			Digest: auth.NewDigest(cfg.AuthenticationRealm, cfg.AuthenticationAccounts),
		})
	default:
		return nil
	}
}

// Port returns the bound IPv4 port, valid once Start has returned nil.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Running reports whether the server is currently accepting connections.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start binds the IPv4 and IPv6 sockets and begins accepting connections.
// Start failures surface synchronously with the underlying OS error
// preserved, per spec.md §7.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("httpserver: already running")
	}
	host := ""
	if s.cfg.BindToLocalhost {
		host = "127.0.0.1"
	}
	addr4 := fmt.Sprintf("%s:%d", host, s.cfg.Port)
	l4, err := net.Listen("tcp4", addr4)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("httpserver: bind ipv4: %w", err)
	}
	_, portStr, _ := net.SplitHostPort(l4.Addr().String())
	var boundPort int
	fmt.Sscanf(portStr, "%d", &boundPort)

	host6 := "::"
	if s.cfg.BindToLocalhost {
		host6 = "::1"
	}
	l6, err := net.Listen("tcp6", fmt.Sprintf("[%s]:%d", host6, boundPort))
	if err != nil {
		s.logger.Warn().Err(err).Msg("httpserver: ipv6 bind failed, continuing IPv4-only")
		l6 = nil
	}

	if s.cfg.ListenerWrap != nil {
		l4 = s.cfg.ListenerWrap(l4)
		if l6 != nil {
			l6 = s.cfg.ListenerWrap(l6)
		}
	}

	s.listener4 = l4
	s.listener6 = l6
	s.port = boundPort
	s.running = true
	s.registry.SetRunning(true)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(l4)
	if l6 != nil {
		s.wg.Add(1)
		go s.acceptLoop(l6)
	}

	if s.lifecycle.DidStart != nil {
		s.lifecycle.DidStart()
	}
	return nil
}

func (s *Server) acceptLoop(l net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := l.Accept()
		if err != nil {
			return // listener closed by Stop
		}
		s.onConnect()
		go func() {
			defer s.onDisconnect()
			httpcore.NewConnection(conn, httpcore.ServerOptions{
				ServerName:                s.cfg.ServerName,
				AutomaticallyMapHEADToGET: s.cfg.AutomaticallyMapHEADToGET,
			}, s.registry, s.hooks).Serve()
		}()
	}
}

func (s *Server) onConnect() {
	// A pending disconnect timer means DidDisconnect has not fired yet, so
	// the server is still in its connected state and DidConnect is skipped.
	s.disconnectTimerMu.Lock()
	stillConnected := false
	if s.disconnectTimer != nil {
		stillConnected = s.disconnectTimer.Stop()
		s.disconnectTimer = nil
	}
	s.disconnectTimerMu.Unlock()

	if atomic.AddInt32(&s.activeConns, 1) == 1 && !stillConnected && s.lifecycle.DidConnect != nil {
		s.lifecycle.DidConnect()
	}
}

func (s *Server) onDisconnect() {
	if atomic.AddInt32(&s.activeConns, -1) != 0 {
		return
	}
	s.disconnectTimerMu.Lock()
	defer s.disconnectTimerMu.Unlock()
	s.disconnectTimer = time.AfterFunc(s.cfg.ConnectedStateCoalescingInterval, func() {
		if atomic.LoadInt32(&s.activeConns) == 0 && s.lifecycle.DidDisconnect != nil {
			s.lifecycle.DidDisconnect()
		}
	})
}

// Stop closes the listening sockets, refusing new connections, but never
// aborts in-flight connections (spec.md §5).
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.registry.SetRunning(false)
	l4, l6 := s.listener4, s.listener6
	s.mu.Unlock()

	l4.Close()
	if l6 != nil {
		l6.Close()
	}
	s.wg.Wait()
	if s.lifecycle.DidStop != nil {
		s.lifecycle.DidStop()
	}
}

// StopWithContext closes listeners and waits for in-flight accept loops to
// drain, bounded by ctx.
func (s *Server) StopWithContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Registry exposes the handler registry for Handler SDK registration.
func (s *Server) Registry() *handlers.Registry { return s.registry }
