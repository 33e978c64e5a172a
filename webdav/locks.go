package webdav

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// lockTimeout is the fixed Timeout value reported for every lock, per
// spec.md §4.10's "pretend" locking: the server never actually enforces
// exclusion, it only mints tokens long enough to keep macOS Finder's
// save-in-place dance happy.
const lockTimeout = 10 * time.Minute

// finderUserAgentMarkers identifies the only clients the spec allows LOCK
// support for. Grounded in the teacher's webdav.go OPTIONS handling, which
// keys DAV compliance class off similar user-agent sniffing.
var finderUserAgentMarkers = []string{"WebDAVFS/", "WebDAVLib/"}

// IsFinderClient reports whether userAgent identifies macOS Finder's
// WebDAV client (or its companion WebDAVLib), the only client spec.md
// §4.10 allows LOCK/UNLOCK to succeed for.
func IsFinderClient(userAgent string) bool {
	for _, marker := range finderUserAgentMarkers {
		if strings.HasPrefix(userAgent, marker) {
			return true
		}
	}
	return false
}

// lockEntry records a minted token so UNLOCK and If-header checks can find
// it again. No actual mutual exclusion is enforced between different
// locks on the same resource, since the spec explicitly calls for
// stateless pretend-locking rather than real WebDAV lock semantics.
type lockEntry struct {
	token    string
	path     string
	owner    string
	depth    string
	created  time.Time
}

// LockManager hands out urn:uuid: lock tokens per spec.md §4.10. It is
// intentionally not a real mutual-exclusion lock table: entries older than
// lockTimeout are dropped whenever Create, Refresh or Lookup runs, and
// nothing blocks a conflicting LOCK from a second client, just
// as the "pretend locking restricted to macOS Finder" requirement
// describes.
type LockManager struct {
	mu    sync.Mutex
	byTok map[string]*lockEntry
}

// NewLockManager builds an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{byTok: make(map[string]*lockEntry)}
}

// Create mints a new lock token for path, scoped exclusive/write per
// spec.md §4.10 (Depth must be 0; the handler rejects other depths before
// calling this).
func (m *LockManager) Create(path, owner string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
	entry := &lockEntry{
		token:   "urn:uuid:" + uuid.NewString(),
		path:    path,
		owner:   owner,
		depth:   "0",
		created: time.Now(),
	}
	m.byTok[entry.token] = entry
	return entry
}

// Refresh extends an existing lock identified by its token, used when LOCK
// is reissued with an If header instead of a lock body.
func (m *LockManager) Refresh(token string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
	entry, ok := m.byTok[token]
	if !ok {
		return nil
	}
	entry.created = time.Now()
	return entry
}

// Lookup returns the lock entry for token, if any and not expired.
func (m *LockManager) Lookup(token string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
	return m.byTok[token]
}

// Release forgets token, returning whether it was known.
func (m *LockManager) Release(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byTok[token]; !ok {
		return false
	}
	delete(m.byTok, token)
	return true
}

func (m *LockManager) expireLocked() {
	now := time.Now()
	for tok, e := range m.byTok {
		if now.Sub(e.created) > lockTimeout {
			delete(m.byTok, tok)
		}
	}
}
