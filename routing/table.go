// Package routing holds the state one Chord peer maintains about the
// rest of the ring: its successor chain and its finger table, plus
// the single-hop "who is closer" question that state can answer
// locally, with no network access (spec.md §4.3).
package routing

import (
	"sync"

	"github.com/lrem/chord/address"
	"github.com/lrem/chord/ring"
)

// ChainDepth is CHAIN, the target successor-chain length kept for
// future replication (spec.md §3, §9). Only the head is consulted by
// the routing algorithms in this package.
const ChainDepth = 3

// Table is one peer's routing state: its successor chain and its
// finger table. It is safe for concurrent use; per spec.md §5, no
// caller may perform network I/O while holding a reference obtained
// under the lock — use Snapshot to read, then release before
// dialing anything.
type Table struct {
	mu      sync.RWMutex
	chain   []address.Remote
	fingers [ring.Bits]*address.Remote
}

// New returns an empty routing table, as a standalone peer starts
// with (spec.md §3 Lifecycle, I3).
func New() *Table {
	return &Table{}
}

// Snapshot is a consistent, lock-free-to-use copy of the state needed
// to answer a find_local question or to drive a refresh pass.
type Snapshot struct {
	Chain   []address.Remote
	Fingers [ring.Bits]*address.Remote
}

// Snapshot extracts chain and fingers together under a single
// critical section, satisfying spec.md §5's "reads of routing state
// ... observe a consistent snapshot" requirement.
func (t *Table) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	chain := make([]address.Remote, len(t.chain))
	copy(chain, t.chain)
	return Snapshot{Chain: chain, Fingers: t.fingers}
}

// Head returns the chain's head (the immediate successor), and
// whether one is known.
func (s Snapshot) Head() (address.Remote, bool) {
	if len(s.Chain) == 0 {
		return address.Remote{}, false
	}
	return s.Chain[0], true
}

// FindLocal answers "who is one hop closer to the owner of key, from
// my knowledge alone," per the four-step algorithm in spec.md §4.3.
// It is deterministic and side-effect free.
func (s Snapshot) FindLocal(self ring.Key, key ring.Key) address.Hop {
	head, ok := s.Head()
	if !ok || ring.Inside(key, self, head.ID) {
		return address.Local{ID: self}
	}
	for i := 0; i < ring.Bits-1; i++ {
		if s.Fingers[i] == nil {
			continue // we are responsible for this finger's start
		}
		if s.Fingers[i+1] == nil {
			continue
		}
		if ring.Inside(key, s.Fingers[i].ID, s.Fingers[i+1].ID) {
			return *s.Fingers[i]
		}
	}
	if s.Fingers[ring.Bits-1] == nil {
		return head // the funny corner case
	}
	return *s.Fingers[ring.Bits-1]
}

// SetChain replaces the chain wholesale, truncated to ChainDepth. It
// is used once, right after a successful Connect (spec.md §4.5 step
// 2).
func (t *Table) SetChain(chain []address.Remote) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(chain) > ChainDepth {
		chain = chain[:ChainDepth]
	}
	t.chain = append([]address.Remote(nil), chain...)
}

// PrependChain installs joiner as the new chain head, as the accept
// side of the join protocol does (spec.md §4.5): joiner becomes this
// peer's immediate predecessor on the ring.
func (t *Table) PrependChain(joiner address.Remote) {
	t.mu.Lock()
	defer t.mu.Unlock()
	chain := append([]address.Remote{joiner}, t.chain...)
	if len(chain) > ChainDepth {
		chain = chain[:ChainDepth]
	}
	t.chain = chain
}

// InstallFingerIfEmpty sets finger slot i to peer, provided the slot is
// still empty — used for the accept-side provisional install
// (spec.md §4.5 step 2) which must never clobber an existing,
// presumably-better entry.
func (t *Table) InstallFingerIfEmpty(i int, peer address.Remote) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fingers[i] == nil {
		f := peer
		t.fingers[i] = &f
	}
}

// SetFinger unconditionally sets (or clears, with ok=false) finger
// slot i — used by refresh, which recomputes every eligible slot from
// scratch each tick (spec.md §4.6).
func (t *Table) SetFinger(i int, peer address.Remote, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !ok {
		t.fingers[i] = nil
		return
	}
	f := peer
	t.fingers[i] = &f
}
