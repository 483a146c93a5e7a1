package node

import (
	"context"
	"log"
	"time"

	"github.com/lrem/chord/address"
	"github.com/lrem/chord/ring"
)

// RefreshLoop runs the periodic finger-table refresh (spec.md §4.6)
// until ctx is canceled. It is meant to run in its own goroutine, the
// Go counterpart of the original Peer.start()'s
// "while True: sleep(CHORD_UPDATE_INTERVAL); self._update_chords()".
func (p *Peer) RefreshLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = RefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce recomputes every finger slot whose start is outside
// this peer's own arc, and clears the rest (spec.md §4.6). It snapshots
// the chain head once up front and never holds the routing-state lock
// across a network call (spec.md §5). It runs the same pass RefreshLoop
// ticks on, exposed directly so a caller can force an out-of-band
// refresh instead of waiting for the next tick.
func (p *Peer) RefreshOnce(ctx context.Context) {
	snap := p.Table.Snapshot()
	head, ok := snap.Head()
	if !ok {
		return
	}
	log.Printf("node: refreshing fingers, %d keys stored locally", p.Storage.Len())

	if !p.Ping(ctx, head.Locator) {
		log.Printf("node: successor %s unreachable during refresh", head.Locator)
	}

	established := 0
	for i := 0; i < ring.Bits; i++ {
		start := ring.Start(p.SelfID, i)
		if ring.Inside(start, p.SelfID, head.ID) {
			p.Table.SetFinger(i, address.Remote{}, false)
			continue
		}
		finger, err := p.FindResponsible(ctx, start, "")
		if err != nil {
			log.Printf("node: refresh: finger %d: %v", i, err)
			p.Table.SetFinger(i, address.Remote{}, false)
			continue
		}
		if finger == nil {
			// We became responsible for this start between the
			// snapshot and now; leave the slot empty.
			p.Table.SetFinger(i, address.Remote{}, false)
			continue
		}
		if !p.Ping(ctx, finger.Locator) {
			log.Printf("node: refresh: finger %d candidate %s unreachable, clearing", i, finger.Locator)
			p.Table.SetFinger(i, address.Remote{}, false)
			continue
		}
		p.Table.SetFinger(i, *finger, true)
		established++
	}
	log.Printf("node: %d fingers established", established)
}
