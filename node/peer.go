// Package node implements the Chord peer engine: the join protocol,
// the iterative resolver, client-facing get/put, and the periodic
// finger refresh (spec.md §4.4–§4.7). It is the direct descendant of
// the original Python Peer class in
// _examples/original_source/chord/peer.py.
package node

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/lrem/chord/address"
	"github.com/lrem/chord/ring"
	"github.com/lrem/chord/routing"
	"github.com/lrem/chord/storage"
	"github.com/lrem/chord/wire"
)

// RefreshInterval is CHORD_UPDATE_INTERVAL, the default period
// between finger-table refresh passes (spec.md §4.6).
const RefreshInterval = 5 * time.Second

// DefaultTimeout bounds every outbound peer request, per spec.md §5's
// "SHOULD add a bounded deadline ... to prevent a single unreachable
// peer from wedging the refresh loop."
const DefaultTimeout = 3 * time.Second

// Conn is the bidirectional byte stream a Dialer hands back. It is
// satisfied by *net.TCPConn, but kept minimal so tests can supply an
// in-memory pipe instead.
type Conn interface {
	io.ReadWriteCloser
	SetDeadline(time.Time) error
}

// Dialer opens an outbound connection to a peer locator. The default
// Dialer used in production dials real TCP; tests supply a fake to
// exercise the engine without opening sockets.
type Dialer interface {
	Dial(ctx context.Context, locator string) (Conn, error)
}

// TCPDialer dials real TCP connections, normalizing bare-host
// locators to the default port (spec.md §6).
type TCPDialer struct{}

func (TCPDialer) Dial(ctx context.Context, locator string) (Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", wire.NormalizeLocator(locator))
	if err != nil {
		return nil, err
	}
	return conn.(*net.TCPConn), nil
}

// Peer is one Chord peer's engine: identity, routing state, local
// storage, and the network collaborator used to talk to the rest of
// the ring.
type Peer struct {
	SelfID ring.Key
	Port   int

	Table   *routing.Table
	Storage *storage.Store

	Dialer  Dialer
	Timeout time.Duration
}

// New creates a Peer with empty routing state and storage, as
// spec.md §3's Lifecycle describes ("created empty at startup").
func New(selfID ring.Key, port int) *Peer {
	return &Peer{
		SelfID:  selfID,
		Port:    port,
		Table:   routing.New(),
		Storage: storage.New(),
		Dialer:  TCPDialer{},
		Timeout: DefaultTimeout,
	}
}

// call performs one request/response round trip against locator,
// applying the bounded deadline, then closes the connection — every
// Chord operation is one request per TCP connection (mirroring the
// original ThreadingMixIn server, which closes after one Handler.handle()).
func (p *Peer) call(ctx context.Context, locator string, req wire.Request) (wire.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	conn, err := p.Dialer.Dial(ctx, locator)
	if err != nil {
		return nil, fmt.Errorf("node: dial %s: %w", locator, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	w := bufio.NewWriter(conn)
	if err := wire.WriteRequest(w, req); err != nil {
		return nil, fmt.Errorf("node: request to %s: %w", locator, err)
	}
	resp, err := wire.ReadResponse(bufio.NewReader(conn))
	if err != nil {
		return nil, fmt.Errorf("node: response from %s: %w", locator, err)
	}
	return resp, nil
}

func (p *Peer) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

// findRemote asks locator "who is closer to key" (the `find`
// operation) and translates the reply into a Hop.
func (p *Peer) findRemote(ctx context.Context, locator string, key ring.Key) (address.Hop, error) {
	resp, err := p.call(ctx, locator, wire.Request{Op: wire.OpFind, Key: key})
	if err != nil {
		return nil, err
	}
	switch r := resp.(type) {
	case wire.MeResponse:
		return address.Local{ID: r.ID}, nil
	case wire.PeerResponse:
		return address.Remote{ID: r.ID, Locator: r.Locator}, nil
	default:
		return nil, fmt.Errorf("node: unexpected find reply %#v from %s", resp, locator)
	}
}

// FindResponsible answers "who is responsible for key," returning
// nil when the caller itself is the owner (spec.md §4.4). seed, when
// non-empty, bootstraps the walk at that locator instead of
// consulting local routing state first — the join-time case.
func (p *Peer) FindResponsible(ctx context.Context, key ring.Key, seed string) (*address.Remote, error) {
	var hop address.Hop
	if seed != "" {
		hop = address.Remote{Locator: seed}
	} else {
		hop = p.Table.Snapshot().FindLocal(p.SelfID, key)
		if _, ok := hop.(address.Local); ok {
			return nil, nil
		}
	}
	for {
		remote, ok := hop.(address.Remote)
		if !ok {
			return nil, nil
		}
		next, err := p.findRemote(ctx, remote.Locator, key)
		if err != nil {
			return nil, err
		}
		if local, ok := next.(address.Local); ok {
			return &address.Remote{ID: local.ID, Locator: remote.Locator}, nil
		}
		hop = next
	}
}

// Connect runs the join protocol against bootstrap locator url
// (spec.md §4.5, joiner side).
func (p *Peer) Connect(ctx context.Context, url string) error {
	log.Printf("node: connecting to %s", url)
	successor, err := p.FindResponsible(ctx, p.SelfID, url)
	if err != nil {
		return fmt.Errorf("node: connect: locate successor: %w", err)
	}
	if successor == nil {
		return fmt.Errorf("node: connect: bootstrap %s claims to be me", url)
	}

	resp, err := p.call(ctx, successor.Locator, wire.Request{
		Op:    wire.OpAccept,
		Key:   p.SelfID,
		Value: []byte(strconv.Itoa(p.Port)),
	})
	if err != nil {
		return fmt.Errorf("node: connect: accept: %w", err)
	}
	chainResp, ok := resp.(wire.ChainResponse)
	if !ok {
		return fmt.Errorf("node: connect: unexpected accept reply %#v", resp)
	}
	chain := []address.Remote{*successor}
	for _, e := range chainResp.Entries {
		if e == nil {
			continue
		}
		chain = append(chain, address.Remote{ID: e.ID, Locator: e.Locator})
	}
	p.Table.SetChain(chain)

	for i := 0; i < ring.Bits; i++ {
		start := ring.Start(p.SelfID, i)
		if ring.Inside(start, p.SelfID, successor.ID) {
			continue
		}
		finger, err := p.FindResponsible(ctx, start, url)
		if err != nil {
			log.Printf("node: connect: finger %d: %v", i, err)
			continue
		}
		if finger != nil {
			p.Table.SetFinger(i, *finger, true)
		}
	}
	return nil
}

// Accept handles the acceptor side of the join protocol (spec.md
// §4.5): a joiner with identity joinerID, reachable at locator,
// becomes this peer's new chain head, and any finger slot that was
// empty and now falls outside the peer's (new) arc is provisionally
// pointed at the joiner.
func (p *Peer) Accept(joinerID ring.Key, locator string) {
	joiner := address.Remote{ID: joinerID, Locator: locator}
	p.Table.PrependChain(joiner)
	// TODO: transfer the joiner's new arc of stored keys (spec.md §9,
	// explicitly out of scope here).
	for i := 0; i < ring.Bits; i++ {
		start := ring.Start(p.SelfID, i)
		if ring.Inside(start, p.SelfID, joinerID) {
			continue
		}
		p.Table.InstallFingerIfEmpty(i, joiner)
	}
}

// Chain returns the current successor chain, for serializing into an
// accept reply or for introspection.
func (p *Peer) Chain() []address.Remote {
	return p.Table.Snapshot().Chain
}

// Get resolves the responsible peer for key and returns its value,
// locally or via a remote `get` (spec.md §4.7).
func (p *Peer) Get(ctx context.Context, key ring.Key) ([]byte, bool, error) {
	responsible, err := p.FindResponsible(ctx, key, "")
	if err != nil {
		return nil, false, err
	}
	if responsible == nil {
		value, ok := p.Storage.Get(key)
		return value, ok, nil
	}
	resp, err := p.call(ctx, responsible.Locator, wire.Request{Op: wire.OpGet, Key: key})
	if err != nil {
		return nil, false, err
	}
	switch r := resp.(type) {
	case wire.ValueResponse:
		return r.Data, true, nil
	case wire.NoneResponse:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("node: unexpected get reply %#v", resp)
	}
}

// Put resolves the responsible peer for key and stores value there,
// locally or via a remote `put` (spec.md §4.7).
func (p *Peer) Put(ctx context.Context, key ring.Key, value []byte) error {
	responsible, err := p.FindResponsible(ctx, key, "")
	if err != nil {
		return err
	}
	if responsible == nil {
		p.Storage.Put(key, value)
		return nil
	}
	resp, err := p.call(ctx, responsible.Locator, wire.Request{Op: wire.OpPut, Key: key, Value: value})
	if err != nil {
		return err
	}
	if _, ok := resp.(wire.OkResponse); !ok {
		return fmt.Errorf("node: unexpected put reply %#v", resp)
	}
	return nil
}

// Ping checks whether the peer at locator is alive, within timeout.
func (p *Peer) Ping(ctx context.Context, locator string) bool {
	resp, err := p.call(ctx, locator, wire.Request{Op: wire.OpPing})
	if err != nil {
		return false
	}
	_, ok := resp.(wire.PongResponse)
	return ok
}
