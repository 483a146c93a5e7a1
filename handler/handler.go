// Package handler is the server-side request dispatcher: it maps a
// parsed wire.Request to the node.Peer operation it names and writes
// back the wire.Response (spec.md §4.2 Handler, §7 error taxonomy).
package handler

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strconv"

	"github.com/lrem/chord/address"
	"github.com/lrem/chord/node"
	"github.com/lrem/chord/wire"
)

// Serve handles exactly one request on conn: read, dispatch, reply,
// close. This mirrors socketserver.StreamRequestHandler.handle() in
// the original source, which is called once per accepted connection.
func Serve(ctx context.Context, conn net.Conn, peer *node.Peer) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	req, err := wire.ReadRequest(r)
	if err != nil {
		log.Printf("handler: malformed request from %s: %v", conn.RemoteAddr(), err)
		return
	}

	resp := dispatch(ctx, conn, req, peer)

	w := bufio.NewWriter(conn)
	if err := wire.WriteResponse(w, resp); err != nil {
		log.Printf("handler: writing response to %s: %v", conn.RemoteAddr(), err)
	}
}

func dispatch(ctx context.Context, conn net.Conn, req wire.Request, peer *node.Peer) wire.Response {
	switch req.Op {
	case wire.OpFind:
		return handleFind(peer, req)
	case wire.OpAccept:
		return handleAccept(conn, peer, req)
	case wire.OpGet:
		return handleGet(ctx, peer, req)
	case wire.OpPut:
		return handlePut(ctx, peer, req)
	case wire.OpPing:
		return wire.PongResponse{}
	default:
		return wire.UnknownResponse{}
	}
}

func handleFind(peer *node.Peer, req wire.Request) wire.Response {
	hop := peer.Table.Snapshot().FindLocal(peer.SelfID, req.Key)
	return hopToResponse(hop)
}

// hopToResponse renders a routing Hop as the reply the `find`
// operation sends: "me <id>" when recursion should stop here, "peer
// <id> <locator>" to continue at a closer peer.
func hopToResponse(hop address.Hop) wire.Response {
	switch h := hop.(type) {
	case address.Local:
		return wire.MeResponse{ID: h.ID}
	case address.Remote:
		return wire.PeerResponse{ID: h.ID, Locator: h.Locator}
	default:
		return wire.UnknownResponse{}
	}
}

func handleAccept(conn net.Conn, peer *node.Peer, req wire.Request) wire.Response {
	resp := chainResponse(peer)
	port, err := strconv.Atoi(string(req.Value))
	if err != nil {
		log.Printf("handler: accept: malformed port %q: %v", req.Value, err)
		return resp
	}
	locator := joinerLocator(conn, port)
	peer.Accept(req.Key, locator)
	return resp
}

// handleGet and handlePut delegate to the full Peer.Get/Peer.Put
// resolve-then-serve operations, not a bare local storage lookup: per
// spec.md §4.7, "a client may address any peer; correctness does not
// depend on the choice," so a peer that isn't responsible for the key
// forwards on the client's behalf exactly as it would for itself.

func handleGet(ctx context.Context, peer *node.Peer, req wire.Request) wire.Response {
	value, ok, err := peer.Get(ctx, req.Key)
	if err != nil {
		log.Printf("handler: get %x: %v", uint32(req.Key), err)
		return wire.NoneResponse{}
	}
	if !ok {
		return wire.NoneResponse{}
	}
	return wire.ValueResponse{Data: value}
}

func handlePut(ctx context.Context, peer *node.Peer, req wire.Request) wire.Response {
	if err := peer.Put(ctx, req.Key, req.Value); err != nil {
		log.Printf("handler: put %x: %v", uint32(req.Key), err)
		return wire.UnknownResponse{}
	}
	return wire.OkResponse{}
}

func chainResponse(peer *node.Peer) wire.ChainResponse {
	chain := peer.Chain()
	entries := make([]*wire.PeerResponse, len(chain))
	for i, c := range chain {
		entries[i] = &wire.PeerResponse{ID: c.ID, Locator: c.Locator}
	}
	return wire.ChainResponse{Entries: entries}
}

// joinerLocator pairs the joiner's listening port with the
// peer-observed source IP of the connecting socket (spec.md §4.5).
// This reports the connecting socket's address, which only equals the
// joiner's externally-routable listening address when that joiner
// binds to all interfaces; behind NAT it is unreliable (spec.md §9
// Self-locator discovery), a known limitation carried over unchanged.
func joinerLocator(conn net.Conn, port int) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}
	return fmt.Sprintf("%s:%d", host, port)
}
