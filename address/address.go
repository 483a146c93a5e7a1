// Package address holds the peer descriptor and "me" marker that
// every routing question resolves to (spec.md §3 Peer descriptor,
// §9 Design Notes "Polymorphic descriptor vs. self marker").
package address

import "github.com/lrem/chord/ring"

// Hop is one answer to "who is closer to the key's owner": either a
// Remote peer to continue the lookup at, or the Local marker meaning
// this peer is the owner and recursion should stop. It is the Go
// re-expression of the source's polymorphic peer-descriptor-vs-me
// tuple.
type Hop interface {
	isHop()
}

// Remote is a peer descriptor: an identifier paired with the
// network locator ("host:port") at which that peer accepts
// connections. Remote is never itself "me"; Local plays that role.
type Remote struct {
	ID      ring.Key
	Locator string
}

func (Remote) isHop() {}

// Local is the "me" marker. It carries the identifier only for
// logging; recursion in the iterative resolver terminates here.
type Local struct {
	ID ring.Key
}

func (Local) isHop() {}
