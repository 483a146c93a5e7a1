package handler

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/netutil"

	"github.com/lrem/chord/node"
)

// MaxConnections bounds how many peer connections may be in flight at
// once. The original Python server (socketserver.ThreadingMixIn)
// spawns one OS thread per connection with no cap at all; a single
// slow or hostile joiner could otherwise exhaust this process's file
// descriptors the way the teacher corpus's echo/tcp servers can.
const MaxConnections = 256

// Server accepts peer connections and dispatches each to Serve,
// matching the accept-loop/per-connection-goroutine split the teacher
// corpus's echo and tcp servers use.
type Server struct {
	address string
	peer    *node.Peer

	listener net.Listener
	quit     chan struct{}
	wg       sync.WaitGroup
}

// NewServer returns a Server that will listen on address and dispatch
// requests to peer.
func NewServer(address string, peer *node.Peer) *Server {
	return &Server{
		address: address,
		peer:    peer,
		quit:    make(chan struct{}),
	}
}

// Start opens the listener and begins accepting connections in the
// background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("handler: listen on %s: %w", s.address, err)
	}
	s.listener = netutil.LimitListener(listener, MaxConnections)
	log.Printf("handler: listening on %s", s.address)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log.Printf("handler: accept: %v", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	connID := uuid.New().String()
	log.Printf("handler[%s]: connection from %s", connID, conn.RemoteAddr())
	Serve(context.Background(), conn, s.peer)
}

// Addr returns the listener's bound address. It is only valid after
// Start returns successfully.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop closes the listener and waits for in-flight connections to
// finish.
func (s *Server) Stop() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	log.Println("handler: stopped")
}
