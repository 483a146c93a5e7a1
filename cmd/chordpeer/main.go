// Command chordpeer runs one peer of a Chord distributed hash table.
// Flag parsing, process bootstrap, and signal handling are external
// collaborators, not part of the core spec this module implements
// (spec.md §1); this file only wires them to the node/handler
// packages, in the teacher corpus's cobra-based cmd/root.go style.
package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/blake2b"

	"github.com/lrem/chord/handler"
	"github.com/lrem/chord/node"
	"github.com/lrem/chord/ring"
)

var (
	keyHex string
	seed   string
	url    string
	port   int
)

var rootCmd = &cobra.Command{
	Use:   "chordpeer",
	Short: "Run a peer of a Chord distributed hash table",
	Long: `chordpeer runs one peer of a Chord distributed hash table: it
accepts joiners, answers routing queries, and stores the keys that
fall inside its arc of the ring.

Identifiers are 30-bit and chosen randomly unless -key or -seed is
given. Random ids can collide across a large overlay; chordpeer does
not detect or reject a colliding join (this is an open question in
the design this peer implements, not a bug).`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&keyHex, "key", "", "hexadecimal identifier for this peer")
	rootCmd.Flags().StringVar(&seed, "seed", "", "derive this peer's identifier deterministically from a string, for reproducible local clusters")
	rootCmd.Flags().StringVar(&url, "url", "", "locator of an existing DHT peer to join through")
	rootCmd.Flags().IntVar(&port, "port", 4321, "listening TCP port")
}

// Execute runs the command-line entry point.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}

func run(cmd *cobra.Command, args []string) error {
	id, err := resolveID(keyHex, seed)
	if err != nil {
		return err
	}
	log.Printf("chordpeer: key %x", uint32(id))

	peer := node.New(id, port)
	srv := handler.NewServer(fmt.Sprintf("0.0.0.0:%d", port), peer)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("chordpeer: %w", err)
	}
	defer srv.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if url != "" {
		if err := peer.Connect(ctx, url); err != nil {
			return fmt.Errorf("chordpeer: connect: %w", err)
		}
	}

	go peer.RefreshLoop(ctx, node.RefreshInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("chordpeer: shutting down")
	return nil
}

// resolveID picks this peer's identifier: -key takes an explicit hex
// value, -seed derives one deterministically via blake2b (grounded in
// the teacher's own dht.go, which hashes an address into a node id
// with SHA-1), and otherwise a random 30-bit id is drawn, matching
// the original source's "random.randint(0, MAX_KEY)" default.
func resolveID(keyHex, seed string) (ring.Key, error) {
	switch {
	case keyHex != "" && seed != "":
		return 0, fmt.Errorf("chordpeer: -key and -seed are mutually exclusive")
	case keyHex != "":
		v, err := strconv.ParseUint(keyHex, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("chordpeer: malformed -key %q: %w", keyHex, err)
		}
		return ring.Mask(uint32(v)), nil
	case seed != "":
		return deriveID(seed), nil
	default:
		return randomID()
	}
}

func deriveID(seed string) ring.Key {
	sum := blake2b.Sum256([]byte(seed))
	return ring.Mask(binary.BigEndian.Uint32(sum[:4]))
}

func randomID() (ring.Key, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("chordpeer: generating random id: %w", err)
	}
	return ring.Mask(binary.BigEndian.Uint32(buf[:])), nil
}
