// Package worker implements block synchronization with the known peers of
// the node.
package worker

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/chain"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/peer"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/state"
)

// peerUpdateInterval represents the interval of finding new peer nodes
// and importing the blocks this node is missing.
const peerUpdateInterval = time.Minute

// maxResponseSize caps how much of a peer response is read.
const maxResponseSize = 64 << 20

// Config represents the configuration required to start the worker.
type Config struct {
	State     *state.State
	Peers     *peer.PeerSet
	Host      string
	Interval  time.Duration
	Client    *http.Client
	EvHandler chain.EventHandler

	// MaxResponse is the number of bytes read from a peer response,
	// defaulting to 64MB.
	MaxResponse int64
}

// Worker manages the peer synchronization workflow for the node.
type Worker struct {
	state     *state.State
	peers     *peer.PeerSet
	host      string
	client    *http.Client
	maxResp   int64
	wg        sync.WaitGroup
	ticker    *time.Ticker
	shut      chan struct{}
	evHandler chain.EventHandler
}

// Run creates a worker, performs an initial sync and starts the background
// goroutine that keeps the node in sync.
func Run(cfg Config) *Worker {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = peerUpdateInterval
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	maxResp := cfg.MaxResponse
	if maxResp <= 0 {
		maxResp = maxResponseSize
	}

	w := Worker{
		state:     cfg.State,
		peers:     cfg.Peers,
		host:      cfg.Host,
		client:    client,
		maxResp:   maxResp,
		ticker:    time.NewTicker(interval),
		shut:      make(chan struct{}),
		evHandler: ev,
	}

	// Update this node before starting the support G.
	w.Sync(context.Background())

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.peerOperations()
	}()

	return &w
}

// Shutdown terminates the goroutine performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: stop ticker")
	w.ticker.Stop()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// =============================================================================

// peerOperations syncs with the known peers on every tick.
func (w *Worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-w.shut
		cancel()
	}()

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.Sync(ctx)
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
