package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"sync"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ziesha/bazuka/internal/blockchain"
	"github.com/ziesha/bazuka/internal/client"
	"github.com/ziesha/bazuka/internal/core"
)

var log = logrus.WithField("module", "node")

// NodeRequest is one inbound RPC in flight between the transport and the
// dispatcher. Resp carries exactly one value; correlation is by construction.
type NodeRequest struct {
	SocketAddr netip.AddrPort
	Path       string
	Body       []byte
	Resp       chan NodeResponse
}

// NodeResponse is the dispatcher's reply: a JSON body or an error the
// transport maps to a status code.
type NodeResponse struct {
	Body []byte
	Err  error
}

// Node composes the server loop, client loop, dispatcher and heartbeat
// pipeline around the shared context.
type Node struct {
	clk  clock.Clock
	opts Options

	// mu is the process-wide reader-writer lock over ctx. Heartbeat tasks
	// and handlers snapshot under RLock, do their I/O unlocked, and apply
	// results under Lock. Never held across network I/O.
	mu  sync.RWMutex
	ctx *NodeContext

	firewall *Firewall
	inbound  *client.Queue[*NodeRequest]
	outgoing *client.Outgoing

	// relayedTxs remembers recently-gossiped transaction ids.
	relayedTxs *lru.Cache[core.Hash, struct{}]

	// dispatcherDone closes when the dispatcher exits, turning waiting
	// transport handlers into 503s instead of hangs.
	dispatcherDone chan struct{}
}

// New assembles a node around a blockchain handle. The clock is injected so
// tests can drive time.
func New(opts Options, bc blockchain.Blockchain, clk clock.Clock) *Node {
	out := client.NewOutgoing()
	relayed, _ := lru.New[core.Hash, struct{}](8192)
	return &Node{
		clk:            clk,
		opts:           opts,
		ctx:            newContext(opts, bc, clk, out),
		firewall:       NewFirewall(opts.Firewall, clk),
		inbound:        client.NewQueue[*NodeRequest](),
		outgoing:       out,
		relayedTxs:     relayed,
		dispatcherDone: make(chan struct{}),
	}
}

// Run drives the node until ctx is cancelled or one of the loops fails;
// the first error cancels the rest.
func (n *Node) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	server := &http.Server{Addr: n.opts.ListenAddr, Handler: n.Router()}
	g.Go(func() error {
		<-ctx.Done()
		n.inbound.Close()
		n.outgoing.Close()
		return server.Shutdown(context.Background())
	})
	g.Go(func() error {
		log.WithField("addr", n.opts.ListenAddr).Info("listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server loop: %w", err)
		}
		return nil
	})
	g.Go(func() error { return n.outgoing.RunLoop(ctx) })
	g.Go(func() error { return n.runDispatcher(ctx) })
	g.Go(func() error { return n.runHeartbeat(ctx) })

	return g.Wait()
}

// Router exposes the RPC surface. Split out from Run so tests can mount it
// on an httptest server.
func (n *Node) Router() http.Handler {
	router := httprouter.New()
	serve := func(path string) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
			n.serveHTTP(w, r, path)
		}
	}
	router.POST("/peers", serve("/peers"))
	router.GET("/stats", serve("/stats"))
	router.POST("/transact", serve("/transact"))
	router.POST("/block", serve("/block"))
	router.POST("/blocks", serve("/blocks"))
	return router
}

// serveHTTP is the inbound intake: firewall admission, enqueue, await the
// dispatcher's single reply.
func (n *Node) serveHTTP(w http.ResponseWriter, r *http.Request, path string) {
	remote, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil {
		http.Error(w, "unreadable remote address", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, n.opts.MaxBodySize))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	if !n.firewall.Allow(remote.Addr(), int64(len(body))) {
		n.mu.Lock()
		n.ctx.Punish(remote, uint64(n.opts.TripPunishment.Seconds()))
		n.mu.Unlock()
		http.Error(w, "firewall: too many requests", http.StatusTooManyRequests)
		return
	}

	req := &NodeRequest{
		SocketAddr: remote,
		Path:       path,
		Body:       body,
		Resp:       make(chan NodeResponse, 1),
	}
	if err := n.inbound.Push(req); err != nil {
		http.Error(w, ErrNotListening.Error(), http.StatusServiceUnavailable)
		return
	}

	select {
	case resp := <-req.Resp:
		n.writeResponse(w, resp)
	case <-n.dispatcherDone:
		// The dispatcher may have answered just before exiting.
		select {
		case resp := <-req.Resp:
			n.writeResponse(w, resp)
		default:
			http.Error(w, ErrNotAnswering.Error(), http.StatusServiceUnavailable)
		}
	}
}

func (n *Node) writeResponse(w http.ResponseWriter, resp NodeResponse) {
	if resp.Err != nil {
		http.Error(w, resp.Err.Error(), statusOf(resp.Err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(resp.Body)
}
