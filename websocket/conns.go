package websocket

import (
	"context"
	"sync"

	"golang.org/x/net/websocket"
)

// Conns tracks the connections being served so that shutdown can wait for
// every handler to return before the tiles they query are unloaded.
// http.Server.Shutdown does not wait for hijacked connections.
type Conns struct {
	mutex  sync.Mutex
	closed bool
	active sync.WaitGroup
}

// Serve handles conn with a handler built by newHandler. Connections arriving
// after Wait was called are closed right away.
func (c *Conns) Serve(ctx context.Context, conn *websocket.Conn, newHandler func() Handler) {
	defer conn.Close()

	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return
	}
	c.active.Add(1)
	c.mutex.Unlock()
	defer c.active.Done()

	h := newHandler()
	defer h.Close()

	Handle(ctx, conn, h)
}

// Wait stops accepting connections and blocks until every served connection
// returned.
func (c *Conns) Wait() {
	c.mutex.Lock()
	c.closed = true
	c.mutex.Unlock()

	c.active.Wait()
}
