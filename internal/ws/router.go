// Package ws serves the voice websocket: one conversation per connection,
// frames decoded into protocol variants and dispatched to an agent.Session.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yasirabd/suarasemar/internal/agent"
)

const (
	defaultIdleTimeout = 30 * time.Second
	writeWait          = 10 * time.Second
	maxFrameSize       = 32 << 20
)

// Options configure a Router.
type Options struct {
	Services agent.Services
	Agent    agent.Config
	// Password, when set, is required on the upgrade request.
	Password string
	// IdleTimeout is how long to wait for a client frame before sending a
	// keep-alive ping.
	IdleTimeout time.Duration
	Logger      *zap.Logger
}

// Router upgrades HTTP requests and runs one conversation per connection.
// Collaborators in Services are shared by every connection.
type Router struct {
	opts     Options
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu    sync.Mutex
	conns map[string]*conn
	wg    sync.WaitGroup
}

func NewRouter(opts Options) *Router {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Router{
		opts:   opts,
		logger: opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  65536,
			WriteBufferSize: 65536,
			// browsers connect from the demo page on any origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*conn),
	}
}

// ServeHTTP upgrades the request and blocks until the connection ends.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if !Authorized(req, r.opts.Password) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	wsConn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("ws upgrade error", zap.Error(err))
		return
	}
	wsConn.SetReadLimit(maxFrameSize)

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	c := &conn{
		id:     id,
		ws:     wsConn,
		cancel: cancel,
		logger: r.logger.With(zap.String("conn", id)),
	}
	if !r.register(c) {
		cancel()
		_ = wsConn.Close()
		return
	}
	defer r.deregister(c)

	c.logger.Info("client connected", zap.String("remote", req.RemoteAddr))
	r.serve(ctx, c)
	c.logger.Info("client disconnected")
}

// Active returns the number of open connections.
func (r *Router) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Close ends every connection and waits for their turns to finish. Later
// upgrades are refused.
func (r *Router) Close() {
	r.mu.Lock()
	conns := r.conns
	r.conns = nil
	r.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
	r.wg.Wait()
}

func (r *Router) register(c *conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns == nil {
		return false
	}
	r.conns[c.id] = c
	r.wg.Add(1)
	return true
}

func (r *Router) deregister(c *conn) {
	r.mu.Lock()
	if r.conns != nil {
		delete(r.conns, c.id)
	}
	r.mu.Unlock()
	r.wg.Done()
}
