// Package redis manages the open/closed lifecycle of the process's Redis
// connection. Commands are issued on the go-redis client returned by
// Handle.Client; this package only connects, disconnects, and reports
// transport errors seen in between.
package redis

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/apex/log"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/m-lab/redisconn/logging"
	"github.com/m-lab/redisconn/metrics"
)

// ClientFactory builds the go-redis client used for one open period.
type ClientFactory func(*goredis.Options) goredis.UniversalClient

func newGoRedisClient(opts *goredis.Options) goredis.UniversalClient {
	return goredis.NewClient(opts)
}

// Option configures a Handle.
type Option func(*Handle)

// WithLogger replaces logging.Logger as the destination of lifecycle and
// transport error logs.
func WithLogger(l log.Interface) Option {
	return func(h *Handle) { h.logger = l }
}

// WithClientFactory replaces goredis.NewClient.
func WithClientFactory(f ClientFactory) Option {
	return func(h *Handle) { h.newClient = f }
}

// session is one open period of the handle.
type session struct {
	id     string
	client goredis.UniversalClient
}

// Handle wraps the Redis client.
type Handle struct {
	cfg       Config
	logger    log.Interface
	newClient ClientFactory

	// mu serializes Connect and Disconnect. current is nil while closed and
	// may be read without mu.
	mu      sync.Mutex
	current atomic.Pointer[session]

	obsMu     sync.RWMutex
	observers map[int]ErrorObserver
	nextObs   int
}

// New creates a closed Handle for the server named by cfg. The returned
// handle already logs transport errors.
func New(cfg Config, opts ...Option) *Handle {
	h := &Handle{
		cfg:       cfg,
		logger:    &logging.Logger,
		newClient: newGoRedisClient,
		observers: map[int]ErrorObserver{},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.Subscribe(&logObserver{logger: h.logger})
	return h
}

// Config returns the configuration the handle was created with.
func (h *Handle) Config() Config {
	return h.cfg
}

// IsOpen reports whether a connection is currently open.
func (h *Handle) IsOpen() bool {
	return h.current.Load() != nil
}

// Client returns the go-redis client of the open connection, or nil if the
// handle is closed.
func (h *Handle) Client() goredis.UniversalClient {
	if s := h.current.Load(); s != nil {
		return s.client
	}
	return nil
}

// SessionID returns an identifier for the current open period, or "" if
// the handle is closed.
func (h *Handle) SessionID() string {
	if s := h.current.Load(); s != nil {
		return s.id
	}
	return ""
}

// Connect opens the connection and verifies it with a PING. It does nothing
// if the handle is already open. On failure the handle stays closed and a
// *ConnectionError is returned.
func (h *Handle) Connect(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.IsOpen() {
		return nil
	}

	addr := h.cfg.Addr()
	client := h.newClient(&goredis.Options{Addr: addr})
	client.AddHook(&transportHook{h: h})
	if err := client.Ping(ctx).Err(); err != nil {
		// The client owns a pool even if no connection was made.
		_ = client.Close()
		metrics.ConnectCount.WithLabelValues("error").Inc()
		return &ConnectionError{Op: "connect", Addr: addr, Err: err}
	}

	s := &session{id: uuid.NewString(), client: client}
	h.current.Store(s)
	metrics.ConnectCount.WithLabelValues("ok").Inc()
	metrics.ConnectionOpen.Set(1)
	h.logger.WithFields(log.Fields{
		"addr":    addr,
		"session": s.id,
	}).Info("Connected to Redis")
	return nil
}

// Disconnect closes the connection. It does nothing if the handle is
// already closed. The handle is closed afterwards even when the client
// reports an error, since a closed go-redis client cannot be reused.
//
// The context is unused: go-redis closes its pool without network I/O.
// It is kept so Connect and Disconnect share a signature.
func (h *Handle) Disconnect(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.current.Load()
	if s == nil {
		return nil
	}

	// Mark closed first so errors produced by the teardown itself are not
	// reported as transport errors.
	h.current.Store(nil)
	metrics.ConnectionOpen.Set(0)
	if err := s.client.Close(); err != nil {
		metrics.DisconnectCount.WithLabelValues("error").Inc()
		return &ConnectionError{Op: "disconnect", Addr: h.cfg.Addr(), Err: err}
	}
	metrics.DisconnectCount.WithLabelValues("ok").Inc()
	h.logger.WithFields(log.Fields{
		"addr":    h.cfg.Addr(),
		"session": s.id,
	}).Info("Disconnected from Redis")
	return nil
}
