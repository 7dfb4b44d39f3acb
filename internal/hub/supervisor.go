package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// StatusListener is notified of connection status changes. Per §4.3,
// listeners must not block and the supervisor must not await them — each
// callback runs in its own goroutine, mirroring the teacher's non-blocking
// event delivery idiom.
type StatusListener func(name string, snapshot ConnectionSnapshot)

// supervisor owns one Connection's lifecycle: spawn, initialize, capability
// discovery, bounded retry, and reconnection. Grounded on the teacher's
// circuitState/getOrReconnect/singleflight pattern (internal/client/mcp_conn.go),
// adapted from a circuit-breaker (time-boxed open state) to the spec's
// retry-count cap with manual-reset semantics (§4.3).
type supervisor struct {
	cfg    ServerConfig
	logger *slog.Logger

	mu         sync.RWMutex
	status     ConnectionStatus
	caps       Capabilities
	lastErr    error
	lastOK     time.Time
	retryCount int
	client     *client

	listenersMu sync.RWMutex
	listeners   []StatusListener

	reconnectGroup singleflight.Group

	// onToolsDiscovered, when set, is invoked with the freshly discovered
	// tool set after every successful connect. The hub wires this to the
	// catalog's publish method.
	onToolsDiscovered func(serverName string, tools []ToolDescriptor)
}

func newSupervisor(cfg ServerConfig, logger *slog.Logger) *supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &supervisor{cfg: cfg, logger: logger.With("server", cfg.Name), status: StatusDisconnected}
}

func (s *supervisor) onStatusChange(l StatusListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *supervisor) snapshot() ConnectionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ConnectionSnapshot{
		Name:                    s.cfg.Name,
		Status:                  s.status,
		Capabilities:            s.caps,
		LastError:               s.lastErr,
		LastSuccessfulConnectAt: s.lastOK,
		RetryCount:              s.retryCount,
	}
}

func (s *supervisor) broadcast() {
	snap := s.snapshot()
	s.listenersMu.RLock()
	listeners := make([]StatusListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.RUnlock()
	for _, l := range listeners {
		go l(s.cfg.Name, snap)
	}
}

func (s *supervisor) setStatus(status ConnectionStatus, err error) {
	s.mu.Lock()
	s.status = status
	s.lastErr = err
	if status == StatusConnected {
		s.lastOK = time.Now()
	}
	s.mu.Unlock()
	s.broadcast()
}

// ensureConnection is idempotent: a healthy connection returns immediately,
// concurrent callers coalesce onto one dial via singleflight, and a server
// that has exhausted MaxRetryAttempts fails fast until resetRetries runs.
func (s *supervisor) ensureConnection(ctx context.Context) (*client, error) {
	s.mu.RLock()
	connected := s.status == StatusConnected
	c := s.client
	exhausted := s.retryCount >= MaxRetryAttempts
	s.mu.RUnlock()

	if connected && c != nil {
		return c, nil
	}
	if exhausted {
		return nil, ErrMaxRetries
	}

	val, err, _ := s.reconnectGroup.Do(s.cfg.Name, func() (any, error) {
		s.mu.RLock()
		connected := s.status == StatusConnected
		c := s.client
		s.mu.RUnlock()
		if connected && c != nil {
			return c, nil
		}
		return s.connect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return val.(*client), nil
}

// connect performs one bounded connection attempt: spawn, handshake,
// capability discovery, tool catalog seed. On any failure it increments
// retryCount and returns to disconnected.
func (s *supervisor) connect(ctx context.Context) (*client, error) {
	s.setStatus(StatusConnecting, nil)

	connectCtx, cancel := context.WithTimeout(ctx, ConnectionTimeout)
	defer cancel()

	transport, err := newStdioTransport(connectCtx, s.cfg, s.logger)
	if err != nil {
		return nil, s.fail(err)
	}
	c, err := newClient(connectCtx, s.cfg.Name, transport)
	if err != nil {
		if connectCtx.Err() != nil {
			return nil, s.fail(ErrConnectTimeout)
		}
		return nil, s.fail(err)
	}

	caps, tools, err := c.discoverCapabilities(connectCtx)
	if err != nil {
		_ = c.close()
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.client = c
	s.caps = caps
	s.retryCount = 0
	s.mu.Unlock()
	s.setStatus(StatusConnected, nil)
	s.logger.Info("connected", "tools", len(tools))

	if s.onToolsDiscovered != nil {
		s.onToolsDiscovered(s.cfg.Name, tools)
	}
	return c, nil
}

func (s *supervisor) fail(err error) error {
	s.mu.Lock()
	s.retryCount++
	s.client = nil
	s.mu.Unlock()
	s.setStatus(StatusDisconnected, err)
	s.logger.Warn("connect failed", "error", err, "retry_count", s.retryCount)
	return err
}

// forceReconnect marks the connection stale so the next ensureConnection
// redials rather than reusing a session the caller believes is broken.
func (s *supervisor) forceReconnect() {
	s.mu.Lock()
	s.client = nil
	if s.status == StatusConnected {
		s.status = StatusDisconnected
	}
	s.mu.Unlock()
}

// resetRetries clears the retry counter, re-enabling ensureConnection after
// MaxRetryAttempts was reached. Called by the hub's manual reconnectServer.
func (s *supervisor) resetRetries() {
	s.mu.Lock()
	s.retryCount = 0
	s.mu.Unlock()
}

func (s *supervisor) close() error {
	s.mu.Lock()
	c := s.client
	s.client = nil
	s.status = StatusDisconnected
	s.mu.Unlock()
	if c != nil {
		return c.close()
	}
	return nil
}
