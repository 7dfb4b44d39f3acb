package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mcphub/internal/metrics"
)

// AuditSink receives a record of every completed tool call. Optional: a nil
// sink means calls simply aren't persisted (§6 AttachAuditStore).
type AuditSink interface {
	RecordCall(ctx context.Context, serverName, toolName string, opType OperationType, ok bool, startedAt time.Time, duration time.Duration, rollbackTriggered, rollbackOK bool)
}

// Hub is the stable public facade (C8): initialize, listConnections,
// listTools, callTool, onStatusChange, reconnectServer, Shutdown. Grounded
// on the teacher's cmd/server/main.go wiring and MCPClient.InitializeConnections
// non-fatal-per-server idiom (internal/client/mcp.go).
type Hub struct {
	logger *slog.Logger

	mu          sync.RWMutex
	supervisors map[string]*supervisor
	queues      map[string]*serverQueue

	catalog   *catalog
	admission *admissionControl

	inFlight sync.WaitGroup

	listenersMu sync.RWMutex
	listeners   []StatusListener

	auditMu sync.RWMutex
	audit   AuditSink
}

// New constructs a Hub for the given server configs. It does not connect
// until Initialize is called.
func New(configs []ServerConfig, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		logger:      logger,
		supervisors: make(map[string]*supervisor, len(configs)),
		queues:      make(map[string]*serverQueue, len(configs)),
		catalog:     newCatalog(),
		admission:   newAdmissionControl(MaxConcurrentOperations),
	}
	for _, cfg := range configs {
		sv := newSupervisor(cfg, logger)
		sv.onToolsDiscovered = h.catalog.publish
		sv.onStatusChange(h.relayStatus)
		h.supervisors[cfg.Name] = sv
		h.queues[cfg.Name] = newServerQueue()
	}
	return h
}

func (h *Hub) relayStatus(name string, snap ConnectionSnapshot) {
	if snap.Status != StatusConnected {
		h.catalog.clear(name)
	}
	h.listenersMu.RLock()
	listeners := make([]StatusListener, len(h.listeners))
	copy(listeners, h.listeners)
	h.listenersMu.RUnlock()
	for _, l := range listeners {
		go l(name, snap)
	}
}

// Initialize spawns and connects all configured servers in parallel. A
// single server's connection failure never fails the whole call — it stays
// in disconnected with LastError set, exactly as §6 requires.
func (h *Hub) Initialize(ctx context.Context) error {
	h.mu.RLock()
	supervisors := make([]*supervisor, 0, len(h.supervisors))
	for _, sv := range h.supervisors {
		supervisors = append(supervisors, sv)
	}
	h.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, sv := range supervisors {
		sv := sv
		g.Go(func() error {
			if _, err := sv.ensureConnection(gctx); err != nil {
				h.logger.Warn("initialize: server failed to connect", "server", sv.cfg.Name, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// AttachAuditStore wires an optional audit sink. Calling with nil disables
// auditing.
func (h *Hub) AttachAuditStore(sink AuditSink) {
	h.auditMu.Lock()
	h.audit = sink
	h.auditMu.Unlock()
}

func (h *Hub) OnStatusChange(l StatusListener) {
	h.listenersMu.Lock()
	h.listeners = append(h.listeners, l)
	h.listenersMu.Unlock()
}

// ListConnections reports every configured server's current snapshot.
func (h *Hub) ListConnections() []ConnectionSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ConnectionSnapshot, 0, len(h.supervisors))
	for _, sv := range h.supervisors {
		out = append(out, sv.snapshot())
	}
	return out
}

// ListTools returns the cached tool descriptors for one server.
func (h *Hub) ListTools(serverName string) []ToolDescriptor {
	return h.catalog.list(serverName)
}

// ToolDescriptor resolves one (server, tool) pair via the catalog.
func (h *Hub) ToolDescriptor(serverName, toolName string) (ToolDescriptor, error) {
	return h.catalog.lookup(serverName, toolName)
}

// ToolExists reports whether a (server, tool) pair is currently cataloged.
func (h *Hub) ToolExists(serverName, toolName string) bool {
	return h.catalog.exists(serverName, toolName)
}

// ReconnectServer clears the retry counter and forces a fresh connect
// attempt, bypassing a MaxRetriesExceeded lockout.
func (h *Hub) ReconnectServer(ctx context.Context, name string) error {
	h.mu.RLock()
	sv, ok := h.supervisors[name]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrConfigMissing, name)
	}
	sv.resetRetries()
	sv.forceReconnect()
	_, err := sv.ensureConnection(ctx)
	return err
}

// CallTool dispatches one tools/call through the per-server FIFO queue and
// hub-wide admission control (§4.4). It re-establishes the connection
// first via ensureConnection; connection failures surface as NotConnected
// or MaxRetriesExceeded rather than a generic error.
func (h *Hub) CallTool(ctx context.Context, serverName, toolName string, args map[string]any) (any, error) {
	h.mu.RLock()
	sv, svOK := h.supervisors[serverName]
	q, qOK := h.queues[serverName]
	h.mu.RUnlock()
	if !svOK || !qOK {
		return nil, fmt.Errorf("%w: %s", ErrConfigMissing, serverName)
	}

	release, ok := h.admission.tryAcquire()
	if !ok {
		metrics.ToolCallsTotal.WithLabelValues(serverName, toolName, "rejected").Inc()
		return nil, ErrOverloaded
	}
	metrics.ActiveOperations.Inc()
	defer metrics.ActiveOperations.Dec()
	defer release()

	h.inFlight.Add(1)
	defer h.inFlight.Done()

	startedAt := time.Now()
	result, err := q.enqueue(ctx, func(ctx context.Context) (any, error) {
		c, err := sv.ensureConnection(ctx)
		if err != nil {
			if errors.Is(err, ErrMaxRetries) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: server %q: %w", ErrNotConnected, serverName, err)
		}
		result, err := c.callTool(ctx, toolName, args)
		if err != nil {
			return nil, &ToolCallFailedError{Server: serverName, Tool: toolName, Cause: err}
		}
		return result, nil
	})
	duration := time.Since(startedAt)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ToolCallsTotal.WithLabelValues(serverName, toolName, status).Inc()
	metrics.ToolCallDuration.WithLabelValues(serverName, toolName).Observe(duration.Seconds())

	h.recordAudit(ctx, serverName, toolName, err == nil, startedAt)
	return result, err
}

// recordAudit reports one RPC-level call to the attached AuditSink, if any.
// It runs at the Hub's dispatch boundary, independent of whatever
// rollback the Tool Executor layered on top — a rollback shows up here as
// its own separate call to the compensating tool.
func (h *Hub) recordAudit(ctx context.Context, serverName, toolName string, ok bool, startedAt time.Time) {
	h.auditMu.RLock()
	sink := h.audit
	h.auditMu.RUnlock()
	if sink == nil {
		return
	}
	sink.RecordCall(ctx, serverName, toolName, classifyOperationName(toolName), ok, startedAt, time.Since(startedAt), false, false)
}

// ActiveOperationCount exposes the admission counter for metrics/tests.
func (h *Hub) ActiveOperationCount() int {
	return h.admission.count()
}

// Shutdown drains in-flight operations (observed via the tracked WaitGroup)
// then closes every transport (§5).
func (h *Hub) Shutdown(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		h.inFlight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
	}

	h.mu.RLock()
	supervisors := make([]*supervisor, 0, len(h.supervisors))
	for _, sv := range h.supervisors {
		supervisors = append(supervisors, sv)
	}
	queues := make([]*serverQueue, 0, len(h.queues))
	for _, q := range h.queues {
		queues = append(queues, q)
	}
	h.mu.RUnlock()

	var firstErr error
	for _, sv := range supervisors {
		if err := sv.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, q := range queues {
		q.close()
	}
	return firstErr
}
