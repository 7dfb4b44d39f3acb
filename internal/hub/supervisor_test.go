package hub

import (
	"context"
	"errors"
	"testing"
)

func TestSupervisor_FailIncrementsRetryUntilExhausted(t *testing.T) {
	s := newSupervisor(ServerConfig{Name: "fs"}, nil)

	for i := 0; i < MaxRetryAttempts; i++ {
		s.fail(errors.New("boom"))
	}

	snap := s.snapshot()
	if snap.RetryCount != MaxRetryAttempts {
		t.Fatalf("expected retry count %d, got %d", MaxRetryAttempts, snap.RetryCount)
	}
	if snap.Status != StatusDisconnected {
		t.Fatalf("expected disconnected status, got %v", snap.Status)
	}

	_, err := s.ensureConnection(context.Background())
	if !errors.Is(err, ErrMaxRetries) {
		t.Fatalf("expected ErrMaxRetries once exhausted, got %v", err)
	}
}

func TestSupervisor_ResetRetriesReenablesConnection(t *testing.T) {
	s := newSupervisor(ServerConfig{Name: "fs", Command: "/bin/false"}, nil)
	for i := 0; i < MaxRetryAttempts; i++ {
		s.fail(errors.New("boom"))
	}
	s.resetRetries()

	if s.snapshot().RetryCount != 0 {
		t.Fatalf("expected retry count reset to 0")
	}
	// ensureConnection will attempt a real connect and fail since /bin/false
	// is not an MCP server, but it must not fast-fail with ErrMaxRetries.
	_, err := s.ensureConnection(context.Background())
	if errors.Is(err, ErrMaxRetries) {
		t.Fatalf("did not expect ErrMaxRetries immediately after reset")
	}
}

func TestSupervisor_BroadcastNotifiesListeners(t *testing.T) {
	s := newSupervisor(ServerConfig{Name: "fs"}, nil)
	received := make(chan ConnectionSnapshot, 1)
	s.onStatusChange(func(name string, snap ConnectionSnapshot) {
		received <- snap
	})

	s.setStatus(StatusConnecting, nil)

	snap := <-received
	if snap.Status != StatusConnecting {
		t.Fatalf("expected connecting status, got %v", snap.Status)
	}
}
