package hub

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// newStdioTransport spawns cfg's command with a merged environment (process
// env union server-specific overlay, overlay wins, undefined-valued keys
// dropped) and returns an mcp.CommandTransport framing JSON-RPC over its
// stdio. Stderr is piped to a logger tagged with the server name so a
// misbehaving child's diagnostics don't vanish silently.
func newStdioTransport(ctx context.Context, cfg ServerConfig, logger *slog.Logger) (mcp.Transport, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("server %q: %w", cfg.Name, ErrConfigMissing)
	}
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Env = mergeEnv(os.Environ(), cfg.Env)
	cmd.Stderr = &stderrLogWriter{server: cfg.Name, logger: logger}
	return &mcp.CommandTransport{Command: cmd}, nil
}

// mergeEnv overlays overlay on top of base, keyed as NAME=VALUE pairs. A key
// present in overlay with an empty value is dropped rather than set, per
// the "undefined values are dropped" rule.
func mergeEnv(base []string, overlay map[string]string) []string {
	merged := make(map[string]string, len(base)+len(overlay))
	for _, kv := range base {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				merged[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	for k, v := range overlay {
		if v == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	return out
}

// stderrLogWriter tags a child process's stderr stream with its server name
// and forwards it line-wise to structured logging, so operators can still
// see what a misbehaving tool server printed without it polluting stdout
// framing.
type stderrLogWriter struct {
	server string
	logger *slog.Logger
	buf    []byte
}

func (w *stderrLogWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		idx := indexByte(w.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf[:idx])
		w.buf = w.buf[idx+1:]
		if line != "" {
			logger := w.logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Debug("child stderr", "server", w.server, "line", line)
		}
	}
	return len(p), nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

var _ io.Writer = (*stderrLogWriter)(nil)
