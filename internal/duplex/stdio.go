package duplex

import (
	"bufio"
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// ServeStdio runs a single duplex session over newline-delimited JSON
// on in/out instead of a websocket connection: config.ServerConfig's
// "stdio" transport, for exercising the duplex session manager and
// tool dispatcher from a local terminal without a browser client.
// Blocks until in reaches EOF or ctx is cancelled.
func ServeStdio(ctx context.Context, manager *Manager, correlation *CorrelationMap, mailboxSize int, in io.Reader, out io.Writer, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	h := NewHandler(manager, correlation, mailboxSize, log)

	sessionID := uuid.NewString()
	cs := manager.Add(sessionID, mailboxSize)
	log.Info("stdio duplex session opened", "session_id", sessionID)

	done := make(chan struct{})
	writeErr := make(chan error, 1)
	go func() {
		defer close(writeErr)
		for {
			select {
			case payload, ok := <-cs.outbound:
				if !ok {
					return
				}
				if _, err := out.Write(append(payload, '\n')); err != nil {
					writeErr <- err
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		h.handleInbound(sessionID, append([]byte(nil), line...))
	}

	close(done)
	manager.Remove(sessionID)
	log.Info("stdio duplex session closed", "session_id", sessionID)

	if err := scanner.Err(); err != nil {
		return err
	}
	return <-writeErr
}
