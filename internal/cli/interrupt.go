package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// InterruptHandler manages graceful shutdown with friendly messages.
type InterruptHandler struct {
	writer      io.Writer
	interrupted bool
	resumable   bool
	mu          sync.Mutex
}

// NewInterruptHandler creates a new interrupt handler.
func NewInterruptHandler(writer io.Writer) *InterruptHandler {
	if writer == nil {
		writer = os.Stdout
	}
	return &InterruptHandler{
		writer: writer,
	}
}

// HandleInterrupts returns a context that is canceled on SIGINT or SIGTERM.
// Resumable work gets a hint that re-running is safe.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context, resumable bool) context.Context {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	return h.watch(ctx, sigChan, resumable, func() { signal.Stop(sigChan) })
}

func (h *InterruptHandler) watch(ctx context.Context, sigChan <-chan os.Signal, resumable bool, stop func()) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	h.resumable = resumable

	go func() {
		defer stop()
		select {
		case <-sigChan:
			h.mu.Lock()
			if !h.interrupted {
				h.interrupted = true
				h.showInterruptMessage()
			}
			h.mu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx
}

func (h *InterruptHandler) showInterruptMessage() {
	msg := "\n\n" + FormatWarning("Import interrupted!")

	if h.resumable {
		msg += "\n" + FormatInfo("Committed messages are journaled. Re-run the same import to continue; they will be skipped.")
	}

	msg += "\n"

	if _, err := fmt.Fprint(h.writer, msg); err != nil {
		// Best effort - we're shutting down anyway
		fmt.Fprintf(os.Stderr, "Failed to write interrupt message: %v\n", err)
	}
}

// WasInterrupted returns true if the process was interrupted.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}
