// Package request implements the "only the latest request wins" policy used
// for rapid repeated calls of the same kind (as-you-type suggestion, search,
// explore). Starting a new request cancels the previous in-flight one, so
// only the newest result is ever applied.
package request

import (
	"context"
	"sync"
)

// Latest supersedes in-flight requests of one kind. The zero value is ready
// to use; one Latest per request kind.
type Latest struct {
	mu     sync.Mutex
	serial uint64
	cancel context.CancelFunc
}

// Begin cancels any previous in-flight request of this kind and returns a
// context for the new one. The returned stop function releases the
// request's resources; call it when the request finishes, superseded or not.
func (l *Latest) Begin(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.serial++
	serial := l.serial
	l.cancel = cancel
	l.mu.Unlock()

	stop := func() {
		cancel()
		l.mu.Lock()
		// Clear the slot only while it still belongs to this request.
		if l.serial == serial {
			l.cancel = nil
		}
		l.mu.Unlock()
	}
	return ctx, stop
}

// CancelPending aborts the current in-flight request, if any.
func (l *Latest) CancelPending() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// Superseded reports whether ctx belongs to a request that has been
// replaced by a newer one.
func Superseded(ctx context.Context) bool {
	return ctx.Err() != nil
}
