package recovery

import "sync"

// cancelToken is a cooperative cancellation flag. The retry loop checks it
// at its checkpoints (pre-attempt, pre-wait); it cannot interrupt an
// operation already executing inside the wrapped call.
type cancelToken struct {
	once sync.Once
	ch   chan struct{}
}

func newCancelToken() *cancelToken {
	return &cancelToken{ch: make(chan struct{})}
}

// cancel trips the token. Safe to call more than once.
func (t *cancelToken) cancel() {
	t.once.Do(func() { close(t.ch) })
}

// cancelled reports whether the token has been tripped.
func (t *cancelToken) cancelled() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// register tracks an in-flight operation and returns its token.
func (e *Engine) register(operationID string) *cancelToken {
	token := newCancelToken()
	e.mu.Lock()
	e.inflight[operationID] = token
	e.mu.Unlock()
	return token
}

// release forgets a completed operation.
func (e *Engine) release(operationID string) {
	e.mu.Lock()
	delete(e.inflight, operationID)
	e.mu.Unlock()
}
