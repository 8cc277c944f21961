package client

import (
	"context"
	"errors"
	"sync"
)

type operation struct {
	session *Session
	done    chan struct{}

	mu        sync.Mutex
	once      sync.Once
	completed bool
	err       error
	callbacks []func(error)
}

func newOperation(session *Session) *operation {
	return &operation{
		session: session,
		done:    make(chan struct{}),
	}
}

func (op *operation) complete(err error) {
	op.once.Do(func() {
		op.mu.Lock()
		op.err = err
		op.completed = true
		callbacks := append([]func(error){}, op.callbacks...)
		op.callbacks = nil
		op.mu.Unlock()

		close(op.done)

		for _, cb := range callbacks {
			cb := cb
			go cb(err)
		}
	})
}

func (op *operation) errSnapshot() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.err
}

func (op *operation) addCallback(cb func(error)) {
	if cb == nil {
		return
	}
	op.mu.Lock()
	if op.completed {
		err := op.err
		op.mu.Unlock()
		go cb(err)
		return
	}
	op.callbacks = append(op.callbacks, cb)
	op.mu.Unlock()
}

// SubmitFuture tracks the completion of one submitted operation.
type SubmitFuture struct {
	op *operation
}

// Await blocks until the operation completes or the context is cancelled.
func (f *SubmitFuture) Await(ctx context.Context) error {
	if f == nil || f.op == nil {
		return errors.New("dct client: nil submit future")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		select {
		case <-f.op.done:
			return f.op.errSnapshot()
		default:
		}
		return ctx.Err()
	case <-f.op.done:
		return f.op.errSnapshot()
	}
}

// Done exposes a channel that closes when the operation completes.
func (f *SubmitFuture) Done() <-chan struct{} {
	if f == nil || f.op == nil {
		return nil
	}
	return f.op.done
}

// OnComplete registers a callback invoked asynchronously once the operation
// resolves.
func (f *SubmitFuture) OnComplete(fn func(error)) {
	if f == nil || f.op == nil || fn == nil {
		return
	}
	f.op.addCallback(fn)
}
