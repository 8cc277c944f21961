// Package client layers a goroutine-safe session on top of the dct core: a
// background dispatcher drives the interface's progress function, submitted
// operations resolve through futures, and hooks expose structured logging,
// tracing, and metrics. The core itself is single-threaded by contract, so
// the session serializes every interface call behind one mutex.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rdmakit/dct-go/dct"
	"github.com/rdmakit/dct-go/internal/swdc"
)

// ErrClosed indicates the session has already been closed.
var ErrClosed = errors.New("dct client: closed")

// ErrUnknownPeer indicates a peer handle that was never registered or was
// already closed.
var ErrUnknownPeer = errors.New("dct client: unknown peer")

// Peer is a handle to one registered remote target.
type Peer uint64

// Config controls Open behaviour for the high-level Session.
type Config struct {
	// Device supplies the initiator hardware. Nil selects an in-process
	// software device in auto-complete mode, which is useful for tests and
	// local development.
	Device dct.Device

	PoolSize       int
	Policy         dct.Policy
	MaxOutstanding int
	PendingLimit   int

	// Timeout bounds blocking calls that were given a context without a
	// deadline. Defaults to 5s.
	Timeout time.Duration
	// ProgressBatch bounds completions drained per dispatcher iteration.
	ProgressBatch int

	Logger           Logger
	StructuredLogger StructuredLogger
	Tracer           Tracer
	Metrics          MetricHook
}

// Logger provides printf-style debug logging hooks for the session.
type Logger interface {
	Debugf(format string, args ...any)
}

// StructuredLogger emits key/value pairs for structured logging backends.
type StructuredLogger interface {
	Debugw(msg string, keyvals ...any)
}

// TraceAttribute represents a tracing attribute attached to dispatcher spans
// or events.
type TraceAttribute struct {
	Key   string
	Value any
}

// Tracer starts spans that wrap dispatcher activity.
type Tracer interface {
	StartSpan(name string, attrs ...TraceAttribute) Span
}

// Span records dispatcher lifecycle, events, and errors for tracing systems.
type Span interface {
	End(err error)
	AddEvent(name string, attrs ...TraceAttribute)
	RecordError(err error)
}

// MetricHook captures dispatcher telemetry events.
type MetricHook interface {
	DispatcherStarted(attrs map[string]string)
	DispatcherStopped(attrs map[string]string)
	DispatcherProgressError(kind string, err error, attrs map[string]string)
	SubmitQueued(attrs map[string]string)
	OperationCompleted(attrs map[string]string)
	OperationFailed(err error, attrs map[string]string)
}

// Session owns a dct interface and the dispatcher goroutine progressing it.
type Session struct {
	cfg Config

	mu      sync.Mutex
	iface   *dct.Interface
	peers   map[Peer]*dct.Endpoint
	peerSeq uint64

	closed        atomic.Bool
	dispatcherErr atomic.Pointer[errorHolder]
	stopCh        chan struct{}
	wg            sync.WaitGroup

	logger           Logger
	structuredLogger StructuredLogger
	tracer           Tracer
	metrics          MetricHook
}

type errorHolder struct {
	err error
}

// Open builds a session over the configured device and starts its dispatcher.
func Open(cfg Config) (*Session, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ProgressBatch <= 0 {
		cfg.ProgressBatch = 64
	}

	coreCfg := dct.Config{
		PoolSize:       cfg.PoolSize,
		Policy:         cfg.Policy,
		MaxOutstanding: cfg.MaxOutstanding,
		PendingLimit:   cfg.PendingLimit,
	}

	dev := cfg.Device
	if dev == nil {
		slots := coreCfg.PoolSize
		if slots == 0 {
			slots = dct.DefaultPoolSize
		}
		depth := coreCfg.MaxOutstanding
		if depth == 0 {
			depth = dct.DefaultMaxOutstanding
		}
		dev = swdc.New(swdc.Options{Slots: slots, Depth: depth, Auto: true})
	}

	iface, err := dct.New(dev, coreCfg)
	if err != nil {
		return nil, fmt.Errorf("create interface: %w", err)
	}

	structured := cfg.StructuredLogger
	if structured == nil {
		if logger, ok := cfg.Logger.(StructuredLogger); ok {
			structured = logger
		}
	}

	s := &Session{
		cfg:              cfg,
		iface:            iface,
		peers:            make(map[Peer]*dct.Endpoint),
		stopCh:           make(chan struct{}),
		logger:           cfg.Logger,
		structuredLogger: structured,
		tracer:           cfg.Tracer,
		metrics:          cfg.Metrics,
	}

	s.wg.Add(1)
	go s.dispatch()

	return s, nil
}

// Close stops the dispatcher and tears the interface down. Operations still
// pending resolve with cancellation errors; callers that need clean drainage
// should Drain first.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopCh)
	s.wg.Wait()

	s.mu.Lock()
	err := s.iface.Close()
	s.peers = nil
	s.mu.Unlock()
	return err
}

// RegisterPeer stores the remote target's routing descriptor, obtained out of
// band from address exchange, and opens an endpoint for it.
func (s *Session) RegisterPeer(addr []byte) (Peer, error) {
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	if len(addr) == 0 {
		return 0, errors.New("dct client: peer address must be non-empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ep, err := s.iface.CreateEndpoint(dct.NewPeerAddress(addr))
	if err != nil {
		return 0, fmt.Errorf("create endpoint: %w", err)
	}
	s.peerSeq++
	handle := Peer(s.peerSeq)
	s.peers[handle] = ep
	return handle, nil
}

// ClosePeer begins destroying the peer's endpoint. The handle is invalid
// afterwards; issued operations still resolve through their futures.
func (s *Session) ClosePeer(p Peer) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.peers[p]
	if !ok {
		return ErrUnknownPeer
	}
	delete(s.peers, p)
	return ep.Close()
}

// PeerState reports the endpoint state behind a handle.
func (s *Session) PeerState(p Peer) (dct.EndpointState, error) {
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.peers[p]
	if !ok {
		return 0, ErrUnknownPeer
	}
	return ep.State(), nil
}

// Submit posts one operation toward the peer and blocks until it completes,
// using the configured timeout when the supplied context lacks a deadline.
func (s *Session) Submit(ctx context.Context, p Peer, payload []byte) error {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return err
	}
	future, err := s.SubmitAsync(p, payload)
	if err != nil {
		return err
	}
	return future.Await(ctx)
}

// SubmitAsync posts one operation toward the peer and returns a future that
// resolves when the device reports completion. The operation may be deferred
// inside the core when no initiator budget is available; that is invisible
// here beyond latency.
func (s *Session) SubmitAsync(p Peer, payload []byte) (*SubmitFuture, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, errors.New("dct client: empty payload")
	}
	if err := s.dispatchFailure(); err != nil {
		return nil, err
	}

	// The core may hold the payload until budget frees up; keep our own copy
	// so the caller can reuse its buffer.
	dup := append([]byte(nil), payload...)

	op := newOperation(s)

	s.mu.Lock()
	ep, ok := s.peers[p]
	if !ok {
		s.mu.Unlock()
		return nil, ErrUnknownPeer
	}
	status, err := ep.Submit(dct.Op{
		Payload: dup,
		OnComplete: func(err error) {
			s.noteCompletion(err)
			op.complete(err)
		},
	})
	s.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("submit operation: %w", err)
	}
	if status == dct.SubmitQueued {
		s.logDispatcherEvent("submit_queued", logKV("peer", p), logKV("size", len(dup)))
		s.metricSubmitQueued(logKV("peer", p))
	} else {
		s.logf("client: operation issued peer=%d size=%d", p, len(dup))
	}
	return &SubmitFuture{op: op}, nil
}

// FlushPeer blocks until every operation submitted on the peer has completed
// or the context expires.
func (s *Session) FlushPeer(ctx context.Context, p Peer) error {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()
	for {
		if err := s.ensureOpen(); err != nil {
			return err
		}
		s.mu.Lock()
		ep, ok := s.peers[p]
		var status dct.FlushStatus
		if ok {
			status = ep.Flush()
		}
		s.mu.Unlock()
		if !ok {
			return ErrUnknownPeer
		}
		if status == dct.FlushOK {
			return nil
		}
		if err := s.dispatchFailure(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// Drain blocks until every registered peer reports a clean flush or the
// context expires.
func (s *Session) Drain(ctx context.Context) error {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()
	for {
		if err := s.ensureOpen(); err != nil {
			return err
		}
		s.mu.Lock()
		drained := true
		for _, ep := range s.peers {
			if ep.Flush() != dct.FlushOK {
				drained = false
				break
			}
		}
		s.mu.Unlock()
		if drained {
			return nil
		}
		if err := s.dispatchFailure(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// Stats returns a snapshot of the interface counters.
func (s *Session) Stats() dct.Stats {
	if s == nil {
		return dct.Stats{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iface.Stats()
}

func (s *Session) ensureOpen() error {
	if s == nil || s.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (s *Session) dispatchFailure() error {
	if err := s.dispatcherError(); err != nil {
		return fmt.Errorf("dct client dispatcher failed: %w", err)
	}
	return nil
}

func (s *Session) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := s.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ctx, func() {}
		}
		if timeout <= 0 || remaining < timeout {
			return ctx, func() {}
		}
		timeout = remaining
	}
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Session) noteCompletion(err error) {
	switch {
	case err == nil:
		s.logDispatcherEvent("completion", logKV("status", "ok"))
		s.metricOperationCompleted()
	case errors.Is(err, dct.ErrOperationCanceled), errors.Is(err, dct.ErrInterfaceClosed):
		s.logDispatcherEvent("completion", logKV("status", "canceled"))
	default:
		s.logDispatcherEvent("completion_error", logKV("error", err))
		s.metricOperationFailed(err)
	}
}

func (s *Session) dispatch() {
	defer s.wg.Done()

	span := s.startDispatcherSpan()
	startFields := []logField{logKV("policy", s.policyName())}
	s.logDispatcherEvent("start", startFields...)
	spanAddEvent(span, "start", startFields...)
	s.metricDispatcherStarted(startFields...)

	defer func() {
		err := s.dispatcherError()
		fields := []logField{logKV("status", "ok")}
		if err != nil {
			fields = []logField{logKV("status", "error"), logKV("error", err)}
			spanRecordError(span, err)
		}
		s.logDispatcherEvent("stop", fields...)
		spanAddEvent(span, "stop", fields...)
		s.metricDispatcherStopped(fields...)
		if span != nil {
			span.End(err)
		}
	}()

	backoff := time.Millisecond
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		s.mu.Lock()
		n, err := s.iface.Progress(s.cfg.ProgressBatch)
		s.mu.Unlock()

		if err != nil && !errors.Is(err, dct.ErrInterfaceClosed) {
			dispatchErr := fmt.Errorf("progress: %w", err)
			s.recordDispatcherFailure(span, "progress_error", dispatchErr)
			s.recordDispatcherError(dispatchErr)
		}
		if n > 0 {
			backoff = time.Millisecond
			continue
		}

		select {
		case <-s.stopCh:
			return
		case <-time.After(backoff):
		}
		if backoff < 10*time.Millisecond {
			backoff *= 2
		}
	}
}

func (s *Session) recordDispatcherError(err error) {
	if err == nil {
		return
	}
	s.dispatcherErr.CompareAndSwap(nil, &errorHolder{err: err})
}

func (s *Session) dispatcherError() error {
	if s == nil {
		return nil
	}
	if holder := s.dispatcherErr.Load(); holder != nil {
		return holder.err
	}
	return nil
}

func (s *Session) recordDispatcherFailure(span Span, event string, err error) {
	if err == nil {
		return
	}
	fields := []logField{logKV("error", err)}
	s.logDispatcherEvent(event, fields...)
	spanAddEvent(span, event, fields...)
	spanRecordError(span, err)
	s.metricDispatcherProgressError(event, err, fields...)
}

func (s *Session) startDispatcherSpan() Span {
	if s == nil || s.tracer == nil {
		return nil
	}
	return s.tracer.StartSpan("dct-client-dispatcher",
		TraceAttribute{Key: "component", Value: "dct-client"},
		TraceAttribute{Key: labelPolicy, Value: s.policyName()},
	)
}

func (s *Session) policyName() string {
	policy := s.cfg.Policy
	if policy == 0 {
		policy = dct.PolicyShared
	}
	return policy.String()
}
