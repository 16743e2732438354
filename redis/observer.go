package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/apex/log"
	goredis "github.com/redis/go-redis/v9"

	"github.com/m-lab/redisconn/metrics"
)

// Stages at which a transport error can be observed. Dial errors surface
// through the command that needed the connection, after go-redis retries.
const (
	StageProcess  = "process"
	StagePipeline = "pipeline"
)

// TransportError is an error reported by the network layer while the
// handle is open, outside of Connect and Disconnect.
type TransportError struct {
	Stage string
	Addr  string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("redis %s %s: %v", e.Stage, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrorObserver receives transport errors. ObserveError may be called
// concurrently from go-redis pool goroutines and must not block.
type ErrorObserver interface {
	ObserveError(err *TransportError)
}

// ErrorObserverFunc adapts a function to ErrorObserver.
type ErrorObserverFunc func(err *TransportError)

// ObserveError calls f(err).
func (f ErrorObserverFunc) ObserveError(err *TransportError) {
	f(err)
}

// Subscribe adds o to the observers of h. The returned function removes it.
func (h *Handle) Subscribe(o ErrorObserver) (unsubscribe func()) {
	h.obsMu.Lock()
	defer h.obsMu.Unlock()
	id := h.nextObs
	h.nextObs++
	h.observers[id] = o
	return func() {
		h.obsMu.Lock()
		defer h.obsMu.Unlock()
		delete(h.observers, id)
	}
}

// notify delivers err to every observer, but only while the handle is open.
func (h *Handle) notify(stage string, err error) {
	if !h.IsOpen() || !isTransportError(err) {
		return
	}
	te := &TransportError{Stage: stage, Addr: h.cfg.Addr(), Err: err}
	h.obsMu.RLock()
	observers := make([]ErrorObserver, 0, len(h.observers))
	for _, o := range h.observers {
		observers = append(observers, o)
	}
	h.obsMu.RUnlock()
	for _, o := range observers {
		o.ObserveError(te)
	}
}

// isTransportError is false for server replies and caller cancellation.
func isTransportError(err error) bool {
	if err == nil || errors.Is(err, goredis.Nil) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rerr goredis.Error
	return !errors.As(err, &rerr)
}

// transportHook forwards the final error of each command or pipeline to
// the handle, once per caller-visible failure.
type transportHook struct {
	h *Handle
}

// DialHook does not report. Pool refills and retries dial outside of any
// caller, and a failed dial is returned again by the command that needed it.
func (t *transportHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return next
}

// reportingKey marks a context whose command is already being reported, so
// connection setup commands issued beneath it (HELLO, CLIENT SETINFO) are
// not reported a second time.
type reportingKey struct{}

func (t *transportHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		if ctx.Value(reportingKey{}) != nil {
			return next(ctx, cmd)
		}
		err := next(context.WithValue(ctx, reportingKey{}, true), cmd)
		if err != nil {
			t.h.notify(StageProcess, err)
		}
		return err
	}
}

func (t *transportHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		if ctx.Value(reportingKey{}) != nil {
			return next(ctx, cmds)
		}
		err := next(context.WithValue(ctx, reportingKey{}, true), cmds)
		if err != nil {
			t.h.notify(StagePipeline, err)
		}
		return err
	}
}

// logObserver is installed by New. It logs and counts, nothing more.
type logObserver struct {
	logger log.Interface
}

func (l *logObserver) ObserveError(err *TransportError) {
	metrics.TransportErrorCount.WithLabelValues(err.Stage).Inc()
	l.logger.WithError(err.Err).WithFields(log.Fields{
		"addr":  err.Addr,
		"stage": err.Stage,
	}).Error("Redis Client Error")
}
