package query

import (
	"context"
	"sync"
)

// Observer is a long-lived consumer of one read, the equivalent of a mounted
// view. While attached it keeps its entry alive and refetches when the entry
// is invalidated. Results of fetches started for earlier inputs, or that
// settle after Close, are dropped. Close waits for a delivery in progress,
// so onChange must not call Close.
type Observer[T any] struct {
	client   *Client
	onChange func(Result[T])

	// emitMu serializes asynchronous deliveries with Close.
	emitMu sync.Mutex

	mu          sync.Mutex
	desc        Descriptor[T]
	hasDesc     bool
	baseCtx     context.Context
	attached    Key
	unsubscribe func()
	cancel      context.CancelFunc
	gen         uint64
	closed      bool
	result      Result[T]
	wg          sync.WaitGroup
}

// Observe creates an observer. onChange runs on every delivered result and may
// be nil.
func Observe[T any](c *Client, onChange func(Result[T])) *Observer[T] {
	return &Observer[T]{
		client:   c,
		onChange: onChange,
		result:   Result[T]{Status: StatusIdle},
	}
}

// Set switches the observer to d. Interest in any fetch started for previous
// inputs is dropped.
func (o *Observer[T]) Set(ctx context.Context, d Descriptor[T]) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}

	var target Key
	if d.Enabled {
		target = d.Key
	}
	if target.Hash() != o.attached.Hash() {
		o.detachLocked()
		if !target.IsZero() {
			o.attachLocked(target)
		}
	}
	o.desc = d
	o.hasDesc = true
	o.baseCtx = ctx

	deliver, res := o.startLocked()
	o.mu.Unlock()

	if deliver {
		o.emit(res)
	}
}

// Result returns the last delivered result.
func (o *Observer[T]) Result() Result[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

// Refetch re-runs the current descriptor.
func (o *Observer[T]) Refetch() {
	o.mu.Lock()
	if o.closed || !o.hasDesc {
		o.mu.Unlock()
		return
	}
	deliver, res := o.startLocked()
	o.mu.Unlock()

	if deliver {
		o.emit(res)
	}
}

// Close detaches the observer. Pending results are discarded and no
// onChange call starts after Close returns.
func (o *Observer[T]) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.gen++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.detachLocked()
	o.mu.Unlock()

	o.emitMu.Lock()
	o.emitMu.Unlock()
}

// Wait blocks until every fetch this observer started has settled.
func (o *Observer[T]) Wait() {
	o.wg.Wait()
}

// startLocked begins a fetch for the current descriptor. A disabled
// descriptor resolves immediately to idle, returned for delivery outside the
// lock.
func (o *Observer[T]) startLocked() (bool, Result[T]) {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.gen++
	gen := o.gen

	if !o.desc.Enabled {
		o.result = Result[T]{Status: StatusIdle}
		return true, o.result
	}

	base := o.baseCtx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	o.cancel = cancel
	d := o.desc

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()

		o.deliver(gen, Fetch(ctx, o.client, d))
	}()
	return false, Result[T]{}
}

func (o *Observer[T]) attachLocked(key Key) {
	o.attached = key
	o.client.cache.retain(key)
	o.unsubscribe = o.client.subscribe(key.Hash(), o.Refetch)
}

func (o *Observer[T]) detachLocked() {
	if o.attached.IsZero() {
		return
	}
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
	o.client.cache.release(o.attached)
	o.attached = Key{}
}

// deliver hands res to onChange unless the observer moved on or closed while
// the fetch ran.
func (o *Observer[T]) deliver(gen uint64, res Result[T]) {
	o.emitMu.Lock()
	defer o.emitMu.Unlock()

	o.mu.Lock()
	if o.closed || gen != o.gen {
		o.mu.Unlock()
		return
	}
	o.result = res
	o.mu.Unlock()

	o.emit(res)
}

func (o *Observer[T]) emit(res Result[T]) {
	if o.onChange != nil {
		o.onChange(res)
	}
}
