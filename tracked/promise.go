package tracked

import (
	"context"
	"errors"
	"sync"
)

var errRejectedWithoutCause = errors.New("promise rejected without a cause")

// Promise is a value that settles later, exactly once. Assigning a Promise
// to the root of a store makes the root pending until it settles.
type Promise interface {
	// Then registers settlement callbacks. If the promise has already
	// settled the matching callback runs before Then returns.
	Then(onFulfilled func(any), onRejected func(error))
}

// Deferred is a Promise settled by hand. It is safe to settle from another
// goroutine; callbacks run on the settling goroutine.
type Deferred struct {
	mu        sync.Mutex
	settled   bool
	value     any
	err       error
	fulfilled []func(any)
	rejected  []func(error)
}

func NewDeferred() *Deferred {
	return &Deferred{}
}

// Resolved returns an already fulfilled Deferred.
func Resolved(v any) *Deferred {
	d := NewDeferred()
	d.Resolve(v)
	return d
}

// Rejected returns an already rejected Deferred.
func Rejected(err error) *Deferred {
	d := NewDeferred()
	d.Reject(err)
	return d
}

func (d *Deferred) Then(onFulfilled func(any), onRejected func(error)) {
	d.mu.Lock()
	if !d.settled {
		if onFulfilled != nil {
			d.fulfilled = append(d.fulfilled, onFulfilled)
		}
		if onRejected != nil {
			d.rejected = append(d.rejected, onRejected)
		}
		d.mu.Unlock()
		return
	}
	v, err := d.value, d.err
	d.mu.Unlock()

	if err != nil {
		if onRejected != nil {
			onRejected(err)
		}
		return
	}
	if onFulfilled != nil {
		onFulfilled(v)
	}
}

// Resolve fulfills the promise. Later calls to Resolve or Reject are ignored.
func (d *Deferred) Resolve(v any) {
	d.mu.Lock()
	if d.settled {
		d.mu.Unlock()
		return
	}
	d.settled, d.value = true, v
	cbs := d.fulfilled
	d.fulfilled, d.rejected = nil, nil
	d.mu.Unlock()

	for _, cb := range cbs {
		cb(v)
	}
}

// Reject fails the promise.
func (d *Deferred) Reject(err error) {
	if err == nil {
		err = errRejectedWithoutCause
	}
	d.mu.Lock()
	if d.settled {
		d.mu.Unlock()
		return
	}
	d.settled, d.err = true, err
	cbs := d.rejected
	d.fulfilled, d.rejected = nil, nil
	d.mu.Unlock()

	for _, cb := range cbs {
		cb(err)
	}
}

// Settled reports whether Resolve or Reject has been called.
func (d *Deferred) Settled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settled
}

// Async runs fn on its own goroutine and settles the returned Deferred with
// its result. Stores fed by Async should be built WithScheduler so the
// settlement is applied on the owner's goroutine.
func Async(ctx context.Context, fn func(ctx context.Context) (any, error)) *Deferred {
	d := NewDeferred()
	go func() {
		v, err := fn(ctx)
		if err != nil {
			d.Reject(err)
			return
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			d.Reject(ctxErr)
			return
		}
		d.Resolve(v)
	}()
	return d
}
