package tracked

// Scheduler runs settlement callbacks of pending roots. The default runs
// them inline on whichever goroutine settled the promise.
type Scheduler func(fn func())

func inlineScheduler(fn func()) { fn() }

// PendingValue tracks a deferred root value. At any time it is in exactly
// one of three states: waiting on a manual resolver, fulfilled with a
// value, or fulfilled with an error.
type PendingValue struct {
	promise   Promise
	resolver  func(any)
	fulfilled bool
	err       error

	schedule     Scheduler
	onResolve    func(v any)
	onReject     func()
	onPostSettle func()
}

// newPendingValue wraps p. A nil p creates a manual resolver instead: the
// value is then supplied by a later root Set rather than applied on
// settlement.
func newPendingValue(p Promise, schedule Scheduler, onResolve func(any), onReject, onPostSettle func()) *PendingValue {
	pv := &PendingValue{
		promise:      p,
		schedule:     schedule,
		onResolve:    onResolve,
		onReject:     onReject,
		onPostSettle: onPostSettle,
	}
	if p == nil {
		d := NewDeferred()
		pv.promise = d
		pv.resolver = d.Resolve
	}
	return pv
}

// watch subscribes to settlement. It is split from construction so the
// store finishes its own bookkeeping before an already settled promise
// calls back.
func (pv *PendingValue) watch() {
	pv.promise.Then(
		func(v any) {
			pv.schedule(func() {
				pv.fulfilled = true
				if pv.resolver == nil {
					pv.onResolve(v)
				}
				pv.onPostSettle()
			})
		},
		func(err error) {
			pv.schedule(func() {
				pv.fulfilled = true
				pv.err = err
				pv.onReject()
				pv.onPostSettle()
			})
		},
	)
}

// Fulfilled reports whether the promise has settled either way.
func (pv *PendingValue) Fulfilled() bool { return pv.fulfilled }

// Err is the rejection error, nil unless the promise failed.
func (pv *PendingValue) Err() error { return pv.err }

// Manual reports whether the value is awaited from a later root Set.
func (pv *PendingValue) Manual() bool { return pv.resolver != nil }

// acceptsSet reports whether a concrete root assignment may proceed.
func (pv *PendingValue) acceptsSet() bool {
	return pv.resolver != nil || pv.fulfilled
}
