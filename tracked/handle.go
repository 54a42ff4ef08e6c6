package tracked

import "sort"

// Handle is the per-path accessor of a store. It caches the value last read
// at its path together with the edition it was read at, and the child
// handles created below it. Reading through Get marks the handle used;
// OnSet uses that mark to decide who must re-render.
type Handle struct {
	store *Store
	path  Path

	valueSource  any
	valueEdition int64
	used         *Mount

	valueCache any
	valueUsed  bool

	// children survives Reconstruct so handles can be reused across
	// renders; childrenCache is only filled while mounted.
	children      map[Key]*Handle
	childrenCache map[Key]*Handle
	selfCache     *State

	downgraded  bool
	subscribers subscriberList
}

func newHandle(s *Store, path Path, valueSource any, edition int64, used *Mount) *Handle {
	return &Handle{
		store:        s,
		path:         path,
		valueSource:  valueSource,
		valueEdition: edition,
		used:         used,
	}
}

func (h *Handle) Path() Path { return h.path }

func (h *Handle) Store() *Store { return h.store }

func (h *Handle) isMounted() bool { return !h.used.unmounted }

// Mounted reports whether the handle belongs to a live mount.
func (h *Handle) Mounted() bool { return h.isMounted() }

// Downgraded reports whether reads return raw values instead of views.
func (h *Handle) Downgraded() bool { return h.downgraded }

// Used reports whether the handle holds a read made since the last
// invalidation.
func (h *Handle) Used() bool { return h.valueUsed }

func (h *Handle) OnMount()   { h.used.OnMount() }
func (h *Handle) OnUnmount() { h.used.OnUnmount() }

// Reconstruct rebinds the handle to a freshly read value, dropping read
// marks. With forget the child handles are discarded too.
func (h *Handle) Reconstruct(valueSource any, edition int64, forget bool) {
	h.valueSource = valueSource
	h.valueEdition = edition
	h.valueCache, h.valueUsed = nil, false
	h.downgraded = false
	if forget {
		h.selfCache = nil
		h.children = nil
	} else {
		h.children = h.childrenCache
	}
	h.childrenCache = nil
}

// Reconnect puts the child handles known before the last Reconstruct back
// into the live cache so they keep receiving notifications.
func (h *Handle) Reconnect() {
	merged := make(map[Key]*Handle, len(h.children)+len(h.childrenCache))
	for k, c := range h.children {
		merged[k] = c
	}
	for k, c := range h.childrenCache {
		merged[k] = c
	}
	h.childrenCache = merged
}

func (h *Handle) clearValueCache() {
	h.valueCache, h.valueUsed = nil, false
}

// GetUntracked returns the raw value at the handle's path without marking
// it read. While the root is pending it fails unless allowPending is set,
// returning the rejection error instead once the root failed.
func (h *Handle) GetUntracked(allowPending bool) (any, error) {
	if h.valueEdition != h.store.edition {
		h.valueSource = h.store.Get(h.path)
		h.valueEdition = h.store.edition
		if h.isMounted() {
			// re-read so the mount keeps counting this handle as used
			if h.valueUsed {
				h.clearValueCache()
				if _, err := h.Get(true); err != nil {
					return nil, err
				}
			}
		} else {
			// nobody re-renders through this handle, do not pin old subtrees
			h.clearValueCache()
			h.childrenCache = nil
			h.selfCache = nil
		}
	}
	if h.valueSource == Empty && !allowPending {
		if p := h.store.promised; p != nil && p.err != nil {
			return nil, p.err
		}
		return nil, newError(h.path, CodeGetStateWhenPromised)
	}
	return h.valueSource, nil
}

// Get is the tracked read. Containers come back as a *View unless the
// handle is downgraded, scalars as they are.
func (h *Handle) Get(allowPending bool) (any, error) {
	current, err := h.GetUntracked(allowPending)
	if err != nil {
		return nil, err
	}
	if !h.valueUsed {
		switch {
		case h.downgraded:
			h.valueCache = current
		case KindOf(current) == KindMapping, KindOf(current) == KindSequence:
			h.valueCache = newView(h, current)
		default:
			h.valueCache = current
		}
		h.valueUsed = true
	}
	return h.valueCache, nil
}

// Value is Get without pending reads.
func (h *Handle) Value() (any, error) {
	return h.Get(false)
}

// UpdateFunc computes a new value from the current one.
type UpdateFunc func(current any) any

func asUpdateFunc(v any) UpdateFunc {
	switch fn := v.(type) {
	case UpdateFunc:
		return fn
	case func(any) any:
		return fn
	}
	return nil
}

// SetUntracked writes without notifying and returns the changed paths.
func (h *Handle) SetUntracked(newValue, merged any) ([]Path, error) {
	if fn := asUpdateFunc(newValue); fn != nil {
		current, err := h.GetUntracked(false)
		if err != nil {
			return nil, err
		}
		newValue = fn(current)
	}
	if _, ok := Unwrap(newValue); ok {
		return nil, newError(h.path, CodeSetStateToValueFromState)
	}
	p, err := h.store.Set(h.path, newValue, merged)
	if err != nil {
		return nil, err
	}
	return []Path{p}, nil
}

// Set writes newValue, or the result of an UpdateFunc, and notifies.
// Setting Empty deletes the property.
func (h *Handle) Set(newValue any) error {
	paths, err := h.SetUntracked(newValue, Empty)
	if err != nil {
		return err
	}
	h.store.Update(paths)
	return nil
}

// Child returns the handle at path+key. Children are cached only while the
// handle is mounted. An index key on a mapping addresses the field of the
// same name.
func (h *Handle) Child(k Key) *Handle {
	container := h.valueSource
	if h.valueEdition != h.store.edition {
		container = h.store.Get(h.path)
	}
	k = keyFor(container, k)
	if h.isMounted() {
		if h.childrenCache == nil {
			h.childrenCache = map[Key]*Handle{}
		}
		if c, ok := h.childrenCache[k]; ok {
			return c
		}
	}
	if h.children == nil {
		h.children = map[Key]*Handle{}
	}

	r, ok := h.children[k]
	if ok {
		r.Reconstruct(childValue(h.valueSource, k), h.valueEdition, false)
	} else {
		r = newHandle(h.store, h.path.Child(k), childValue(h.valueSource, k), h.valueEdition, h.used)
		h.children[k] = r
	}
	if h.downgraded {
		r.downgraded = true
	}
	if h.childrenCache != nil {
		h.childrenCache[k] = r
	}
	return r
}

// Nested is Child wrapped as a State.
func (h *Handle) Nested(k Key) *State {
	return h.Child(k).Self()
}

// Subscribe attaches a scoped subscriber, notified when nothing read
// through this handle itself matched an update.
func (h *Handle) Subscribe(sub Subscriber)   { h.subscribers.add(sub) }
func (h *Handle) Unsubscribe(sub Subscriber) { h.subscribers.remove(sub) }

// OnSet decides whether any of paths invalidates a read made through this
// handle or its cached children, recording the mount to notify.
func (h *Handle) OnSet(paths []Path, actions *Actions) bool {
	updated := h.matchPaths(paths, actions)
	if !updated {
		h.subscribers.each(func(sub Subscriber) {
			if sub.OnSet(paths, actions) {
				h.selfCache = nil
			}
		})
	}
	return updated
}

func (h *Handle) matchPaths(paths []Path, actions *Actions) bool {
	if h.downgraded && h.valueUsed {
		actions.Add(h.used)
		h.clearValueCache()
		h.selfCache = nil
		return true
	}

	depth := len(h.path)
	matched, ancestorChanged := false, false
	var visited map[Key]bool
	for _, p := range paths {
		if len(p) <= depth {
			if !p.IsAncestorOf(h.path) {
				continue
			}
			if h.valueUsed {
				actions.Add(h.used)
				h.clearValueCache()
				h.selfCache = nil
				h.childrenCache = nil
				return true
			}
			ancestorChanged = true
			continue
		}
		if !h.path.IsAncestorOf(p) {
			continue
		}
		next := p[depth]
		c, ok := h.childrenCache[next]
		if !ok || visited[next] {
			continue
		}
		if visited == nil {
			visited = map[Key]bool{}
		}
		visited[next] = true
		if c.OnSet(paths, actions) {
			matched = true
		}
	}

	if ancestorChanged {
		// nothing read here, but every cached descendant saw its value move
		for _, k := range sortedKeys(h.childrenCache) {
			if visited[k] {
				continue
			}
			if h.childrenCache[k].OnSet(paths, actions) {
				matched = true
			}
		}
	}

	if matched {
		h.selfCache = nil
	}
	return matched
}

func sortedKeys(m map[Key]*Handle) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.isIndex != b.isIndex {
			return a.isIndex
		}
		if a.isIndex {
			return a.index < b.index
		}
		return a.name < b.name
	})
	return keys
}

// Keys lists the current keys, nil for scalars.
func (h *Handle) Keys() ([]Key, error) {
	v, err := h.Get(false)
	if err != nil {
		return nil, err
	}
	if view, ok := v.(*View); ok {
		return view.Keys(), nil
	}
	return keysOf(v), nil
}

// Promised reports whether the root is still waiting on a promise.
func (h *Handle) Promised() bool {
	v, _ := h.Get(true)
	p := h.store.promised
	return v == Empty && p != nil && !p.fulfilled
}

// Err returns the rejection error of a failed root, nil when a value is
// present, and ErrReadWhilePending while still waiting.
func (h *Handle) Err() error {
	v, _ := h.Get(true)
	if v != Empty {
		return nil
	}
	if p := h.store.promised; p != nil && p.fulfilled {
		return p.err
	}
	_, err := h.Get(false)
	return err
}

// OrNull returns nil when the value is nil, the state otherwise.
func (h *Handle) OrNull() (*State, error) {
	v, err := h.Get(false)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return h.Self(), nil
}

// Attach registers p with the store. Downgraded instead switches this
// subtree to raw values, collapsing an already cached view.
func (h *Handle) Attach(p Plugin) *State {
	if p.ID == DowngradedID {
		h.downgraded = true
		if h.valueUsed {
			if v, err := h.GetUntracked(true); err == nil {
				h.valueCache = v
			}
		}
		return h.Self()
	}
	h.store.Register(p)
	return h.Self()
}

// Plugin looks up a registered plugin instance. The error is returned, not
// raised, so callers can branch on a missing plugin.
func (h *Handle) Plugin(id PluginID) (any, error) {
	inst, ok := h.store.Plugin(id)
	if !ok {
		return nil, newError(h.path, CodeGetUnknownPlugin, id.String())
	}
	return inst, nil
}

// BatchAction runs inside a batch. Returning Postpone re-queues the batch
// until the pending root settles.
type BatchAction func(s *State) (any, error)

// Batch runs action with notifications deferred to the end of the
// outermost batch. The batch is closed even if action panics.
func (h *Handle) Batch(action BatchAction, context any) (result any, err error) {
	h.store.StartBatch(h.path, context)
	defer h.store.FinishBatch(h.path, context)

	result, err = action(h.Self())
	if result == Postpone {
		h.store.PostponeBatch(func() {
			_, _ = h.Batch(action, context)
		})
	}
	return result, err
}

func (h *Handle) Destroy() {
	h.store.Destroy()
}

// Self returns the wrapped state for this handle. The same *State is
// returned until an update invalidates it.
func (h *Handle) Self() *State {
	if h.selfCache == nil {
		h.selfCache = &State{h: h}
	}
	return h.selfCache
}
