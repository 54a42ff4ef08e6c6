package tracked

import (
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// DestroyedEdition is the edition of a destroyed store.
const DestroyedEdition int64 = -1

// Subscriber receives the changed paths of every update. It appends the
// mounts to re-render to actions and reports whether it matched.
type Subscriber interface {
	OnSet(paths []Path, actions *Actions) bool
}

// subscriberList keeps registration order while making Add idempotent.
type subscriberList struct {
	order   []Subscriber
	members mapset.Set[Subscriber]
}

func (l *subscriberList) add(sub Subscriber) {
	if l.members == nil {
		l.members = mapset.NewThreadUnsafeSet[Subscriber]()
	}
	if l.members.Contains(sub) {
		return
	}
	l.members.Add(sub)
	l.order = append(l.order, sub)
}

func (l *subscriberList) remove(sub Subscriber) {
	if l.members == nil || !l.members.Contains(sub) {
		return
	}
	l.members.Remove(sub)
	l.order = slices.DeleteFunc(slices.Clone(l.order), func(s Subscriber) bool { return s == sub })
}

// each visits a snapshot so subscribers may unsubscribe while notified.
func (l *subscriberList) each(fn func(Subscriber)) {
	for _, sub := range l.order {
		fn(sub)
	}
}

// Store owns the value tree. Every mutation goes through Set, every
// notification through Update. A Store is not safe for concurrent use;
// promise settlement is funnelled through its Scheduler.
type Store struct {
	value    any
	edition  int64
	promised *PendingValue
	schedule Scheduler

	subscribers subscriberList

	plugins              map[PluginID]any
	setListeners         []SetListener
	destroyListeners     []DestroyListener
	batchStartListeners  []BatchStartListener
	batchFinishListeners []BatchFinishListener

	batches        int
	pendingPaths   []Path
	pendingSeen    mapset.Set[uint64]
	pendingActions []func()

	initPlugins []Plugin
}

type Option func(*Store)

// WithScheduler routes promise settlement through fn, typically a post onto
// the goroutine that owns the store.
func WithScheduler(fn Scheduler) Option {
	return func(s *Store) {
		if fn != nil {
			s.schedule = fn
		}
	}
}

// WithPlugins registers plugins before the store becomes visible.
func WithPlugins(plugins ...Plugin) Option {
	return func(s *Store) {
		s.initPlugins = append(s.initPlugins, plugins...)
	}
}

// NewStore creates a store holding initial, which may be a plain value, a
// Promise, Empty, or a func() any producing either.
//
// Settlement of a promise root runs on whatever goroutine settles it unless
// WithScheduler is given. A root produced by Async settles on its own
// goroutine, so such stores need a scheduler that posts back to the owner.
func NewStore(initial any, opts ...Option) (*Store, error) {
	if fn, ok := initial.(func() any); ok {
		initial = fn()
	}
	if _, ok := Unwrap(initial); ok {
		return nil, newError(RootPath, CodeInitStateToValueFromState)
	}

	s := &Store{
		value:    initial,
		schedule: inlineScheduler,
		plugins:  map[PluginID]any{},
	}
	for _, opt := range opts {
		opt(s)
	}

	var pending *PendingValue
	if p, ok := initial.(Promise); ok {
		pending = s.createPending(p)
		s.value = Empty
	} else if initial == Empty {
		pending = s.createPending(nil)
	}
	s.promised = pending

	for _, p := range s.initPlugins {
		s.Register(p)
	}
	s.initPlugins = nil

	if pending != nil {
		pending.watch()
	}
	return s, nil
}

func (s *Store) createPending(p Promise) *PendingValue {
	var pv *PendingValue
	pv = newPendingValue(p, s.schedule,
		func(v any) {
			if s.promised != pv || s.edition == DestroyedEdition {
				return
			}
			s.promised = nil
			if _, err := s.Set(RootPath, v, Empty); err != nil {
				return
			}
			s.Update([]Path{RootPath})
		},
		func() {
			if s.promised != pv || s.edition == DestroyedEdition {
				return
			}
			s.edition++
			s.Update([]Path{RootPath})
		},
		func() {
			if len(s.pendingActions) == 0 || s.value == Empty || s.edition == DestroyedEdition {
				return
			}
			actions := s.pendingActions
			s.pendingActions = nil
			for _, a := range actions {
				a()
			}
		},
	)
	return pv
}

// Edition increases on every applied mutation and is DestroyedEdition once
// the store is destroyed.
func (s *Store) Edition() int64 { return s.edition }

// Pending is the pending root value, nil when none was ever requested or it
// was applied.
func (s *Store) Pending() *PendingValue { return s.promised }

// Get walks the tree along path. It returns Empty while the root is
// pending and nil for paths that do not exist.
func (s *Store) Get(path Path) any {
	cur := s.value
	if cur == Empty {
		return cur
	}
	for _, k := range path {
		cur = childValue(cur, k)
	}
	return cur
}

// Set applies value at path and returns the path to report as changed.
// Structural changes (insert, delete) report the parent path since sibling
// identity may shift. merged is the merge source, or Empty.
func (s *Store) Set(path Path, value, merged any) (Path, error) {
	if s.edition < 0 {
		return nil, newError(path, CodeSetStateWhenDestroyed)
	}
	if len(path) == 0 {
		return s.setRoot(path, value, merged)
	}
	path = s.resolve(path)
	if isPromise(value) {
		return nil, newError(path, CodeSetStateNestedToPromised)
	}

	parentPath := path.Parent()
	target, err := s.containerAt(parentPath)
	if err != nil {
		return nil, err
	}
	k := path[len(path)-1]
	if _, ok := target.([]any); ok && !k.isIndex {
		return nil, newError(path, CodePathNotContainer, fmt.Sprintf("field %q on a sequence", k.name))
	}

	if hasKey(target, k) {
		prev := childValue(target, k)
		if value != Empty {
			// UPDATE
			switch c := target.(type) {
			case map[string]any:
				c[k.Name()] = value
			case []any:
				c[k.index] = value
			}
			s.afterSet(SetEvent{Path: path, State: s.value, Value: value, Previous: prev, Merged: merged})
			return path, nil
		}

		// DELETE
		switch c := target.(type) {
		case map[string]any:
			delete(c, k.Name())
		case []any:
			s.replaceAt(parentPath, slices.Delete(c, k.index, k.index+1))
		}
		s.afterSet(SetEvent{Path: path, State: s.value, Value: Empty, Previous: prev, Merged: merged})
		return parentPath, nil
	}

	if value == Empty {
		// deleting an absent key
		return path, nil
	}

	// INSERT
	switch c := target.(type) {
	case map[string]any:
		c[k.Name()] = value
	case []any:
		if k.index < 0 {
			return nil, newError(path, CodePathNotContainer, "negative index")
		}
		grown := c
		for len(grown) <= k.index {
			grown = append(grown, nil)
		}
		grown[k.index] = value
		s.replaceAt(parentPath, grown)
	}
	s.afterSet(SetEvent{Path: path, State: s.value, Value: value, Previous: Empty, Merged: merged})
	return parentPath, nil
}

func (s *Store) setRoot(path Path, value, merged any) (Path, error) {
	ev := SetEvent{Path: path, State: value, Value: value, Previous: s.value, Merged: merged}

	var pending *PendingValue
	if value == Empty {
		pending = s.createPending(nil)
		s.promised = pending
	} else if p, ok := value.(Promise); ok {
		pending = s.createPending(p)
		s.promised = pending
		value = Empty
		ev.State, ev.Value = Empty, Empty
	} else if s.promised != nil && !s.promised.acceptsSet() {
		return nil, newError(path, CodeSetStateWhenPromised)
	}

	prev := s.value
	s.value = value
	s.afterSet(ev)

	if prev == Empty && s.value != Empty && s.promised != nil && s.promised.resolver != nil {
		s.promised.resolver(s.value)
	}
	if pending != nil {
		pending.watch()
	}
	return path, nil
}

// resolve rewrites index keys that address mapping entries into field
// keys, matching the keys handles cache their children under.
func (s *Store) resolve(path Path) Path {
	var out Path
	cur := s.value
	for i, k := range path {
		rk := keyFor(cur, k)
		if rk != k {
			if out == nil {
				out = slices.Clone(path)
			}
			out[i] = rk
		}
		cur = childValue(cur, rk)
	}
	if out == nil {
		return path
	}
	return out
}

// containerAt returns the mapping or sequence at path.
func (s *Store) containerAt(path Path) (any, error) {
	cur := s.value
	if cur == Empty {
		return nil, newError(path, CodeGetStateWhenPromised)
	}
	for i, k := range path {
		if !hasKey(cur, k) {
			return nil, newError(path[:i+1], CodePathNotContainer, "missing")
		}
		cur = childValue(cur, k)
	}
	switch cur.(type) {
	case map[string]any, []any:
		return cur, nil
	}
	return nil, newError(path, CodePathNotContainer, fmt.Sprintf("%T", cur))
}

// replaceAt stores a resized sequence back into its owner.
func (s *Store) replaceAt(path Path, v any) {
	if len(path) == 0 {
		s.value = v
		return
	}
	owner := s.Get(path.Parent())
	k := path[len(path)-1]
	switch c := owner.(type) {
	case map[string]any:
		c[k.Name()] = v
	case []any:
		c[k.index] = v
	}
}

func (s *Store) afterSet(ev SetEvent) {
	if s.edition == DestroyedEdition {
		return
	}
	s.edition++
	for _, l := range s.setListeners {
		l.OnSet(ev)
	}
}

// Update notifies subscribers of changed paths, or buffers them while a
// batch is open. Subscribers run in registration order, the collected
// mount actions run afterwards.
func (s *Store) Update(paths []Path) {
	if s.batches > 0 {
		if s.pendingSeen == nil {
			s.pendingSeen = mapset.NewThreadUnsafeSet[uint64]()
		}
		for _, p := range paths {
			h := p.Hash()
			if s.pendingSeen.Contains(h) && s.buffered(p) {
				continue
			}
			s.pendingSeen.Add(h)
			s.pendingPaths = append(s.pendingPaths, p)
		}
		return
	}

	actions := newActions()
	s.subscribers.each(func(sub Subscriber) {
		sub.OnSet(paths, actions)
	})
	actions.run()
}

// buffered confirms a hash hit, two paths may share a hash.
func (s *Store) buffered(p Path) bool {
	return slices.ContainsFunc(s.pendingPaths, p.Equal)
}

func (s *Store) Subscribe(sub Subscriber)   { s.subscribers.add(sub) }
func (s *Store) Unsubscribe(sub Subscriber) { s.subscribers.remove(sub) }

// Destroy notifies destroy listeners and makes every later Set fail.
func (s *Store) Destroy() {
	ev := DestroyEvent{State: s.value}
	for _, l := range s.destroyListeners {
		l.OnDestroy(ev)
	}
	s.edition = DestroyedEdition
}

// MarshalJSON refuses to serialize the store itself; use WriteJSON on a
// snapshot instead.
func (s *Store) MarshalJSON() ([]byte, error) {
	return nil, newError(RootPath, CodeToJSONValue)
}

func (s *Store) toMethods() *Handle {
	return newHandle(s, RootPath, s.Get(RootPath), s.edition, noopMount)
}

// Root returns an unmounted state for the whole tree. Reads through it are
// not tracked for re-rendering.
func (s *Store) Root() *State {
	return s.toMethods().Self()
}
