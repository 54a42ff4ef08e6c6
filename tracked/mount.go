package tracked

import mapset "github.com/deckarep/golang-set/v2"

// Mount is the binding point between a store and a consumer that re-renders
// on change. Every handle created under a mount shares it as its "used"
// callback; unmounting makes the whole handle tree inert.
type Mount struct {
	notify    func()
	unmounted bool

	store    *Store
	handle   *Handle
	parent   *Handle
	navigate Path
	local    bool
}

// noopMount backs handles that are not mounted anywhere.
var noopMount = &Mount{unmounted: true}

func (m *Mount) trigger() {
	if m.unmounted || m.notify == nil {
		return
	}
	m.notify()
}

// Mounted reports whether change notifications still reach the consumer.
func (m *Mount) Mounted() bool { return !m.unmounted }

func (m *Mount) OnMount() {
	if m != noopMount {
		m.unmounted = false
	}
}

func (m *Mount) OnUnmount() {
	m.unmounted = true
}

// Mount subscribes a new root handle to the store. notify is called with no
// arguments whenever something read through the mount changes.
func (s *Store) Mount(notify func()) *Mount {
	m := &Mount{notify: notify, store: s}
	m.handle = newHandle(s, RootPath, s.Get(RootPath), s.edition, m)
	s.Subscribe(m.handle)
	return m
}

// Local creates a store owned by the mount; Close destroys it.
func Local(initial any, notify func(), opts ...Option) (*Mount, error) {
	s, err := NewStore(initial, opts...)
	if err != nil {
		return nil, err
	}
	m := s.Mount(notify)
	m.local = true
	return m, nil
}

// Mount attaches a consumer to this state. If the state belongs to a mounted
// tree the new mount subscribes to it directly (scoped mount); otherwise it
// mounts the whole store and navigates down to this state's path.
func (st *State) Mount(notify func()) *Mount {
	parent := st.h
	s := parent.store
	if parent.isMounted() {
		m := &Mount{notify: notify, store: s, parent: parent}
		m.handle = newHandle(s, parent.path, s.Get(parent.path), s.edition, m)
		parent.Subscribe(m.handle)
		return m
	}
	m := s.Mount(notify)
	m.navigate = parent.path
	return m
}

// State is the state the consumer reads from.
func (m *Mount) State() *State {
	st := m.handle.Self()
	for _, k := range m.navigate {
		st = st.Nested(k)
	}
	return st
}

// Handle is the mount's own handle.
func (m *Mount) Handle() *Handle { return m.handle }

// Render resynchronises the mount's handle with the store before the
// consumer reads again. Child handles are kept and reconstructed lazily.
func (m *Mount) Render() {
	m.handle.Reconstruct(m.store.Get(m.handle.path), m.store.edition, false)
}

// Reconnect restores child caches dropped by Render, for consumers that
// keep reading previously obtained child states.
func (m *Mount) Reconnect() {
	m.handle.Reconnect()
}

// Close unmounts and unsubscribes. A local mount also destroys its store.
func (m *Mount) Close() {
	m.OnUnmount()
	if m.parent != nil {
		m.parent.Unsubscribe(m.handle)
	} else {
		m.store.Unsubscribe(m.handle)
	}
	if m.local {
		m.store.Destroy()
	}
}

// Actions collects the mounts to notify during one update. A mount is
// recorded once no matter how many of its handles matched.
type Actions struct {
	mounts []*Mount
	seen   mapset.Set[*Mount]
}

func newActions() *Actions {
	return &Actions{seen: mapset.NewThreadUnsafeSet[*Mount]()}
}

func (a *Actions) Add(m *Mount) {
	if a.seen.Contains(m) {
		return
	}
	a.seen.Add(m)
	a.mounts = append(a.mounts, m)
}

func (a *Actions) Len() int { return len(a.mounts) }

func (a *Actions) run() {
	for _, m := range a.mounts {
		m.trigger()
	}
}
