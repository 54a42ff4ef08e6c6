package tracked

import "io"

// View presents a container value read through a handle. Reading an entry
// goes through the child handle so the read is tracked at the child's
// path; writes are always rejected, mutation must go through Set or Merge.
type View struct {
	h       *Handle
	current any
}

func newView(h *Handle, current any) *View {
	return &View{h: h, current: current}
}

// Handle recovers the handle the view was read from.
func (v *View) Handle() *Handle { return v.h }

// Kind is KindMapping or KindSequence.
func (v *View) Kind() Kind { return KindOf(v.current) }

// Get reads one entry. A field key on a sequence reads nothing.
func (v *View) Get(k Key) (any, error) {
	if _, ok := v.current.([]any); ok && !k.isIndex {
		return nil, nil
	}
	return v.h.Child(k).Get(false)
}

func (v *View) Field(name string) (any, error) { return v.Get(Field(name)) }
func (v *View) Index(i int) (any, error)       { return v.Get(Index(i)) }

// Has reports whether k is a current key.
func (v *View) Has(k Key) bool { return hasKey(v.current, k) }

// Keys enumerates the current keys: indexes for sequences, sorted field
// names for mappings.
func (v *View) Keys() []Key { return keysOf(v.current) }

// Len is the sequence length or the number of mapping fields.
func (v *View) Len() int {
	switch c := v.current.(type) {
	case []any:
		return len(c)
	case map[string]any:
		return len(c)
	}
	return 0
}

func (v *View) Set(k Key, _ any) error {
	return newError(v.h.path.Child(k), CodeSetPropertyValue)
}

func (v *View) Delete(k Key) error {
	return newError(v.h.path.Child(k), CodeDeletePropertyValue)
}

// MarshalJSON fails: a view is a live accessor, not data. Use WriteJSON on
// the state for a snapshot.
func (v *View) MarshalJSON() ([]byte, error) {
	return nil, newError(v.h.path, CodeToJSONValue)
}

// State is the wrapped handle a consumer works with.
type State struct {
	h *Handle
}

// Unwrap returns the handle behind a *State or *View.
func Unwrap(v any) (*Handle, bool) {
	switch w := v.(type) {
	case *State:
		if w != nil {
			return w.h, true
		}
	case *View:
		if w != nil {
			return w.h, true
		}
	}
	return nil, false
}

func (st *State) Handle() *Handle { return st.h }
func (st *State) Path() Path      { return st.h.path }

// Value is the tracked read.
func (st *State) Value() (any, error) { return st.h.Get(false) }

// Get is the tracked read; with allowPending it yields Empty while pending.
func (st *State) Get(allowPending bool) (any, error) { return st.h.Get(allowPending) }

func (st *State) Set(newValue any) error { return st.h.Set(newValue) }
func (st *State) Merge(source any) error { return st.h.Merge(source) }

func (st *State) Nested(k Key) *State      { return st.h.Nested(k) }
func (st *State) Field(name string) *State { return st.h.Nested(Field(name)) }
func (st *State) Index(i int) *State       { return st.h.Nested(Index(i)) }
func (st *State) Keys() ([]Key, error)     { return st.h.Keys() }
func (st *State) Promised() bool           { return st.h.Promised() }
func (st *State) Err() error               { return st.h.Err() }
func (st *State) OrNull() (*State, error)  { return st.h.OrNull() }
func (st *State) Attach(p Plugin) *State   { return st.h.Attach(p) }
func (st *State) Destroy()                 { st.h.Destroy() }
func (st *State) Plugin(id PluginID) (any, error) {
	return st.h.Plugin(id)
}

func (st *State) Batch(action BatchAction, context any) (any, error) {
	return st.h.Batch(action, context)
}

// SetProperty fails: states are navigated, never assigned into.
func (st *State) SetProperty(k Key, _ any) error {
	return newError(st.h.path.Child(k), CodeSetPropertyState)
}

func (st *State) DeleteProperty(k Key) error {
	return newError(st.h.path.Child(k), CodeDeletePropertyState)
}

func (st *State) MarshalJSON() ([]byte, error) {
	return nil, newError(st.h.path, CodeToJSONState)
}

// Entry pairs a key with its nested state.
type Entry struct {
	Key   Key
	State *State
}

// Entries resolves the nested state of every current key up front. Keys
// added later are not reflected; use Nested for those.
func (st *State) Entries() ([]Entry, error) {
	v, err := st.h.Get(false)
	if err != nil {
		return nil, err
	}
	var keys []Key
	if view, ok := v.(*View); ok {
		keys = view.Keys()
	} else {
		keys = keysOf(v)
	}
	entries := make([]Entry, len(keys))
	for i, k := range keys {
		entries[i] = Entry{Key: k, State: st.h.Nested(k)}
	}
	return entries, nil
}

// WriteJSON writes an untracked snapshot of the value as JSON.
func (st *State) WriteJSON(w io.Writer) error {
	v, err := st.h.GetUntracked(false)
	if err != nil {
		return err
	}
	return WriteJSON(w, v)
}
