package tracked

import "github.com/google/uuid"

// PluginID identifies a plugin. Registering the same ID twice is a no-op.
type PluginID uuid.UUID

var pluginNamespace = uuid.MustParse("6c0c9d4e-3f0e-4b1e-9a5e-2f6f1f0d7a11")

// NewPluginID derives a stable identifier from a plugin name.
func NewPluginID(name string) PluginID {
	return PluginID(uuid.NewSHA1(pluginNamespace, []byte(name)))
}

func (id PluginID) String() string {
	return uuid.UUID(id).String()
}

var (
	// DowngradedID opts a subtree out of wrapped views.
	DowngradedID = NewPluginID("statetree/downgraded")
	// DevToolsID is reserved for a development tools extension.
	DevToolsID = NewPluginID("statetree/devtools")
)

// Plugin extends a store. Init runs once per store with the unmounted root
// state and returns the plugin instance, which receives store events by
// implementing any of SetListener, DestroyListener, BatchStartListener and
// BatchFinishListener. The instance is what Plugin lookups return.
type Plugin struct {
	ID   PluginID
	Init func(root *State) any
}

// Downgraded makes the attached subtree return raw values instead of
// wrapped views. Any change anywhere then re-notifies its readers.
var Downgraded = Plugin{ID: DowngradedID}

// SetEvent describes one applied mutation. Fields that do not apply hold
// Empty: Value on deletion, Previous on insertion or first assignment,
// Merged outside merges, State while the root is pending.
type SetEvent struct {
	Path     Path
	State    any
	Value    any
	Previous any
	Merged   any
}

// Op names the mutation: insert, update, delete or merge.
func (e SetEvent) Op() string {
	switch {
	case e.Merged != Empty:
		return "merge"
	case e.Value == Empty:
		return "delete"
	case e.Previous == Empty:
		return "insert"
	}
	return "update"
}

// DestroyEvent carries the last root value, Empty if the root was pending.
type DestroyEvent struct {
	State any
}

// BatchEvent brackets a batch. Context is the value passed to Batch.
type BatchEvent struct {
	Path    Path
	State   any
	Context any
}

type SetListener interface {
	OnSet(e SetEvent)
}

type DestroyListener interface {
	OnDestroy(e DestroyEvent)
}

type BatchStartListener interface {
	OnBatchStart(e BatchEvent)
}

type BatchFinishListener interface {
	OnBatchFinish(e BatchEvent)
}

// DevToolsExtensions is implemented by the instance registered under
// DevToolsID.
type DevToolsExtensions interface {
	Label(name string)
	Log(msg string, args ...any)
}

type noDevTools struct{}

func (noDevTools) Label(string)       {}
func (noDevTools) Log(string, ...any) {}

// DevTools returns the development tools attached to the state's store, or
// an implementation that does nothing.
func DevTools(s *State) DevToolsExtensions {
	inst, err := s.Plugin(DevToolsID)
	if err != nil {
		return noDevTools{}
	}
	if ext, ok := inst.(DevToolsExtensions); ok {
		return ext
	}
	return noDevTools{}
}

// Register adds a plugin to the store and wires whichever listener
// interfaces its instance implements.
func (s *Store) Register(p Plugin) {
	if _, ok := s.plugins[p.ID]; ok {
		return
	}
	var inst any
	if p.Init != nil {
		inst = p.Init(s.toMethods().Self())
	}
	s.plugins[p.ID] = inst
	if l, ok := inst.(SetListener); ok {
		s.setListeners = append(s.setListeners, l)
	}
	if l, ok := inst.(DestroyListener); ok {
		s.destroyListeners = append(s.destroyListeners, l)
	}
	if l, ok := inst.(BatchStartListener); ok {
		s.batchStartListeners = append(s.batchStartListeners, l)
	}
	if l, ok := inst.(BatchFinishListener); ok {
		s.batchFinishListeners = append(s.batchFinishListeners, l)
	}
}

// Plugin returns the instance registered under id. ok is false when the
// plugin was never registered.
func (s *Store) Plugin(id PluginID) (any, bool) {
	inst, ok := s.plugins[id]
	return inst, ok
}
