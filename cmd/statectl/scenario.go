package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/delaneyj/statetree/plugins/journal"
	"github.com/delaneyj/statetree/tracked"
	"gopkg.in/yaml.v3"
)

// Scenario is a store seed plus the operations to replay against it.
type Scenario struct {
	Name    string   `yaml:"name"`
	Initial any      `yaml:"initial"`
	Watch   []string `yaml:"watch"`
	Steps   []Step   `yaml:"steps"`
}

// Step is one operation. Op is set, merge, delete, batch, label or log.
type Step struct {
	Op      string `yaml:"op"`
	Path    string `yaml:"path"`
	Value   any    `yaml:"value"`
	Context string `yaml:"context"`
	Steps   []Step `yaml:"steps"`
}

func loadScenario(name string) (*Scenario, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeScenario(f)
}

func decodeScenario(r io.Reader) (*Scenario, error) {
	sc := &Scenario{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if sc.Initial == nil {
		sc.Initial = map[string]any{}
	}
	sc.Initial = normalize(sc.Initial)
	if err := validateSteps(sc.Steps); err != nil {
		return nil, err
	}
	return sc, nil
}

func validateSteps(steps []Step) error {
	for i := range steps {
		st := &steps[i]
		switch st.Op {
		case "set", "merge":
			st.Value = normalize(st.Value)
		case "delete", "label", "log":
		case "batch":
			if err := validateSteps(st.Steps); err != nil {
				return err
			}
		default:
			return fmt.Errorf("step %d: unknown op %q", i, st.Op)
		}
		if st.Op != "batch" && len(st.Steps) > 0 {
			return fmt.Errorf("step %d: only batch takes nested steps", i)
		}
	}
	return nil
}

// normalize turns yaml's generic mappings into the shapes the store
// understands: integer-keyed mappings become map[int]any (index merges),
// everything else map[string]any.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, item := range x {
			x[k] = normalize(item)
		}
		return x
	case map[any]any:
		if ints, ok := intKeys(x); ok {
			return ints
		}
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		for i, item := range x {
			x[i] = normalize(item)
		}
		return x
	}
	return v
}

func intKeys(m map[any]any) (map[int]any, bool) {
	out := make(map[int]any, len(m))
	for k, item := range m {
		i, ok := k.(int)
		if !ok {
			return nil, false
		}
		out[i] = normalize(item)
	}
	return out, true
}

// Result is what a replay produced.
type Result struct {
	Name     string
	Entries  []journal.Entry
	Renders  map[string]int
	Edition  int64
	Snapshot any
}

type watcher struct {
	path    tracked.Path
	mount   *tracked.Mount
	renders int
	dirty   bool
}

func (w *watcher) read() error {
	st := w.mount.State()
	for _, k := range w.path {
		st = st.Nested(k)
	}
	_, err := st.Value()
	w.dirty = false
	return err
}

// replay seeds a store, attaches the journal and any extra plugins, mounts
// one watcher per watched path and applies every step.
func replay(sc *Scenario, plugins ...tracked.Plugin) (*Result, error) {
	plugins = append([]tracked.Plugin{journal.Plugin(journal.WithLabel(sc.Name))}, plugins...)
	s, err := tracked.NewStore(sc.Initial, tracked.WithPlugins(plugins...))
	if err != nil {
		return nil, err
	}
	root := s.Root()

	watchers := make([]*watcher, len(sc.Watch))
	for i, p := range sc.Watch {
		w := &watcher{path: tracked.ParsePath(p)}
		w.mount = s.Mount(func() {
			w.renders++
			w.dirty = true
		})
		if err := w.read(); err != nil {
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		watchers[i] = w
	}

	for i, step := range sc.Steps {
		if err := apply(root, step); err != nil {
			return nil, fmt.Errorf("step %d (%s %s): %w", i, step.Op, step.Path, err)
		}
		for _, w := range watchers {
			if !w.dirty {
				continue
			}
			if err := w.read(); err != nil {
				return nil, fmt.Errorf("watch %s: %w", w.path, err)
			}
		}
	}

	j, _ := journal.From(root)
	res := &Result{
		Name:     sc.Name,
		Entries:  j.Entries(),
		Renders:  map[string]int{},
		Edition:  s.Edition(),
		Snapshot: s.Get(tracked.RootPath),
	}
	for _, w := range watchers {
		res.Renders[w.path.String()] = w.renders
	}
	return res, nil
}

func navigate(root *tracked.State, path string) *tracked.State {
	st := root
	for _, k := range tracked.ParsePath(path) {
		st = st.Nested(k)
	}
	return st
}

func apply(root *tracked.State, step Step) error {
	switch step.Op {
	case "set":
		return navigate(root, step.Path).Set(step.Value)
	case "merge":
		return navigate(root, step.Path).Merge(step.Value)
	case "delete":
		return navigate(root, step.Path).Set(tracked.Empty)
	case "label":
		tracked.DevTools(root).Label(fmt.Sprint(step.Value))
		return nil
	case "log":
		tracked.DevTools(root).Log("%v", step.Value)
		return nil
	case "batch":
		var ctx any
		if step.Context != "" {
			ctx = step.Context
		}
		_, err := navigate(root, step.Path).Batch(func(*tracked.State) (any, error) {
			for _, inner := range step.Steps {
				if err := apply(root, inner); err != nil {
					return nil, err
				}
			}
			return nil, nil
		}, ctx)
		return err
	}
	return fmt.Errorf("unknown op %q", step.Op)
}

func sortedRenderPaths(renders map[string]int) []string {
	paths := make([]string, 0, len(renders))
	for p := range renders {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
