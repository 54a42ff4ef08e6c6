// Package journal records what happens to a store: every mutation, batch
// boundary and destroy, plus labels and free-form messages logged through
// the devtools extension. It registers under tracked.DevToolsID, so
// tracked.DevTools finds it.
package journal

import (
	"fmt"
	"strings"

	"github.com/delaneyj/statetree/tracked"
)

type Kind string

const (
	KindSet         Kind = "set"
	KindBatchStart  Kind = "batch-start"
	KindBatchFinish Kind = "batch-finish"
	KindDestroy     Kind = "destroy"
	KindLog         Kind = "log"
)

// Entry is one journal line. Values are JSON snapshots taken when the event
// fired; an empty string means there was no value.
type Entry struct {
	Seq      int
	Kind     Kind
	Label    string
	Op       string
	Path     string
	Edition  int64
	Value    string
	Previous string
	Message  string
}

type options struct {
	limit int
	label string
}

type Option func(*options)

// WithLimit keeps only the last n entries.
func WithLimit(n int) Option {
	return func(o *options) { o.limit = n }
}

// WithLabel sets the initial label stamped on entries.
func WithLabel(label string) Option {
	return func(o *options) { o.label = label }
}

// Journal is the plugin instance of one store.
type Journal struct {
	store   *tracked.Store
	opts    options
	seq     int
	entries []Entry
}

var (
	_ tracked.DevToolsExtensions = (*Journal)(nil)
	_ tracked.SetListener        = (*Journal)(nil)
	_ tracked.DestroyListener    = (*Journal)(nil)
)

// Plugin returns a journal plugin. Each store gets its own Journal.
func Plugin(opts ...Option) tracked.Plugin {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return tracked.Plugin{
		ID: tracked.DevToolsID,
		Init: func(root *tracked.State) any {
			return &Journal{store: root.Handle().Store(), opts: o}
		},
	}
}

// From returns the journal attached to the state's store.
func From(st *tracked.State) (*Journal, bool) {
	inst, err := st.Plugin(tracked.DevToolsID)
	if err != nil {
		return nil, false
	}
	j, ok := inst.(*Journal)
	return j, ok
}

func (j *Journal) add(e Entry) {
	j.seq++
	e.Seq = j.seq
	e.Label = j.opts.label
	e.Edition = j.store.Edition()
	j.entries = append(j.entries, e)
	if j.opts.limit > 0 && len(j.entries) > j.opts.limit {
		j.entries = append(j.entries[:0:0], j.entries[len(j.entries)-j.opts.limit:]...)
	}
}

func (j *Journal) OnSet(ev tracked.SetEvent) {
	j.add(Entry{
		Kind:     KindSet,
		Op:       ev.Op(),
		Path:     ev.Path.String(),
		Value:    snapshot(ev.Value),
		Previous: snapshot(ev.Previous),
	})
}

func (j *Journal) OnBatchStart(ev tracked.BatchEvent) {
	j.add(Entry{Kind: KindBatchStart, Path: ev.Path.String(), Message: batchContext(ev.Context)})
}

func (j *Journal) OnBatchFinish(ev tracked.BatchEvent) {
	j.add(Entry{Kind: KindBatchFinish, Path: ev.Path.String(), Message: batchContext(ev.Context)})
}

func (j *Journal) OnDestroy(ev tracked.DestroyEvent) {
	j.add(Entry{Kind: KindDestroy, Path: tracked.RootPath.String(), Value: snapshot(ev.State)})
}

// Label stamps name on every following entry.
func (j *Journal) Label(name string) {
	j.opts.label = name
}

func (j *Journal) Log(msg string, args ...any) {
	j.add(Entry{Kind: KindLog, Message: fmt.Sprintf(msg, args...)})
}

// Entries returns a copy of the recorded entries, oldest first.
func (j *Journal) Entries() []Entry {
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

func (j *Journal) Len() int { return len(j.entries) }

func (j *Journal) Reset() {
	j.entries = nil
}

func snapshot(v any) string {
	if v == tracked.Empty {
		return ""
	}
	var sb strings.Builder
	if err := tracked.WriteJSON(&sb, v); err != nil {
		return fmt.Sprint(v)
	}
	return sb.String()
}

func batchContext(c any) string {
	if c == nil {
		return ""
	}
	return fmt.Sprint(c)
}
