// Package metrics exports store activity as Prometheus metrics.
package metrics

import (
	"errors"

	"github.com/delaneyj/statetree/tracked"
	"github.com/prometheus/client_golang/prometheus"
)

// ID is the plugin identifier.
var ID = tracked.NewPluginID("statetree/metrics")

// Collector owns the metric vectors. One collector serves any number of
// stores, each labelled with the name given to Plugin.
type Collector struct {
	sets     *prometheus.CounterVec
	batches  *prometheus.CounterVec
	destroys *prometheus.CounterVec
	depth    *prometheus.GaugeVec
	edition  *prometheus.GaugeVec
}

// New creates the collector and registers its metrics with reg. Metrics
// already registered by an earlier collector on the same registry are
// reused.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		sets: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "statetree", Name: "sets_total", Help: "Mutations applied to a store, by operation."},
			[]string{"store", "op"},
		),
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "statetree", Name: "batches_total", Help: "Batches finished on a store, nested ones included."},
			[]string{"store"},
		),
		destroys: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "statetree", Name: "destroys_total", Help: "Stores destroyed."},
			[]string{"store"},
		),
		depth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: "statetree", Name: "batch_depth", Help: "Currently open batches."},
			[]string{"store"},
		),
		edition: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: "statetree", Name: "edition", Help: "Last observed store edition."},
			[]string{"store"},
		),
	}

	var err error
	if c.sets, err = register(reg, c.sets); err != nil {
		return nil, err
	}
	if c.batches, err = register(reg, c.batches); err != nil {
		return nil, err
	}
	if c.destroys, err = register(reg, c.destroys); err != nil {
		return nil, err
	}
	if c.depth, err = register(reg, c.depth); err != nil {
		return nil, err
	}
	if c.edition, err = register(reg, c.edition); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Plugin binds the collector to a store under the given store label.
func (c *Collector) Plugin(store string) tracked.Plugin {
	return tracked.Plugin{
		ID: ID,
		Init: func(root *tracked.State) any {
			return &instance{c: c, store: root.Handle().Store(), name: store}
		},
	}
}

type instance struct {
	c     *Collector
	store *tracked.Store
	name  string
}

func (i *instance) OnSet(ev tracked.SetEvent) {
	i.c.sets.WithLabelValues(i.name, ev.Op()).Inc()
	i.c.edition.WithLabelValues(i.name).Set(float64(i.store.Edition()))
}

func (i *instance) OnBatchStart(tracked.BatchEvent) {
	i.c.depth.WithLabelValues(i.name).Set(float64(i.store.BatchDepth()))
}

// OnBatchFinish runs before the store closes the batch, so the depth left
// open is one less than the store reports.
func (i *instance) OnBatchFinish(tracked.BatchEvent) {
	i.c.batches.WithLabelValues(i.name).Inc()
	i.c.depth.WithLabelValues(i.name).Set(float64(i.store.BatchDepth() - 1))
}

func (i *instance) OnDestroy(tracked.DestroyEvent) {
	i.c.destroys.WithLabelValues(i.name).Inc()
	i.c.depth.DeleteLabelValues(i.name)
	i.c.edition.DeleteLabelValues(i.name)
}
