// Package tracing turns store batches into OpenTelemetry spans. Each batch,
// nested ones included, becomes a span; mutations become events on the
// innermost open span, or short spans of their own outside a batch.
package tracing

import (
	"context"
	"fmt"

	"github.com/delaneyj/statetree/tracked"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/delaneyj/statetree"

// ID is the plugin identifier.
var ID = tracked.NewPluginID("statetree/tracing")

const (
	attrPath    = attribute.Key("statetree.path")
	attrOp      = attribute.Key("statetree.op")
	attrEdition = attribute.Key("statetree.edition")
	attrContext = attribute.Key("statetree.batch.context")
)

type options struct {
	provider trace.TracerProvider
	ctx      context.Context
}

type Option func(*options)

// WithTracerProvider selects the provider; the global one is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.provider = tp }
}

// WithContext parents top-level spans under ctx.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

func Plugin(opts ...Option) tracked.Plugin {
	o := options{ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}
	return tracked.Plugin{
		ID: ID,
		Init: func(root *tracked.State) any {
			var tracer trace.Tracer
			if o.provider != nil {
				tracer = o.provider.Tracer(tracerName)
			} else {
				tracer = otel.Tracer(tracerName)
			}
			return &instance{tracer: tracer, store: root.Handle().Store(), base: o.ctx}
		},
	}
}

type frame struct {
	ctx  context.Context
	span trace.Span
}

type instance struct {
	tracer trace.Tracer
	store  *tracked.Store
	base   context.Context
	open   []frame
}

func (i *instance) current() context.Context {
	if n := len(i.open); n > 0 {
		return i.open[n-1].ctx
	}
	return i.base
}

func (i *instance) OnBatchStart(ev tracked.BatchEvent) {
	attrs := []attribute.KeyValue{attrPath.String(ev.Path.String())}
	if ev.Context != nil {
		attrs = append(attrs, attrContext.String(fmt.Sprint(ev.Context)))
	}
	ctx, span := i.tracer.Start(i.current(), "statetree.batch", trace.WithAttributes(attrs...))
	i.open = append(i.open, frame{ctx: ctx, span: span})
}

func (i *instance) OnBatchFinish(tracked.BatchEvent) {
	n := len(i.open)
	if n == 0 {
		return
	}
	f := i.open[n-1]
	i.open = i.open[:n-1]
	f.span.SetAttributes(attrEdition.Int64(i.store.Edition()))
	f.span.End()
}

func (i *instance) setAttributes(ev tracked.SetEvent) []attribute.KeyValue {
	return []attribute.KeyValue{
		attrPath.String(ev.Path.String()),
		attrOp.String(ev.Op()),
		attrEdition.Int64(i.store.Edition()),
	}
}

func (i *instance) OnSet(ev tracked.SetEvent) {
	if n := len(i.open); n > 0 {
		i.open[n-1].span.AddEvent("statetree.set", trace.WithAttributes(i.setAttributes(ev)...))
		return
	}
	_, span := i.tracer.Start(i.base, "statetree.set", trace.WithAttributes(i.setAttributes(ev)...))
	span.End()
}

// OnDestroy also ends the spans of batches still open.
func (i *instance) OnDestroy(tracked.DestroyEvent) {
	_, span := i.tracer.Start(i.current(), "statetree.destroy")
	span.End()
	for j := len(i.open) - 1; j >= 0; j-- {
		i.open[j].span.End()
	}
	i.open = nil
}
