// Package logging writes store events as structured log/slog records.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/delaneyj/statetree/tracked"
)

// ID is the plugin identifier.
var ID = tracked.NewPluginID("statetree/logging")

const defaultLevel = slog.LevelInfo

// ParseLevel maps debug, info, warn and error (any case) to slog levels.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return defaultLevel
	}
}

// NewLogger builds a text or json logger at the given level, writing to
// stderr when w is nil.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// Plugin logs mutations and batch boundaries at debug level and destroys at
// info level. A nil logger means slog.Default.
func Plugin(logger *slog.Logger, name string) tracked.Plugin {
	if logger == nil {
		logger = slog.Default()
	}
	return tracked.Plugin{
		ID: ID,
		Init: func(root *tracked.State) any {
			return &instance{
				log:   logger.With(slog.String("store", name)),
				store: root.Handle().Store(),
			}
		},
	}
}

type instance struct {
	log   *slog.Logger
	store *tracked.Store
}

func (i *instance) OnSet(ev tracked.SetEvent) {
	ctx := context.Background()
	if !i.log.Enabled(ctx, slog.LevelDebug) {
		return
	}
	i.log.LogAttrs(ctx, slog.LevelDebug, "set",
		slog.String("path", ev.Path.String()),
		slog.String("op", ev.Op()),
		slog.Int64("edition", i.store.Edition()),
	)
}

func (i *instance) OnBatchStart(ev tracked.BatchEvent) {
	i.batch("batch start", ev)
}

func (i *instance) OnBatchFinish(ev tracked.BatchEvent) {
	i.batch("batch finish", ev)
}

func (i *instance) batch(msg string, ev tracked.BatchEvent) {
	attrs := []slog.Attr{
		slog.String("path", ev.Path.String()),
		slog.Int("depth", i.store.BatchDepth()),
	}
	if ev.Context != nil {
		attrs = append(attrs, slog.Any("context", ev.Context))
	}
	i.log.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
}

func (i *instance) OnDestroy(tracked.DestroyEvent) {
	i.log.LogAttrs(context.Background(), slog.LevelInfo, "store destroyed",
		slog.Int64("edition", i.store.Edition()),
	)
}
