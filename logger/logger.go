package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
)

// Logger writes JSON to stdout until Setup replaces it.
var Logger = slog.New(NewTraceContextHandler(slog.NewJSONHandler(os.Stdout, nil)))

// Options decides where the indexer's records go.
type Options struct {
	Level   slog.Level
	Service string
	// Output defaults to stdout.
	Output io.Writer
	// Export also hands every record to the global OTel logger provider.
	Export bool
}

// OptionsFromEnv reads LOG_LEVEL for the given service.
func OptionsFromEnv(service string, export bool) Options {
	return Options{
		Level:   parseLevel(os.Getenv("LOG_LEVEL")),
		Service: service,
		Export:  export,
	}
}

// Setup installs the process wide Logger and GlobalContext.
func Setup(opts Options) {
	Logger = New(opts)
	GlobalContext = NewContextLogger(Logger)

	Logger.Info("logger initialized", "level", opts.Level.String(), "otel_export", opts.Export)
}

// New builds a JSON logger stamped with trace ids. With Export set the same
// records also leave through the otelslog bridge.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var handler slog.Handler = NewTraceContextHandler(
		slog.NewJSONHandler(out, &slog.HandlerOptions{Level: opts.Level}),
	)
	if opts.Export {
		handler = &teeHandler{
			level: opts.Level,
			handlers: []slog.Handler{
				handler,
				otelslog.NewHandler(opts.Service, otelslog.WithLoggerProvider(global.GetLoggerProvider())),
			},
		}
	}

	log := slog.New(handler)
	if opts.Service != "" {
		log = log.With("service", opts.Service)
	}
	return log
}

// parseLevel accepts slog level names, offsets such as "debug+2" and the
// "warning" alias. Anything else is info.
func parseLevel(raw string) slog.Level {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// teeHandler writes each record to every handler that accepts it.
type teeHandler struct {
	level    slog.Level
	handlers []slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level < h.level {
		return false
	}
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(handler slog.Handler) slog.Handler { return handler.WithAttrs(attrs) })
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(handler slog.Handler) slog.Handler { return handler.WithGroup(name) })
}

func (h *teeHandler) derive(fn func(slog.Handler) slog.Handler) *teeHandler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = fn(handler)
	}
	return &teeHandler{level: h.level, handlers: next}
}
