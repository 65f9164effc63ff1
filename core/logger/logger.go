package logger

import (
	"io"
	"log/slog"
	"os"
)

type options struct {
	level   slog.Level
	json    bool
	output  io.Writer
	attrs   []slog.Attr
	addSrc  bool
	service string
}

// Option configures the logger factory.
type Option func(*options)

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(o *options) { o.level = level }
}

// WithJSONFormatter switches output to JSON format.
func WithJSONFormatter() Option {
	return func(o *options) { o.json = true }
}

// WithTextFormatter switches output to human-readable text format.
func WithTextFormatter() Option {
	return func(o *options) { o.json = false }
}

// WithOutput sets the log destination. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.output = w
		}
	}
}

// WithAttr attaches static attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(o *options) { o.attrs = append(o.attrs, attrs...) }
}

// WithSource includes source file information in records.
func WithSource() Option {
	return func(o *options) { o.addSrc = true }
}

// WithDevelopment applies the development preset: text format, debug level.
func WithDevelopment(service string) Option {
	return func(o *options) {
		o.service = service
		o.json = false
		o.level = slog.LevelDebug
	}
}

// WithProduction applies the production preset: JSON format, info level.
func WithProduction(service string) Option {
	return func(o *options) {
		o.service = service
		o.json = true
		o.level = slog.LevelInfo
	}
}

// New creates a slog.Logger configured by the given options.
// Without options it logs text at info level to stdout.
func New(opts ...Option) *slog.Logger {
	o := &options{
		level:  slog.LevelInfo,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(o)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     o.level,
		AddSource: o.addSrc,
	}

	var handler slog.Handler
	if o.json {
		handler = slog.NewJSONHandler(o.output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(o.output, handlerOpts)
	}

	if o.service != "" {
		o.attrs = append([]slog.Attr{slog.String("service", o.service)}, o.attrs...)
	}
	if len(o.attrs) > 0 {
		handler = handler.WithAttrs(o.attrs)
	}

	return slog.New(handler)
}

// SetAsDefault installs the logger as the process-wide slog default.
func SetAsDefault(log *slog.Logger) {
	slog.SetDefault(log)
}
