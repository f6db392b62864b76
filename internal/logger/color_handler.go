package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorGray    = "\033[90m"
	colorWhite   = "\033[97m"
	colorBoldRed = "\033[1;31m"
)

// colorHandler is a slog.Handler that formats log records with ANSI colors
type colorHandler struct {
	opts              *slog.HandlerOptions
	writer            io.Writer
	preformattedAttrs []byte
	groups            []string
}

// NewColorHandler creates a new color handler that formats logs with colors
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *colorHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &colorHandler{
		opts:   opts,
		writer: w,
	}
}

// Enabled reports whether the handler handles records at the given level
func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle processes the log record and formats it with colors
func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	if !r.Time.IsZero() {
		buf.WriteString(colorGray)
		buf.WriteString(r.Time.Format(time.TimeOnly))
		buf.WriteString(colorReset)
		buf.WriteByte(' ')
	}

	buf.WriteString(h.levelColor(r.Level))
	buf.WriteString(strings.ToUpper(r.Level.String()))
	buf.WriteString(colorReset)
	buf.WriteByte(' ')

	buf.WriteString(h.messageColor(r.Level))
	buf.WriteString(r.Message)
	buf.WriteString(colorReset)

	if len(h.preformattedAttrs) > 0 {
		buf.WriteByte(' ')
		buf.Write(h.preformattedAttrs)
	}

	if r.NumAttrs() > 0 {
		needSpace := true
		r.Attrs(func(a slog.Attr) bool {
			if needSpace {
				buf.WriteByte(' ')
			}
			h.appendAttr(&buf, a)
			return true
		})
	}

	buf.WriteByte('\n')

	_, err := fmt.Fprint(h.writer, buf.String())
	return err
}

// WithAttrs returns a handler whose records carry the given attributes.
func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	var buf strings.Builder
	if len(h.preformattedAttrs) > 0 {
		buf.Write(h.preformattedAttrs)
	}
	for _, a := range attrs {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		h.appendAttr(&buf, a)
	}

	clone := *h
	clone.preformattedAttrs = []byte(buf.String())
	return &clone
}

// WithGroup returns a handler that prefixes attribute keys with name.
func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func (h *colorHandler) levelColor(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return colorGray
	case slog.LevelInfo:
		return colorCyan
	case slog.LevelWarn:
		return colorYellow
	case slog.LevelError:
		return colorRed
	default:
		return colorWhite
	}
}

func (h *colorHandler) messageColor(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return colorGray
	case slog.LevelInfo:
		return colorWhite
	case slog.LevelWarn:
		return colorYellow
	case slog.LevelError:
		return colorBoldRed
	default:
		return colorWhite
	}
}

func (h *colorHandler) appendAttr(buf *strings.Builder, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}

	buf.WriteString(colorCyan)
	buf.WriteString(key)
	buf.WriteString(colorReset)
	buf.WriteByte('=')

	h.appendValue(buf, a.Value, key)
}

func (h *colorHandler) appendValue(buf *strings.Builder, v slog.Value, key string) {
	switch v.Kind() {
	case slog.KindString:
		val := v.String()
		switch key {
		case "error":
			buf.WriteString(colorRed)
			buf.WriteString(val)
			buf.WriteString(colorReset)
		case "endpoint", "executor", "poller":
			buf.WriteString(colorGreen)
			buf.WriteString(val)
			buf.WriteString(colorReset)
		default:
			buf.WriteString(val)
		}
	case slog.KindInt64:
		buf.WriteString(colorYellow)
		fmt.Fprintf(buf, "%d", v.Int64())
		buf.WriteString(colorReset)
	case slog.KindUint64:
		buf.WriteString(colorYellow)
		fmt.Fprintf(buf, "%d", v.Uint64())
		buf.WriteString(colorReset)
	case slog.KindFloat64:
		buf.WriteString(colorYellow)
		fmt.Fprintf(buf, "%g", v.Float64())
		buf.WriteString(colorReset)
	case slog.KindBool:
		buf.WriteString(colorMagenta)
		fmt.Fprintf(buf, "%t", v.Bool())
		buf.WriteString(colorReset)
	case slog.KindDuration:
		buf.WriteString(colorBlue)
		fmt.Fprintf(buf, "%s", v.Duration())
		buf.WriteString(colorReset)
	case slog.KindTime:
		buf.WriteString(colorGray)
		fmt.Fprintf(buf, "%s", v.Time().Format(time.RFC3339))
		buf.WriteString(colorReset)
	default:
		buf.WriteString(v.String())
	}
}
