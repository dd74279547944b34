package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// levelLabel is the fixed-width tag printed in front of each record
type levelLabel struct {
	text  string
	color *color.Color
}

var levelLabels = map[slog.Level]levelLabel{
	LevelTrace:      {"[TRACE]", color.New(color.FgHiBlack)},
	slog.LevelDebug: {"[DEBUG]", color.New(color.FgCyan)},
	slog.LevelInfo:  {"[INFO] ", color.New(color.FgGreen)},
	slog.LevelWarn:  {"[WARN] ", color.New(color.FgYellow)},
	slog.LevelError: {"[ERROR]", color.New(color.FgRed, color.Bold)},
}

// CompactHandler formats logs in a compact, readable format for console output
// Format: [LEVEL] HH:MM:SS message | key=value key=value
type CompactHandler struct {
	level    slog.Leveler
	colorize bool
	mu       *sync.Mutex
	out      io.Writer
	prefix   string      // group path applied to record attributes
	attrs    []slog.Attr // from WithAttrs, already carrying their group prefix
}

// NewCompactHandler creates a console handler. Level tags are colored when w is a terminal.
func NewCompactHandler(w io.Writer, opts *slog.HandlerOptions) *CompactHandler {
	h := &CompactHandler{level: slog.LevelInfo, mu: &sync.Mutex{}, out: w}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	if f, ok := w.(*os.File); ok {
		h.colorize = !color.NoColor && (f == os.Stdout || f == os.Stderr)
	}
	return h
}

func (h *CompactHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *CompactHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	label, ok := levelLabels[r.Level]
	if !ok {
		label = levelLabel{text: "[" + r.Level.String() + "]"}
	}
	if h.colorize && label.color != nil {
		buf = append(buf, label.color.Sprint(label.text)...)
	} else {
		buf = append(buf, label.text...)
	}
	buf = append(buf, ' ')
	buf = r.Time.AppendFormat(buf, "15:04:05")
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	sep := " |"
	add := func(a slog.Attr) {
		if a.Equal(slog.Attr{}) {
			return
		}
		buf = append(buf, sep...)
		buf = append(buf, ' ')
		sep = ""
		buf = appendAttr(buf, a)
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		for _, flat := range flatten(h.prefix, a) {
			add(flat)
		}
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

// flatten expands group attributes into dotted keys
func flatten(prefix string, a slog.Attr) []slog.Attr {
	a.Value = a.Value.Resolve()
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() != slog.KindGroup {
		return []slog.Attr{{Key: key, Value: a.Value}}
	}
	if a.Key == "" {
		key = prefix
	}
	var out []slog.Attr
	for _, member := range a.Value.Group() {
		out = append(out, flatten(key, member)...)
	}
	return out
}

// appendAttr writes key=value, shortening ids and units the console reader does not need
func appendAttr(buf []byte, a slog.Attr) []byte {
	v := a.Value
	name := a.Key
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	switch name {
	case "requestID", "session":
		if s := v.String(); len(s) > 8 {
			if name == "requestID" {
				return append(append(buf, "req="...), s[:8]...)
			}
			return append(append(buf, "session="...), s[:8]...)
		}
	case "durationMs":
		buf = append(buf, strings.TrimSuffix(a.Key, "Ms")+"="...)
		buf = append(buf, v.String()...)
		return append(buf, "ms"...)
	case "alpha":
		if v.Kind() == slog.KindFloat64 {
			return strconv.AppendFloat(append(buf, a.Key+"="...), v.Float64(), 'f', 4, 64)
		}
	case "error":
		return strconv.AppendQuote(append(buf, a.Key+"="...), v.String())
	}

	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	switch v.Kind() {
	case slog.KindString:
		if s := v.String(); needsQuoting(s) {
			return strconv.AppendQuote(buf, s)
		}
		return append(buf, v.String()...)
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	default:
		return append(buf, v.String()...)
	}
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '"' || r == '=' {
			return true
		}
	}
	return false
}

func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, flatten(h.prefix, a)...)
	}
	return &next
}

func (h *CompactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if next.prefix != "" {
		name = next.prefix + "." + name
	}
	next.prefix = name
	return &next
}
