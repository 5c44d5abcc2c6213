// Package loghandler renders slog records as single compact lines:
//
//	2006/01/02 15:04:05 [tag] message key=value ...
//
// Every package logs with a "tag" attribute naming its component (lobby, game,
// ws, api, storage, events). The tag becomes the bracketed prefix instead of a
// key=value pair. Records below Info carry their level after the timestamp.
package loghandler

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

const timeFormat = "2006/01/02 15:04:05"

const tagKey = "tag"

// CompactHandler is a slog.Handler producing one line per record.
type CompactHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Leveler

	tag    string
	prefix string // group path, "a.b." form
	attrs  []byte // pre-rendered attrs from WithAttrs
}

// NewCompactHandler returns a handler that writes to w, dropping records below level.
func NewCompactHandler(w io.Writer, level slog.Leveler) *CompactHandler {
	return &CompactHandler{mu: &sync.Mutex{}, w: w, level: level}
}

func (h *CompactHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *CompactHandler) Handle(_ context.Context, r slog.Record) error {
	tag := h.tag
	var tail []byte
	r.Attrs(func(a slog.Attr) bool {
		if h.prefix == "" && a.Key == tagKey && a.Value.Kind() == slog.KindString {
			tag = a.Value.String()
			return true
		}
		tail = appendAttr(tail, h.prefix, a)
		return true
	})

	buf := make([]byte, 0, 256)
	if !r.Time.IsZero() {
		buf = append(buf, r.Time.Format(timeFormat)...)
		buf = append(buf, ' ')
	}
	if r.Level < slog.LevelInfo || r.Level >= slog.LevelWarn {
		buf = append(buf, r.Level.String()...)
		buf = append(buf, ' ')
	}
	if tag != "" {
		buf = append(buf, '[')
		buf = append(buf, tag...)
		buf = append(buf, "] "...)
	}
	buf = append(buf, r.Message...)
	buf = append(buf, h.attrs...)
	buf = append(buf, tail...)
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

// WithAttrs pre-renders attrs so loggers built with slog.With pay for them once.
// A top-level "tag" attr sets the prefix for every record of the returned handler.
func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := h.clone()
	for _, a := range attrs {
		if h2.prefix == "" && a.Key == tagKey && a.Value.Kind() == slog.KindString {
			h2.tag = a.Value.String()
			continue
		}
		h2.attrs = appendAttr(h2.attrs, h2.prefix, a)
	}
	return h2
}

// WithGroup qualifies later keys as group.key.
func (h *CompactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.prefix += name + "."
	return h2
}

func (h *CompactHandler) clone() *CompactHandler {
	h2 := *h
	h2.attrs = append([]byte(nil), h.attrs...)
	return &h2
}

func appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		if len(group) == 0 {
			return buf
		}
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range group {
			buf = appendAttr(buf, prefix, ga)
		}
		return buf
	}
	buf = append(buf, ' ')
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	s := a.Value.String()
	if strings.ContainsAny(s, " =\"\n") || s == "" {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}
