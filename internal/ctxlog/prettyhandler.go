// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/TylerBrock/colorjson"
	"github.com/stint-run/stint/internal/color"
)

// TimeFormat is the format used for timestamps in log messages.
const TimeFormat = "[15:04:05.000]"

var (
	// ErrMarshalAttrs is returned when record attributes cannot be marshaled.
	ErrMarshalAttrs = errors.New("error when marshaling attributes")
	// ErrWrite is returned when the handler cannot write to its destination.
	ErrWrite = errors.New("error when writing log output")
)

const (
	ansiReset     = "\033[0m"
	ansiCyan      = "\033[36m"
	ansiBlue      = "\033[34m"
	ansiYellow    = "\033[33m"
	ansiRed       = "\033[31m"
	ansiWhite     = "\033[37m"
	ansiHiWhite   = "\033[97m"
	ansiHiMagenta = "\033[95m"
)

// PrettyHandler is a slog handler that renders records as colourized,
// single-line console output with the attributes as indented JSON.
type PrettyHandler struct {
	inner  slog.Handler
	buf    *bytes.Buffer
	mu     *sync.Mutex
	writer io.Writer
	color  bool
	jf     *colorjson.Formatter
}

// Option configures a PrettyHandler.
type Option func(h *PrettyHandler)

// WithWriter sets the destination writer.
func WithWriter(w io.Writer) Option {
	return func(h *PrettyHandler) {
		h.writer = w
	}
}

// WithColor forces colour output on.
func WithColor() Option {
	return func(h *PrettyHandler) {
		h.color = true
	}
}

// WithAutoColor enables colour when stderr is a terminal, honouring the
// NO_COLOR and FORCE_COLOR environment variables.
func WithAutoColor() Option {
	return func(h *PrettyHandler) {
		h.color = color.Enabled(os.Stderr)
	}
}

// NewPretty creates a PrettyHandler with the given slog options.
func NewPretty(opts *slog.HandlerOptions, options ...Option) *PrettyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}

	buf := &bytes.Buffer{}
	h := &PrettyHandler{
		buf: buf,
		inner: slog.NewJSONHandler(buf, &slog.HandlerOptions{
			Level:       opts.Level,
			AddSource:   opts.AddSource,
			ReplaceAttr: suppressDefaults(opts.ReplaceAttr),
		}),
		mu:     &sync.Mutex{},
		writer: os.Stderr,
		jf:     colorjson.NewFormatter(),
	}
	h.jf.Indent = 2

	for _, opt := range options {
		opt(h)
	}

	h.jf.DisabledColor = !h.color

	return h
}

// Enabled implements slog.Handler.
func (h *PrettyHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// WithAttrs implements slog.Handler.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &PrettyHandler{
		inner: h.inner.WithAttrs(attrs), buf: h.buf, mu: h.mu,
		writer: h.writer, color: h.color, jf: h.jf,
	}
}

// WithGroup implements slog.Handler.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	return &PrettyHandler{
		inner: h.inner.WithGroup(name), buf: h.buf, mu: h.mu,
		writer: h.writer, color: h.color, jf: h.jf,
	}
}

// Handle implements slog.Handler.
func (h *PrettyHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs, err := h.computeAttrs(ctx, r)
	if err != nil {
		return err
	}

	var attrBytes []byte
	if len(attrs) > 0 {
		attrBytes, err = h.jf.Marshal(attrs)
		if err != nil {
			return errors.Join(ErrMarshalAttrs, err)
		}
	}

	out := strings.Builder{}
	out.WriteString(h.colorize(r.Time.Format(TimeFormat), ansiWhite))
	out.WriteString(" ")
	out.WriteString(h.colorize(r.Level.String()+":", levelColor(r.Level)))
	out.WriteString(" ")
	out.WriteString(h.colorize(r.Message, ansiHiWhite))

	if len(attrBytes) > 0 {
		out.WriteString(" ")
		out.Write(attrBytes)
	}

	out.WriteString("\n")

	if _, err := io.WriteString(h.writer, out.String()); err != nil {
		return errors.Join(ErrWrite, err)
	}

	return nil
}

// computeAttrs renders the record through the inner JSON handler and decodes
// the result, so ReplaceAttr and grouping behave exactly as slog defines them.
func (h *PrettyHandler) computeAttrs(ctx context.Context, r slog.Record) (map[string]any, error) {
	h.mu.Lock()
	defer func() {
		h.buf.Reset()
		h.mu.Unlock()
	}()

	if err := h.inner.Handle(ctx, r); err != nil {
		return nil, fmt.Errorf("inner handler: %w", err)
	}

	var attrs map[string]any
	if err := json.Unmarshal(h.buf.Bytes(), &attrs); err != nil {
		return nil, errors.Join(ErrMarshalAttrs, err)
	}

	return attrs, nil
}

func (h *PrettyHandler) colorize(s, code string) string {
	if !h.color {
		return s
	}

	return code + s + ansiReset
}

func levelColor(l slog.Level) string {
	switch {
	case l <= slog.LevelDebug:
		return ansiWhite
	case l <= slog.LevelInfo:
		return ansiCyan
	case l < slog.LevelWarn:
		return ansiBlue
	case l < slog.LevelError:
		return ansiYellow
	case l <= slog.LevelError+1:
		return ansiRed
	default:
		return ansiHiMagenta
	}
}

func suppressDefaults(next func([]string, slog.Attr) slog.Attr) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey || a.Key == slog.LevelKey || a.Key == slog.MessageKey {
			return slog.Attr{}
		}

		if next == nil {
			return a
		}

		return next(groups, a)
	}
}
