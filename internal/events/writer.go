// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"

	"github.com/jeranaias/filescout/internal/search"
	"github.com/jeranaias/filescout/internal/util"
)

// Format selects how a WriterObserver renders events.
type Format string

const (
	// FormatText prints human readable lines, colored when the profile allows.
	FormatText Format = "text"

	// FormatJSON prints one JSON object per event.
	FormatJSON Format = "json"
)

// WriterObserver prints every event it receives. It implements
// stream.Observer and is safe for concurrent use.
type WriterObserver struct {
	mu     sync.Mutex
	w      io.Writer
	styles Styles
	format Format
	width  int
	now    func() time.Time
}

// WriterOption customizes a WriterObserver.
type WriterOption func(*WriterObserver)

// WithProfile sets the color profile for text output (default: termenv.Ascii).
func WithProfile(p termenv.Profile) WriterOption {
	return func(o *WriterObserver) { o.styles = NewStyles(o.w, p) }
}

// WithWidth truncates text lines to width display cells (0 = no limit).
func WithWidth(width int) WriterOption {
	return func(o *WriterObserver) { o.width = width }
}

// NewWriterObserver creates an observer writing to w in format.
func NewWriterObserver(w io.Writer, format Format, opts ...WriterOption) *WriterObserver {
	if format == "" {
		format = FormatText
	}
	o := &WriterObserver{
		w:      w,
		styles: NewStyles(w, termenv.Ascii),
		format: format,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// jsonLine is the JSON output shape.
type jsonLine struct {
	Topic   string    `json:"topic"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

// Emit renders one event.
func (o *WriterObserver) Emit(topic string, payload any) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.format == FormatJSON {
		data, err := json.Marshal(jsonLine{Topic: topic, Time: o.now(), Payload: payload})
		if err != nil {
			return fmt.Errorf("encode %s event: %w", topic, err)
		}
		data = append(data, '\n')
		_, err = o.w.Write(data)
		return err
	}

	var b strings.Builder
	switch p := payload.(type) {
	case search.FinalResults:
		for _, f := range p.Files {
			o.line(&b, o.fileLine(f))
		}
		summary := fmt.Sprintf("%d match(es), %d scanned, %d error(s) in %s",
			len(p.Files), p.Scanned, p.Errors, p.Duration.Round(time.Millisecond))
		o.line(&b, o.styles.Success.Render(summary))

	case search.FileInfo:
		o.line(&b, o.styles.Dim.Render("+ ")+o.fileLine(p))

	case []string:
		for _, e := range p {
			o.line(&b, o.styles.Error.Render("error: "+e))
		}

	case fmt.Stringer:
		o.line(&b, o.styles.Warning.Render(topic+": ")+p.String())

	default:
		o.line(&b, fmt.Sprintf("%s: %v", topic, p))
	}

	_, err := io.WriteString(o.w, b.String())
	return err
}

func (o *WriterObserver) fileLine(f search.FileInfo) string {
	path := f.Path
	if f.Dir {
		path += "/"
	}
	if f.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", o.styles.Path.Render(path), f.Line, f.Snippet)
	}
	return path
}

func (o *WriterObserver) line(b *strings.Builder, s string) {
	if o.width > 0 && o.styles.Plain() {
		s = util.TruncateWidth(s, o.width)
	}
	b.WriteString(s)
	b.WriteByte('\n')
}
