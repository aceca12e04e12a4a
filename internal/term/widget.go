// Package term implements the terminal-rendering widget bound to a pane:
// a vt10x virtual terminal for grid state plus a raw scrollback buffer
// whose replay reconstructs content and colors after a widget is torn
// down and recreated.
package term

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hinshun/vt10x"
)

// DefaultMaxScrollback caps the raw replay buffer per widget.
const DefaultMaxScrollback = 256 * 1024

// Widget renders one session's output. It is safe for concurrent use:
// the output pump writes while the view layer reads snapshots and
// renders.
type Widget struct {
	mu            sync.Mutex
	vt            vt10x.Terminal
	rows, cols    int
	scrollback    []byte
	maxScrollback int
	sink          io.Writer
	lastRender    string
}

// NewWidget creates a widget with the given character grid.
func NewWidget(rows, cols int) *Widget {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	return &Widget{
		vt:            vt10x.New(vt10x.WithSize(cols, rows)),
		rows:          rows,
		cols:          cols,
		maxScrollback: DefaultMaxScrollback,
	}
}

// SetMaxScrollback adjusts the replay buffer cap, trimming immediately if
// the buffer already exceeds it. Values below 1 are ignored.
func (w *Widget) SetMaxScrollback(n int) {
	if n < 1 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.maxScrollback = n
	if len(w.scrollback) > n {
		w.scrollback = w.scrollback[len(w.scrollback)-n:]
	}
}

// Write feeds session output into the widget: the virtual terminal, the
// scrollback buffer, and the attached sink if any. Sink errors are
// dropped; a broken view must not stall output handling.
func (w *Widget) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = w.vt.Write(p)
	w.scrollback = append(w.scrollback, p...)
	if len(w.scrollback) > w.maxScrollback {
		w.scrollback = w.scrollback[len(w.scrollback)-w.maxScrollback:]
	}
	if w.sink != nil {
		_, _ = w.sink.Write(p)
	}
	return len(p), nil
}

// Attach binds a live view to the widget and immediately replays the
// scrollback into it so the view shows what the pane already produced.
func (w *Widget) Attach(sink io.Writer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sink = sink
	if sink != nil && len(w.scrollback) > 0 {
		_, _ = sink.Write(w.scrollback)
	}
}

// Detach unbinds the view. Output keeps accumulating in the scrollback.
func (w *Widget) Detach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sink = nil
}

// DetachSink unbinds the view only if sink is still the attached one. A
// view whose sink was taken over by a later Attach leaves the current
// sink in place.
func (w *Widget) DetachSink(sink io.Writer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sink == sink {
		w.sink = nil
	}
}

// Snapshot returns a copy of the raw scrollback, formatting included.
// Replaying it into a fresh widget reproduces content and colors.
func (w *Widget) Snapshot() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]byte, len(w.scrollback))
	copy(out, w.scrollback)
	return out
}

// Replay feeds captured scrollback into the widget without forwarding to
// the sink; used when recreating a widget for an existing pane.
func (w *Widget) Replay(p []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = w.vt.Write(p)
	w.scrollback = append(w.scrollback, p...)
	if len(w.scrollback) > w.maxScrollback {
		w.scrollback = w.scrollback[len(w.scrollback)-w.maxScrollback:]
	}
}

// Resize adjusts the widget's character grid.
func (w *Widget) Resize(rows, cols int) {
	if rows < 1 || cols < 1 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows, w.cols = rows, cols
	w.vt.Resize(cols, rows)
}

// Size returns the current character grid.
func (w *Widget) Size() (rows, cols int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows, w.cols
}

// Render produces the current screen as an ANSI-colored string, one line
// per grid row. vt10x can panic on odd input mid-resize; fall back to the
// last good frame in that case.
func (w *Widget) Render() (out string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			out = w.lastRender
		}
	}()

	cols, rows := w.vt.Size()
	if rows <= 0 || cols <= 0 {
		return w.lastRender
	}
	cursor := w.vt.Cursor()
	showCursor := w.vt.CursorVisible()

	var lines []string
	for row := 0; row < rows; row++ {
		var line strings.Builder
		lastFG, lastBG := vt10x.DefaultFG, vt10x.DefaultBG
		lastInverse := false
		for col := 0; col < cols; col++ {
			cell := w.vt.Cell(col, row)
			isCursor := showCursor && col == cursor.X && row == cursor.Y
			if cell.FG != lastFG || cell.BG != lastBG || isCursor != lastInverse {
				line.WriteString("\x1b[0m")
				writeColor(&line, cell.FG, false)
				writeColor(&line, cell.BG, true)
				if isCursor {
					line.WriteString("\x1b[7m")
				}
				lastFG, lastBG = cell.FG, cell.BG
				lastInverse = isCursor
			}
			if cell.Char == 0 {
				line.WriteRune(' ')
			} else {
				line.WriteRune(cell.Char)
			}
		}
		line.WriteString("\x1b[0m")
		lines = append(lines, line.String())
	}
	out = strings.Join(lines, "\n")
	w.lastRender = out
	return out
}

// writeColor emits the SGR sequence for one vt10x color. vt10x packs
// truecolor as r<<16|g<<8|b above the 256-palette range.
func writeColor(b *strings.Builder, c vt10x.Color, background bool) {
	def := vt10x.DefaultFG
	if background {
		def = vt10x.DefaultBG
	}
	if c == def {
		return
	}
	switch {
	case c.ANSI():
		base := 30
		if background {
			base = 40
		}
		if c < 8 {
			fmt.Fprintf(b, "\x1b[%dm", base+int(c))
		} else {
			fmt.Fprintf(b, "\x1b[%dm", base+60+int(c)-8)
		}
	case c > 255:
		code := 38
		if background {
			code = 48
		}
		fmt.Fprintf(b, "\x1b[%d;2;%d;%d;%dm", code, (c>>16)&0xFF, (c>>8)&0xFF, c&0xFF)
	default:
		code := 38
		if background {
			code = 48
		}
		fmt.Fprintf(b, "\x1b[%d;5;%dm", code, c)
	}
}
