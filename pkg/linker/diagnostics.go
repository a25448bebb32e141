package linker

import (
	"fmt"
	"io"
	"os"
)

type DiagLevel uint8

const (
	DiagWarning DiagLevel = iota
	DiagError
)

func (l DiagLevel) String() string {
	switch l {
	case DiagWarning:
		return "warning"
	case DiagError:
		return "error"
	}
	return "unknown"
}

type DiagMessage struct {
	Level DiagLevel
	Text  string
}

// Diagnostics collects leveled messages. Print emits immediately; Queue
// defers until Flush, preserving queue order.
type Diagnostics struct {
	out      io.Writer
	messages []DiagMessage
	queued   []DiagMessage
}

func NewDiagnostics() *Diagnostics {
	return &Diagnostics{out: os.Stderr}
}

func NewDiagnosticsWriter(out io.Writer) *Diagnostics {
	return &Diagnostics{out: out}
}

func (d *Diagnostics) Print(level DiagLevel, format string, args ...any) {
	msg := DiagMessage{Level: level, Text: fmt.Sprintf(format, args...)}
	d.messages = append(d.messages, msg)
	fmt.Fprintf(d.out, "%s: %s\n", msg.Level, msg.Text)
}

func (d *Diagnostics) Queue(level DiagLevel, format string, args ...any) {
	msg := DiagMessage{Level: level, Text: fmt.Sprintf(format, args...)}
	d.messages = append(d.messages, msg)
	d.queued = append(d.queued, msg)
}

func (d *Diagnostics) Flush() {
	for _, msg := range d.queued {
		fmt.Fprintf(d.out, "%s: %s\n", msg.Level, msg.Text)
	}
	d.queued = nil
}

// Messages returns every message seen so far in emission order.
func (d *Diagnostics) Messages() []DiagMessage {
	return d.messages
}

func (d *Diagnostics) HasErrors() bool {
	for _, msg := range d.messages {
		if msg.Level == DiagError {
			return true
		}
	}
	return false
}
