// Package trace renders the rule-application trace lines ("Applied Rule
// <id>", "Cleaned Trues", "Pred after applying rules: …") to a configured
// writer, gated by the CLI's --verbose flag. No line is written when the
// driver descends into a subquery.
package trace

import (
	"fmt"
	"io"
	"sync"

	"etm/internal/ast"
)

// Writer serializes trace lines from potentially concurrent evaluation-loop
// workers (spec.md §5 expansion: the outer loop may parallelize pairs) onto
// a single underlying io.Writer.
type Writer struct {
	out     io.Writer
	verbose bool
	mu      sync.Mutex
}

func New(out io.Writer, verbose bool) *Writer {
	return &Writer{out: out, verbose: verbose}
}

// Sink returns a func(string) suitable for rewrite.Driver.Trace, prefixed
// with the given label (e.g. "Conversation 0 / Utterance 3") so interleaved
// workers stay distinguishable, or nil if tracing is disabled.
func (w *Writer) Sink(label string) func(string) {
	if !w.verbose {
		return nil
	}
	return func(line string) {
		w.Println(label + ": " + line)
	}
}

func (w *Writer) Println(line string) {
	if !w.verbose {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, line)
}

func (w *Writer) Printf(format string, args ...any) {
	w.Println(fmt.Sprintf(format, args...))
}

// Canonical prints the "Pred/Gold after applying rules: …" lines, rendering
// the tree with ast.String.
func (w *Writer) Canonical(label string, tree ast.Node) {
	w.Printf("%s after applying rules: %s", label, ast.String(tree))
}

// Summary prints the final Total/ETM/EXE block spec.md §6 specifies,
// unconditionally (not gated by verbose).
func Summary(out io.Writer, total int, etm, exe *float64) {
	fmt.Fprintln(out, "Total: ", total)
	if etm != nil {
		fmt.Fprintln(out, "ETM: ", *etm)
	}
	if exe != nil {
		fmt.Fprintln(out, "EXE: ", *exe)
	}
}
