// Package prompt presents disclosure documents to a human and collects an
// accept/reject decision.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/ggonzalez94/dotsign/internal/disclosure"
)

type Decision string

const (
	Accepted  Decision = "accepted"
	Rejected  Decision = "rejected"
	Dismissed Decision = "dismissed"
)

// Host shows a document and waits for the user's decision.
type Host interface {
	Prompt(ctx context.Context, doc disclosure.Document) (Decision, error)
}

// HostFunc adapts a function to Host.
type HostFunc func(ctx context.Context, doc disclosure.Document) (Decision, error)

func (f HostFunc) Prompt(ctx context.Context, doc disclosure.Document) (Decision, error) {
	return f(ctx, doc)
}

// Terminal renders documents as text and reads a y/N answer. EOF, context
// cancellation and (with RequireTTY) a non-terminal input count as dismissal.
type Terminal struct {
	In         io.Reader
	Out        io.Writer
	RequireTTY bool

	lines chan readResult
}

type readResult struct {
	line string
	err  error
}

func NewTerminal(in io.Reader, out io.Writer, requireTTY bool) *Terminal {
	return &Terminal{In: in, Out: out, RequireTTY: requireTTY}
}

func (t *Terminal) Prompt(ctx context.Context, doc disclosure.Document) (Decision, error) {
	if t.RequireTTY && !isTerminal(t.In) {
		return Dismissed, nil
	}
	if _, err := io.WriteString(t.Out, Render(doc)+"Approve? [y/N]: "); err != nil {
		return Dismissed, fmt.Errorf("write prompt: %w", err)
	}

	if t.lines == nil {
		t.lines = make(chan readResult, 1)
		go t.readLines()
	}
	select {
	case <-ctx.Done():
		fmt.Fprintln(t.Out)
		return Dismissed, nil
	case res, ok := <-t.lines:
		if !ok || errors.Is(res.err, io.EOF) {
			fmt.Fprintln(t.Out)
			return Dismissed, nil
		}
		if res.err != nil {
			return Dismissed, fmt.Errorf("read answer: %w", res.err)
		}
		switch strings.ToLower(strings.TrimSpace(res.line)) {
		case "y", "yes":
			return Accepted, nil
		default:
			return Rejected, nil
		}
	}
}

// readLines feeds answers to Prompt. A single reader goroutine outlives a
// cancelled prompt so buffered input is not lost between prompts.
func (t *Terminal) readLines() {
	defer close(t.lines)
	r := bufio.NewReader(t.In)
	for {
		line, err := r.ReadString('\n')
		if err != nil && line != "" && errors.Is(err, io.EOF) {
			err = nil
		}
		t.lines <- readResult{line: line, err: err}
		if err != nil {
			return
		}
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

const divider = "----------------------------------------"

// Render lays a document out as plain text, with a divider between row
// sections and warnings flagged.
func Render(doc disclosure.Document) string {
	var b strings.Builder
	last := -1
	for _, row := range doc.Rows {
		sec := section(row.Kind)
		if last >= 0 && sec != last {
			b.WriteString(divider + "\n")
		}
		last = sec
		label, value := disclosure.Escape(row.Label), disclosure.Escape(row.Value)
		switch {
		case row.Kind == disclosure.RowHeading:
			b.WriteString(value + "\n")
		case row.Kind == disclosure.RowWarning:
			fmt.Fprintf(&b, "!! %s: %s\n", label, value)
		case label == "":
			b.WriteString(value + "\n")
		default:
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	if last >= 0 {
		b.WriteString(divider + "\n")
	}
	return b.String()
}

func section(kind disclosure.RowKind) int {
	switch kind {
	case disclosure.RowHeading:
		return 0
	case disclosure.RowAction:
		return 1
	case disclosure.RowArgument, disclosure.RowIdentity, disclosure.RowField:
		return 2
	case disclosure.RowFee, disclosure.RowChain, disclosure.RowInfo:
		return 3
	default:
		return 4
	}
}
