package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"docmirror/pkg/ui"
)

// TerminalPrompter asks the human on the controlling terminal. Secrets are
// read without echo when input is a TTY.
type TerminalPrompter struct {
	in     io.Reader
	out    io.Writer
	fd     int
	isTTY  bool
	reader *bufio.Reader
}

// NewTerminalPrompter prompts on stdin and stderr
func NewTerminalPrompter() *TerminalPrompter {
	fd := int(os.Stdin.Fd())
	return &TerminalPrompter{
		in:     os.Stdin,
		out:    os.Stderr,
		fd:     fd,
		isTTY:  term.IsTerminal(fd),
		reader: bufio.NewReader(os.Stdin),
	}
}

// NewPrompter prompts on arbitrary streams, without echo control
func NewPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: in, out: out, fd: -1, reader: bufio.NewReader(in)}
}

// WaitForEnter prints msg and waits for a line
func (p *TerminalPrompter) WaitForEnter(ctx context.Context, msg string) error {
	fmt.Fprintf(p.out, "\n%s %s\n", ui.Magenta("[ACTION NEEDED]"), ui.Yellow(msg))
	_, err := p.readLine(ctx, false)
	return err
}

// ReadSecret prints prompt and reads a line without echo
func (p *TerminalPrompter) ReadSecret(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(p.out, ui.Cyan(prompt))
	line, err := p.readLine(ctx, p.isTTY)
	if p.isTTY {
		fmt.Fprintln(p.out)
	}
	return strings.TrimSpace(line), err
}

// Ask prints prompt and reads a visible line
func (p *TerminalPrompter) Ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(p.out, ui.Cyan(prompt))
	line, err := p.readLine(ctx, false)
	return strings.TrimSpace(line), err
}

// IsTerminal reports whether input comes from a terminal
func (p *TerminalPrompter) IsTerminal() bool {
	return p.isTTY
}

// readLine reads one line, returning early if ctx ends. The read itself
// cannot be interrupted and finishes in the background.
func (p *TerminalPrompter) readLine(ctx context.Context, hidden bool) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		if hidden {
			b, err := term.ReadPassword(p.fd)
			ch <- result{string(b), err}
			return
		}
		line, err := p.reader.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		ch <- result{strings.TrimRight(line, "\r\n"), err}
	}()

	select {
	case r := <-ch:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
