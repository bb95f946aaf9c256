package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Prompt is printed before each line.
const Prompt = "mirrorsync> "

// ExecFunc runs one command line split into arguments.
type ExecFunc func(args []string) error

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	exec      ExecFunc
	completer *Completer
	history   *History
}

// Option configures a REPL.
type Option func(*REPL)

// WithHistory sets the history store.
func WithHistory(h *History) Option {
	return func(r *REPL) { r.history = h }
}

// WithCompleter sets the completer used for suggestions.
func WithCompleter(c *Completer) Option {
	return func(r *REPL) { r.completer = c }
}

// New creates a REPL reading from in and writing to out.
func New(in io.Reader, out io.Writer, exec ExecFunc, opts ...Option) *REPL {
	r := &REPL{
		input:     in,
		output:    out,
		exec:      exec,
		completer: NewCompleter(),
		history:   NewHistory(""),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the REPL loop. It returns on exit, quit or end of input.
func (r *REPL) Run() error {
	if err := r.history.Load(); err != nil {
		fmt.Fprintf(r.output, "warning: load history: %v\n", err)
	}
	defer func() {
		if err := r.history.Save(); err != nil {
			fmt.Fprintf(r.output, "warning: save history: %v\n", err)
		}
	}()

	reader := bufio.NewReader(r.input)
	for {
		fmt.Fprint(r.output, Prompt)

		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		eof := errors.Is(err, io.EOF)

		line = strings.TrimSpace(line)
		if line == "" {
			if eof {
				fmt.Fprintln(r.output)
				return nil
			}
			continue
		}

		r.history.Add(line)
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := r.execute(line); err != nil {
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}
		if eof {
			return nil
		}
	}
}

func (r *REPL) execute(line string) error {
	args, err := SplitArgs(line)
	if err != nil {
		return err
	}

	switch args[0] {
	case "history":
		for i, entry := range r.history.Entries() {
			fmt.Fprintf(r.output, "%4d  %s\n", i+1, entry)
		}
		return nil
	}

	// Global flags may precede the command name.
	if !strings.HasPrefix(args[0], "-") && !r.completer.Known(args[0]) {
		if args[0] == "" {
			return errors.New("empty command")
		}
		if s := r.completer.Complete(args[0][:1]); len(s) > 0 {
			return fmt.Errorf("unknown command %q, did you mean one of: %s", args[0], strings.Join(s, ", "))
		}
		return fmt.Errorf("unknown command %q, type help for a list", args[0])
	}
	return r.exec(args)
}

// SplitArgs splits a command line into arguments. Single quotes keep their
// content literally, double quotes allow backslash escapes.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inArg   bool
		quote   rune
		escaped bool
	)

	for _, ch := range line {
		switch {
		case escaped:
			cur.WriteRune(ch)
			escaped = false
		case ch == '\\' && quote != '\'':
			escaped = true
			inArg = true
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				cur.WriteRune(ch)
			}
		case ch == '\'' || ch == '"':
			quote = ch
			inArg = true
		case ch == ' ' || ch == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(ch)
			inArg = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inArg {
		args = append(args, cur.String())
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return args, nil
}
