package repl

import (
	"sort"
	"strings"
)

// Completer provides command completion for the REPL.
type Completer struct {
	commands []string
}

// NewCompleter creates a completer for the given command lines. Builtins of
// the shell are always included.
func NewCompleter(commands ...string) *Completer {
	all := append([]string{"help", "history", "exit", "quit"}, commands...)
	sort.Strings(all)
	return &Completer{commands: all}
}

// Complete returns the commands starting with prefix.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// Known reports whether name is the first word of a command.
func (c *Completer) Known(name string) bool {
	for _, cmd := range c.commands {
		first, _, _ := strings.Cut(cmd, " ")
		if first == name {
			return true
		}
	}
	return false
}
