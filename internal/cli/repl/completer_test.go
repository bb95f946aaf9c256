package repl

import (
	"reflect"
	"testing"
)

func TestCompleter_Complete(t *testing.T) {
	c := NewCompleter("get", "set", "server status", "server health")

	tests := []struct {
		name   string
		prefix string
		want   []string
	}{
		{"server prefix", "server", []string{"server health", "server status"}},
		{"server s prefix", "server s", []string{"server status"}},
		{"builtin", "hi", []string{"history"}},
		{"exit", "ex", []string{"exit"}},
		{"no match", "nonexistent", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Complete(tt.prefix); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Complete(%q) = %v, want %v", tt.prefix, got, tt.want)
			}
		})
	}

	if got := c.Complete(""); len(got) != len(c.commands) {
		t.Errorf("Complete(\"\") returned %d items, want %d", len(got), len(c.commands))
	}
}

func TestCompleter_Known(t *testing.T) {
	c := NewCompleter("get", "server status")

	tests := []struct {
		name string
		want bool
	}{
		{"get", true},
		{"server", true},
		{"help", true},
		{"status", false},
		{"ge", false},
	}
	for _, tt := range tests {
		if got := c.Known(tt.name); got != tt.want {
			t.Errorf("Known(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
