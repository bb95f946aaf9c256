// Package repl provides the interactive shell of mirrorsync-cli.
//
//   - repl.go: read loop and argument splitting
//   - completer.go: command name completion and suggestions
//   - history.go: history persisted across sessions
//
// The shell keeps one registry open for its whole lifetime, so the mirror
// loaded by the first command serves all later ones.
package repl
