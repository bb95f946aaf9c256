// Package logger builds the process logger for mirrorsync binaries.
//
// It configures log/slog with JSON or text output, a level that can be
// changed at runtime (SetLevel), and redaction of attributes whose names
// suggest secrets, such as the value sealing secret. Libraries in this
// module never call this package; they take a *slog.Logger.
package logger
