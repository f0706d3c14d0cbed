// Package logging builds duet's slog loggers.
//
// Console output is a compact single line per record with the project and
// stage pulled into a "#7 (render)" prefix; JSON output is used for the log
// file and for machine consumers. WithContext tags a logger with the project,
// stage, and correlation ID carried on a context.
package logging
