// Package logging builds the application's slog loggers: a console
// handler with flattened key=value fields and a JSON handler, plus
// helpers for component loggers and context-derived run/clip/stage
// attributes.
package logging
