// Package logging provides slog construction with the console and JSON
// handlers used by every printlapse process, plus the shared attribute
// helpers and field name conventions.
package logging
