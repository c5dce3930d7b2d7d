// Package ipc provides JSON-RPC over a Unix domain socket so the CLI can
// query the running daemon for status, sessions, and encode history.
package ipc
