// Package session owns the per-print directory layout on shared storage:
// sequentially numbered frames, the ready/complete marker files that encode
// a session's lifecycle phase, and the scan logic that re-derives phase from
// disk. The marker files are the only coordination channel between the
// capture loop and the encoding worker; there is no shared in-process state.
package session
