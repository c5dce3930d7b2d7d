// Package encoding turns finished frame sets into timelapse videos. The
// worker discovers work by scanning the storage root for ready markers,
// guards each session with an advisory file lock, and publishes results
// atomically so a crash at any point is recoverable by re-running the scan.
package encoding
