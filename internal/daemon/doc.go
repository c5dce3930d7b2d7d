// Package daemon composes the capture loop, encoding worker, storage
// checker, and snapshot uploader into a single lifecycle with flock-based
// locking to prevent multiple instances operating on one storage root.
package daemon
