// Package capture drives frame acquisition for timelapse sessions. A pure
// Scheduler decides when sessions open, when frames are due, and when the
// post-print burst runs; the Loop applies those decisions against the printer
// monitor, the camera, and the session store.
package capture
