// Package printer polls the Prusa Connect status API and classifies the
// response into the small state machine the capture scheduler consumes.
// A failed or timed-out poll yields StateUnreachable, never an error that
// could be mistaken for print completion.
package printer
