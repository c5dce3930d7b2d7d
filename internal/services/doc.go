// Package services holds the error taxonomy shared by the capture and
// encoding loops.
package services
