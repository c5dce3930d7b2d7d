// Package history records encode outcomes in a local SQLite database so
// completed and failed timelapses stay queryable after their session
// directories are cleaned up.
package history
