// Command printlapse is the operator CLI: it queries the running daemon over
// its Unix socket and manages manual sessions and configuration.
package main
