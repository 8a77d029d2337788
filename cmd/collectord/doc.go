// Package `collectord` implements server application which collects raw
// messages from TCP clients and reports them in arrival order.
//
// To compile the server locally, run from package directory:
//
//	go install .
//
// Server binary `collectord` will be placed into bin/ directory under Go
// projects root, identified with GOPATH environment variable.
//
// Or quickly launch server with command:
//
//	go run .
//
// Send SIGHUP to restart the server on the same port, SIGINT or SIGTERM
// to stop it gracefully.
package main
