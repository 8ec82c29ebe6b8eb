// Package cli provides the interactive command-line client of the account
// server.
//
// It wires configuration, the HTTP API client and the client services into
// a REPL. A background watcher pings the server and flips the prompt
// between online and offline.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See runREPL for the command list.
package cli
