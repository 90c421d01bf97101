// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the service lifecycle: loading
// configuration, restoring or seeding the graph, serving the HTTP API and
// saving a snapshot on shutdown. It is decoupled from any specific
// entrypoint like a CLI.
package app
