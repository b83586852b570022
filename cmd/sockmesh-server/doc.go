// Package main provides the entry point for sockmesh-server.
//
// The server is the core SockMesh service that provides:
//
//   - A socket endpoint for long-lived session connections
//   - Token-addressed session persistence (MySQL, Badger, or memory)
//   - Local Unix socket for same-host access
//   - Optional Prometheus metrics endpoint
//
// Usage:
//
//	sockmesh-server [flags]
//	sockmesh-server --config /path/to/config.yaml
//
// The server loads configuration, initializes infrastructure components,
// and starts all configured listeners.
package main
