// Package main provides the entry point for sockmesh-cli.
//
// The CLI tool provides command-line access to a SockMesh server for:
//
//   - Requesting and resuming session tokens
//   - Reading, writing, and clearing session values
//
// Usage:
//
//	sockmesh-cli [command] [flags]
//	sockmesh-cli token
//	sockmesh-cli -t <token> set userId '"42"'
//	sockmesh-cli -t <token> get userId
package main
