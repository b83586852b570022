// Package logger provides structured logging for SockMesh.
package logger
