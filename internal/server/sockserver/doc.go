// Package sockserver provides the socket-facing session server for SockMesh.
//
// It accepts long-lived TCP (and optionally unix domain socket)
// connections speaking a newline-delimited JSON protocol. Each
// connection owns one session engine: the peer opens with a
// request-token frame carrying its previous token (or none), the
// server answers with token-issued, and from then on the peer can
// read and write session values through the same connection.
//
// Handler code on the server side hooks in via OnSession to work
// with the loaded engine directly.
package sockserver
