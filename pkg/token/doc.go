// Package token generates the opaque identifiers that address session
// rows in storage and are handed to remote peers for reuse across
// reconnects.
package token
