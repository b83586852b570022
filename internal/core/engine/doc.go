// Package engine implements the session lifecycle engine.
//
// Each socket connection owns one Engine. The engine mediates
// load-or-create, read, mutate, and clear operations against the
// persistence gateway, enforces sliding expiration, and transparently
// replaces expired or missing sessions with freshly issued tokens.
package engine
