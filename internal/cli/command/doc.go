// Package command provides CLI command definitions for sockmesh-cli.
//
// It uses urfave/cli/v2 for command parsing. Every command dials the
// server, performs the token exchange, runs its operation over the
// live connection, and prints the result.
package command
