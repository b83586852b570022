// Package main provides the entry point for sockmesh-cli.
//
// sockmesh-cli is the command-line session tool for SockMesh.
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/sockmesh-go/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
