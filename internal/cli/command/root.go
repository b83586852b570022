// Package command provides CLI command definitions for sockmesh-cli.
package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sockmesh-go/internal/cli/client"
	"github.com/yndnr/sockmesh-go/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "sockmesh-cli",
		Usage:   "SockMesh command-line session tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			TokenCommand(),
			GetCommand(),
			SetCommand(),
			ClearCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "SockMesh server address (host:port or unix:///path)",
			EnvVars: []string{"SOCKMESH_SERVER"},
			Value:   "localhost:5260",
		},
		&cli.StringFlag{
			Name:    "token",
			Aliases: []string{"t"},
			Usage:   "Session token from a previous exchange",
			EnvVars: []string{"SOCKMESH_TOKEN"},
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-request timeout",
			Value: client.DefaultTimeout,
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server  string
	Token   string
	Timeout time.Duration
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:  c.String("server"),
		Token:   c.String("token"),
		Timeout: c.Duration("timeout"),
	}
}

// connect dials the server and performs the token exchange. The
// returned diagnostic is non-empty when the presented token was
// replaced.
func connect(c *cli.Context) (cl *client.Client, token, diag string, err error) {
	flags := ParseGlobalFlags(c)

	cl, err = client.Dial(flags.Server, flags.Timeout)
	if err != nil {
		return nil, "", "", fmt.Errorf("connect %s: %w", flags.Server, err)
	}

	token, diag, err = cl.RequestToken(flags.Token)
	if err != nil {
		cl.Close()
		return nil, "", "", err
	}
	return cl, token, diag, nil
}
