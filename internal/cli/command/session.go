// Package command provides CLI command definitions for sockmesh-cli.
package command

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
)

// TokenCommand requests or resumes a session token.
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Request a new session token, or resume one with --token",
		Action: func(c *cli.Context) error {
			cl, token, diag, err := connect(c)
			if err != nil {
				return err
			}
			defer cl.Close()

			fmt.Fprintln(c.App.Writer, token)
			if diag != "" {
				fmt.Fprintf(c.App.ErrWriter, "note: %s\n", diag)
			}
			return nil
		},
	}
}

// GetCommand reads one session value.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Read a session value",
		ArgsUsage: "<key>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("usage: get <key>")
			}

			cl, _, _, err := connect(c)
			if err != nil {
				return err
			}
			defer cl.Close()

			value, err := cl.Get(c.Args().First())
			if err != nil {
				return err
			}

			out, err := json.Marshal(value)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, string(out))
			return nil
		},
	}
}

// SetCommand stores one session value.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Store a session value (value parsed as JSON, falling back to string)",
		ArgsUsage: "<key> <value>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("usage: set <key> <value>")
			}
			key, raw := c.Args().Get(0), c.Args().Get(1)

			// "42" stays a JSON number, "hello" a plain string.
			var value any
			if err := json.Unmarshal([]byte(raw), &value); err != nil {
				value = raw
			}

			cl, token, _, err := connect(c)
			if err != nil {
				return err
			}
			defer cl.Close()

			if err := cl.Set(key, value); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}

// ClearCommand empties the session.
func ClearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove every value from the session, keeping its token",
		Action: func(c *cli.Context) error {
			cl, token, _, err := connect(c)
			if err != nil {
				return err
			}
			defer cl.Close()

			if err := cl.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}
