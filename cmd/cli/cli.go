// Package cli is the command-line prototype of Chirp. It reads and appends
// cheeps in the CSV archive.
package cli

import (
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"example.com/chirp/internal/csvdb"
	"example.com/chirp/internal/models"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Env is what the commands need from the outside world.
type Env struct {
	DB   *csvdb.Database[csvdb.Cheep]
	User func() string
	Now  func() time.Time
}

// CurrentUser is the login name of the OS user running the CLI.
func CurrentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "anonymous"
}

// NewRootCmd builds the chirp command tree over env.
func NewRootCmd(env Env) *cobra.Command {
	if env.User == nil {
		env.User = CurrentUser
	}
	if env.Now == nil {
		env.Now = time.Now
	}

	root := &cobra.Command{
		Use:           "chirp",
		Short:         "Read and write cheeps in the CSV archive",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newReadCmd(env), newCheepCmd(env))
	return root
}

func newReadCmd(env Env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Print archived cheeps, oldest first",
		Long: `Print archived cheeps as "author @ timestamp: message", one per line.

Use --limit to print only the first n cheeps.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				cheeps []csvdb.Cheep
				err    error
			)
			if cmd.Flags().Changed("limit") {
				cheeps, err = env.DB.Read(limit)
			} else {
				cheeps, err = env.DB.ReadAll()
			}
			if err != nil {
				return errors.Wrap(err, "can't read cheeps")
			}
			out := cmd.OutOrStdout()
			for _, c := range cheeps {
				fmt.Fprintln(out, FormatCheep(c))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of cheeps to print")
	return cmd
}

func newCheepCmd(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "cheep <message...>",
		Short: "Post a cheep as the current user",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := csvdb.Cheep{
				Author:    env.User(),
				Message:   strings.Join(args, " "),
				Timestamp: env.Now().Unix(),
			}
			if err := env.DB.Store(c); err != nil {
				return errors.Wrap(err, "can't store cheep")
			}
			return nil
		},
	}
}

// FormatCheep renders c the way the read command prints it.
func FormatCheep(c csvdb.Cheep) string {
	return fmt.Sprintf("%s @ %s: %s", c.Author, models.FormatTimeStamp(time.Unix(c.Timestamp, 0)), c.Message)
}
