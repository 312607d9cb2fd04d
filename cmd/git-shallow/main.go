// git-shallow inspects and edits the shallow boundary file of a git
// repository through the same lock protocol git itself uses.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/urfave/cli/v2"

	"github.com/go-git/go-shallow"
)

func main() {
	if err := App().Run(os.Args); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "git-shallow: %v\n", err)
		os.Exit(1)
	}
}

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:  "git-shallow",
		Usage: "Inspect and edit the shallow boundary file of a git repository",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "git-dir",
				Value: ".git",
				Usage: "Repository metadata directory holding the shallow file",
			},
		},
		Commands: []*cli.Command{
			ListCmd(),
			AddCmd(),
			RemoveCmd(),
			ClearCmd(),
			ApplyCmd(),
		},
	}
}

func store(c *cli.Context) *shallow.ShallowFile {
	return shallow.New(osfs.New(c.String("git-dir")), shallow.DefaultName)
}

// ListCmd creates the list command, printing the current boundary set.
func ListCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print the shallow boundary commits, one per line",
		Action: func(c *cli.Context) error {
			commits, err := store(c).Read()
			if err != nil {
				return err
			}

			if len(commits) == 0 {
				color.Yellow("repository is not shallow")
				return nil
			}

			for _, h := range commits {
				fmt.Println(h.String())
			}

			return nil
		},
	}
}

// AddCmd creates the add command.
func AddCmd() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add boundary commits to the shallow file",
		ArgsUsage: "<hash>...",
		Action: func(c *cli.Context) error {
			return mutate(c, func(sess *shallow.Session, h plumbing.Hash) error {
				if err := sess.Add(h); err != nil {
					return err
				}

				color.Green("shallow %s", h.String())
				return nil
			})
		},
	}
}

// RemoveCmd creates the remove command.
func RemoveCmd() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Remove boundary commits from the shallow file",
		ArgsUsage: "<hash>...",
		Action: func(c *cli.Context) error {
			return mutate(c, func(sess *shallow.Session, h plumbing.Hash) error {
				if err := sess.Remove(h); err != nil {
					return err
				}

				color.Red("unshallow %s", h.String())
				return nil
			})
		},
	}
}

// ClearCmd creates the clear command, unshallowing the repository entirely.
func ClearCmd() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete the shallow file, the repository is no longer shallow",
		Action: func(c *cli.Context) error {
			if err := shallow.NewStorage(store(c)).SetShallow(nil); err != nil {
				return err
			}

			color.Yellow("repository unshallowed")
			return nil
		},
	}
}

// ApplyCmd creates the apply command, consuming negotiation-style
// "shallow <hash>" / "unshallow <hash>" lines from stdin.
func ApplyCmd() *cli.Command {
	return &cli.Command{
		Name:  "apply",
		Usage: "Apply shallow/unshallow assertion lines from stdin until a blank line or EOF",
		Action: func(c *cli.Context) error {
			sf := store(c)
			sess, err := sf.Lock()
			if err != nil {
				return err
			}

			if _, err := sf.Read(); err != nil {
				sess.Unlock(false)
				return err
			}

			if err := sess.ApplyAssertions(os.Stdin); err != nil {
				sess.Unlock(false)
				return err
			}

			return sess.Unlock(true)
		},
	}
}

// mutate runs op for every hash argument inside one lock session and
// persists the result.
func mutate(c *cli.Context, op func(*shallow.Session, plumbing.Hash) error) error {
	if c.NArg() == 0 {
		return cli.ShowSubcommandHelp(c)
	}

	hashes := make([]plumbing.Hash, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		h, err := shallow.ParseHash(arg)
		if err != nil {
			return err
		}

		hashes = append(hashes, h)
	}

	sf := store(c)
	sess, err := sf.Lock()
	if err != nil {
		return err
	}

	if _, err := sf.Read(); err != nil {
		sess.Unlock(false)
		return err
	}

	for _, h := range hashes {
		if err := op(sess, h); err != nil {
			sess.Unlock(false)
			return err
		}
	}

	return sess.Unlock(true)
}
