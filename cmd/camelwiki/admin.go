package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"camelwiki/internal/auth"
	"camelwiki/internal/database"
	"camelwiki/internal/page"
)

const adminUsage = `Usage: camelwiki admin <command>

Commands:
  adduser <username> <password> [display name]  Create a local account
  history <title>                                List the revisions of a page
`

func runAdmin(ctx context.Context, db *database.DB, args []string) error {
	return runAdminTo(ctx, os.Stdout, db, args)
}

func runAdminTo(ctx context.Context, out io.Writer, db *database.DB, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(out, adminUsage)
		return errors.New("missing admin command")
	}

	switch args[0] {
	case "adduser":
		return addUser(ctx, out, db, args[1:])
	case "history":
		return history(ctx, out, db, args[1:])
	default:
		fmt.Fprint(out, adminUsage)
		return fmt.Errorf("unknown admin command %q", args[0])
	}
}

func addUser(ctx context.Context, out io.Writer, db *database.DB, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: camelwiki admin adduser <username> <password> [display name]")
	}
	reg := auth.Registration{
		Username: args[0],
		Password: args[1],
	}
	if len(args) > 2 {
		reg.DisplayName = strings.Join(args[2:], " ")
	}

	account, err := auth.Register(ctx, auth.NewRepository(db), reg)
	if err != nil {
		return fmt.Errorf("creating account: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Fprint(out, "✓ ")
	fmt.Fprintf(out, "Created account %s (%s)\n", color.CyanString(account.Username), account.DisplayName)
	return nil
}

func history(ctx context.Context, out io.Writer, db *database.DB, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: camelwiki admin history <title>")
	}
	title := args[0]

	revisions, err := page.NewRepository(db).ListRevisions(ctx, title)
	if err != nil {
		return err
	}
	if len(revisions) == 0 {
		color.New(color.FgYellow).Fprintf(out, "No revisions of %s\n", title)
		return nil
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	cyan.Fprintf(out, "%s\n", title)
	for _, rev := range revisions {
		author := ""
		if rev.Author != nil {
			author = rev.Author.Nickname
		}
		fmt.Fprintf(out, "  v%-4d %s  %s", rev.VersionNumber, rev.CreatedAt.Format("2006-01-02 15:04:05"), author)
		if rev.Comment != nil {
			gray.Fprintf(out, "  %s", *rev.Comment)
		}
		fmt.Fprintln(out)
	}
	return nil
}
