package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/trezcool/mothercare/core/session"
)

var errSessionNotFound = errors.New("no session with this id")

// listSessions prints one line per stored browser session, most recent first.
func (cli *commandLine) listSessions() error {
	if cli.sessions == nil {
		return errNoInspection
	}
	list, err := cli.sessions.Namespaces(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tROLE\tUPDATED")
	for _, s := range list {
		user, role := "-", "-"
		if s.User.Valid {
			rec := session.UserRecord(s.User.String)
			if p, err := rec.Profile(); err == nil {
				user = p.Username
			}
			if r, ok := session.Resolve(rec); ok {
				role = r.String()
			}
		}
		updated := "-"
		if !s.UpdatedAt.IsZero() {
			updated = s.UpdatedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Namespace, user, role, updated)
	}
	return w.Flush()
}

func (cli *commandLine) clearSession(id string) error {
	if cli.sessions == nil {
		return errNoInspection
	}
	n, err := cli.sessions.DeleteHashed(context.Background(), id)
	if err != nil {
		return err
	}
	if n == 0 {
		return errSessionNotFound
	}
	fmt.Fprintf(cli.out, "session %s cleared\n", id)
	return nil
}
