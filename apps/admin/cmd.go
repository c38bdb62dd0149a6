package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/mothercare/services/cms"
	"github.com/trezcool/mothercare/storage/kv"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp         = errors.New("help provided")
	errNoDatabase   = errors.New("the session backend is not a SQL database")
	errNoInspection = errors.New("the session backend cannot be inspected")
)

type commandLine struct {
	db       *sqlx.DB     // nil unless the session backend is SQL
	sessions kv.Inspector // nil for the memory backend
	cms      *cms.Client
	validate *validator.Validate
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command against the session database (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  sessions - list the stored browser sessions")
	fmt.Fprintln(cli.out, "  clearsession -id ID - delete one stored session (ID as listed by `sessions`)")
	fmt.Fprintln(cli.out, "  checklogin -email EMAIL - sign in against the CMS and print the resolved role")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	clearSessionCmd := flag.NewFlagSet("clearsession", flag.ContinueOnError)
	clearSessionCmd.SetOutput(cli.out)
	clearSessionID := clearSessionCmd.String("id", "", "The session id, as listed by `sessions`.")

	checkLoginCmd := flag.NewFlagSet("checklogin", flag.ContinueOnError)
	checkLoginCmd.SetOutput(cli.out)
	checkLoginEmail := checkLoginCmd.String("email", "", "The user's email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "sessions":
		return cli.listSessions()

	case "clearsession":
		if err := clearSessionCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *clearSessionID == "" {
			clearSessionCmd.Usage()
			return errHelp
		}
		return cli.clearSession(*clearSessionID)

	case "checklogin":
		if err := checkLoginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *checkLoginEmail == "" {
			checkLoginCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			checkLoginCmd.Usage()
			return errHelp
		}
		return cli.checkLogin(*checkLoginEmail, string(pwd))

	default:
		cli.printUsage()
		return errHelp
	}
}
