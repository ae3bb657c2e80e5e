package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/ibca/academic/core/student"
	"github.com/ibca/academic/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	out        io.Writer
	usrRepo    user.Repository
	usrSvc     *user.Service
	studentSvc *student.Service
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                          - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL [-name NAME] - create or update an admin account")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL          - reset user's password")
	fmt.Fprintln(cli.out, "  provision-students -count N -prefix PREFIX [-semester S] [-year Y] - create numbered student accounts")
	fmt.Fprintln(cli.out, "  delete-students -semester S -year Y             - delete every student of a term")
}

// promptPassword reads a password without echo. An empty password prints the command usage.
func (cli *commandLine) promptPassword(cmd *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The admin's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The admin's email.")
	addUserName := addUserCmd.String("name", "", "The admin's full name.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	provisionCmd := flag.NewFlagSet("provision-students", flag.ContinueOnError)
	provisionCount := provisionCmd.Int("count", 0, "How many accounts to create.")
	provisionPrefix := provisionCmd.String("prefix", "", "Password prefix; passwords are PREFIX001, PREFIX002, ...")
	provisionSemester := provisionCmd.String("semester", "", "The semester of the new accounts.")
	provisionYear := provisionCmd.String("year", "", "The academic year of the new accounts, e.g. 2024-2025.")

	deleteCmd := flag.NewFlagSet("delete-students", flag.ContinueOnError)
	deleteSemester := deleteCmd.String("semester", "", "The semester to clean up.")
	deleteYear := deleteCmd.String("year", "", "The academic year to clean up.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, provisionCmd, deleteCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "provision-students":
		if err := provisionCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *provisionCount <= 0 || *provisionPrefix == "" {
			provisionCmd.Usage()
			return errHelp
		}
		return cli.provisionStudents(*provisionCount, *provisionPrefix, *provisionSemester, *provisionYear)

	case "delete-students":
		if err := deleteCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *deleteSemester == "" || *deleteYear == "" {
			deleteCmd.Usage()
			return errHelp
		}
		return cli.deleteStudents(*deleteSemester, *deleteYear)

	default:
		cli.printUsage()
		return errHelp
	}
}
