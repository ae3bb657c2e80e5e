package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/ibca/academic/client"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	out io.Writer
	api *client.Client
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -as admin|student -id USERNAME|NUMBER       - sign in; the password is prompted")
	fmt.Fprintln(cli.out, "  logout -as admin|student                          - sign out of one session")
	fmt.Fprintln(cli.out, "  whoami                                            - show both sessions")
	fmt.Fprintln(cli.out, "  assignments [-course ID] [-eligible]              - list homework assignments")
	fmt.Fprintln(cli.out, "  active-counts [-course ID]...                     - count open assignments per course")
	fmt.Fprintln(cli.out, "  submit -course ID -assignment ID -file PATH [-notes TEXT] - upload a homework (PDF)")
	fmt.Fprintln(cli.out, "  my-homeworks                                      - list your submissions")
}

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

// intList collects repeated -course flags.
type intList []int

func (l *intList) String() string { return fmt.Sprint(*l) }

func (l *intList) Set(v string) error {
	var n int
	if _, err := fmt.Sscan(v, &n); err != nil {
		return err
	}
	*l = append(*l, n)
	return nil
}

func parseNamespace(as string) (client.Namespace, bool) {
	ns := client.Namespace(as)
	return ns, ns.Valid()
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	loginCmd := flag.NewFlagSet("login", flag.ContinueOnError)
	loginAs := loginCmd.String("as", "", "The session to sign in to: admin or student.")
	loginID := loginCmd.String("id", "", "The admin username or the student number.")

	logoutCmd := flag.NewFlagSet("logout", flag.ContinueOnError)
	logoutAs := logoutCmd.String("as", "", "The session to sign out of: admin or student.")

	assignmentsCmd := flag.NewFlagSet("assignments", flag.ContinueOnError)
	assignmentsCourse := assignmentsCmd.Int("course", 0, "Only list the assignments of this course.")
	assignmentsEligible := assignmentsCmd.Bool("eligible", false, "Only list the assignments accepting submissions (requires -course).")

	countsCmd := flag.NewFlagSet("active-counts", flag.ContinueOnError)
	var countsCourses intList
	countsCmd.Var(&countsCourses, "course", "A course to count (repeatable). None means every course.")

	submitCmd := flag.NewFlagSet("submit", flag.ContinueOnError)
	submitCourse := submitCmd.Int("course", 0, "The course of the assignment.")
	submitAssignment := submitCmd.Int("assignment", 0, "The assignment to submit to.")
	submitFile := submitCmd.String("file", "", "The PDF file to upload.")
	submitNotes := submitCmd.String("notes", "", "Notes for the instructor.")

	for _, fs := range []*flag.FlagSet{loginCmd, logoutCmd, assignmentsCmd, countsCmd, submitCmd} {
		fs.SetOutput(cli.out)
	}

	var err error
	switch args[1] {
	case "login":
		if err = loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		ns, ok := parseNamespace(*loginAs)
		if !ok || *loginID == "" {
			loginCmd.Usage()
			return errHelp
		}
		pwd, pErr := cli.promptPassword(loginCmd)
		if pErr != nil {
			return pErr
		}
		err = cli.login(ctx, ns, *loginID, pwd)

	case "logout":
		if err = logoutCmd.Parse(args[2:]); err != nil {
			return err
		}
		ns, ok := parseNamespace(*logoutAs)
		if !ok {
			logoutCmd.Usage()
			return errHelp
		}
		err = cli.logout(ns)

	case "whoami":
		err = cli.whoami()

	case "assignments":
		if err = assignmentsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *assignmentsEligible && *assignmentsCourse <= 0 {
			assignmentsCmd.Usage()
			return errHelp
		}
		err = cli.assignments(ctx, *assignmentsCourse, *assignmentsEligible)

	case "active-counts":
		if err = countsCmd.Parse(args[2:]); err != nil {
			return err
		}
		err = cli.activeCounts(ctx, countsCourses)

	case "submit":
		if err = submitCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *submitCourse <= 0 || *submitAssignment <= 0 || *submitFile == "" {
			submitCmd.Usage()
			return errHelp
		}
		err = cli.submit(ctx, *submitCourse, *submitAssignment, *submitFile, *submitNotes)

	case "my-homeworks":
		err = cli.myHomeworks(ctx)

	default:
		cli.printUsage()
		return errHelp
	}

	return cli.explain(err)
}

// explain turns a lost session into a hint about where to sign in again.
func (cli *commandLine) explain(err error) error {
	var unauth *client.UnauthorizedError
	if errors.As(err, &unauth) && unauth.Redirect != "" {
		as := client.NamespaceAdmin
		if unauth.Redirect == client.StudentLoginPath {
			as = client.NamespaceStudent
		}
		fmt.Fprintf(cli.out, "Your %s session has ended. Sign in again with: portal login -as %s\n", as, as)
	}
	return err
}
