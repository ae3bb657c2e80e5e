package main

import (
	"context"
	"fmt"

	"github.com/ibca/academic/client"
)

func (cli *commandLine) login(ctx context.Context, ns client.Namespace, id, pwd string) error {
	switch ns {
	case client.NamespaceStudent:
		std, err := cli.api.StudentLogin(ctx, id, pwd)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "Signed in as student %s (%s)\n", std.StudentNumber, std.FullName)
	default:
		usr, err := cli.api.AdminLogin(ctx, id, pwd)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "Signed in as admin %s (%s)\n", usr.Username, usr.Name)
	}
	return nil
}

func (cli *commandLine) logout(ns client.Namespace) error {
	if err := cli.api.Logout(ns); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Signed out of the %s session\n", ns)
	return nil
}

func (cli *commandLine) whoami() error {
	s := cli.api.Session()
	for _, ns := range []client.Namespace{client.NamespaceAdmin, client.NamespaceStudent} {
		creds, ok, err := s.Credentials(ns)
		if err != nil {
			return err
		}
		switch {
		case !ok:
			fmt.Fprintf(cli.out, "%-8s signed out\n", ns+":")
		case creds.Identity == nil:
			fmt.Fprintf(cli.out, "%-8s signed in\n", ns+":")
		case ns == client.NamespaceStudent:
			fmt.Fprintf(cli.out, "%-8s %s (%s)\n", ns+":", creds.Identity.Number, creds.Identity.Name)
		default:
			fmt.Fprintf(cli.out, "%-8s %s (%s)\n", ns+":", creds.Identity.Username, creds.Identity.Name)
		}
	}

	_, active, ok, err := s.ResolveToken()
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(cli.out, "requests are sent as: %s\n", active)
	}
	return nil
}

// studentIdentity is the signed in student, required to submit or list homework.
func (cli *commandLine) studentIdentity() (*client.Identity, error) {
	creds, ok, err := cli.api.Session().Credentials(client.NamespaceStudent)
	if err != nil {
		return nil, err
	}
	if !ok || creds.Identity == nil {
		return nil, errNotStudent
	}
	return creds.Identity, nil
}
