package main

import (
	"context"
	"fmt"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/user"
)

// addUser creates an active admin, or replaces the password of an existing one.
func (cli *commandLine) addUser(name, uname, email, pwd string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	if usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname); err == nil {
		if err = cli.usrSvc.SetPassword(ctx, usr.Username, pwd); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "updated password of %q\n", usr.Username)
		return nil
	} else if !core.IsNotFound(err) {
		return err
	}

	if name == "" {
		name = uname
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		IsActive:  true,
		IsAdmin:   true,
		CreatedAt: user.NowFunc().UTC(),
		UpdatedAt: user.NowFunc().UTC(),
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if err := cli.usrRepo.CheckUniqueness(ctx, usr.Username, usr.Email, 0); err != nil {
		return err
	}
	usr, err := cli.usrRepo.CreateUser(ctx, usr)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created admin %q (id %d)\n", usr.Username, usr.ID)
	return nil
}
