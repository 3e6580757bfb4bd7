package main

import (
	"context"
	"fmt"

	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

// addUser creates a student or lecturer account, applying the signup validation.
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) (user.User, error) {
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return user.User{}, err
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return user.User{}, err
	}
	fmt.Fprintf(cli.out, "created %s %s (id %s)\n", usr.Role, usr.Email, usr.ID)
	return usr, nil
}
