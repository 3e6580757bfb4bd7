package main

import (
	"context"
	"fmt"

	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	pr := user.PasswordReset{Password: pwd, PasswordConfirm: pwd}
	if err = pr.Validate(cli.validate, usr); err != nil {
		return err
	}
	if _, err = cli.usrSvc.SetPassword(ctx, usr, pwd); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password of %s updated\n", usr.Email)
	return nil
}
