package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/mothercare/core"
	"github.com/trezcool/mothercare/core/nav"
	"github.com/trezcool/mothercare/core/session"
	"github.com/trezcool/mothercare/services/cms"
)

// checkLogin signs in the way the dashboard does and reports where the user would land.
// Nothing is stored.
func (cli *commandLine) checkLogin(email, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	token, err := cli.cms.Login(ctx, email, pwd)
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	user, err := cli.cms.WithTokens(cms.StaticToken(token)).Me(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching profile")
	}
	profile, err := session.ParseProfile(user, cli.validate)
	if err != nil {
		return errors.Wrap(err, "checking profile")
	}
	role, _ := session.ParseRole(profile.Role.Name)

	fmt.Fprintf(cli.out, "user:    %s <%s>\n", profile.Username, profile.Email)
	fmt.Fprintf(cli.out, "role:    %s\n", role.Label())
	fmt.Fprintf(cli.out, "landing: %s\n", nav.Home(role))
	return nil
}
